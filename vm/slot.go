package vm

import "errors"

// Slot identifies one special-method family. Every type resolves each
// slot to an implementation, or to the family's empty sentinel, and caches
// the result per representation class in its Operations.
type Slot uint8

const (
	OpRepr Slot = iota
	OpHash
	OpCall
	OpStr

	OpGetAttribute
	OpGetAttr
	OpSetAttr
	OpDelAttr

	OpLT
	OpLE
	OpEQ
	OpNE
	OpGT
	OpGE

	OpIter
	OpNext

	OpGet
	OpSet
	OpDelete

	OpInit

	OpRadd
	OpRsub
	OpRmul
	OpRmatmul
	OpRtruediv
	OpRfloordiv
	OpRmod
	OpRdivmod
	OpRpow
	OpRlshift
	OpRrshift
	OpRand
	OpRxor
	OpRor

	OpAdd
	OpSub
	OpMul
	OpMatmul
	OpTruediv
	OpFloordiv
	OpMod
	OpDivmod
	OpPow
	OpLshift
	OpRshift
	OpAnd
	OpXor
	OpOr

	OpNeg
	OpPos
	OpAbs
	OpInvert

	OpBool
	OpInt
	OpFloat
	OpIndex

	OpLen
	OpContains
	OpGetItem
	OpSetItem
	OpDelItem

	slotCount
)

// SlotSignature fixes the Go handle type of a slot.
type SlotSignature uint8

const (
	SigUnary       SlotSignature = iota // UnaryFunc
	SigBinary                           // BinaryFunc
	SigPredicate                        // PredicateFunc
	SigLen                              // LenFunc
	SigHash                             // HashFunc
	SigContains                         // ContainsFunc
	SigGetAttr                          // GetAttrFunc
	SigSetAttr                          // SetAttrFunc
	SigDelAttr                          // DelAttrFunc
	SigSetItem                          // SetItemFunc
	SigDelItem                          // DelItemFunc
	SigCall                             // CallFunc
	SigInit                             // InitFunc
	SigDescrGet                         // DescrGetFunc
	SigDescrSet                         // DescrSetFunc
	SigDescrDelete                      // DescrDeleteFunc
)

// Handle types, one per SlotSignature.
type (
	UnaryFunc       func(self Value) (Value, error)
	BinaryFunc      func(self, other Value) (Value, error)
	PredicateFunc   func(self Value) (bool, error)
	LenFunc         func(self Value) (int, error)
	HashFunc        func(self Value) (int, error)
	ContainsFunc    func(self, item Value) (bool, error)
	GetAttrFunc     func(self Value, name string) (Value, error)
	SetAttrFunc     func(self Value, name string, value Value) error
	DelAttrFunc     func(self Value, name string) error
	SetItemFunc     func(self, key, value Value) error
	DelItemFunc     func(self, key Value) error
	CallFunc        func(self Value, args []Value, kwnames []string) (Value, error)
	InitFunc        func(self Value, args []Value, kwnames []string) error
	DescrGetFunc    func(self, obj Value, typ *Type) (Value, error)
	DescrSetFunc    func(self, obj, value Value) error
	DescrDeleteFunc func(self, obj Value) error
)

// errEmptySlot is returned by the empty sentinel of every family. Dispatch
// algorithms test Operations.Has before invoking a handle, so this error
// only surfaces if a handle is invoked blindly.
var errEmptySlot = errors.New("empty slot")

// Empty sentinels.
var (
	emptyUnary       UnaryFunc       = func(Value) (Value, error) { return nil, errEmptySlot }
	emptyBinary      BinaryFunc      = func(Value, Value) (Value, error) { return nil, errEmptySlot }
	emptyPredicate   PredicateFunc   = func(Value) (bool, error) { return false, errEmptySlot }
	emptyLen         LenFunc         = func(Value) (int, error) { return 0, errEmptySlot }
	emptyHash        HashFunc        = func(Value) (int, error) { return 0, errEmptySlot }
	emptyContains    ContainsFunc    = func(Value, Value) (bool, error) { return false, errEmptySlot }
	emptyGetAttr     GetAttrFunc     = func(Value, string) (Value, error) { return nil, errEmptySlot }
	emptySetAttr     SetAttrFunc     = func(Value, string, Value) error { return errEmptySlot }
	emptyDelAttr     DelAttrFunc     = func(Value, string) error { return errEmptySlot }
	emptySetItem     SetItemFunc     = func(Value, Value, Value) error { return errEmptySlot }
	emptyDelItem     DelItemFunc     = func(Value, Value) error { return errEmptySlot }
	emptyCall        CallFunc        = func(Value, []Value, []string) (Value, error) { return nil, errEmptySlot }
	emptyInit        InitFunc        = func(Value, []Value, []string) error { return errEmptySlot }
	emptyDescrGet    DescrGetFunc    = func(Value, Value, *Type) (Value, error) { return nil, errEmptySlot }
	emptyDescrSet    DescrSetFunc    = func(Value, Value, Value) error { return errEmptySlot }
	emptyDescrDelete DescrDeleteFunc = func(Value, Value) error { return errEmptySlot }
)

type slotInfo struct {
	name   string
	opName string
	sig    SlotSignature
	alt    Slot // reflected counterpart of a binary slot
	hasAlt bool
}

var slotTable = [slotCount]slotInfo{
	OpRepr:         {name: "__repr__", opName: "repr", sig: SigUnary},
	OpHash:         {name: "__hash__", opName: "hash", sig: SigHash},
	OpCall:         {name: "__call__", opName: "()", sig: SigCall},
	OpStr:          {name: "__str__", opName: "str", sig: SigUnary},
	OpGetAttribute: {name: "__getattribute__", opName: "getattr", sig: SigGetAttr},
	OpGetAttr:      {name: "__getattr__", opName: "getattr", sig: SigGetAttr},
	OpSetAttr:      {name: "__setattr__", opName: "setattr", sig: SigSetAttr},
	OpDelAttr:      {name: "__delattr__", opName: "delattr", sig: SigDelAttr},

	OpLT: {name: "__lt__", opName: "<", sig: SigBinary},
	OpLE: {name: "__le__", opName: "<=", sig: SigBinary},
	OpEQ: {name: "__eq__", opName: "==", sig: SigBinary},
	OpNE: {name: "__ne__", opName: "!=", sig: SigBinary},
	OpGT: {name: "__gt__", opName: ">", sig: SigBinary},
	OpGE: {name: "__ge__", opName: ">=", sig: SigBinary},

	OpIter: {name: "__iter__", opName: "iter", sig: SigUnary},
	OpNext: {name: "__next__", opName: "next", sig: SigUnary},

	OpGet:    {name: "__get__", opName: "get", sig: SigDescrGet},
	OpSet:    {name: "__set__", opName: "set", sig: SigDescrSet},
	OpDelete: {name: "__delete__", opName: "delete", sig: SigDescrDelete},

	OpInit: {name: "__init__", opName: "init", sig: SigInit},

	OpRadd:      {name: "__radd__", opName: "+", sig: SigBinary},
	OpRsub:      {name: "__rsub__", opName: "-", sig: SigBinary},
	OpRmul:      {name: "__rmul__", opName: "*", sig: SigBinary},
	OpRmatmul:   {name: "__rmatmul__", opName: "@", sig: SigBinary},
	OpRtruediv:  {name: "__rtruediv__", opName: "/", sig: SigBinary},
	OpRfloordiv: {name: "__rfloordiv__", opName: "//", sig: SigBinary},
	OpRmod:      {name: "__rmod__", opName: "%", sig: SigBinary},
	OpRdivmod:   {name: "__rdivmod__", opName: "divmod()", sig: SigBinary},
	OpRpow:      {name: "__rpow__", opName: "**", sig: SigBinary},
	OpRlshift:   {name: "__rlshift__", opName: "<<", sig: SigBinary},
	OpRrshift:   {name: "__rrshift__", opName: ">>", sig: SigBinary},
	OpRand:      {name: "__rand__", opName: "&", sig: SigBinary},
	OpRxor:      {name: "__rxor__", opName: "^", sig: SigBinary},
	OpRor:       {name: "__ror__", opName: "|", sig: SigBinary},

	OpAdd:      {name: "__add__", opName: "+", sig: SigBinary, alt: OpRadd, hasAlt: true},
	OpSub:      {name: "__sub__", opName: "-", sig: SigBinary, alt: OpRsub, hasAlt: true},
	OpMul:      {name: "__mul__", opName: "*", sig: SigBinary, alt: OpRmul, hasAlt: true},
	OpMatmul:   {name: "__matmul__", opName: "@", sig: SigBinary, alt: OpRmatmul, hasAlt: true},
	OpTruediv:  {name: "__truediv__", opName: "/", sig: SigBinary, alt: OpRtruediv, hasAlt: true},
	OpFloordiv: {name: "__floordiv__", opName: "//", sig: SigBinary, alt: OpRfloordiv, hasAlt: true},
	OpMod:      {name: "__mod__", opName: "%", sig: SigBinary, alt: OpRmod, hasAlt: true},
	OpDivmod:   {name: "__divmod__", opName: "divmod()", sig: SigBinary, alt: OpRdivmod, hasAlt: true},
	OpPow:      {name: "__pow__", opName: "**", sig: SigBinary, alt: OpRpow, hasAlt: true},
	OpLshift:   {name: "__lshift__", opName: "<<", sig: SigBinary, alt: OpRlshift, hasAlt: true},
	OpRshift:   {name: "__rshift__", opName: ">>", sig: SigBinary, alt: OpRrshift, hasAlt: true},
	OpAnd:      {name: "__and__", opName: "&", sig: SigBinary, alt: OpRand, hasAlt: true},
	OpXor:      {name: "__xor__", opName: "^", sig: SigBinary, alt: OpRxor, hasAlt: true},
	OpOr:       {name: "__or__", opName: "|", sig: SigBinary, alt: OpRor, hasAlt: true},

	OpNeg:    {name: "__neg__", opName: "unary -", sig: SigUnary},
	OpPos:    {name: "__pos__", opName: "unary +", sig: SigUnary},
	OpAbs:    {name: "__abs__", opName: "abs()", sig: SigUnary},
	OpInvert: {name: "__invert__", opName: "unary ~", sig: SigUnary},

	OpBool:  {name: "__bool__", opName: "bool", sig: SigPredicate},
	OpInt:   {name: "__int__", opName: "int", sig: SigUnary},
	OpFloat: {name: "__float__", opName: "float", sig: SigUnary},
	OpIndex: {name: "__index__", opName: "index", sig: SigUnary},

	OpLen:      {name: "__len__", opName: "len", sig: SigLen},
	OpContains: {name: "__contains__", opName: "in", sig: SigContains},
	OpGetItem:  {name: "__getitem__", opName: "[]", sig: SigBinary},
	OpSetItem:  {name: "__setitem__", opName: "[]=", sig: SigSetItem},
	OpDelItem:  {name: "__delitem__", opName: "del []", sig: SigDelItem},
}

var slotByName = func() map[string]Slot {
	m := make(map[string]Slot, slotCount)
	for s := Slot(0); s < slotCount; s++ {
		m[slotTable[s].name] = s
	}
	return m
}()

// SlotNamed returns the slot whose special method is called name.
func SlotNamed(name string) (Slot, bool) {
	s, ok := slotByName[name]
	return s, ok
}

// MethodName returns the special-method name, e.g. "__add__".
func (s Slot) MethodName() string { return slotTable[s].name }

// OpName returns the operator token used in error messages, e.g. "+".
func (s Slot) OpName() string { return slotTable[s].opName }

// Signature returns the handle shape of the slot.
func (s Slot) Signature() SlotSignature { return slotTable[s].sig }

// Reflected returns the slot consulted on the right-hand operand when s is
// a forward binary operation.
func (s Slot) Reflected() (Slot, bool) {
	return slotTable[s].alt, slotTable[s].hasAlt
}

func (s Slot) String() string { return slotTable[s].name }

// empty returns the empty sentinel of the slot's family.
func (s Slot) empty() any {
	switch s.Signature() {
	case SigUnary:
		return emptyUnary
	case SigBinary:
		return emptyBinary
	case SigPredicate:
		return emptyPredicate
	case SigLen:
		return emptyLen
	case SigHash:
		return emptyHash
	case SigContains:
		return emptyContains
	case SigGetAttr:
		return emptyGetAttr
	case SigSetAttr:
		return emptySetAttr
	case SigDelAttr:
		return emptyDelAttr
	case SigSetItem:
		return emptySetItem
	case SigDelItem:
		return emptyDelItem
	case SigCall:
		return emptyCall
	case SigInit:
		return emptyInit
	case SigDescrGet:
		return emptyDescrGet
	case SigDescrSet:
		return emptyDescrSet
	default:
		return emptyDescrDelete
	}
}

// coerce converts h to the slot's handle type. Both the named handle
// types and plain func literals of the same shape are accepted.
func (s Slot) coerce(h any) (any, bool) {
	switch s.Signature() {
	case SigUnary:
		switch f := h.(type) {
		case UnaryFunc:
			return f, true
		case func(Value) (Value, error):
			return UnaryFunc(f), true
		}
	case SigBinary:
		switch f := h.(type) {
		case BinaryFunc:
			return f, true
		case func(Value, Value) (Value, error):
			return BinaryFunc(f), true
		}
	case SigPredicate:
		switch f := h.(type) {
		case PredicateFunc:
			return f, true
		case func(Value) (bool, error):
			return PredicateFunc(f), true
		}
	case SigLen:
		switch f := h.(type) {
		case LenFunc:
			return f, true
		case func(Value) (int, error):
			return LenFunc(f), true
		}
	case SigHash:
		switch f := h.(type) {
		case HashFunc:
			return f, true
		case func(Value) (int, error):
			return HashFunc(f), true
		}
	case SigContains:
		switch f := h.(type) {
		case ContainsFunc:
			return f, true
		case func(Value, Value) (bool, error):
			return ContainsFunc(f), true
		}
	case SigGetAttr:
		switch f := h.(type) {
		case GetAttrFunc:
			return f, true
		case func(Value, string) (Value, error):
			return GetAttrFunc(f), true
		}
	case SigSetAttr:
		switch f := h.(type) {
		case SetAttrFunc:
			return f, true
		case func(Value, string, Value) error:
			return SetAttrFunc(f), true
		}
	case SigDelAttr:
		switch f := h.(type) {
		case DelAttrFunc:
			return f, true
		case func(Value, string) error:
			return DelAttrFunc(f), true
		}
	case SigSetItem:
		switch f := h.(type) {
		case SetItemFunc:
			return f, true
		case func(Value, Value, Value) error:
			return SetItemFunc(f), true
		}
	case SigDelItem:
		switch f := h.(type) {
		case DelItemFunc:
			return f, true
		case func(Value, Value) error:
			return DelItemFunc(f), true
		}
	case SigCall:
		switch f := h.(type) {
		case CallFunc:
			return f, true
		case func(Value, []Value, []string) (Value, error):
			return CallFunc(f), true
		}
	case SigInit:
		switch f := h.(type) {
		case InitFunc:
			return f, true
		case func(Value, []Value, []string) error:
			return InitFunc(f), true
		}
	case SigDescrGet:
		switch f := h.(type) {
		case DescrGetFunc:
			return f, true
		case func(Value, Value, *Type) (Value, error):
			return DescrGetFunc(f), true
		}
	case SigDescrSet:
		switch f := h.(type) {
		case DescrSetFunc:
			return f, true
		case func(Value, Value, Value) error:
			return DescrSetFunc(f), true
		}
	case SigDescrDelete:
		switch f := h.(type) {
		case DescrDeleteFunc:
			return f, true
		case func(Value, Value) error:
			return DescrDeleteFunc(f), true
		}
	}
	return nil, false
}
