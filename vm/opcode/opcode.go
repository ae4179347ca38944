// Package opcode defines the instruction set of the slotvm evaluator.
//
// Code is wordcode: each instruction is a uint16 holding the opcode in the
// high byte and an 8-bit argument in the low byte. Arguments wider than 8
// bits are built up by EXTENDED_ARG prefixes.
package opcode

import "fmt"

// Opcode is a single instruction kind.
type Opcode byte

// Stack manipulation
const (
	PopTop   Opcode = 1   // discard TOS
	PushNull Opcode = 2   // push the null marker used by the call protocol
	Nop      Opcode = 9   // no operation
	Swap     Opcode = 99  // swap TOS with the item arg-1 below it
	Copy     Opcode = 120 // push a copy of the item arg-1 below TOS
)

// Operators
const (
	UnaryPositive Opcode = 10
	UnaryNegative Opcode = 11
	UnaryNot      Opcode = 12
	UnaryInvert   Opcode = 15
	BinarySubscr  Opcode = 25
	StoreSubscr   Opcode = 60
	DeleteSubscr  Opcode = 61
	CompareOp     Opcode = 107 // arg selects the comparison
	IsOp          Opcode = 117 // arg 1 inverts
	ContainsOp    Opcode = 118 // arg 1 inverts
	BinaryOp      Opcode = 122 // arg selects the operator
)

// Iteration and construction
const (
	GetIter        Opcode = 68
	LoadBuildClass Opcode = 71
	ReturnValue    Opcode = 83
	ForIter        Opcode = 93 // jump forward by arg when exhausted
	BuildTuple     Opcode = 102
	BuildList      Opcode = 103
	BuildMap       Opcode = 105
	MakeFunction   Opcode = 132
)

// Variables
const (
	StoreName    Opcode = 90
	DeleteName   Opcode = 91
	StoreAttr    Opcode = 95
	DeleteAttr   Opcode = 96
	StoreGlobal  Opcode = 97
	DeleteGlobal Opcode = 98
	LoadConst    Opcode = 100
	LoadName     Opcode = 101
	LoadAttr     Opcode = 106
	LoadGlobal   Opcode = 116
	LoadFast     Opcode = 124
	StoreFast    Opcode = 125
	DeleteFast   Opcode = 126
	LoadClosure  Opcode = 136
	LoadDeref    Opcode = 137
	StoreDeref   Opcode = 138
	DeleteDeref  Opcode = 139
	LoadMethod   Opcode = 160
)

// Control flow
const (
	JumpForward      Opcode = 110 // relative
	JumpIfFalseOrPop Opcode = 111 // absolute
	JumpIfTrueOrPop  Opcode = 112 // absolute
	PopJumpIfFalse   Opcode = 114 // absolute
	PopJumpIfTrue    Opcode = 115 // absolute
	JumpBackward     Opcode = 140 // relative
	Resume           Opcode = 151
)

// Calls
const (
	CallFunctionEx Opcode = 142
	ExtendedArg    Opcode = 144
	Call           Opcode = 171
	KwNames        Opcode = 172
)

// BINARY_OP arguments. The in-place forms fall back to the binary ones.
const (
	NbAdd = iota
	NbAnd
	NbFloorDivide
	NbLshift
	NbMatrixMultiply
	NbMultiply
	NbRemainder
	NbOr
	NbPower
	NbRshift
	NbSubtract
	NbTrueDivide
	NbXor
	NbInplaceAdd
	NbInplaceAnd
	NbInplaceFloorDivide
	NbInplaceLshift
	NbInplaceMatrixMultiply
	NbInplaceMultiply
	NbInplaceRemainder
	NbInplaceOr
	NbInplacePower
	NbInplaceRshift
	NbInplaceSubtract
	NbInplaceTrueDivide
	NbInplaceXor
)

// NbOperators renders BINARY_OP arguments in listings.
var NbOperators = [...]string{
	"+", "&", "//", "<<", "@", "*", "%", "|", "**", ">>", "-", "/", "^",
	"+=", "&=", "//=", "<<=", "@=", "*=", "%=", "|=", "**=", ">>=", "-=", "/=", "^=",
}

// COMPARE_OP arguments.
const (
	CmpLT = iota
	CmpLE
	CmpEQ
	CmpNE
	CmpGT
	CmpGE
)

// CmpOperators renders COMPARE_OP arguments in listings.
var CmpOperators = [...]string{"<", "<=", "==", "!=", ">", ">="}

// MAKE_FUNCTION flags.
const (
	FuncDefaults   = 0x01
	FuncKwDefaults = 0x02
	FuncClosure    = 0x08
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// Info holds metadata about an opcode.
type Info struct {
	Name        string // mnemonic
	HasArg      bool   // argument is meaningful
	StackEffect int    // net effect on stack when constant
	Variable    bool   // effect depends on the argument
	Jump        bool   // argument is a jump target
}

var table = map[Opcode]Info{
	PopTop:   {"POP_TOP", false, -1, false, false},
	PushNull: {"PUSH_NULL", false, 1, false, false},
	Nop:      {"NOP", false, 0, false, false},
	Swap:     {"SWAP", true, 0, false, false},
	Copy:     {"COPY", true, 1, false, false},

	UnaryPositive: {"UNARY_POSITIVE", false, 0, false, false},
	UnaryNegative: {"UNARY_NEGATIVE", false, 0, false, false},
	UnaryNot:      {"UNARY_NOT", false, 0, false, false},
	UnaryInvert:   {"UNARY_INVERT", false, 0, false, false},
	BinarySubscr:  {"BINARY_SUBSCR", false, -1, false, false},
	StoreSubscr:   {"STORE_SUBSCR", false, -3, false, false},
	DeleteSubscr:  {"DELETE_SUBSCR", false, -2, false, false},
	CompareOp:     {"COMPARE_OP", true, -1, false, false},
	IsOp:          {"IS_OP", true, -1, false, false},
	ContainsOp:    {"CONTAINS_OP", true, -1, false, false},
	BinaryOp:      {"BINARY_OP", true, -1, false, false},

	GetIter:        {"GET_ITER", false, 0, false, false},
	LoadBuildClass: {"LOAD_BUILD_CLASS", false, 1, false, false},
	ReturnValue:    {"RETURN_VALUE", false, -1, false, false},
	ForIter:        {"FOR_ITER", true, 1, false, true},
	BuildTuple:     {"BUILD_TUPLE", true, 0, true, false},
	BuildList:      {"BUILD_LIST", true, 0, true, false},
	BuildMap:       {"BUILD_MAP", true, 0, true, false},
	MakeFunction:   {"MAKE_FUNCTION", true, 0, true, false},

	StoreName:    {"STORE_NAME", true, -1, false, false},
	DeleteName:   {"DELETE_NAME", true, 0, false, false},
	StoreAttr:    {"STORE_ATTR", true, -2, false, false},
	DeleteAttr:   {"DELETE_ATTR", true, -1, false, false},
	StoreGlobal:  {"STORE_GLOBAL", true, -1, false, false},
	DeleteGlobal: {"DELETE_GLOBAL", true, 0, false, false},
	LoadConst:    {"LOAD_CONST", true, 1, false, false},
	LoadName:     {"LOAD_NAME", true, 1, false, false},
	LoadAttr:     {"LOAD_ATTR", true, 0, false, false},
	LoadGlobal:   {"LOAD_GLOBAL", true, 1, true, false},
	LoadFast:     {"LOAD_FAST", true, 1, false, false},
	StoreFast:    {"STORE_FAST", true, -1, false, false},
	DeleteFast:   {"DELETE_FAST", true, 0, false, false},
	LoadClosure:  {"LOAD_CLOSURE", true, 1, false, false},
	LoadDeref:    {"LOAD_DEREF", true, 1, false, false},
	StoreDeref:   {"STORE_DEREF", true, -1, false, false},
	DeleteDeref:  {"DELETE_DEREF", true, 0, false, false},
	LoadMethod:   {"LOAD_METHOD", true, 1, false, false},

	JumpForward:      {"JUMP_FORWARD", true, 0, false, true},
	JumpIfFalseOrPop: {"JUMP_IF_FALSE_OR_POP", true, -1, false, true},
	JumpIfTrueOrPop:  {"JUMP_IF_TRUE_OR_POP", true, -1, false, true},
	PopJumpIfFalse:   {"POP_JUMP_IF_FALSE", true, -1, false, true},
	PopJumpIfTrue:    {"POP_JUMP_IF_TRUE", true, -1, false, true},
	JumpBackward:     {"JUMP_BACKWARD", true, 0, false, true},
	Resume:           {"RESUME", true, 0, false, false},

	CallFunctionEx: {"CALL_FUNCTION_EX", true, 0, true, false},
	ExtendedArg:    {"EXTENDED_ARG", true, 0, false, false},
	Call:           {"CALL", true, 0, true, false},
	KwNames:        {"KW_NAMES", true, 0, false, false},
}

var byName map[string]Opcode

func init() {
	byName = make(map[string]Opcode, len(table))
	for op, info := range table {
		byName[info.Name] = op
	}
}

// Lookup returns the opcode with the given mnemonic.
func Lookup(name string) (Opcode, bool) {
	op, ok := byName[name]
	return op, ok
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := table[op]
	return ok
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() Info {
	if info, ok := table[op]; ok {
		return info
	}
	return Info{Name: fmt.Sprintf("UNKNOWN_%d", byte(op))}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// StackEffect returns the net stack effect of op with argument arg, as
// used to compute the stack bound of a code object. For jumps it is the
// effect on the fall-through path.
func StackEffect(op Opcode, arg int) int {
	info := op.Info()
	if !info.Variable {
		return info.StackEffect
	}
	switch op {
	case BuildTuple, BuildList:
		return 1 - arg
	case BuildMap:
		return 1 - 2*arg
	case LoadGlobal:
		return 1 + arg&1
	case MakeFunction:
		n := 0
		for _, f := range []int{FuncDefaults, FuncKwDefaults, FuncClosure} {
			if arg&f != 0 {
				n++
			}
		}
		return -n
	case Call:
		return -1 - arg
	case CallFunctionEx:
		return -1 - arg&1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Wordcode
// ---------------------------------------------------------------------------

// Word packs an opcode and an 8-bit argument.
func Word(op Opcode, arg byte) uint16 {
	return uint16(op)<<8 | uint16(arg)
}

// Split unpacks a code word.
func Split(w uint16) (Opcode, byte) {
	return Opcode(w >> 8), byte(w)
}

// Emit appends op with arg to code, preceded by as many EXTENDED_ARG
// prefixes as the argument needs.
func Emit(code []uint16, op Opcode, arg int) []uint16 {
	if arg < 0 {
		arg = 0
	}
	switch {
	case arg > 0xffffff:
		code = append(code, Word(ExtendedArg, byte(arg>>24)))
		fallthrough
	case arg > 0xffff:
		code = append(code, Word(ExtendedArg, byte(arg>>16)))
		fallthrough
	case arg > 0xff:
		code = append(code, Word(ExtendedArg, byte(arg>>8)))
	}
	return append(code, Word(op, byte(arg)))
}
