package vm

import (
	"reflect"
	"sync"
)

// Operations holds the resolved slot handles of one type for one host
// representation class. An Operations is never modified after it is
// published: a namespace edit publishes a replacement.
type Operations struct {
	typ     *Type
	rep     reflect.Type
	handles [slotCount]any
}

type binding struct {
	typ   *Type
	index int
}

// registry maps a host representation class to the type adopting it.
var registry sync.Map // reflect.Type -> *binding

// OpsOf returns the Operations for the representation class of v. It
// always reflects the last completed namespace mutation.
func OpsOf(v Value) *Operations {
	switch x := v.(type) {
	case *Instance:
		return x.typ.ops[0].Load()
	case nil:
		return NoneTypeType.ops[0].Load()
	}
	rep := reflect.TypeOf(v)
	if b, ok := registry.Load(rep); ok {
		b := b.(*binding)
		return b.typ.ops[b.index].Load()
	}
	return opaqueOps(rep)
}

// TypeOf returns the type of v.
func TypeOf(v Value) *Type {
	if x, ok := v.(*Instance); ok {
		return x.typ
	}
	return OpsOf(v).typ
}

// opsKey is the identity under which inline caches remember Operations.
func opsKey(v Value) any {
	if x, ok := v.(*Instance); ok {
		return x.typ
	}
	return reflect.TypeOf(v)
}

// opaqueOps creates a type on first sight of a Go class no type adopts.
// Such values support identity, repr and hashing only.
func opaqueOps(rep reflect.Type) *Operations {
	typeLock.Lock()
	defer typeLock.Unlock()
	if b, ok := registry.Load(rep); ok {
		b := b.(*binding)
		return b.typ.ops[b.index].Load()
	}
	spec := NewSpec(rep.String()).Adopt(rep).Flag(Final | Immutable)
	t, err := newTypeLocked(spec, nil)
	if err != nil {
		panic(internalErrorf("cannot create opaque type for %s: %v", rep, err))
	}
	return t.ops[0].Load()
}

// computeOps resolves every slot of t for its i-th representation.
func (t *Type) computeOps(i int) *Operations {
	ops := &Operations{typ: t, rep: t.reps[i]}
	for s := Slot(0); s < slotCount; s++ {
		def, _ := t.Lookup(s.MethodName())
		ops.handles[s] = resolveHandle(s, ops.rep, def)
	}
	return ops
}

// resolveHandle turns the definition found for a slot into a handle bound
// to one representation class. A nil result means the slot is empty.
func resolveHandle(s Slot, rep reflect.Type, def Value) any {
	switch d := def.(type) {
	case nil, NoneType:
		return nil
	case *WrapperDescr:
		if d.slot == s {
			if h := d.handleFor(rep); h != nil {
				return h
			}
			if rep == instanceRep {
				return d.unwrapping()
			}
			return nil
		}
	}
	return slotFromDefinition(s, def)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Type returns the owning type.
func (o *Operations) Type() *Type { return o.typ }

// Rep returns the representation class these handles are bound to.
func (o *Operations) Rep() reflect.Type { return o.rep }

// Has reports whether slot s is defined (not empty).
func (o *Operations) Has(s Slot) bool { return o.handles[s] != nil }

// IsDescr reports whether values with these operations are descriptors.
func (o *Operations) IsDescr() bool { return o.handles[OpGet] != nil }

// IsDataDescr reports whether values are data descriptors.
func (o *Operations) IsDataDescr() bool {
	return o.handles[OpSet] != nil || o.handles[OpDelete] != nil
}

func (o *Operations) Unary(s Slot) UnaryFunc {
	if h, ok := o.handles[s].(UnaryFunc); ok {
		return h
	}
	return emptyUnary
}

func (o *Operations) Binary(s Slot) BinaryFunc {
	if h, ok := o.handles[s].(BinaryFunc); ok {
		return h
	}
	return emptyBinary
}

func (o *Operations) Bool() PredicateFunc {
	if h, ok := o.handles[OpBool].(PredicateFunc); ok {
		return h
	}
	return emptyPredicate
}

func (o *Operations) Len() LenFunc {
	if h, ok := o.handles[OpLen].(LenFunc); ok {
		return h
	}
	return emptyLen
}

func (o *Operations) Hash() HashFunc {
	if h, ok := o.handles[OpHash].(HashFunc); ok {
		return h
	}
	return emptyHash
}

func (o *Operations) Contains() ContainsFunc {
	if h, ok := o.handles[OpContains].(ContainsFunc); ok {
		return h
	}
	return emptyContains
}

// GetAttr returns the __getattribute__ or __getattr__ handle.
func (o *Operations) GetAttr(s Slot) GetAttrFunc {
	if h, ok := o.handles[s].(GetAttrFunc); ok {
		return h
	}
	return emptyGetAttr
}

func (o *Operations) SetAttr() SetAttrFunc {
	if h, ok := o.handles[OpSetAttr].(SetAttrFunc); ok {
		return h
	}
	return emptySetAttr
}

func (o *Operations) DelAttr() DelAttrFunc {
	if h, ok := o.handles[OpDelAttr].(DelAttrFunc); ok {
		return h
	}
	return emptyDelAttr
}

func (o *Operations) SetItem() SetItemFunc {
	if h, ok := o.handles[OpSetItem].(SetItemFunc); ok {
		return h
	}
	return emptySetItem
}

func (o *Operations) DelItem() DelItemFunc {
	if h, ok := o.handles[OpDelItem].(DelItemFunc); ok {
		return h
	}
	return emptyDelItem
}

func (o *Operations) Call() CallFunc {
	if h, ok := o.handles[OpCall].(CallFunc); ok {
		return h
	}
	return emptyCall
}

func (o *Operations) Init() InitFunc {
	if h, ok := o.handles[OpInit].(InitFunc); ok {
		return h
	}
	return emptyInit
}

func (o *Operations) DescrGet() DescrGetFunc {
	if h, ok := o.handles[OpGet].(DescrGetFunc); ok {
		return h
	}
	return emptyDescrGet
}

func (o *Operations) DescrSet() DescrSetFunc {
	if h, ok := o.handles[OpSet].(DescrSetFunc); ok {
		return h
	}
	return emptyDescrSet
}

func (o *Operations) DescrDelete() DescrDeleteFunc {
	if h, ok := o.handles[OpDelete].(DescrDeleteFunc); ok {
		return h
	}
	return emptyDescrDelete
}
