package vm

import (
	"fmt"
	"reflect"
)

// checkDescrSelf validates the receiving value of a descriptor hook.
// Attribute lookup only ever presents a descriptor with instances of its
// defining type, so a mismatch is an engine fault.
func checkDescrSelf(objclass *Type, name string, obj Value) error {
	if !TypeOf(obj).IsSubtypeOf(objclass) {
		return internalErrorf("descriptor '%s' for '%s' objects applied to a '%s' object",
			name, objclass.name, TypeOf(obj).name)
	}
	return nil
}

// checkCallSelf validates the first argument of an unbound descriptor
// call, which is user-supplied.
func checkCallSelf(objclass *Type, name string, self Value) error {
	if !TypeOf(self).IsSubtypeOf(objclass) {
		return typeErrorf("descriptor '%s' for '%.100s' objects doesn't apply to a '%.100s' object",
			name, objclass.name, TypeOf(self).name)
	}
	return nil
}

// hostSelf returns the value a Go implementation of objclass operates on.
func hostSelf(objclass *Type, obj Value) Value {
	if objclass.derived || objclass == ObjectType {
		return obj
	}
	return baseOf(obj)
}

// ---------------------------------------------------------------------------
// MethodDescr: a Go method of a type
// ---------------------------------------------------------------------------

// MethodDescr describes a method implemented in Go. Looked up through an
// instance it yields a BuiltinFunction bound to that instance.
type MethodDescr struct {
	objclass *Type
	adapter  *Adapter
}

// Name returns the method name.
func (d *MethodDescr) Name() string { return d.adapter.Name() }

// callSelf invokes the method with self as receiver.
func (d *MethodDescr) callSelf(self Value, args []Value, kwnames []string) (Value, error) {
	if err := checkCallSelf(d.objclass, d.Name(), self); err != nil {
		return nil, err
	}
	return d.adapter.Call(self, args, kwnames)
}

func methodDescrGet(self, obj Value, _ *Type) (Value, error) {
	d := self.(*MethodDescr)
	if obj == nil {
		return d, nil
	}
	if err := checkDescrSelf(d.objclass, d.Name(), obj); err != nil {
		return nil, err
	}
	return &BuiltinFunction{adapter: d.adapter, self: obj, bound: true}, nil
}

func methodDescrCall(self Value, args []Value, kwnames []string) (Value, error) {
	d := self.(*MethodDescr)
	if len(args)-len(kwnames) < 1 {
		return nil, typeErrorf("descriptor '%s' of '%.100s' object needs an argument", d.Name(), d.objclass.name)
	}
	return d.callSelf(args[0], args[1:], kwnames)
}

func methodDescrRepr(self Value) (Value, error) {
	d := self.(*MethodDescr)
	return fmt.Sprintf("<method '%s' of '%s' objects>", d.Name(), d.objclass.name), nil
}

// ---------------------------------------------------------------------------
// WrapperDescr: a special method implemented in Go
// ---------------------------------------------------------------------------

// WrapperDescr exposes a slot implementation of a builtin type as an
// attribute, e.g. int.__add__. It holds one handle per representation
// class of its type, or a single handle serving all of them.
type WrapperDescr struct {
	objclass *Type
	slot     Slot
	handles  []repHandle
	wild     any
}

type repHandle struct {
	rep reflect.Type
	fn  any
}

func newWrapperDescr(t *Type, s Slot, impls []any) *WrapperDescr {
	d := &WrapperDescr{objclass: t, slot: s}
	if len(impls) == 1 {
		d.wild = impls[0]
		return d
	}
	for i, h := range impls {
		d.handles = append(d.handles, repHandle{rep: t.reps[i], fn: h})
	}
	return d
}

// Name returns the special-method name.
func (d *WrapperDescr) Name() string { return d.slot.MethodName() }

// Slot returns the slot wrapped.
func (d *WrapperDescr) Slot() Slot { return d.slot }

// handleFor returns the handle for a representation class of the
// defining type, or nil.
func (d *WrapperDescr) handleFor(rep reflect.Type) any {
	for _, h := range d.handles {
		if h.rep == rep {
			return h.fn
		}
	}
	if d.wild != nil && (d.objclass == ObjectType || d.objclass.hasRep(rep)) {
		return d.wild
	}
	return nil
}

// handleForValue finds the handle for self, looking through a derived
// instance to its builtin base when necessary.
func (d *WrapperDescr) handleForValue(self Value) (Value, any, error) {
	if h := d.handleFor(reflect.TypeOf(self)); h != nil {
		return self, h, nil
	}
	if inst, ok := self.(*Instance); ok && inst.Base != nil {
		if h := d.handleFor(reflect.TypeOf(inst.Base)); h != nil {
			return inst.Base, h, nil
		}
	}
	return nil, nil, typeErrorf("descriptor '%s' requires a '%.100s' object but received a '%.100s'",
		d.Name(), d.objclass.name, TypeOf(self).name)
}

// unwrapping returns a handle for derived instances whose builtin base is
// of a representation this wrapper serves.
func (d *WrapperDescr) unwrapping() any {
	switch d.slot.Signature() {
	case SigUnary:
		return UnaryFunc(func(self Value) (Value, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return nil, err
			}
			return h.(UnaryFunc)(b)
		})
	case SigBinary:
		return BinaryFunc(func(self, other Value) (Value, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return nil, err
			}
			return h.(BinaryFunc)(b, other)
		})
	case SigPredicate:
		return PredicateFunc(func(self Value) (bool, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return false, err
			}
			return h.(PredicateFunc)(b)
		})
	case SigLen:
		return LenFunc(func(self Value) (int, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return 0, err
			}
			return h.(LenFunc)(b)
		})
	case SigHash:
		return HashFunc(func(self Value) (int, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return 0, err
			}
			return h.(HashFunc)(b)
		})
	case SigContains:
		return ContainsFunc(func(self, item Value) (bool, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return false, err
			}
			return h.(ContainsFunc)(b, item)
		})
	case SigSetItem:
		return SetItemFunc(func(self, key, v Value) error {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return err
			}
			return h.(SetItemFunc)(b, key, v)
		})
	case SigDelItem:
		return DelItemFunc(func(self, key Value) error {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return err
			}
			return h.(DelItemFunc)(b, key)
		})
	case SigCall:
		return CallFunc(func(self Value, args []Value, kwnames []string) (Value, error) {
			b, h, err := d.handleForValue(self)
			if err != nil {
				return nil, err
			}
			return h.(CallFunc)(b, args, kwnames)
		})
	}
	// Attribute, initialization and descriptor hooks receive the instance
	// itself, never its base.
	return nil
}

// callWrapped invokes the wrapped slot with generic arguments.
func (d *WrapperDescr) callWrapped(self Value, args []Value, kwnames []string) (Value, error) {
	if err := checkCallSelf(d.objclass, d.Name(), self); err != nil {
		return nil, err
	}
	sig := d.slot.Signature()
	if len(kwnames) > 0 && sig != SigCall && sig != SigInit {
		return nil, typeErrorf("wrapper %s() takes no keyword arguments", d.Name())
	}
	b, h, err := d.handleForValue(self)
	if err != nil {
		if inst, ok := self.(*Instance); ok && d.objclass.hasRep(instanceRep) {
			b, h, err = inst, d.handleFor(instanceRep), nil
		} else {
			return nil, err
		}
	}
	switch sig {
	case SigCall:
		return h.(CallFunc)(b, args, kwnames)
	case SigInit:
		return None, h.(InitFunc)(b, args, kwnames)
	}

	n := len(args)
	want := wrapperArity(sig)
	if sig == SigDescrGet {
		if n < 1 || n > 2 {
			return nil, typeErrorf("expected 1 or 2 arguments, got %d", n)
		}
	} else if n != want {
		return nil, typeErrorf("expected %d argument%s, got %d", want, plural(want), n)
	}

	switch sig {
	case SigUnary:
		return h.(UnaryFunc)(b)
	case SigBinary:
		return h.(BinaryFunc)(b, args[0])
	case SigPredicate:
		r, err := h.(PredicateFunc)(b)
		return Bool(r), err
	case SigLen:
		r, err := h.(LenFunc)(b)
		return r, err
	case SigHash:
		r, err := h.(HashFunc)(b)
		return r, err
	case SigContains:
		r, err := h.(ContainsFunc)(b, args[0])
		return Bool(r), err
	case SigGetAttr:
		name, err := attrName(args[0])
		if err != nil {
			return nil, err
		}
		return h.(GetAttrFunc)(b, name)
	case SigSetAttr:
		name, err := attrName(args[0])
		if err != nil {
			return nil, err
		}
		return None, h.(SetAttrFunc)(b, name, args[1])
	case SigDelAttr:
		name, err := attrName(args[0])
		if err != nil {
			return nil, err
		}
		return None, h.(DelAttrFunc)(b, name)
	case SigSetItem:
		return None, h.(SetItemFunc)(b, args[0], args[1])
	case SigDelItem:
		return None, h.(DelItemFunc)(b, args[0])
	case SigDescrGet:
		obj := args[0]
		var typ *Type
		if n == 2 {
			typ, _ = args[1].(*Type)
		}
		if IsNone(obj) {
			obj = nil
			if typ == nil {
				return nil, typeErrorf("__get__(None, None) is invalid")
			}
		}
		return h.(DescrGetFunc)(b, obj, typ)
	case SigDescrSet:
		return None, h.(DescrSetFunc)(b, args[0], args[1])
	case SigDescrDelete:
		return None, h.(DescrDeleteFunc)(b, args[0])
	}
	return nil, internalErrorf("wrapper for %s has no call path", d.Name())
}

func wrapperArity(sig SlotSignature) int {
	switch sig {
	case SigBinary, SigContains, SigGetAttr, SigDelAttr, SigDelItem, SigDescrDelete:
		return 1
	case SigSetAttr, SigSetItem, SigDescrSet:
		return 2
	}
	return 0
}

func attrName(v Value) (string, error) {
	if s, ok := baseOf(v).(string); ok {
		return s, nil
	}
	return "", typeErrorf("attribute name must be string, not '%.200s'", TypeOf(v).name)
}

func wrapperDescrGet(self, obj Value, _ *Type) (Value, error) {
	d := self.(*WrapperDescr)
	if obj == nil {
		return d, nil
	}
	if err := checkDescrSelf(d.objclass, d.Name(), obj); err != nil {
		return nil, err
	}
	return &MethodWrapper{descr: d, self: obj}, nil
}

func wrapperDescrCall(self Value, args []Value, kwnames []string) (Value, error) {
	d := self.(*WrapperDescr)
	if len(args)-len(kwnames) < 1 {
		return nil, typeErrorf("descriptor '%s' of '%.100s' object needs an argument", d.Name(), d.objclass.name)
	}
	return d.callWrapped(args[0], args[1:], kwnames)
}

func wrapperDescrRepr(self Value) (Value, error) {
	d := self.(*WrapperDescr)
	return fmt.Sprintf("<slot wrapper '%s' of '%s' objects>", d.Name(), d.objclass.name), nil
}

// MethodWrapper is a WrapperDescr bound to an instance, e.g. (1).__add__.
type MethodWrapper struct {
	descr *WrapperDescr
	self  Value
}

func methodWrapperCall(self Value, args []Value, kwnames []string) (Value, error) {
	w := self.(*MethodWrapper)
	return w.descr.callWrapped(w.self, args, kwnames)
}

func methodWrapperRepr(self Value) (Value, error) {
	w := self.(*MethodWrapper)
	return fmt.Sprintf("<method-wrapper '%s' of %s object at %#x>",
		w.descr.Name(), TypeOf(w.self).name, ID(w.self)), nil
}

func methodWrapperEq(self, other Value) (Value, error) {
	w := self.(*MethodWrapper)
	o, ok := other.(*MethodWrapper)
	if !ok {
		return NotImplemented, nil
	}
	return Bool(w.descr == o.descr && Is(w.self, o.self)), nil
}

// ---------------------------------------------------------------------------
// GetSetDescr: a computed attribute implemented in Go
// ---------------------------------------------------------------------------

// GetSetDescr is a data descriptor whose get, set and delete are Go
// functions of the instance.
type GetSetDescr struct {
	objclass *Type
	name     string
	get      func(self Value) (Value, error)
	set      func(self, v Value) error
	del      func(self Value) error
}

func getSetGet(self, obj Value, _ *Type) (Value, error) {
	d := self.(*GetSetDescr)
	if obj == nil {
		return d, nil
	}
	if err := checkDescrSelf(d.objclass, d.name, obj); err != nil {
		return nil, err
	}
	if d.get == nil {
		return nil, attributeErrorf("attribute '%s' of '%.100s' objects is not readable", d.name, d.objclass.name)
	}
	return d.get(hostSelf(d.objclass, obj))
}

func getSetSet(self, obj, v Value) error {
	d := self.(*GetSetDescr)
	if err := checkDescrSelf(d.objclass, d.name, obj); err != nil {
		return err
	}
	if d.set == nil {
		return attributeErrorf("attribute '%s' of '%.100s' objects is not writable", d.name, d.objclass.name)
	}
	return d.set(hostSelf(d.objclass, obj), v)
}

func getSetDelete(self, obj Value) error {
	d := self.(*GetSetDescr)
	if err := checkDescrSelf(d.objclass, d.name, obj); err != nil {
		return err
	}
	if d.del == nil {
		if d.set == nil {
			return attributeErrorf("attribute '%s' of '%.100s' objects is not writable", d.name, d.objclass.name)
		}
		return mandatoryAttributeError(obj, d.name)
	}
	return d.del(hostSelf(d.objclass, obj))
}

func getSetRepr(self Value) (Value, error) {
	d := self.(*GetSetDescr)
	return fmt.Sprintf("<attribute '%s' of '%s' objects>", d.name, d.objclass.name), nil
}

// ---------------------------------------------------------------------------
// MemberDescr: instance slot storage
// ---------------------------------------------------------------------------

// MemberDescr gives access to one storage slot of instances declared
// with __slots__.
type MemberDescr struct {
	objclass *Type
	name     string
	index    int
	readonly bool
}

func (d *MemberDescr) storage(obj Value) ([]Value, error) {
	if err := checkDescrSelf(d.objclass, d.name, obj); err != nil {
		return nil, err
	}
	inst, ok := obj.(*Instance)
	if !ok || d.index >= len(inst.slots) {
		return nil, internalErrorf("member '%s' of '%s' has no storage in a '%s' object",
			d.name, d.objclass.name, TypeOf(obj).name)
	}
	return inst.slots, nil
}

func memberGet(self, obj Value, _ *Type) (Value, error) {
	d := self.(*MemberDescr)
	if obj == nil {
		return d, nil
	}
	slots, err := d.storage(obj)
	if err != nil {
		return nil, err
	}
	v := slots[d.index]
	if v == nil {
		return nil, noAttributeError(obj, d.name)
	}
	return v, nil
}

func memberSet(self, obj, v Value) error {
	d := self.(*MemberDescr)
	slots, err := d.storage(obj)
	if err != nil {
		return err
	}
	if d.readonly {
		return readonlyAttributeError(obj, d.name)
	}
	slots[d.index] = v
	return nil
}

func memberDelete(self, obj Value) error {
	d := self.(*MemberDescr)
	slots, err := d.storage(obj)
	if err != nil {
		return err
	}
	if d.readonly {
		return readonlyAttributeError(obj, d.name)
	}
	if slots[d.index] == nil {
		return noAttributeError(obj, d.name)
	}
	slots[d.index] = nil
	return nil
}

func memberRepr(self Value) (Value, error) {
	d := self.(*MemberDescr)
	return fmt.Sprintf("<member '%s' of '%s' objects>", d.name, d.objclass.name), nil
}

// ---------------------------------------------------------------------------
// Property
// ---------------------------------------------------------------------------

// Property is a data descriptor built from Python-level accessor functions.
type Property struct {
	Get, Set, Del Value
	Doc           Value
}

func propertyGet(self, obj Value, _ *Type) (Value, error) {
	p := self.(*Property)
	if obj == nil {
		return p, nil
	}
	if IsNone(p.Get) {
		return nil, attributeErrorf("property has no getter")
	}
	return Call(p.Get, []Value{obj}, nil)
}

func propertySet(self, obj, v Value) error {
	p := self.(*Property)
	if IsNone(p.Set) {
		return attributeErrorf("can't set attribute")
	}
	_, err := Call(p.Set, []Value{obj, v}, nil)
	return err
}

func propertyDelete(self, obj Value) error {
	p := self.(*Property)
	if IsNone(p.Del) {
		return attributeErrorf("can't delete attribute")
	}
	_, err := Call(p.Del, []Value{obj}, nil)
	return err
}

func newProperty(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := propertyParser.Parse(args, kwnames, []Value{None, None, None, None}, nil)
	if err != nil {
		return nil, err
	}
	return &Property{Get: frame[0], Set: frame[1], Del: frame[2], Doc: frame[3]}, nil
}

var propertyParser = newArgParser("property", []string{"fget", "fset", "fdel", "doc"}, 0, nil, false, false)

// propertyCopy returns the getter, setter or deleter method: a copy of
// the property with one accessor replaced.
func propertyCopy(which int) func(*Property, Value) (Value, error) {
	return func(p *Property, fn Value) (Value, error) {
		c := *p
		switch which {
		case 0:
			c.Get = fn
		case 1:
			c.Set = fn
		default:
			c.Del = fn
		}
		return &c, nil
	}
}
