package vm

import "fmt"

// Instance is the representation of every instance of a derived type
// (a class created at run time or declared without host classes).
type Instance struct {
	typ   *Type
	dict  *Dict
	slots []Value

	// Base holds the builtin value of an instance of a subclass of a
	// builtin type such as int or str.
	Base Value
}

// Dict returns the instance dictionary, or nil.
func (o *Instance) Dict() *Dict { return o.dict }

// instanceDict returns the per-instance namespace of obj, if any.
func instanceDict(obj Value) *Dict {
	switch x := obj.(type) {
	case *Instance:
		return x.dict
	case *Function:
		return x.dict()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Generic attribute protocol
// ---------------------------------------------------------------------------

// genericGetAttr implements object.__getattribute__: a data descriptor on
// the type wins over the instance dictionary, which wins over any other
// attribute found on the type.
func genericGetAttr(obj Value, name string) (Value, error) {
	t := TypeOf(obj)
	attr, found := t.Lookup(name)
	var get DescrGetFunc
	if found {
		ops := OpsOf(attr)
		if ops.IsDescr() {
			get = ops.DescrGet()
			if ops.IsDataDescr() {
				return get(attr, obj, t)
			}
		}
	}

	if d := instanceDict(obj); d != nil {
		if v, ok := d.GetStr(name); ok {
			return v, nil
		}
	}

	if get != nil {
		return get(attr, obj, t)
	}
	if found {
		return attr, nil
	}
	return nil, noAttributeError(obj, name)
}

// genericSetAttr implements object.__setattr__.
func genericSetAttr(obj Value, name string, v Value) error {
	t := TypeOf(obj)
	if attr, found := t.Lookup(name); found {
		ops := OpsOf(attr)
		if ops.Has(OpSet) {
			return ops.DescrSet()(attr, obj, v)
		}
		if ops.IsDataDescr() {
			return readonlyAttributeError(obj, name)
		}
	}
	d := instanceDict(obj)
	if d == nil {
		if _, found := t.Lookup(name); found {
			return readonlyAttributeError(obj, name)
		}
		return noAttributeError(obj, name)
	}
	d.SetStr(name, v)
	return nil
}

// genericDelAttr implements object.__delattr__.
func genericDelAttr(obj Value, name string) error {
	t := TypeOf(obj)
	if attr, found := t.Lookup(name); found {
		ops := OpsOf(attr)
		if ops.Has(OpDelete) {
			return ops.DescrDelete()(attr, obj)
		}
		if ops.IsDataDescr() {
			return mandatoryAttributeError(obj, name)
		}
	}
	d := instanceDict(obj)
	if d == nil {
		if _, found := t.Lookup(name); found {
			return readonlyAttributeError(obj, name)
		}
		return noAttributeError(obj, name)
	}
	if !d.DelStr(name) {
		return noAttributeError(obj, name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// object
// ---------------------------------------------------------------------------

func objectRepr(self Value) (Value, error) {
	t := TypeOf(self)
	if t.derived && t.qualname != t.name {
		return fmt.Sprintf("<%s object at %#x>", t.qualname, ID(self)), nil
	}
	return fmt.Sprintf("<%s object at %#x>", t.name, ID(self)), nil
}

func objectStr(self Value) (Value, error) {
	return UnaryOp(OpRepr, self)
}

func objectHash(self Value) (int, error) {
	return ID(self), nil
}

func objectEq(self, other Value) (Value, error) {
	if Is(self, other) {
		return True, nil
	}
	return NotImplemented, nil
}

// objectNe inverts __eq__ unless that declines.
func objectNe(self, other Value) (Value, error) {
	ops := OpsOf(self)
	if !ops.Has(OpEQ) {
		return NotImplemented, nil
	}
	r, err := ops.Binary(OpEQ)(self, other)
	if err != nil || isNotImplemented(r) {
		return r, err
	}
	b, err := IsTrue(r)
	if err != nil {
		return nil, err
	}
	return Bool(!b), nil
}

func objectInit(self Value, args []Value, kwnames []string) error {
	return nil
}

func objectNew(t *Type, args []Value, kwnames []string) (Value, error) {
	return &Instance{typ: t}, nil
}

func objectClass(self Value) (Value, error) {
	return TypeOf(self), nil
}

func objectDictGet(self Value) (Value, error) {
	if d := instanceDict(self); d != nil {
		return d, nil
	}
	return nil, noAttributeError(self, "__dict__")
}

func objectDictSet(self, v Value) error {
	inst, ok := self.(*Instance)
	if !ok || inst.dict == nil {
		return noAttributeError(self, "__dict__")
	}
	d, ok := v.(*Dict)
	if !ok {
		return typeErrorf("__dict__ must be set to a dictionary, not a '%.200s'", TypeOf(v).name)
	}
	inst.dict = d
	return nil
}

func objectDir(self Value) (*List, error) {
	seen := map[string]bool{}
	var names []Value
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			names = append(names, k)
		}
	}
	if d := instanceDict(self); d != nil {
		d.each(func(k, _ Value) {
			if s, ok := k.(string); ok {
				add(s)
			}
		})
	}
	for _, m := range TypeOf(self).mro {
		m.dict.Load().each(func(name string, _ Value) { add(name) })
	}
	l := NewList(names...)
	if err := l.sort(); err != nil {
		return nil, err
	}
	return l, nil
}

func objectSpec() *TypeSpec {
	return NewSpec("object").
		Doc("The base class of the class hierarchy.").
		Adopt(instanceRep).
		Flag(Immutable).
		New(objectNew).
		Slot(OpRepr, objectRepr).
		Slot(OpStr, objectStr).
		Slot(OpHash, objectHash).
		Slot(OpEQ, objectEq).
		Slot(OpNE, objectNe).
		Slot(OpGetAttribute, genericGetAttr).
		Slot(OpSetAttr, genericSetAttr).
		Slot(OpDelAttr, genericDelAttr).
		Slot(OpInit, objectInit).
		GetSet("__class__", objectClass, func(self, v Value) error {
			return typeErrorf("__class__ assignment is not supported")
		}, nil).
		Method(Method0(NewSignature("__dir__"), objectDir))
}
