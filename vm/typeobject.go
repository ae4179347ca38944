package vm

import "fmt"

// typeCall implements calling a type: type(x) reports the type of x,
// type(name, bases, dict) creates a class, and any other type creates an
// instance and initializes it.
func typeCall(self Value, args []Value, kwnames []string) (Value, error) {
	t := self.(*Type)
	if t == TypeType {
		switch len(args) - len(kwnames) {
		case 1:
			if len(kwnames) == 0 {
				return TypeOf(args[0]), nil
			}
		case 3:
			return typeNew(args[0], args[1], args[2])
		}
		return nil, typeErrorf("type() takes 1 or 3 arguments")
	}

	obj, err := t.construct(args, kwnames)
	if err != nil {
		return nil, err
	}
	if !TypeOf(obj).IsSubtypeOf(t) {
		return obj, nil
	}
	if _, owner := t.lookupWhere("__init__"); owner == ObjectType || owner == nil {
		if len(args) > 0 && (t == ObjectType || t.derived && t.solid == ObjectType) {
			return nil, typeErrorf("%.200s() takes no arguments", t.name)
		}
		return obj, nil
	}
	ops := OpsOf(obj)
	if ops.Has(OpInit) {
		if err := ops.Init()(obj, args, kwnames); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// typeNew creates a class from a name, a tuple of bases and a namespace.
func typeNew(name, bases, ns Value) (Value, error) {
	n, ok := baseOf(name).(string)
	if !ok {
		return nil, typeErrorf("type.__new__() argument 1 must be str, not %.200s", TypeOf(name).name)
	}
	bt, ok := baseOf(bases).(*Tuple)
	if !ok {
		return nil, typeErrorf("type.__new__() argument 2 must be tuple, not %.200s", TypeOf(bases).name)
	}
	d, ok := baseOf(ns).(*Dict)
	if !ok {
		return nil, typeErrorf("type.__new__() argument 3 must be dict, not %.200s", TypeOf(ns).name)
	}
	tb := make([]*Type, len(bt.items))
	for i, b := range bt.items {
		if tb[i], ok = b.(*Type); !ok {
			return nil, typeErrorf("bases must be types")
		}
	}
	return NewClass(n, tb, d)
}

// NewClass creates a derived type from a class body namespace, as a class
// statement does.
func NewClass(name string, bases []*Type, ns *Dict) (*Type, error) {
	spec := NewSpec(name).Base(bases...).Namespace(ns)
	if q, ok := ns.GetStr("__qualname__"); ok {
		if qs, ok := q.(string); ok {
			spec.QualName(qs)
		}
	}
	if doc, ok := ns.GetStr("__doc__"); ok {
		if ds, ok := doc.(string); ok {
			spec.Doc(ds)
		}
	}
	return NewType(spec)
}

// typeGetAttr looks name up on the metatype for data descriptors, then
// along the type's own MRO, then on the metatype again.
func typeGetAttr(self Value, name string) (Value, error) {
	t := self.(*Type)
	meta := t.meta
	metaAttr, found := meta.Lookup(name)
	var metaGet DescrGetFunc
	if found {
		ops := OpsOf(metaAttr)
		if ops.IsDescr() {
			metaGet = ops.DescrGet()
			if ops.IsDataDescr() {
				return metaGet(metaAttr, t, meta)
			}
		}
	}

	if attr, ok := t.Lookup(name); ok {
		ops := OpsOf(attr)
		if ops.IsDescr() {
			return ops.DescrGet()(attr, nil, t)
		}
		return attr, nil
	}

	if metaGet != nil {
		return metaGet(metaAttr, t, meta)
	}
	if found {
		return metaAttr, nil
	}
	return nil, attributeErrorf("type object '%.50s' has no attribute '%.400s'", t.name, name)
}

func typeSetAttr(self Value, name string, v Value) error {
	t := self.(*Type)
	if attr, found := t.meta.Lookup(name); found {
		ops := OpsOf(attr)
		if ops.Has(OpSet) {
			return ops.DescrSet()(attr, t, v)
		}
	}
	return t.SetTypeAttr(name, v)
}

func typeDelAttr(self Value, name string) error {
	t := self.(*Type)
	if attr, found := t.meta.Lookup(name); found {
		ops := OpsOf(attr)
		if ops.Has(OpDelete) {
			return ops.DescrDelete()(attr, t)
		}
	}
	return t.DelTypeAttr(name)
}

func typeRepr(self Value) (Value, error) {
	t := self.(*Type)
	if t.derived {
		if mod, ok := t.dict.Load().get("__module__"); ok {
			if m, ok := mod.(string); ok && m != "builtins" {
				return fmt.Sprintf("<class '%s.%s'>", m, t.qualname), nil
			}
		}
	}
	return fmt.Sprintf("<class '%s'>", t.qualname), nil
}

func typeTuple(ts []*Type) *Tuple {
	items := make([]Value, len(ts))
	for i, t := range ts {
		items[i] = t
	}
	return NewTuple(items...)
}

// typeDict snapshots the namespace. Writes to the snapshot do not reach
// the type.
func typeDict(self Value) (Value, error) {
	t := self.(*Type)
	d := NewDict()
	t.dict.Load().each(func(name string, v Value) { d.SetStr(name, v) })
	return d, nil
}

func typeSpec() *TypeSpec {
	return NewSpec("type").
		Doc("type(object) -> the object's type\ntype(name, bases, dict) -> a new type").
		Adopt((*Type)(nil)).
		Flag(Immutable).
		Slot(OpCall, typeCall).
		Slot(OpRepr, typeRepr).
		Slot(OpGetAttribute, typeGetAttr).
		Slot(OpSetAttr, typeSetAttr).
		Slot(OpDelAttr, typeDelAttr).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*Type).name, nil }, nil, nil).
		GetSet("__qualname__", func(v Value) (Value, error) { return v.(*Type).qualname, nil }, nil, nil).
		GetSet("__mro__", func(v Value) (Value, error) { return typeTuple(v.(*Type).mro), nil }, nil, nil).
		GetSet("__bases__", func(v Value) (Value, error) { return typeTuple(v.(*Type).bases), nil }, nil, nil).
		GetSet("__base__", func(v Value) (Value, error) {
			t := v.(*Type)
			if len(t.bases) == 0 {
				return None, nil
			}
			return t.bases[0], nil
		}, nil, nil).
		GetSet("__dict__", typeDict, nil, nil).
		Method(Method0(NewSignature("mro"), func(t *Type) (*List, error) {
			return NewList(typeTuple(t.mro).items...), nil
		})).
		Method(Method0(NewSignature("__subclasses__"), func(t *Type) (*List, error) {
			return NewList(typeTuple(t.Subclasses()).items...), nil
		}))
}
