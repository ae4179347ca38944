package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Attribute access
// ---------------------------------------------------------------------------

// GetAttr returns obj.name. When __getattribute__ fails with
// AttributeError and the type defines __getattr__, that is consulted.
func GetAttr(obj Value, name string) (Value, error) {
	ops := OpsOf(obj)
	if !ops.Has(OpGetAttribute) {
		return nil, noAttributeError(obj, name)
	}
	v, err := ops.GetAttr(OpGetAttribute)(obj, name)
	if err != nil && ops.Has(OpGetAttr) && errors.Is(err, AttributeError) {
		return ops.GetAttr(OpGetAttr)(obj, name)
	}
	return v, err
}

// LookupAttr is GetAttr, except that an absent attribute is reported by
// found=false rather than an error.
func LookupAttr(obj Value, name string) (v Value, found bool, err error) {
	v, err = GetAttr(obj, name)
	if err != nil {
		if errors.Is(err, AttributeError) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// HasAttr reports whether obj.name can be retrieved.
func HasAttr(obj Value, name string) (bool, error) {
	_, found, err := LookupAttr(obj, name)
	return found, err
}

// SetAttr performs obj.name = v.
func SetAttr(obj Value, name string, v Value) error {
	ops := OpsOf(obj)
	if !ops.Has(OpSetAttr) {
		return attributeAccessError(obj, name)
	}
	return ops.SetAttr()(obj, name, v)
}

// DelAttr performs del obj.name.
func DelAttr(obj Value, name string) error {
	ops := OpsOf(obj)
	if !ops.Has(OpDelAttr) {
		return attributeAccessError(obj, name)
	}
	return ops.DelAttr()(obj, name)
}

func attributeAccessError(obj Value, name string) error {
	t := TypeOf(obj)
	if t.Ops().Has(OpGetAttribute) {
		return typeErrorf("'%.100s' object has only read-only attributes (assign to .%.100s)", t.name, name)
	}
	return typeErrorf("'%.100s' object has no attributes (assign to .%.100s)", t.name, name)
}

// ---------------------------------------------------------------------------
// Object protocol
// ---------------------------------------------------------------------------

// Repr returns repr(v).
func Repr(v Value) (string, error) {
	ops := OpsOf(v)
	if !ops.Has(OpRepr) {
		return fmt.Sprintf("<%s object at %#x>", ops.typ.name, ID(v)), nil
	}
	r, err := ops.Unary(OpRepr)(v)
	if err != nil {
		return "", err
	}
	s, ok := baseOf(r).(string)
	if !ok {
		return "", returnTypeError("__repr__", "string", r)
	}
	return s, nil
}

// Str returns str(v).
func Str(v Value) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	ops := OpsOf(v)
	if !ops.Has(OpStr) {
		return Repr(v)
	}
	r, err := ops.Unary(OpStr)(v)
	if err != nil {
		return "", err
	}
	s, ok := baseOf(r).(string)
	if !ok {
		return "", returnTypeError("__str__", "string", r)
	}
	return s, nil
}

// safeRepr is Repr for diagnostics: it never fails.
func safeRepr(v Value) string {
	s, err := Repr(v)
	if err != nil {
		return fmt.Sprintf("<%s object>", TypeOf(v).name)
	}
	return s
}

// Hash returns hash(v).
func Hash(v Value) (int, error) {
	switch x := v.(type) {
	case string:
		return strHash(x), nil
	case int:
		return intHash(x), nil
	}
	ops := OpsOf(v)
	if !ops.Has(OpHash) {
		return 0, typeErrorf("unhashable type: '%.200s'", ops.typ.name)
	}
	return ops.Hash()(v)
}

// IsTrue returns the truth value of v: __bool__, else __len__, else true.
func IsTrue(v Value) (bool, error) {
	switch x := v.(type) {
	case Bool:
		return bool(x), nil
	case bool:
		return x, nil
	case NoneType, nil:
		return false, nil
	case int:
		return x != 0, nil
	case string:
		return x != "", nil
	}
	ops := OpsOf(v)
	if ops.Has(OpBool) {
		return ops.Bool()(v)
	}
	if ops.Has(OpLen) {
		n, err := ops.Len()(v)
		return n != 0, err
	}
	return true, nil
}

// Not returns the logical negation of v as a Bool.
func Not(v Value) (Value, error) {
	b, err := IsTrue(v)
	if err != nil {
		return nil, err
	}
	return Bool(!b), nil
}

// Len returns len(v).
func Len(v Value) (int, error) {
	ops := OpsOf(v)
	if !ops.Has(OpLen) {
		return 0, typeErrorf("object of type '%.200s' has no len()", ops.typ.name)
	}
	return ops.Len()(v)
}

// GetItem returns o[key].
func GetItem(o, key Value) (Value, error) {
	ops := OpsOf(o)
	if !ops.Has(OpGetItem) {
		return nil, typeErrorf("'%.200s' object is not subscriptable", ops.typ.name)
	}
	return ops.Binary(OpGetItem)(o, key)
}

// SetItem performs o[key] = v.
func SetItem(o, key, v Value) error {
	ops := OpsOf(o)
	if !ops.Has(OpSetItem) {
		return typeErrorf("'%.200s' object does not support item assignment", ops.typ.name)
	}
	return ops.SetItem()(o, key, v)
}

// DelItem performs del o[key].
func DelItem(o, key Value) error {
	ops := OpsOf(o)
	if !ops.Has(OpDelItem) {
		return typeErrorf("'%.200s' object doesn't support item deletion", ops.typ.name)
	}
	return ops.DelItem()(o, key)
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// GetIter returns iter(v). Objects without __iter__ but with
// __getitem__ are iterated by index.
func GetIter(v Value) (Value, error) {
	ops := OpsOf(v)
	if ops.Has(OpIter) {
		it, err := ops.Unary(OpIter)(v)
		if err != nil {
			return nil, err
		}
		if !OpsOf(it).Has(OpNext) {
			return nil, typeErrorf("iter() returned non-iterator of type '%.100s'", TypeOf(it).name)
		}
		return it, nil
	}
	if ops.Has(OpGetItem) {
		return &SeqIterator{seq: v}, nil
	}
	return nil, typeErrorf("'%.200s' object is not iterable", ops.typ.name)
}

// Next advances an iterator. ok is false when it is exhausted.
func Next(it Value) (v Value, ok bool, err error) {
	ops := OpsOf(it)
	if !ops.Has(OpNext) {
		return nil, false, typeErrorf("'%.200s' object is not an iterator", ops.typ.name)
	}
	v, err = ops.Unary(OpNext)(it)
	if err != nil {
		if errors.Is(err, StopIteration) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Iterate calls fn with each item of v.
func Iterate(v Value, fn func(item Value) error) error {
	if items, ok := sequenceItems(v); ok {
		for _, x := range items {
			if err := fn(x); err != nil {
				return err
			}
		}
		return nil
	}
	it, err := GetIter(v)
	if err != nil {
		return err
	}
	for {
		x, ok, err := Next(it)
		if err != nil || !ok {
			return err
		}
		if err := fn(x); err != nil {
			return err
		}
	}
}

// Collect returns the items of an iterable as a new slice.
func Collect(v Value) ([]Value, error) {
	if items, ok := sequenceItems(v); ok {
		return append([]Value(nil), items...), nil
	}
	var out []Value
	err := Iterate(v, func(x Value) error {
		out = append(out, x)
		return nil
	})
	return out, err
}

// sequenceItems exposes the backing array of an exact tuple or list.
// Instances of subclasses are excluded since they may override __iter__.
func sequenceItems(v Value) ([]Value, bool) {
	switch x := v.(type) {
	case *Tuple:
		return x.items, true
	case *List:
		return x.items, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Type tests
// ---------------------------------------------------------------------------

// IsInstance reports whether obj is an instance of cls, a type or a tuple
// of types.
func IsInstance(obj, cls Value) (bool, error) {
	return classCheck(TypeOf(obj), cls, "isinstance")
}

// IsSubclass reports whether derived is a subclass of cls, a type or a
// tuple of types.
func IsSubclass(derived, cls Value) (bool, error) {
	t, ok := derived.(*Type)
	if !ok {
		return false, typeErrorf("issubclass() arg 1 must be a class")
	}
	return classCheck(t, cls, "issubclass")
}

func classCheck(t *Type, cls Value, fn string) (bool, error) {
	switch c := cls.(type) {
	case *Type:
		return t.IsSubtypeOf(c), nil
	case *Tuple:
		for _, x := range c.items {
			ok, err := classCheck(t, x, fn)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	return false, typeErrorf("%s() arg 2 must be a type or tuple of types", fn)
}
