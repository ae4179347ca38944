package vm

import (
	"fmt"
	"reflect"
)

// NewFunc creates a new instance of t, or of the nearest builtin ancestor
// of t when t is derived, from constructor arguments.
type NewFunc func(t *Type, args []Value, kwnames []string) (Value, error)

// TypeSpec describes a type to be created by NewType. It is built with
// chained calls:
//
//	spec := NewSpec("int").
//		Adopt(0, int64(0), (*big.Int)(nil)).
//		Accept(False, false).
//		Slot(OpAdd, intAdd).
//		Method(Method0("bit_length", intBitLength))
type TypeSpec struct {
	name     string
	qualname string
	bases    []*Type
	adopted  []reflect.Type
	accepted []reflect.Type
	flags    Flags
	slots    []slotSpec
	entries  []entrySpec
	members  []memberSpec
	newFn    NewFunc
	doc      string
	dict     *namespace
	noBase   bool
	err      error
}

type slotSpec struct {
	slot  Slot
	impls []any
}

type entrySpec struct {
	name string
	make func(owner *Type) Value
}

type memberSpec struct {
	name     string
	readonly bool
}

// NewSpec starts a specification for a type named name.
func NewSpec(name string) *TypeSpec {
	return &TypeSpec{name: name, qualname: name}
}

// QualName sets the qualified name.
func (s *TypeSpec) QualName(q string) *TypeSpec {
	s.qualname = q
	return s
}

// Doc sets the value of __doc__.
func (s *TypeSpec) Doc(doc string) *TypeSpec {
	s.doc = doc
	return s
}

// Base appends bases. A spec without bases derives from object.
func (s *TypeSpec) Base(bases ...*Type) *TypeSpec {
	s.bases = append(s.bases, bases...)
	return s
}

// Adopt declares the host representation classes whose values are
// instances of this type. Each sample is a value (possibly a typed nil
// pointer) of the class, or a reflect.Type.
func (s *TypeSpec) Adopt(samples ...any) *TypeSpec {
	s.adopted = append(s.adopted, repsOf(samples)...)
	return s
}

// Accept declares representation classes adopted by a subtype that this
// type's slot implementations must also handle.
func (s *TypeSpec) Accept(samples ...any) *TypeSpec {
	s.accepted = append(s.accepted, repsOf(samples)...)
	return s
}

func repsOf(samples []any) []reflect.Type {
	reps := make([]reflect.Type, 0, len(samples))
	for _, x := range samples {
		if rt, ok := x.(reflect.Type); ok {
			reps = append(reps, rt)
		} else {
			reps = append(reps, reflect.TypeOf(x))
		}
	}
	return reps
}

// Flag adds feature flags.
func (s *TypeSpec) Flag(f Flags) *TypeSpec {
	s.flags |= f
	return s
}

// Slot defines a special method implemented in Go. Either one
// implementation serves every representation, or one implementation is
// given per representation, adopted classes first and then accepted ones.
func (s *TypeSpec) Slot(slot Slot, impls ...any) *TypeSpec {
	for i, h := range impls {
		fn, ok := slot.coerce(h)
		if !ok {
			s.fail(fmt.Errorf("%s: %T is not a valid %s handle", s.name, h, slot))
			return s
		}
		impls[i] = fn
	}
	s.slots = append(s.slots, slotSpec{slot: slot, impls: impls})
	return s
}

// Method adds a method implemented through the call adaptation layer.
func (s *TypeSpec) Method(a *Adapter) *TypeSpec {
	s.entries = append(s.entries, entrySpec{name: a.Name(), make: func(owner *Type) Value {
		return &MethodDescr{objclass: owner, adapter: a}
	}})
	return s
}

// GetSet adds a computed attribute. A nil setter makes it read-only; a nil
// deleter makes it mandatory.
func (s *TypeSpec) GetSet(name string, get func(self Value) (Value, error),
	set func(self, v Value) error, del func(self Value) error) *TypeSpec {
	s.entries = append(s.entries, entrySpec{name: name, make: func(owner *Type) Value {
		return &GetSetDescr{objclass: owner, name: name, get: get, set: set, del: del}
	}})
	return s
}

// Attr adds a plain class attribute.
func (s *TypeSpec) Attr(name string, v Value) *TypeSpec {
	s.entries = append(s.entries, entrySpec{name: name, make: func(*Type) Value { return v }})
	return s
}

// Member reserves a per-instance storage slot exposed as attribute name.
func (s *TypeSpec) Member(name string, readonly bool) *TypeSpec {
	s.members = append(s.members, memberSpec{name: name, readonly: readonly})
	return s
}

// New sets the constructor.
func (s *TypeSpec) New(fn NewFunc) *TypeSpec {
	s.newFn = fn
	return s
}

// Namespace seeds the dictionary from a class body, as for classes
// created at run time.
func (s *TypeSpec) Namespace(d *Dict) *TypeSpec {
	b := newNamespaceBuilder()
	d.each(func(k, v Value) {
		if name, ok := k.(string); ok {
			b.set(name, v)
		}
	})
	s.dict = b.build()
	return s
}

func (s *TypeSpec) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}
