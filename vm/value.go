package vm

import (
	"hash/maphash"
	"reflect"
)

// Value is any object the engine manipulates. The host representation
// class of a value is its dynamic Go type; the logical type is found
// through the operations registry (see OpsOf and TypeOf).
//
// Every Value must be of a comparable Go type: identity is Go equality.
type Value = any

// NoneType is the representation of None.
type NoneType struct{}

// NotImplementedType is the representation of NotImplemented, the value a
// binary special method returns to decline an operation.
type NotImplementedType struct{}

// Bool is the canonical representation of bool. Go's built-in bool is an
// adopted second representation of the same logical type.
type Bool bool

var (
	None           Value = NoneType{}
	NotImplemented Value = NotImplementedType{}
)

const (
	True  Bool = true
	False Bool = false
)

// Is reports whether a and b are the same object.
func Is(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// IsNone reports whether v is None. A nil interface counts as None.
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(NoneType)
	return ok
}

func isNotImplemented(v Value) bool {
	_, ok := v.(NotImplementedType)
	return ok
}

// orNone maps the Go "no value" onto None.
func orNone(v Value) Value {
	if v == nil {
		return None
	}
	return v
}

var idSeed = maphash.MakeSeed()

// ID returns an identity number for v, stable for the lifetime of v.
// Reference values use their address; immediate values hash their content
// so that equal immediates share an identity.
func ID(v Value) int {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return int(rv.Pointer())
	}
	if v == nil {
		v = None
	}
	if !rv.IsValid() || rv.Type().Comparable() {
		return int(maphash.Comparable(idSeed, v) >> 1)
	}
	return 0
}
