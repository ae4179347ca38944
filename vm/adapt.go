package vm

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Adapter invokes a strongly typed Go function through the generic call
// convention (positional values, keyword names). The conversions for each
// parameter and for the result are chosen once, when the Adapter is built.
type Adapter struct {
	sig    *Signature
	shape  Shape
	parser *ArgParser
	arity  int // fixed Go arity 0..3, or -1 for a slice of values
	method bool

	call0 func(self Value) (Value, error)
	call1 func(self, a Value) (Value, error)
	call2 func(self, a, b Value) (Value, error)
	call3 func(self, a, b, c Value) (Value, error)
	callN func(self Value, args []Value) (Value, error)
}

func newAdapter(sig *Signature, arity int, method bool) *Adapter {
	a := &Adapter{sig: sig, shape: sig.Shape(), arity: arity, method: method}
	if arity >= 0 && sig.FrameSize() != arity {
		panic(fmt.Sprintf("%s: signature has %d parameters, implementation takes %d",
			sig.Name, sig.FrameSize(), arity))
	}
	switch {
	case arity >= 0 && a.shape == Positional:
		a.shape = General
	case arity < 0 && a.shape < Positional:
		a.shape = Positional
	}
	if a.shape == General {
		a.parser = sig.parser()
	}
	return a
}

// Name returns the callable's name.
func (a *Adapter) Name() string { return a.sig.Name }

// Signature returns the signature the adapter was built from.
func (a *Adapter) Signature() *Signature { return a.sig }

// Shape returns the calling convention chosen for the signature.
func (a *Adapter) Shape() Shape { return a.shape }

// Call performs a vector call. For methods self is the receiver; for plain
// functions it is ignored.
func (a *Adapter) Call(self Value, args []Value, kwnames []string) (Value, error) {
	if a.shape != General {
		if len(kwnames) > 0 {
			return nil, typeErrorf("%s() takes no keyword arguments", a.sig.Name)
		}
		n := len(args)
		switch a.shape {
		case NoArgs:
			if n == 0 {
				return a.call0(self)
			}
			return nil, typeErrorf("%s() takes no arguments (%d given)", a.sig.Name, n)
		case O1:
			if n == 1 {
				return a.call1(self, args[0])
			}
			return nil, typeErrorf("%s() takes exactly one argument (%d given)", a.sig.Name, n)
		case O2:
			if n == 2 {
				return a.call2(self, args[0], args[1])
			}
		case O3:
			if n == 3 {
				return a.call3(self, args[0], args[1], args[2])
			}
		case Positional:
			min := len(a.sig.Params)
			if n == min || (a.sig.VarArgs != "" && n > min) {
				return a.callN(self, args)
			}
			if a.sig.VarArgs != "" {
				return nil, typeErrorf("%s expected at least %d argument%s, got %d", a.sig.Name, min, plural(min), n)
			}
		}
		want := len(a.sig.Params)
		return nil, typeErrorf("%s expected %d argument%s, got %d", a.sig.Name, want, plural(want), n)
	}

	frame, err := a.parser.Parse(args, kwnames, a.sig.Defaults, a.sig.KwDefaults)
	if err != nil {
		return nil, err
	}
	switch a.arity {
	case 0:
		return a.call0(self)
	case 1:
		return a.call1(self, frame[0])
	case 2:
		return a.call2(self, frame[0], frame[1])
	case 3:
		return a.call3(self, frame[0], frame[1], frame[2])
	}
	return a.callN(self, frame)
}

// ---------------------------------------------------------------------------
// Typed constructors
// ---------------------------------------------------------------------------

// Func0 adapts fn() to sig.
func Func0[R any](sig *Signature, fn func() (R, error)) *Adapter {
	ret := returnerFor[R]()
	a := newAdapter(sig, 0, false)
	a.call0 = func(Value) (Value, error) {
		r, err := fn()
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// Func1 adapts fn(A) to sig.
func Func1[A, R any](sig *Signature, fn func(A) (R, error)) *Adapter {
	ca, ka := converterFor[A]()
	ret := returnerFor[R]()
	a := newAdapter(sig, 1, false)
	name := sig.Name
	a.call1 = func(_, x Value) (Value, error) {
		av, err := convertArg(ca, x, name, 1, ka)
		if err != nil {
			return nil, err
		}
		r, err := fn(av)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// Func2 adapts fn(A, B) to sig.
func Func2[A, B, R any](sig *Signature, fn func(A, B) (R, error)) *Adapter {
	ca, ka := converterFor[A]()
	cb, kb := converterFor[B]()
	ret := returnerFor[R]()
	a := newAdapter(sig, 2, false)
	name := sig.Name
	a.call2 = func(_, x, y Value) (Value, error) {
		av, err := convertArg(ca, x, name, 1, ka)
		if err != nil {
			return nil, err
		}
		bv, err := convertArg(cb, y, name, 2, kb)
		if err != nil {
			return nil, err
		}
		r, err := fn(av, bv)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// Func3 adapts fn(A, B, C) to sig.
func Func3[A, B, C, R any](sig *Signature, fn func(A, B, C) (R, error)) *Adapter {
	ca, ka := converterFor[A]()
	cb, kb := converterFor[B]()
	cc, kc := converterFor[C]()
	ret := returnerFor[R]()
	a := newAdapter(sig, 3, false)
	name := sig.Name
	a.call3 = func(_, x, y, z Value) (Value, error) {
		av, err := convertArg(ca, x, name, 1, ka)
		if err != nil {
			return nil, err
		}
		bv, err := convertArg(cb, y, name, 2, kb)
		if err != nil {
			return nil, err
		}
		cv, err := convertArg(cc, z, name, 3, kc)
		if err != nil {
			return nil, err
		}
		r, err := fn(av, bv, cv)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// FuncN adapts fn(args) to a signature of the Positional shape; fn
// receives the arguments unconverted.
func FuncN[R any](sig *Signature, fn func(args []Value) (R, error)) *Adapter {
	ret := returnerFor[R]()
	a := newAdapter(sig, -1, false)
	a.callN = func(_ Value, args []Value) (Value, error) {
		r, err := fn(args)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// FuncGeneral adapts fn(frame) to any signature. The frame holds the
// parameters, keyword-only parameters, *args tuple and **kwargs dict.
func FuncGeneral[R any](sig *Signature, fn func(frame []Value) (R, error)) *Adapter {
	ret := returnerFor[R]()
	a := newAdapter(sig, -1, false)
	a.shape = General
	a.parser = sig.parser()
	a.callN = func(_ Value, frame []Value) (Value, error) {
		r, err := fn(frame)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// Method0 adapts a method fn(self) to sig.
func Method0[S, R any](sig *Signature, fn func(S) (R, error)) *Adapter {
	cs := selfConverter[S](sig.Name)
	ret := returnerFor[R]()
	a := newAdapter(sig, 0, true)
	a.call0 = func(self Value) (Value, error) {
		s, err := cs(self)
		if err != nil {
			return nil, err
		}
		r, err := fn(s)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// Method1 adapts a method fn(self, A) to sig.
func Method1[S, A, R any](sig *Signature, fn func(S, A) (R, error)) *Adapter {
	cs := selfConverter[S](sig.Name)
	ca, ka := converterFor[A]()
	ret := returnerFor[R]()
	a := newAdapter(sig, 1, true)
	name := sig.Name
	a.call1 = func(self, x Value) (Value, error) {
		s, err := cs(self)
		if err != nil {
			return nil, err
		}
		av, err := convertArg(ca, x, name, 1, ka)
		if err != nil {
			return nil, err
		}
		r, err := fn(s, av)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// Method2 adapts a method fn(self, A, B) to sig.
func Method2[S, A, B, R any](sig *Signature, fn func(S, A, B) (R, error)) *Adapter {
	cs := selfConverter[S](sig.Name)
	ca, ka := converterFor[A]()
	cb, kb := converterFor[B]()
	ret := returnerFor[R]()
	a := newAdapter(sig, 2, true)
	name := sig.Name
	a.call2 = func(self, x, y Value) (Value, error) {
		s, err := cs(self)
		if err != nil {
			return nil, err
		}
		av, err := convertArg(ca, x, name, 1, ka)
		if err != nil {
			return nil, err
		}
		bv, err := convertArg(cb, y, name, 2, kb)
		if err != nil {
			return nil, err
		}
		r, err := fn(s, av, bv)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// MethodN adapts a method fn(self, args) to a Positional signature.
func MethodN[S, R any](sig *Signature, fn func(S, []Value) (R, error)) *Adapter {
	cs := selfConverter[S](sig.Name)
	ret := returnerFor[R]()
	a := newAdapter(sig, -1, true)
	a.callN = func(self Value, args []Value) (Value, error) {
		s, err := cs(self)
		if err != nil {
			return nil, err
		}
		r, err := fn(s, args)
		if err != nil {
			return nil, err
		}
		return ret(r), nil
	}
	return a
}

// MethodGeneral adapts a method fn(self, frame) to any signature.
func MethodGeneral[S, R any](sig *Signature, fn func(S, []Value) (R, error)) *Adapter {
	a := MethodN(sig, fn)
	a.shape = General
	a.parser = sig.parser()
	return a
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// errConvert marks a value of the wrong kind; convertArg turns it into an
// argument type error naming the function and argument position.
var errConvert = errors.New("conversion")

func convertArg[T any](conv func(Value) (T, error), v Value, fn string, n int, kind string) (T, error) {
	x, err := conv(v)
	if err == errConvert {
		return x, argumentTypeError(fn, n, kind, v)
	}
	return x, err
}

func selfConverter[S any](name string) func(Value) (S, error) {
	conv, kind := converterFor[S]()
	return func(v Value) (S, error) {
		s, err := conv(v)
		if err == errConvert {
			return s, typeErrorf("descriptor '%s' requires a '%s' object but received a '%.100s'",
				name, kind, TypeOf(v).name)
		}
		return s, err
	}
}

// converterFor selects the conversion from Value to T and the name of the
// expected kind used in error messages.
func converterFor[T any]() (func(Value) (T, error), string) {
	var zero T
	var f any
	var kind string
	switch any(zero).(type) {
	case nil:
		f, kind = func(v Value) (Value, error) { return orNone(v), nil }, "object"
	case int:
		f, kind = func(v Value) (int, error) {
			if !OpsOf(v).Has(OpIndex) {
				return 0, errConvert
			}
			return AsInt(v)
		}, "int"
	case int64:
		f, kind = func(v Value) (int64, error) {
			if !OpsOf(v).Has(OpIndex) {
				return 0, errConvert
			}
			n, err := AsInt(v)
			return int64(n), err
		}, "int"
	case int32:
		f, kind = func(v Value) (int32, error) {
			if !OpsOf(v).Has(OpIndex) {
				return 0, errConvert
			}
			n, err := AsInt(v)
			if err != nil {
				return 0, err
			}
			if n > math.MaxInt32 {
				return 0, NewException(OverflowError, "signed integer is greater than maximum")
			}
			if n < math.MinInt32 {
				return 0, NewException(OverflowError, "signed integer is less than minimum")
			}
			return int32(n), nil
		}, "int"
	case float64:
		f, kind = func(v Value) (float64, error) {
			ops := OpsOf(v)
			if !ops.Has(OpFloat) && !ops.Has(OpIndex) {
				return 0, errConvert
			}
			return AsFloat(v)
		}, "real number"
	case string:
		f, kind = func(v Value) (string, error) {
			if s, ok := baseOf(v).(string); ok {
				return s, nil
			}
			return "", errConvert
		}, "str"
	case bool:
		f, kind = func(v Value) (bool, error) { return IsTrue(v) }, "bool"
	case *Type:
		f, kind = func(v Value) (*Type, error) {
			if t, ok := v.(*Type); ok {
				return t, nil
			}
			return nil, errConvert
		}, "type"
	case *Tuple:
		f, kind = func(v Value) (*Tuple, error) {
			if t, ok := baseOf(v).(*Tuple); ok {
				return t, nil
			}
			return nil, errConvert
		}, "tuple"
	case *List:
		f, kind = func(v Value) (*List, error) {
			if l, ok := baseOf(v).(*List); ok {
				return l, nil
			}
			return nil, errConvert
		}, "list"
	case *Dict:
		f, kind = func(v Value) (*Dict, error) {
			if d, ok := baseOf(v).(*Dict); ok {
				return d, nil
			}
			return nil, errConvert
		}, "dict"
	default:
		rt := reflect.TypeOf((*T)(nil)).Elem()
		if rt.Kind() == reflect.Interface {
			panic(fmt.Sprintf("no argument conversion to %s", rt))
		}
		if rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		kind = strings.ToLower(rt.Name())
		return func(v Value) (T, error) {
			if x, ok := baseOf(v).(T); ok {
				return x, nil
			}
			return zero, errConvert
		}, kind
	}
	return f.(func(Value) (T, error)), kind
}

// returnerFor selects the conversion of a Go result to a Value. A nil
// result maps to None.
func returnerFor[R any]() func(R) Value {
	var zero R
	var f any
	switch any(zero).(type) {
	case nil:
		f = func(r Value) Value { return orNone(r) }
	case int:
		f = func(r int) Value { return r }
	case int64:
		f = func(r int64) Value { return int(r) }
	case int32:
		f = func(r int32) Value { return int(r) }
	case float64:
		f = func(r float64) Value { return r }
	case string:
		f = func(r string) Value { return r }
	case bool:
		f = func(r bool) Value { return Bool(r) }
	case Bool:
		f = func(r Bool) Value { return r }
	case *Type:
		f = func(r *Type) Value { return nilToNone(r == nil, r) }
	case *Tuple:
		f = func(r *Tuple) Value { return nilToNone(r == nil, r) }
	case *List:
		f = func(r *List) Value { return nilToNone(r == nil, r) }
	case *Dict:
		f = func(r *Dict) Value { return nilToNone(r == nil, r) }
	default:
		f = func(r R) Value { return any(r) }
	}
	return f.(func(R) Value)
}

func nilToNone(isNil bool, v Value) Value {
	if isNil {
		return None
	}
	return v
}

// baseOf returns the builtin value inside an instance of a derived type.
func baseOf(v Value) Value {
	if inst, ok := v.(*Instance); ok && inst.Base != nil {
		return inst.Base
	}
	return v
}
