package vm

import "fmt"

// Call invokes callable with positional arguments followed by the values
// of the keyword arguments named in kwnames.
func Call(callable Value, args []Value, kwnames []string) (Value, error) {
	switch f := callable.(type) {
	case *Function:
		return f.call(args, kwnames, nil)
	case *BuiltinFunction:
		return f.adapter.Call(f.self, args, kwnames)
	case *Type:
		return typeCall(f, args, kwnames)
	}
	ops := OpsOf(callable)
	if !ops.Has(OpCall) {
		return nil, typeErrorf("'%.200s' object is not callable", ops.typ.name)
	}
	return ops.Call()(callable, args, kwnames)
}

// IsCallable reports whether v can be called.
func IsCallable(v Value) bool { return OpsOf(v).Has(OpCall) }

// ---------------------------------------------------------------------------
// BuiltinFunction
// ---------------------------------------------------------------------------

// BuiltinFunction is a Go function exposed as a value, either free-standing
// or a method bound to its receiver.
type BuiltinFunction struct {
	adapter *Adapter
	self    Value
	bound   bool
}

// NewBuiltin wraps an adapted function.
func NewBuiltin(a *Adapter) *BuiltinFunction {
	return &BuiltinFunction{adapter: a}
}

// Name returns the function's name.
func (f *BuiltinFunction) Name() string { return f.adapter.Name() }

func builtinCall(self Value, args []Value, kwnames []string) (Value, error) {
	f := self.(*BuiltinFunction)
	return f.adapter.Call(f.self, args, kwnames)
}

func builtinRepr(self Value) (Value, error) {
	f := self.(*BuiltinFunction)
	if f.bound {
		return fmt.Sprintf("<built-in method %s of %s object at %#x>",
			f.Name(), TypeOf(f.self).name, ID(f.self)), nil
	}
	return fmt.Sprintf("<built-in function %s>", f.Name()), nil
}

// ---------------------------------------------------------------------------
// BoundMethod
// ---------------------------------------------------------------------------

// BoundMethod is a function bound to an instance by attribute access.
type BoundMethod struct {
	fn   Value
	self Value
}

func boundMethodCall(self Value, args []Value, kwnames []string) (Value, error) {
	m := self.(*BoundMethod)
	if f, ok := m.fn.(*Function); ok {
		return f.callSelf(m.self, args, kwnames, nil)
	}
	return Call(m.fn, prepend(m.self, args), kwnames)
}

func boundMethodRepr(self Value) (Value, error) {
	m := self.(*BoundMethod)
	name := "?"
	if n, found, _ := LookupAttr(m.fn, "__qualname__"); found {
		if s, ok := n.(string); ok {
			name = s
		}
	}
	return fmt.Sprintf("<bound method %s of %s>", name, safeRepr(m.self)), nil
}

func boundMethodEq(self, other Value) (Value, error) {
	m := self.(*BoundMethod)
	o, ok := other.(*BoundMethod)
	if !ok {
		return NotImplemented, nil
	}
	return Bool(Is(m.fn, o.fn) && Is(m.self, o.self)), nil
}

// boundMethodGetAttr delegates unknown attributes to the function.
func boundMethodGetAttr(self Value, name string) (Value, error) {
	v, err := genericGetAttr(self, name)
	if err == nil || !isAttributeError(err) {
		return v, err
	}
	return GetAttr(self.(*BoundMethod).fn, name)
}

func isAttributeError(err error) bool {
	exc, ok := AsException(err)
	return ok && exc.Kind == AttributeError
}

// ---------------------------------------------------------------------------
// Type specifications of the callable and descriptor types
// ---------------------------------------------------------------------------

func builtinFunctionSpec() *TypeSpec {
	return NewSpec("builtin_function_or_method").
		Adopt((*BuiltinFunction)(nil)).
		Flag(Final|Immutable).
		Slot(OpCall, builtinCall).
		Slot(OpRepr, builtinRepr).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*BuiltinFunction).Name(), nil }, nil, nil).
		GetSet("__self__", func(v Value) (Value, error) { return orNone(v.(*BuiltinFunction).self), nil }, nil, nil).
		GetSet("__text_signature__", func(v Value) (Value, error) {
			return v.(*BuiltinFunction).adapter.Signature().String(), nil
		}, nil, nil)
}

func boundMethodSpec() *TypeSpec {
	return NewSpec("method").
		Adopt((*BoundMethod)(nil)).
		Flag(Final|Immutable).
		Slot(OpCall, boundMethodCall).
		Slot(OpRepr, boundMethodRepr).
		Slot(OpEQ, boundMethodEq).
		Slot(OpGetAttribute, boundMethodGetAttr).
		GetSet("__func__", func(v Value) (Value, error) { return v.(*BoundMethod).fn, nil }, nil, nil).
		GetSet("__self__", func(v Value) (Value, error) { return v.(*BoundMethod).self, nil }, nil, nil)
}

func methodDescrSpec() *TypeSpec {
	return NewSpec("method_descriptor").
		Adopt((*MethodDescr)(nil)).
		Flag(Final|Immutable|MethodDescriptor).
		Slot(OpGet, methodDescrGet).
		Slot(OpCall, methodDescrCall).
		Slot(OpRepr, methodDescrRepr).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*MethodDescr).Name(), nil }, nil, nil).
		GetSet("__qualname__", func(v Value) (Value, error) {
			d := v.(*MethodDescr)
			return d.objclass.qualname + "." + d.Name(), nil
		}, nil, nil).
		GetSet("__objclass__", func(v Value) (Value, error) { return v.(*MethodDescr).objclass, nil }, nil, nil)
}

func wrapperDescrSpec() *TypeSpec {
	return NewSpec("wrapper_descriptor").
		Adopt((*WrapperDescr)(nil)).
		Flag(Final|Immutable|MethodDescriptor).
		Slot(OpGet, wrapperDescrGet).
		Slot(OpCall, wrapperDescrCall).
		Slot(OpRepr, wrapperDescrRepr).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*WrapperDescr).Name(), nil }, nil, nil).
		GetSet("__qualname__", func(v Value) (Value, error) {
			d := v.(*WrapperDescr)
			return d.objclass.qualname + "." + d.Name(), nil
		}, nil, nil).
		GetSet("__objclass__", func(v Value) (Value, error) { return v.(*WrapperDescr).objclass, nil }, nil, nil)
}

func methodWrapperSpec() *TypeSpec {
	return NewSpec("method-wrapper").
		Adopt((*MethodWrapper)(nil)).
		Flag(Final|Immutable).
		Slot(OpCall, methodWrapperCall).
		Slot(OpRepr, methodWrapperRepr).
		Slot(OpEQ, methodWrapperEq).
		GetSet("__self__", func(v Value) (Value, error) { return v.(*MethodWrapper).self, nil }, nil, nil).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*MethodWrapper).descr.Name(), nil }, nil, nil)
}

func getSetDescrSpec() *TypeSpec {
	return NewSpec("getset_descriptor").
		Adopt((*GetSetDescr)(nil)).
		Flag(Final|Immutable).
		Slot(OpGet, getSetGet).
		Slot(OpSet, getSetSet).
		Slot(OpDelete, getSetDelete).
		Slot(OpRepr, getSetRepr).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*GetSetDescr).name, nil }, nil, nil).
		GetSet("__objclass__", func(v Value) (Value, error) { return v.(*GetSetDescr).objclass, nil }, nil, nil)
}

func memberDescrSpec() *TypeSpec {
	return NewSpec("member_descriptor").
		Adopt((*MemberDescr)(nil)).
		Flag(Final|Immutable).
		Slot(OpGet, memberGet).
		Slot(OpSet, memberSet).
		Slot(OpDelete, memberDelete).
		Slot(OpRepr, memberRepr).
		GetSet("__name__", func(v Value) (Value, error) { return v.(*MemberDescr).name, nil }, nil, nil).
		GetSet("__objclass__", func(v Value) (Value, error) { return v.(*MemberDescr).objclass, nil }, nil, nil)
}

func propertySpec() *TypeSpec {
	return NewSpec("property").
		Doc("Property attribute.").
		Adopt((*Property)(nil)).
		Flag(Immutable).
		New(newProperty).
		Slot(OpGet, propertyGet).
		Slot(OpSet, propertySet).
		Slot(OpDelete, propertyDelete).
		GetSet("fget", func(v Value) (Value, error) { return orNone(v.(*Property).Get), nil }, nil, nil).
		GetSet("fset", func(v Value) (Value, error) { return orNone(v.(*Property).Set), nil }, nil, nil).
		GetSet("fdel", func(v Value) (Value, error) { return orNone(v.(*Property).Del), nil }, nil, nil).
		Method(Method1(NewSignature("getter", "fget"), propertyCopy(0))).
		Method(Method1(NewSignature("setter", "fset"), propertyCopy(1))).
		Method(Method1(NewSignature("deleter", "fdel"), propertyCopy(2)))
}
