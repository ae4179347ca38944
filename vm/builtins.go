package vm

import (
	"fmt"
	"strings"
)

// newBuiltins creates the builtins namespace of an interpreter.
func newBuiltins(in *Interpreter) *Dict {
	b := NewDict()
	b.SetStr("__name__", "builtins")
	b.SetStr("None", None)
	b.SetStr("True", True)
	b.SetStr("False", False)
	b.SetStr("NotImplemented", NotImplemented)

	for _, t := range []*Type{
		ObjectType, TypeType, IntType, BoolType, FloatType, StrType,
		TupleType, ListType, DictType, PropertyType,
	} {
		b.SetStr(t.name, t)
	}

	for _, a := range []*Adapter{
		FuncGeneral(NewSignature("print").WithVarArgs("args").WithKwOnly("sep", None).WithKwOnly("end", None),
			in.print),
		Func1(NewSignature("len", "obj"), Len),
		Func1(NewSignature("repr", "obj"), Repr),
		Func2(NewSignature("isinstance", "obj", "class_or_tuple"), IsInstance),
		Func2(NewSignature("issubclass", "cls", "class_or_tuple"), IsSubclass),
		Func1(NewSignature("id", "obj"), func(v Value) (int, error) { return ID(v), nil }),
		Func1(NewSignature("abs", "x"), Absolute),
		FuncN(NewSignature("getattr", "object", "name").WithVarArgs("default"), builtinGetAttr),
		Func3(NewSignature("setattr", "obj", "name", "value"), func(obj, name, v Value) (Value, error) {
			s, err := attrName(name)
			if err != nil {
				return nil, err
			}
			return nil, SetAttr(obj, s, v)
		}),
		Func2(NewSignature("delattr", "obj", "name"), func(obj, name Value) (Value, error) {
			s, err := attrName(name)
			if err != nil {
				return nil, err
			}
			return nil, DelAttr(obj, s)
		}),
		Func2(NewSignature("hasattr", "obj", "name"), func(obj, name Value) (bool, error) {
			s, err := attrName(name)
			if err != nil {
				return false, err
			}
			return HasAttr(obj, s)
		}),
		Func1(NewSignature("iter", "object"), GetIter),
		FuncN(NewSignature("next", "iterator").WithVarArgs("default"), builtinNext),
		Func1(NewSignature("callable", "obj"), func(v Value) (bool, error) { return IsCallable(v), nil }),
		FuncGeneral(NewSignature("__build_class__", "func", "name").WithVarArgs("bases").WithVarKwargs("kwds"),
			buildClass),
	} {
		b.SetStr(a.Name(), NewBuiltin(a))
	}
	return b
}

func (in *Interpreter) print(frame []Value) (Value, error) {
	sep, end := " ", "\n"
	for i, p := range []*string{&sep, &end} {
		switch v := frame[i].(type) {
		case NoneType:
		case string:
			*p = v
		default:
			return nil, typeErrorf("%s must be None or a string, not %.200s",
				[]string{"sep", "end"}[i], TypeOf(v).name)
		}
	}
	args := frame[2].(*Tuple).items
	var sb strings.Builder
	for i, x := range args {
		if i > 0 {
			sb.WriteString(sep)
		}
		s, err := Str(x)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	sb.WriteString(end)
	if _, err := fmt.Fprint(in.Config.Stdout, sb.String()); err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}
	return None, nil
}

func builtinGetAttr(args []Value) (Value, error) {
	if len(args) > 3 {
		return nil, typeErrorf("getattr expected at most 3 arguments, got %d", len(args))
	}
	name, err := attrName(args[1])
	if err != nil {
		return nil, err
	}
	if len(args) == 2 {
		return GetAttr(args[0], name)
	}
	v, found, err := LookupAttr(args[0], name)
	if err != nil {
		return nil, err
	}
	if !found {
		return args[2], nil
	}
	return v, nil
}

func builtinNext(args []Value) (Value, error) {
	if len(args) > 2 {
		return nil, typeErrorf("next expected at most 2 arguments, got %d", len(args))
	}
	v, ok, err := Next(args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, errStop
	}
	return v, nil
}

// buildClass runs a class body with a fresh namespace and creates the
// class from it.
func buildClass(frame []Value) (Value, error) {
	fn, ok := frame[0].(*Function)
	if !ok {
		return nil, typeErrorf("__build_class__: func must be a function")
	}
	name, ok := frame[1].(string)
	if !ok {
		return nil, typeErrorf("__build_class__: name is not a string")
	}
	if kw := frame[3].(*Dict); kw.Len() > 0 {
		return nil, typeErrorf("__build_class__() does not support class keywords")
	}
	items := frame[2].(*Tuple).items
	bases := make([]*Type, len(items))
	for i, x := range items {
		if bases[i], ok = x.(*Type); !ok {
			return nil, typeErrorf("bases must be types, not %.200s", TypeOf(x).name)
		}
	}

	ns := NewDict()
	if m, ok := fn.globals.GetStr("__name__"); ok {
		ns.SetStr("__module__", m)
	}
	ns.SetStr("__qualname__", fn.qualname)
	if _, err := fn.runBody(ns); err != nil {
		return nil, err
	}
	return NewClass(name, bases, ns)
}
