package vm

func noneSpec() *TypeSpec {
	return NewSpec("NoneType").
		Adopt(None).
		Flag(Final|Immutable).
		New(func(t *Type, args []Value, kwnames []string) (Value, error) {
			if len(args) > 0 {
				return nil, typeErrorf("NoneType takes no arguments")
			}
			return None, nil
		}).
		Slot(OpRepr, func(Value) (Value, error) { return "None", nil }).
		Slot(OpBool, func(Value) (bool, error) { return false, nil })
}

func notImplementedSpec() *TypeSpec {
	return NewSpec("NotImplementedType").
		Adopt(NotImplemented).
		Flag(Final|Immutable).
		Slot(OpRepr, func(Value) (Value, error) { return "NotImplemented", nil })
}
