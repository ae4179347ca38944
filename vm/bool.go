package vm

// bool has two representations: Bool, which the engine produces, and Go
// bool, which host code may return. Both are instances of the one type,
// and both are accepted by int.

// asGoBool returns the truth of v when v is a bool of either representation.
func asGoBool(v Value) (bool, bool) {
	switch x := v.(type) {
	case Bool:
		return bool(x), true
	case bool:
		return x, true
	}
	return false, false
}

func boolRepr(v Value) (Value, error) {
	b, _ := asGoBool(v)
	if b {
		return "True", nil
	}
	return "False", nil
}

// boolBitwise builds the handles of a bitwise operation for each bool
// representation. With a bool on the other side the result is a bool;
// otherwise the operation is the int one.
func boolBitwise(fn func(a, b bool) bool, op intOp, reflected bool) (onBool, onGoBool BinaryFunc) {
	fallback := op.forward()
	if reflected {
		fallback = op.reflected()
	}
	apply := func(a bool, self, other Value) (Value, error) {
		if b, ok := asGoBool(other); ok {
			return Bool(fn(a, b)), nil
		}
		return fallback(self, other)
	}
	onBool = func(self, other Value) (Value, error) {
		return apply(bool(self.(Bool)), self, other)
	}
	onGoBool = func(self, other Value) (Value, error) {
		return apply(self.(bool), self, other)
	}
	return onBool, onGoBool
}

var boolParser = newArgParser("bool", []string{"x"}, 1, nil, false, false)

func boolNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := boolParser.Parse(args, kwnames, []Value{False}, nil)
	if err != nil {
		return nil, err
	}
	b, err := IsTrue(frame[0])
	if err != nil {
		return nil, err
	}
	return Bool(b), nil
}

func boolSpec() *TypeSpec {
	s := NewSpec("bool").
		Doc("bool(x) -> bool").
		Base(IntType).
		Adopt(False, false).
		Flag(Final|Immutable).
		New(boolNew).
		Slot(OpRepr, boolRepr)
	for _, b := range []struct {
		fwd Slot
		fn  func(a, b bool) bool
		op  intOp
	}{
		{OpAnd, func(a, b bool) bool { return a && b }, intAnd},
		{OpOr, func(a, b bool) bool { return a || b }, intOr},
		{OpXor, func(a, b bool) bool { return a != b }, intXor},
	} {
		rs, _ := b.fwd.Reflected()
		fb, fg := boolBitwise(b.fn, b.op, false)
		rb, rg := boolBitwise(b.fn, b.op, true)
		s.Slot(b.fwd, fb, fg).Slot(rs, rb, rg)
	}
	return s
}
