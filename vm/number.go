package vm

// ---------------------------------------------------------------------------
// Unary operations
// ---------------------------------------------------------------------------

// UnaryOp applies the unary slot s to v.
func UnaryOp(s Slot, v Value) (Value, error) {
	ops := OpsOf(v)
	if !ops.Has(s) {
		return nil, unaryOperandError(s, v)
	}
	return ops.Unary(s)(v)
}

func unaryOperandError(s Slot, v Value) error {
	return typeErrorf("bad operand type for %s: '%.200s'", s.OpName(), TypeOf(v).name)
}

// Negative computes -v.
func Negative(v Value) (Value, error) { return UnaryOp(OpNeg, v) }

// Positive computes +v.
func Positive(v Value) (Value, error) { return UnaryOp(OpPos, v) }

// Absolute computes abs(v).
func Absolute(v Value) (Value, error) { return UnaryOp(OpAbs, v) }

// Invert computes ~v.
func Invert(v Value) (Value, error) { return UnaryOp(OpInvert, v) }

// ---------------------------------------------------------------------------
// Binary operations
// ---------------------------------------------------------------------------

// BinaryOp applies the binary slot s to v and w, giving a right operand
// whose type is a proper subtype of the left operand's type the first
// chance to act through its reflected slot.
func BinaryOp(s Slot, v, w Value) (Value, error) {
	return binaryOp(s, v, OpsOf(v), w, OpsOf(w))
}

func binaryOp(s Slot, v Value, vOps *Operations, w Value, wOps *Operations) (Value, error) {
	r, err := binaryOp1(s, v, vOps, w, wOps)
	if err != nil {
		return nil, err
	}
	if isNotImplemented(r) {
		return nil, binaryOperandError(s, vOps.typ, wOps.typ)
	}
	return r, nil
}

// binaryOp1 returns NotImplemented when neither operand handles s.
func binaryOp1(s Slot, v Value, vOps *Operations, w Value, wOps *Operations) (Value, error) {
	vt, wt := vOps.typ, wOps.typ
	rs, ok := s.Reflected()
	if !ok {
		return nil, internalErrorf("%s is not a binary operation", s)
	}

	if vt == wt {
		if !vOps.Has(s) {
			return NotImplemented, nil
		}
		return vOps.Binary(s)(v, w)
	}

	if !wt.IsSubtypeOf(vt) {
		// Left operand first, then the right operand's reflected slot.
		if vOps.Has(s) {
			r, err := vOps.Binary(s)(v, w)
			if err != nil || !isNotImplemented(r) {
				return r, err
			}
		}
		if wOps.Has(rs) {
			return wOps.Binary(rs)(w, v)
		}
		return NotImplemented, nil
	}

	// w is a proper subtype of v: it gets first refusal.
	if wOps.Has(rs) {
		r, err := wOps.Binary(rs)(w, v)
		if err != nil || !isNotImplemented(r) {
			return r, err
		}
	}
	if vOps.Has(s) {
		return vOps.Binary(s)(v, w)
	}
	return NotImplemented, nil
}

func binaryOperandError(s Slot, vt, wt *Type) error {
	return typeErrorf("unsupported operand type(s) for %s: '%.100s' and '%.100s'", s.OpName(), vt.name, wt.name)
}

// Add computes v + w.
func Add(v, w Value) (Value, error) { return BinaryOp(OpAdd, v, w) }

// Subtract computes v - w.
func Subtract(v, w Value) (Value, error) { return BinaryOp(OpSub, v, w) }

// Multiply computes v * w.
func Multiply(v, w Value) (Value, error) { return BinaryOp(OpMul, v, w) }

// TrueDivide computes v / w.
func TrueDivide(v, w Value) (Value, error) { return BinaryOp(OpTruediv, v, w) }

// FloorDivide computes v // w.
func FloorDivide(v, w Value) (Value, error) { return BinaryOp(OpFloordiv, v, w) }

// Remainder computes v % w.
func Remainder(v, w Value) (Value, error) { return BinaryOp(OpMod, v, w) }

// Power computes v ** w.
func Power(v, w Value) (Value, error) { return BinaryOp(OpPow, v, w) }

// And computes v & w.
func And(v, w Value) (Value, error) { return BinaryOp(OpAnd, v, w) }

// Or computes v | w.
func Or(v, w Value) (Value, error) { return BinaryOp(OpOr, v, w) }

// Xor computes v ^ w.
func Xor(v, w Value) (Value, error) { return BinaryOp(OpXor, v, w) }

// Lshift computes v << w.
func Lshift(v, w Value) (Value, error) { return BinaryOp(OpLshift, v, w) }

// Rshift computes v >> w.
func Rshift(v, w Value) (Value, error) { return BinaryOp(OpRshift, v, w) }

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// Index returns v as an exact int through __index__.
func Index(v Value) (Value, error) {
	if isExactInt(v) {
		return normalizeInt(v), nil
	}
	ops := OpsOf(v)
	if !ops.Has(OpIndex) {
		return nil, typeErrorf("'%.200s' object cannot be interpreted as an integer", ops.typ.name)
	}
	r, err := ops.Unary(OpIndex)(v)
	if err != nil {
		return nil, err
	}
	if !isExactInt(r) {
		return nil, returnTypeError("__index__", "int", r)
	}
	return normalizeInt(r), nil
}

// AsInt converts v to a Go int through __index__, failing with
// OverflowError when it does not fit.
func AsInt(v Value) (int, error) {
	r, err := Index(v)
	if err != nil {
		return 0, err
	}
	n, ok := r.(int)
	if !ok {
		return 0, NewException(OverflowError, "Python int too large to convert to C long")
	}
	return n, nil
}

// AsSize is AsInt clipped to the int range, for sizes and indices.
func AsSize(v Value) (int, error) {
	r, err := Index(v)
	if err != nil {
		return 0, err
	}
	if n, ok := r.(int); ok {
		return n, nil
	}
	return clipBig(r), nil
}

// AsFloat converts v to float64 through __float__ or __index__.
func AsFloat(v Value) (float64, error) {
	if f, ok := v.(float64); ok {
		return f, nil
	}
	ops := OpsOf(v)
	if ops.Has(OpFloat) {
		r, err := ops.Unary(OpFloat)(v)
		if err != nil {
			return 0, err
		}
		f, ok := baseOf(r).(float64)
		if !ok {
			return 0, returnTypeError("__float__", "float", r)
		}
		return f, nil
	}
	if ops.Has(OpIndex) {
		r, err := Index(v)
		if err != nil {
			return 0, err
		}
		return intToFloat(r)
	}
	return 0, typeErrorf("must be real number, not %.200s", ops.typ.name)
}
