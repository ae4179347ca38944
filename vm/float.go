package vm

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// floatOperand converts an operand of a float operation: a float, or an
// int which is converted exactly or fails with OverflowError.
func floatOperand(v Value) (float64, bool, error) {
	if f, ok := baseOf(v).(float64); ok {
		return f, true, nil
	}
	if isIntLike(v) {
		f, err := intToFloat(v)
		return f, true, err
	}
	return 0, false, nil
}

func floatSelf(v Value) float64 {
	f, _ := baseOf(v).(float64)
	return f
}

// floatRepr formats f as the shortest string that reads back to f.
func floatRepr(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// floatHash agrees with intHash for integral values.
func floatHash(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return 314159
	case math.IsInf(f, -1):
		return -314159
	}
	if i, frac := math.Modf(f); frac == 0 {
		b, _ := new(big.Float).SetFloat64(i).Int(nil)
		return intHash(normalizeInt(b))
	}
	h := int(math.Float64bits(f) % hashModulus)
	if f < 0 {
		h = -h
	}
	if h == -1 {
		h = -2
	}
	return h
}

func floatToInt(f float64) (Value, error) {
	switch {
	case math.IsNaN(f):
		return nil, NewException(ValueError, "cannot convert float NaN to integer")
	case math.IsInf(f, 0):
		return nil, NewException(OverflowError, "cannot convert float infinity to integer")
	}
	t := math.Trunc(f)
	if t >= math.MinInt64 && t < math.MaxInt64 {
		return normalizeInt(int64(t)), nil
	}
	b, _ := new(big.Float).SetFloat64(t).Int(nil)
	return normalizeInt(b), nil
}

// floatBinary builds the forward and reflected handles of a float
// operation.
func floatBinary(fn func(a, b float64) (Value, error)) (fwd, refl BinaryFunc) {
	apply := func(v, w Value) (Value, error) {
		a, ok, err := floatOperand(v)
		if err != nil || !ok {
			return orNotImplemented(ok), err
		}
		b, ok, err := floatOperand(w)
		if err != nil || !ok {
			return orNotImplemented(ok), err
		}
		return fn(a, b)
	}
	return apply, func(v, w Value) (Value, error) { return apply(w, v) }
}

func orNotImplemented(ok bool) Value {
	if ok {
		return nil
	}
	return NotImplemented
}

func floatMod(a, b float64) float64 {
	m := math.Mod(a, b)
	if m != 0 {
		if (m < 0) != (b < 0) {
			m += b
		}
	} else {
		m = math.Copysign(0, b)
	}
	return m
}

var floatOps = []struct {
	fwd Slot
	fn  func(a, b float64) (Value, error)
}{
	{OpAdd, func(a, b float64) (Value, error) { return a + b, nil }},
	{OpSub, func(a, b float64) (Value, error) { return a - b, nil }},
	{OpMul, func(a, b float64) (Value, error) { return a * b, nil }},
	{OpTruediv, func(a, b float64) (Value, error) {
		if b == 0 {
			return nil, NewException(ZeroDivisionError, "float division by zero")
		}
		return a / b, nil
	}},
	{OpFloordiv, func(a, b float64) (Value, error) {
		if b == 0 {
			return nil, NewException(ZeroDivisionError, "float floor division by zero")
		}
		return math.Floor((a - floatMod(a, b)) / b), nil
	}},
	{OpMod, func(a, b float64) (Value, error) {
		if b == 0 {
			return nil, NewException(ZeroDivisionError, "float modulo")
		}
		return floatMod(a, b), nil
	}},
	{OpDivmod, func(a, b float64) (Value, error) {
		if b == 0 {
			return nil, NewException(ZeroDivisionError, "float divmod()")
		}
		m := floatMod(a, b)
		return NewTuple(math.Floor((a-m)/b), m), nil
	}},
	{OpPow, func(a, b float64) (Value, error) {
		if a == 0 && b < 0 {
			return nil, NewException(ZeroDivisionError, "0.0 cannot be raised to a negative power")
		}
		if a < 0 && b != math.Trunc(b) {
			return nil, NewException(ValueError, "math domain error")
		}
		return math.Pow(a, b), nil
	}},
}

// floatCompare orders a float against a float or an int. The int case is
// exact for ints beyond float precision. ok is false for NaN operands.
func floatCompare(v, w Value) (cmp int, ok, handled bool) {
	a := floatSelf(v)
	if math.IsNaN(a) {
		_, isNum, _ := floatOperand(w)
		return 0, false, isNum
	}
	var b float64
	switch x := baseOf(w).(type) {
	case float64:
		b = x
	default:
		n, isInt := intValue(w)
		if !isInt {
			return 0, false, false
		}
		if math.IsInf(a, 0) {
			return int(math.Copysign(1, a)), true, true
		}
		fa := new(big.Float).SetFloat64(a)
		fb := new(big.Float).SetInt(bigOf(n))
		return fa.Cmp(fb), true, true
	}
	switch {
	case math.IsNaN(b):
		return 0, false, true
	case a < b:
		return -1, true, true
	case a > b:
		return 1, true, true
	}
	return 0, true, true
}

func floatComparison(c Comparison) BinaryFunc {
	return func(v, w Value) (Value, error) {
		cmp, ok, handled := floatCompare(v, w)
		if !handled {
			return NotImplemented, nil
		}
		if !ok {
			return Bool(c == NE), nil
		}
		return Bool(c.ToBool(cmp)), nil
	}
}

func parseFloat(s string) (float64, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	switch strings.TrimLeft(text, "+-") {
	case "inf", "infinity", "nan":
		f, _ := strconv.ParseFloat(text, 64)
		return f, nil
	}
	if strings.HasPrefix(text, "_") || strings.HasSuffix(text, "_") || strings.Contains(text, "__") {
		return 0, NewException(ValueError, "could not convert string to float: %s", strRepr(s))
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, nil
		}
		return 0, NewException(ValueError, "could not convert string to float: %s", strRepr(s))
	}
	return f, nil
}

var floatParser = newArgParser("float", []string{"x"}, 1, nil, false, false)

func floatNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := floatParser.Parse(args, kwnames, []Value{0.0}, nil)
	if err != nil {
		return nil, err
	}
	if s, ok := baseOf(frame[0]).(string); ok {
		return parseFloat(s)
	}
	return AsFloat(frame[0])
}

func floatSpec() *TypeSpec {
	s := NewSpec("float").
		Doc("Convert a string or number to a floating point number, if possible.").
		Adopt(0.0).
		Flag(Immutable).
		New(floatNew).
		Slot(OpRepr, func(v Value) (Value, error) { return floatRepr(floatSelf(v)), nil }).
		Slot(OpHash, func(v Value) (int, error) { return floatHash(floatSelf(v)), nil }).
		Slot(OpBool, func(v Value) (bool, error) { return floatSelf(v) != 0, nil }).
		Slot(OpNeg, func(v Value) (Value, error) { return -floatSelf(v), nil }).
		Slot(OpPos, func(v Value) (Value, error) { return floatSelf(v), nil }).
		Slot(OpAbs, func(v Value) (Value, error) { return math.Abs(floatSelf(v)), nil }).
		Slot(OpFloat, func(v Value) (Value, error) { return floatSelf(v), nil }).
		Slot(OpInt, func(v Value) (Value, error) { return floatToInt(floatSelf(v)) }).
		Method(Method0(NewSignature("is_integer"), func(v Value) (bool, error) {
			f := floatSelf(v)
			return !math.IsInf(f, 0) && f == math.Trunc(f), nil
		}))
	for _, b := range floatOps {
		rs, _ := b.fwd.Reflected()
		fwd, refl := floatBinary(b.fn)
		s.Slot(b.fwd, fwd).Slot(rs, refl)
	}
	for _, c := range []Comparison{LT, LE, EQ, NE, GT, GE} {
		s.Slot(c.Slot(), floatComparison(c))
	}
	return s
}
