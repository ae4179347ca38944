package vm

import (
	"math"
	"math/big"
	"math/bits"
	"strconv"
	"strings"
)

// Integers are represented by Go int while they fit, and by *big.Int
// otherwise. int64 is adopted so host code may pass one directly; bool and
// Bool are accepted because bool derives from int.

// hashModulus is the modulus of numeric hashing, 2**61 - 1, so that equal
// numbers of different representations hash alike.
const hashModulus = 1<<61 - 1

var bigHashModulus = big.NewInt(hashModulus)

// isExactInt reports whether v is an int of one of the int representations,
// excluding bool and subclasses.
func isExactInt(v Value) bool {
	switch v.(type) {
	case int, int64, *big.Int:
		return true
	}
	return false
}

// normalizeInt returns an exact int in its canonical representation: Go
// int when the value fits.
func normalizeInt(v Value) Value {
	switch x := v.(type) {
	case int64:
		if int64(int(x)) == x {
			return int(x)
		}
		return big.NewInt(x)
	case *big.Int:
		if x.IsInt64() && int64(int(x.Int64())) == x.Int64() {
			return int(x.Int64())
		}
	}
	return v
}

// intValue returns v as int or *big.Int when it is an instance of int or a
// subtype, bool included.
func intValue(v Value) (Value, bool) {
	switch x := baseOf(v).(type) {
	case int:
		return x, true
	case int64, *big.Int:
		return normalizeInt(x), true
	case Bool:
		if x {
			return 1, true
		}
		return 0, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return nil, false
}

// isIntLike reports whether v is an instance of int or a subtype.
func isIntLike(v Value) bool {
	_, ok := intValue(v)
	return ok
}

func bigOf(v Value) *big.Int {
	if b, ok := v.(*big.Int); ok {
		return b
	}
	return big.NewInt(int64(v.(int)))
}

// intHash hashes an int-like value so that it agrees with float hashing.
func intHash(v Value) int {
	n, _ := intValue(v)
	var h int
	if x, ok := n.(int); ok {
		h = x % hashModulus
	} else {
		b := bigOf(n)
		r := new(big.Int).Rem(new(big.Int).Abs(b), bigHashModulus)
		h = int(r.Int64())
		if b.Sign() < 0 {
			h = -h
		}
	}
	if h == -1 {
		h = -2
	}
	return h
}

// clipBig saturates an int to the Go int range.
func clipBig(v Value) int {
	switch x := v.(type) {
	case int:
		return x
	case *big.Int:
		if x.Sign() < 0 {
			return math.MinInt
		}
		return math.MaxInt
	}
	return 0
}

func intToFloat(v Value) (float64, error) {
	n, ok := intValue(v)
	if !ok {
		return 0, typeErrorf("must be real number, not %.200s", TypeOf(v).name)
	}
	if x, ok := n.(int); ok {
		return float64(x), nil
	}
	f, _ := new(big.Float).SetInt(n.(*big.Int)).Float64()
	if math.IsInf(f, 0) {
		return 0, NewException(OverflowError, "int too large to convert to float")
	}
	return f, nil
}

func intString(n Value) string {
	if x, ok := n.(int); ok {
		return strconv.Itoa(x)
	}
	return n.(*big.Int).String()
}

// ---------------------------------------------------------------------------
// Binary arithmetic
// ---------------------------------------------------------------------------

// intOp is a binary integer operation with a fast path on Go int that
// reports overflow by returning ok=false, and an exact path on big.Int.
type intOp struct {
	small func(a, b int) (r Value, ok bool, err error)
	big   func(a, b *big.Int) (Value, error)
}

func (op intOp) apply(v, w Value) (Value, error) {
	a, ok := intValue(v)
	if !ok {
		return NotImplemented, nil
	}
	b, ok := intValue(w)
	if !ok {
		return NotImplemented, nil
	}
	if x, ok := a.(int); ok {
		if y, ok := b.(int); ok {
			r, done, err := op.small(x, y)
			if done || err != nil {
				return r, err
			}
		}
	}
	r, err := op.big(bigOf(a), bigOf(b))
	if err != nil {
		return nil, err
	}
	return normalizeInt(r), nil
}

func (op intOp) forward() BinaryFunc { return op.apply }

func (op intOp) reflected() BinaryFunc {
	return func(v, w Value) (Value, error) { return op.apply(w, v) }
}

var errIntZeroDivision = NewException(ZeroDivisionError, "integer division or modulo by zero")

var intAdd = intOp{
	small: func(a, b int) (Value, bool, error) {
		c := a + b
		return c, (c > a) == (b > 0), nil
	},
	big: func(a, b *big.Int) (Value, error) { return new(big.Int).Add(a, b), nil },
}

var intSub = intOp{
	small: func(a, b int) (Value, bool, error) {
		c := a - b
		return c, (c < a) == (b > 0), nil
	},
	big: func(a, b *big.Int) (Value, error) { return new(big.Int).Sub(a, b), nil },
}

var intMul = intOp{
	small: func(a, b int) (Value, bool, error) {
		hi, lo := bits.Mul64(uint64(absInt(a)), uint64(absInt(b)))
		if hi != 0 || lo > math.MaxInt || a == math.MinInt || b == math.MinInt {
			return nil, false, nil
		}
		return a * b, true, nil
	},
	big: func(a, b *big.Int) (Value, error) { return new(big.Int).Mul(a, b), nil },
}

var intFloorDiv = intOp{
	small: func(a, b int) (Value, bool, error) {
		if b == 0 {
			return nil, false, errIntZeroDivision
		}
		if a == math.MinInt && b == -1 {
			return nil, false, nil
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return q, true, nil
	},
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() == 0 {
			return nil, errIntZeroDivision
		}
		q, _ := floorDivMod(a, b)
		return q, nil
	},
}

var intMod = intOp{
	small: func(a, b int) (Value, bool, error) {
		if b == 0 {
			return nil, false, errIntZeroDivision
		}
		if b == -1 {
			return 0, true, nil
		}
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return r, true, nil
	},
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() == 0 {
			return nil, errIntZeroDivision
		}
		_, m := floorDivMod(a, b)
		return m, nil
	},
}

var intDivmod = intOp{
	small: func(a, b int) (Value, bool, error) { return nil, false, nil },
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() == 0 {
			return nil, errIntZeroDivision
		}
		q, m := floorDivMod(a, b)
		return NewTuple(normalizeInt(q), normalizeInt(m)), nil
	},
}

// floorDivMod divides rounding towards negative infinity.
func floorDivMod(a, b *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
		m.Add(m, b)
	}
	return q, m
}

var intTrueDiv = intOp{
	small: func(a, b int) (Value, bool, error) {
		if b == 0 {
			return nil, false, NewException(ZeroDivisionError, "division by zero")
		}
		if absInt(a) < 1<<53 && absInt(b) < 1<<53 {
			return float64(a) / float64(b), true, nil
		}
		return nil, false, nil
	},
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() == 0 {
			return nil, NewException(ZeroDivisionError, "division by zero")
		}
		f, _ := new(big.Rat).SetFrac(a, b).Float64()
		if math.IsInf(f, 0) {
			return nil, NewException(OverflowError, "integer division result too large for a float")
		}
		return f, nil
	},
}

var intPow = intOp{
	small: func(a, b int) (Value, bool, error) {
		if b < 0 {
			if a == 0 {
				return nil, false, NewException(ZeroDivisionError, "0.0 cannot be raised to a negative power")
			}
			return math.Pow(float64(a), float64(b)), true, nil
		}
		return nil, false, nil
	},
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() < 0 {
			fa, _ := new(big.Float).SetInt(a).Float64()
			fb, _ := new(big.Float).SetInt(b).Float64()
			return math.Pow(fa, fb), nil
		}
		return new(big.Int).Exp(a, b, nil), nil
	},
}

var errNegativeShift = NewException(ValueError, "negative shift count")

var intLshift = intOp{
	small: func(a, b int) (Value, bool, error) {
		if b < 0 {
			return nil, false, errNegativeShift
		}
		if a == 0 {
			return 0, true, nil
		}
		if b < 63 {
			c := a << uint(b)
			if c>>uint(b) == a {
				return c, true, nil
			}
		}
		return nil, false, nil
	},
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() < 0 {
			return nil, errNegativeShift
		}
		if !b.IsInt64() || b.Int64() > 1<<24 {
			return nil, NewException(OverflowError, "too many digits in integer")
		}
		return new(big.Int).Lsh(a, uint(b.Int64())), nil
	},
}

var intRshift = intOp{
	small: func(a, b int) (Value, bool, error) {
		if b < 0 {
			return nil, false, errNegativeShift
		}
		if b > 63 {
			b = 63
		}
		return a >> uint(b), true, nil
	},
	big: func(a, b *big.Int) (Value, error) {
		if b.Sign() < 0 {
			return nil, errNegativeShift
		}
		if !b.IsInt64() {
			if a.Sign() < 0 {
				return big.NewInt(-1), nil
			}
			return big.NewInt(0), nil
		}
		return new(big.Int).Rsh(a, uint(b.Int64())), nil
	},
}

var intAnd = intOp{
	small: func(a, b int) (Value, bool, error) { return a & b, true, nil },
	big:   func(a, b *big.Int) (Value, error) { return new(big.Int).And(a, b), nil },
}

var intOr = intOp{
	small: func(a, b int) (Value, bool, error) { return a | b, true, nil },
	big:   func(a, b *big.Int) (Value, error) { return new(big.Int).Or(a, b), nil },
}

var intXor = intOp{
	small: func(a, b int) (Value, bool, error) { return a ^ b, true, nil },
	big:   func(a, b *big.Int) (Value, error) { return new(big.Int).Xor(a, b), nil },
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// intCompare compares two int-like values.
func intCompare(v, w Value) (int, bool) {
	a, ok := intValue(v)
	if !ok {
		return 0, false
	}
	b, ok := intValue(w)
	if !ok {
		return 0, false
	}
	if x, ok := a.(int); ok {
		if y, ok := b.(int); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	return bigOf(a).Cmp(bigOf(b)), true
}

func intComparison(c Comparison) BinaryFunc {
	return func(v, w Value) (Value, error) {
		cmp, ok := intCompare(v, w)
		if !ok {
			return NotImplemented, nil
		}
		return Bool(c.ToBool(cmp)), nil
	}
}

// ---------------------------------------------------------------------------
// Unary operations and conversions
// ---------------------------------------------------------------------------

func intSelf(v Value) Value {
	n, _ := intValue(v)
	return n
}

func intNeg(v Value) (Value, error) {
	switch x := intSelf(v).(type) {
	case int:
		if x == math.MinInt {
			return new(big.Int).Neg(bigOf(x)), nil
		}
		return -x, nil
	case *big.Int:
		return normalizeInt(new(big.Int).Neg(x)), nil
	}
	return NotImplemented, nil
}

func intPos(v Value) (Value, error) { return intSelf(v), nil }

func intAbs(v Value) (Value, error) {
	switch x := intSelf(v).(type) {
	case int:
		if x < 0 {
			return intNeg(x)
		}
		return x, nil
	case *big.Int:
		return normalizeInt(new(big.Int).Abs(x)), nil
	}
	return NotImplemented, nil
}

func intInvert(v Value) (Value, error) {
	switch x := intSelf(v).(type) {
	case int:
		return ^x, nil
	case *big.Int:
		return normalizeInt(new(big.Int).Not(x)), nil
	}
	return NotImplemented, nil
}

func intBool(v Value) (bool, error) {
	switch x := intSelf(v).(type) {
	case int:
		return x != 0, nil
	case *big.Int:
		return x.Sign() != 0, nil
	}
	return false, nil
}

func intFloat(v Value) (Value, error) { return intToFloat(v) }

func intHashSlot(v Value) (int, error) { return intHash(v), nil }

func intRepr(v Value) (Value, error) { return intString(intSelf(v)), nil }

func intBitLength(v Value) (int, error) {
	switch x := intSelf(v).(type) {
	case int:
		return bits.Len(uint(absInt(x))), nil
	case *big.Int:
		return x.BitLen(), nil
	}
	return 0, nil
}

// parseInt converts text in the given base, accepting surrounding space,
// a sign, underscores between digits and a 0x/0o/0b prefix matching base
// (or any prefix when base is 0).
func parseInt(s string, base int) (Value, error) {
	text := strings.TrimSpace(s)
	invalid := func() error {
		return NewException(ValueError, "invalid literal for int() with base %d: %s", base, strRepr(s))
	}
	if base != 0 && (base < 2 || base > 36) {
		return nil, NewException(ValueError, "int() base must be >= 2 and <= 36, or 0")
	}
	neg := false
	if text != "" && (text[0] == '+' || text[0] == '-') {
		neg = text[0] == '-'
		text = text[1:]
	}
	if len(text) > 1 && text[0] == '0' {
		var prefixed int
		switch text[1] {
		case 'x', 'X':
			prefixed = 16
		case 'o', 'O':
			prefixed = 8
		case 'b', 'B':
			prefixed = 2
		}
		if prefixed != 0 && (base == 0 || base == prefixed) {
			base = prefixed
			text = strings.TrimPrefix(text[2:], "_")
		}
	}
	if base == 0 {
		// Leading zeros are only allowed in zero itself.
		if len(text) > 1 && text[0] == '0' && strings.Trim(text, "0_") != "" {
			return nil, invalid()
		}
		base = 10
	}
	if text == "" || text[0] == '_' || text[len(text)-1] == '_' || strings.Contains(text, "__") {
		return nil, invalid()
	}
	text = strings.ReplaceAll(text, "_", "")
	b, ok := new(big.Int).SetString(text, base)
	if !ok {
		return nil, invalid()
	}
	if neg {
		b.Neg(b)
	}
	return normalizeInt(b), nil
}

var intParser = newArgParser("int", []string{"x", "base"}, 1, nil, false, false)

func intNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := intParser.Parse(args, kwnames, []Value{0, None}, nil)
	if err != nil {
		return nil, err
	}
	x, base := frame[0], frame[1]
	if !IsNone(base) {
		b, err := AsInt(base)
		if err != nil {
			return nil, err
		}
		s, ok := baseOf(x).(string)
		if !ok {
			return nil, typeErrorf("int() can't convert non-string with explicit base")
		}
		return parseInt(s, b)
	}
	switch y := baseOf(x).(type) {
	case string:
		return parseInt(y, 10)
	case float64:
		return floatToInt(y)
	}
	if n, ok := intValue(x); ok && !isInstance(x) {
		return n, nil
	}
	ops := OpsOf(x)
	if ops.Has(OpInt) {
		r, err := ops.Unary(OpInt)(x)
		if err != nil {
			return nil, err
		}
		n, ok := intValue(r)
		if !ok {
			return nil, returnTypeError("__int__", "int", r)
		}
		return n, nil
	}
	if ops.Has(OpIndex) {
		return Index(x)
	}
	return nil, typeErrorf("int() argument must be a string, a bytes-like object or a real number, not '%.200s'",
		ops.typ.name)
}

func isInstance(v Value) bool {
	_, ok := v.(*Instance)
	return ok
}

func intSpec() *TypeSpec {
	s := NewSpec("int").
		Doc("int(x=0) -> integer\nint(x, base=10) -> integer").
		Adopt(0, int64(0), (*big.Int)(nil)).
		Accept(False, false).
		Flag(Immutable).
		New(intNew).
		Slot(OpRepr, intRepr).
		Slot(OpHash, intHashSlot).
		Slot(OpBool, intBool).
		Slot(OpNeg, intNeg).
		Slot(OpPos, intPos).
		Slot(OpAbs, intAbs).
		Slot(OpInvert, intInvert).
		Slot(OpInt, intPos).
		Slot(OpIndex, intPos).
		Slot(OpFloat, intFloat).
		Method(Method0(NewSignature("bit_length"), func(self Value) (int, error) { return intBitLength(self) })).
		GetSet("real", intPos, nil, nil).
		GetSet("imag", func(Value) (Value, error) { return 0, nil }, nil, nil)
	for _, b := range []struct {
		fwd Slot
		op  intOp
	}{
		{OpAdd, intAdd}, {OpSub, intSub}, {OpMul, intMul}, {OpFloordiv, intFloorDiv},
		{OpMod, intMod}, {OpDivmod, intDivmod}, {OpTruediv, intTrueDiv}, {OpPow, intPow},
		{OpLshift, intLshift}, {OpRshift, intRshift}, {OpAnd, intAnd}, {OpOr, intOr}, {OpXor, intXor},
	} {
		rs, _ := b.fwd.Reflected()
		s.Slot(b.fwd, b.op.forward()).Slot(rs, b.op.reflected())
	}
	for _, c := range []Comparison{LT, LE, EQ, NE, GT, GE} {
		s.Slot(c.Slot(), intComparison(c))
	}
	return s
}
