package vm

import (
	"math/big"
	"testing"

	"github.com/chazu/slotvm/vm/opcode"
)

// ---------------------------------------------------------------------------
// Binary operations
// ---------------------------------------------------------------------------

func TestBinaryOpSubtypePriority(t *testing.T) {
	in := New(DefaultConfig())
	base := newClass(t, "Base", nil, map[string]Value{
		"__add__":  constMethod(in, "__add__", "base add"),
		"__radd__": constMethod(in, "__radd__", "base radd"),
	})
	derived := newClass(t, "Derived", []*Type{base}, map[string]Value{
		"__radd__": constMethod(in, "__radd__", "derived radd"),
	})
	b, d := instantiate(t, base), instantiate(t, derived)

	r, err := Add(b, d)
	if err != nil || r != "derived radd" {
		t.Errorf("Base() + Derived() = %v, %v; want derived radd", r, err)
	}
	r, err = Add(d, b)
	if err != nil || r != "base add" {
		t.Errorf("Derived() + Base() = %v, %v; want base add", r, err)
	}
}

func TestBinaryOpDeclinedReflected(t *testing.T) {
	in := New(DefaultConfig())
	base := newClass(t, "Base", nil, map[string]Value{
		"__add__": constMethod(in, "__add__", "base add"),
	})
	derived := newClass(t, "Derived", []*Type{base}, map[string]Value{
		"__radd__": constMethod(in, "__radd__", NotImplemented),
	})
	r, err := Add(instantiate(t, base), instantiate(t, derived))
	if err != nil || r != "base add" {
		t.Errorf("result = %v, %v; want base add", r, err)
	}
}

func TestBinaryOpUnsupported(t *testing.T) {
	_, err := Add(1, "x")
	e := wantKind(t, err, TypeError)
	if e.Message != "unsupported operand type(s) for +: 'int' and 'str'" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestBinaryOpBuiltins(t *testing.T) {
	huge, _ := new(big.Int).SetString("100000000000000000000", 10)
	tests := []struct {
		name string
		op   func(v, w Value) (Value, error)
		v, w Value
		want string
	}{
		{"int add", Add, 5, 7, "12"},
		{"int overflow", Multiply, 1 << 62, 4, "18446744073709551616"},
		{"big sub", Subtract, huge, huge, "0"},
		{"floor div", FloorDivide, -7, 2, "-4"},
		{"mod", Remainder, -7, 2, "1"},
		{"true div", TrueDivide, 7, 2, "3.5"},
		{"mixed", Add, 1, 0.5, "1.5"},
		{"bool add", Add, True, true, "2"},
		{"str concat", Add, "ab", "cd", "'abcd'"},
		{"str repeat", Multiply, "ab", 3, "'ababab'"},
		{"tuple concat", Add, NewTuple(1), NewTuple(2), "(1, 2)"},
		{"list repeat", Multiply, NewList(0), 2, "[0, 0]"},
		{"pow", Power, 2, 100, "1267650600228229401496703205376"},
	}
	for _, tt := range tests {
		r, err := tt.op(tt.v, tt.w)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if s, _ := Repr(r); s != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, s, tt.want)
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	for _, op := range []func(v, w Value) (Value, error){TrueDivide, FloorDivide, Remainder} {
		_, err := op(1, 0)
		wantKind(t, err, ZeroDivisionError)
	}
	_, err := TrueDivide(1.0, 0.0)
	wantKind(t, err, ZeroDivisionError)
}

// Two representations of bool meet an int: the bool-specific handles
// serve both and produce a bool only when both operands are bools.
func TestBoolRepresentationsBitwise(t *testing.T) {
	tests := []struct {
		v, w Value
		want Value
	}{
		{True, true, True},
		{true, False, False},
		{false, true, False},
		{True, false, False},
		{True, 3, 1},
		{false, 3, 0},
		{3, true, 1},
	}
	for _, tt := range tests {
		r, err := And(tt.v, tt.w)
		if err != nil {
			t.Errorf("%#v & %#v: %v", tt.v, tt.w, err)
			continue
		}
		if r != tt.want {
			t.Errorf("%#v & %#v = %#v, want %#v", tt.v, tt.w, r, tt.want)
		}
		if TypeOf(r) != TypeOf(tt.want) {
			t.Errorf("%#v & %#v has type %s, want %s", tt.v, tt.w, TypeOf(r).Name(), TypeOf(tt.want).Name())
		}
	}
	if TypeOf(true) != BoolType || TypeOf(False) != BoolType {
		t.Error("both representations must map to bool")
	}
	if OpsOf(true) == OpsOf(True) {
		t.Error("each representation has its own operations")
	}
}

// ---------------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------------

func TestCompareIdentityFallback(t *testing.T) {
	a := instantiate(t, newClass(t, "A", nil, nil))
	b := instantiate(t, newClass(t, "B", nil, nil))

	pairs := [][2]Value{{a, b}, {a, a}, {1, "x"}, {None, a}}
	for _, p := range pairs {
		v, w := p[0], p[1]
		eq, err := RichCompare(v, w, EQ)
		if err != nil || eq != Bool(Is(v, w)) {
			t.Errorf("%s == %s: %v, %v", safeRepr(v), safeRepr(w), eq, err)
		}
		ne, err := RichCompare(v, w, NE)
		if err != nil || ne != Bool(!Is(v, w)) {
			t.Errorf("%s != %s: %v, %v", safeRepr(v), safeRepr(w), ne, err)
		}
	}

	_, err := RichCompare(a, b, LT)
	e := wantKind(t, err, TypeError)
	if e.Message != "'<' not supported between instances of 'A' and 'B'" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestCompareSubtypePriority(t *testing.T) {
	in := New(DefaultConfig())
	base := newClass(t, "Base", nil, map[string]Value{
		"__lt__": constMethod(in, "__lt__", "base lt"),
	})
	derived := newClass(t, "Derived", []*Type{base}, map[string]Value{
		"__gt__": constMethod(in, "__gt__", "derived gt"),
	})
	r, err := RichCompare(instantiate(t, base), instantiate(t, derived), LT)
	if err != nil || r != "derived gt" {
		t.Errorf("Base() < Derived() = %v, %v; want derived gt", r, err)
	}
}

func TestCompareBuiltins(t *testing.T) {
	huge, _ := new(big.Int).SetString("100000000000000000000", 10)
	tests := []struct {
		v, w Value
		c    Comparison
		want bool
	}{
		{1, 2, LT, true},
		{2, 2.0, EQ, true},
		{huge, 1e20, EQ, true},
		{huge, 1, GT, true},
		{"abc", "abd", LT, true},
		{NewTuple(1, 2), NewTuple(1, 3), LT, true},
		{NewList(1, 2), NewList(1, 2), EQ, true},
		{True, 1, EQ, true},
		{false, 0.0, EQ, true},
	}
	for _, tt := range tests {
		got, err := RichCompareBool(tt.v, tt.w, tt.c)
		if err != nil || got != tt.want {
			t.Errorf("%s %s %s = %v, %v; want %v", safeRepr(tt.v), tt.c, safeRepr(tt.w), got, err, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Namespace mutation
// ---------------------------------------------------------------------------

func TestNamespaceMutationUpdatesSubtypes(t *testing.T) {
	in := New(DefaultConfig())
	base := newClass(t, "Base", nil, nil)
	derived := newClass(t, "Derived", []*Type{base}, nil)
	d := instantiate(t, derived)

	if _, err := Add(d, 1); err == nil {
		t.Fatal("expected TypeError before __add__ is defined")
	}
	if err := base.SetTypeAttr("__add__", constMethod(in, "__add__", "added")); err != nil {
		t.Fatal(err)
	}
	if r, err := Add(d, 1); err != nil || r != "added" {
		t.Errorf("after set: %v, %v", r, err)
	}
	fresh := instantiate(t, derived)
	if r, err := Add(fresh, 1); err != nil || r != "added" {
		t.Errorf("new instance after set: %v, %v", r, err)
	}
	if err := base.DelTypeAttr("__add__"); err != nil {
		t.Fatal(err)
	}
	if _, err := Add(d, 1); err == nil {
		t.Error("expected TypeError after __add__ is removed")
	}
}

func TestNamespaceMutationInvalidatesInlineCache(t *testing.T) {
	in := New(DefaultConfig())
	cls := newClass(t, "C", nil, map[string]Value{
		"__add__": constMethod(in, "__add__", "first"),
	})
	sub := newClass(t, "Sub", []*Type{cls}, nil)
	obj := instantiate(t, sub)

	globals := in.NewGlobals("test")
	globals.SetStr("obj", obj)
	code := moduleCode([]Value{1}, []string{"obj"},
		ins(opcode.LoadName, 0),
		ins(opcode.LoadConst, 0),
		ins(opcode.BinaryOp, opcode.NbAdd),
		ins(opcode.ReturnValue),
	)
	run := func() Value {
		v, err := in.Exec(code, globals)
		if err != nil {
			t.Fatalf("Exec: %v", err)
		}
		return v
	}

	if v := run(); v != "first" {
		t.Fatalf("first run = %v", v)
	}
	if v := run(); v != "first" {
		t.Fatalf("cached run = %v", v)
	}
	if err := cls.SetTypeAttr("__add__", constMethod(in, "__add__", "second")); err != nil {
		t.Fatal(err)
	}
	if v := run(); v != "second" {
		t.Errorf("after mutation = %v, want second", v)
	}
}

func TestImmutableBuiltinType(t *testing.T) {
	err := IntType.SetTypeAttr("__add__", None)
	wantKind(t, err, TypeError)
	err = SetAttr(IntType, "x", 1)
	wantKind(t, err, TypeError)
}

// ---------------------------------------------------------------------------
// Unary operations, membership and identity
// ---------------------------------------------------------------------------

func TestUnaryOpBadOperand(t *testing.T) {
	tests := []struct {
		name string
		fn   func(Value) (Value, error)
		v    Value
		msg  string
	}{
		{"neg str", Negative, "x", "bad operand type for unary -: 'str'"},
		{"pos list", Positive, NewList(), "bad operand type for unary +: 'list'"},
		{"invert float", Invert, 1.5, "bad operand type for unary ~: 'float'"},
		{"neg None", Negative, None, "bad operand type for unary -: 'NoneType'"},
	}
	for _, tt := range tests {
		_, err := tt.fn(tt.v)
		e := wantKind(t, err, TypeError)
		if e.Message != tt.msg {
			t.Errorf("%s: message = %q, want %q", tt.name, e.Message, tt.msg)
		}
	}
	if r, err := Negative(5); err != nil || r != -5 {
		t.Errorf("-5 = %v, %v", r, err)
	}
}

func TestMembershipAndIdentity(t *testing.T) {
	in := New(DefaultConfig())
	alwaysEqual := newClass(t, "AlwaysEqual", nil, map[string]Value{
		"__eq__": constMethod(in, "__eq__", True),
	})
	a, b := instantiate(t, alwaysEqual), instantiate(t, alwaysEqual)
	list := NewList(1, 2)

	tests := []struct {
		name string
		v, w Value
		c    Comparison
		want Value
		msg  string
	}{
		{"in list", 2, list, In, True, ""},
		{"not in list", 2, list, NotIn, False, ""},
		{"in str", "b", "abc", In, True, ""},
		{"in int", 1, 5, In, nil, "'int' object is not a container"},
		{"not in None", 1, None, NotIn, nil, "'NoneType' object is not a container"},
		{"in instance", 1, a, In, nil, "'AlwaysEqual' object is not a container"},
		{"is same", a, a, IsSame, True, ""},
		{"is other", a, b, IsSame, False, ""},
		{"is not other", a, b, IsNot, True, ""},
		{"is not same", a, a, IsNot, False, ""},
		{"is None", None, None, IsSame, True, ""},
	}
	for _, tt := range tests {
		r, err := RichCompare(tt.v, tt.w, tt.c)
		if tt.msg != "" {
			e := wantKind(t, err, TypeError)
			if e.Message != tt.msg {
				t.Errorf("%s: message = %q, want %q", tt.name, e.Message, tt.msg)
			}
			continue
		}
		if err != nil || r != tt.want {
			t.Errorf("%s: %v, %v; want %v", tt.name, r, err, tt.want)
		}
	}

	// __eq__ says equal, identity still tells them apart.
	if eq, err := RichCompare(a, b, EQ); err != nil || eq != True {
		t.Errorf("a == b = %v, %v", eq, err)
	}
}

func TestEvalIsAndContainsOps(t *testing.T) {
	in := New(DefaultConfig())
	tests := []struct {
		name string
		v, w Value
		op   opcode.Opcode
		arg  int
		want Value
	}{
		{"is", None, None, opcode.IsOp, 0, True},
		{"is not", None, None, opcode.IsOp, 1, False},
		{"is not distinct", 1, "1", opcode.IsOp, 1, True},
		{"in", 3, NewTuple(1, 3), opcode.ContainsOp, 0, True},
		{"not in", 3, NewTuple(1, 3), opcode.ContainsOp, 1, False},
	}
	for _, tt := range tests {
		code := moduleCode([]Value{tt.v, tt.w}, nil,
			ins(opcode.LoadConst, 0),
			ins(opcode.LoadConst, 1),
			ins(tt.op, tt.arg),
			ins(opcode.ReturnValue),
		)
		r, err := in.Exec(code, in.NewGlobals("__main__"))
		if err != nil || r != tt.want {
			t.Errorf("%s: %v, %v; want %v", tt.name, r, err, tt.want)
		}
	}

	code := moduleCode([]Value{1, 2}, nil,
		ins(opcode.LoadConst, 0),
		ins(opcode.LoadConst, 1),
		ins(opcode.ContainsOp, 0),
		ins(opcode.ReturnValue),
	)
	_, err := in.Exec(code, in.NewGlobals("__main__"))
	e := wantKind(t, err, TypeError)
	if e.Message != "'int' object is not a container" {
		t.Errorf("message = %q", e.Message)
	}
}
