package vm

import (
	"testing"

	"github.com/chazu/slotvm/vm/opcode"
)

func constGetter(in *Interpreter, result Value) *Function {
	code := funcCode("get", []string{"self"}, []Value{None, result}, nil,
		ins(opcode.LoadConst, 1),
		ins(opcode.ReturnValue),
	)
	return in.NewFunction(code, in.NewGlobals("test"))
}

func TestDataDescriptorBeatsInstanceDict(t *testing.T) {
	in := New(DefaultConfig())
	prop, err := Call(PropertyType, []Value{constGetter(in, "from property")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cls := newClass(t, "C", nil, map[string]Value{"x": prop})
	obj := instantiate(t, cls)
	obj.(*Instance).Dict().SetStr("x", "from dict")

	v, err := GetAttr(obj, "x")
	if err != nil || v != "from property" {
		t.Errorf("obj.x = %v, %v; want from property", v, err)
	}
	err = SetAttr(obj, "x", 1)
	e := wantKind(t, err, AttributeError)
	if e.Message != "can't set attribute" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestInstanceDictBeatsNonDataDescriptor(t *testing.T) {
	in := New(DefaultConfig())
	cls := newClass(t, "C", nil, map[string]Value{
		"m": constMethod(in, "m", "method"),
	})
	obj := instantiate(t, cls)

	m, err := GetAttr(obj, "m")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*BoundMethod); !ok {
		t.Fatalf("obj.m = %T, want *BoundMethod", m)
	}
	if r, err := Call(m, []Value{1}, nil); err != nil || r != "method" {
		t.Errorf("obj.m(1) = %v, %v", r, err)
	}

	if err := SetAttr(obj, "m", "shadow"); err != nil {
		t.Fatal(err)
	}
	if v, err := GetAttr(obj, "m"); err != nil || v != "shadow" {
		t.Errorf("shadowed obj.m = %v, %v", v, err)
	}
	if err := DelAttr(obj, "m"); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetAttr(obj, "m"); !IsCallable(v) {
		t.Errorf("after del, obj.m = %v", v)
	}
}

func TestSlotsMembers(t *testing.T) {
	cls := newClass(t, "P", nil, map[string]Value{"__slots__": NewTuple("a")})
	obj := instantiate(t, cls)
	if obj.(*Instance).Dict() != nil {
		t.Fatal("instance of a class with __slots__ has a dict")
	}

	_, err := GetAttr(obj, "a")
	wantKind(t, err, AttributeError)
	if err := SetAttr(obj, "a", 7); err != nil {
		t.Fatal(err)
	}
	if v, err := GetAttr(obj, "a"); err != nil || v != 7 {
		t.Errorf("obj.a = %v, %v", v, err)
	}
	err = SetAttr(obj, "b", 1)
	e := wantKind(t, err, AttributeError)
	if e.Message != "'P' object has no attribute 'b'" {
		t.Errorf("message = %q", e.Message)
	}
	if err := DelAttr(obj, "a"); err != nil {
		t.Fatal(err)
	}
	_, err = GetAttr(obj, "a")
	wantKind(t, err, AttributeError)

	d, _ := GetAttr(cls, "a")
	if s, _ := Repr(d); s != "<member 'a' of 'P' objects>" {
		t.Errorf("repr = %s", s)
	}
}

func TestGetSetDescriptors(t *testing.T) {
	cls := newClass(t, "C", nil, nil)
	obj := instantiate(t, cls)
	if v, err := GetAttr(obj, "__class__"); err != nil || v != cls {
		t.Errorf("obj.__class__ = %v, %v", v, err)
	}
	if v, err := GetAttr(5, "__class__"); err != nil || v != IntType {
		t.Errorf("(5).__class__ = %v, %v", v, err)
	}
	if v, err := GetAttr(true, "__class__"); err != nil || v != BoolType {
		t.Errorf("true.__class__ = %v, %v", v, err)
	}
	if v, err := GetAttr(5, "real"); err != nil || v != 5 {
		t.Errorf("(5).real = %v, %v", v, err)
	}
	err := SetAttr(5, "real", 1)
	wantKind(t, err, AttributeError)

	d, err := GetAttr(obj, "__dict__")
	if err != nil {
		t.Fatal(err)
	}
	if d != obj.(*Instance).Dict() {
		t.Error("obj.__dict__ is not the instance dict")
	}
}

func TestMethodDescriptors(t *testing.T) {
	upper, err := GetAttr("abc", "upper")
	if err != nil {
		t.Fatal(err)
	}
	if r, err := Call(upper, nil, nil); err != nil || r != "ABC" {
		t.Errorf("'abc'.upper() = %v, %v", r, err)
	}

	descr, err := GetAttr(StrType, "upper")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := descr.(*MethodDescr); !ok {
		t.Fatalf("str.upper = %T", descr)
	}
	if r, err := Call(descr, []Value{"x"}, nil); err != nil || r != "X" {
		t.Errorf("str.upper('x') = %v, %v", r, err)
	}
	_, err = Call(descr, []Value{5}, nil)
	e := wantKind(t, err, TypeError)
	if e.Message != "descriptor 'upper' for 'str' objects doesn't apply to a 'int' object" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestSlotWrappers(t *testing.T) {
	add, err := GetAttr(IntType, "__add__")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := add.(*WrapperDescr); !ok {
		t.Fatalf("int.__add__ = %T", add)
	}
	if r, err := Call(add, []Value{2, 3}, nil); err != nil || r != 5 {
		t.Errorf("int.__add__(2, 3) = %v, %v", r, err)
	}
	bound, err := GetAttr(2, "__add__")
	if err != nil {
		t.Fatal(err)
	}
	if r, err := Call(bound, []Value{40}, nil); err != nil || r != 42 {
		t.Errorf("(2).__add__(40) = %v, %v", r, err)
	}
	if r, err := Call(bound, []Value{"x"}, nil); err != nil || r != NotImplemented {
		t.Errorf("(2).__add__('x') = %v, %v", r, err)
	}
}

func TestDescriptorsBindNoneInstance(t *testing.T) {
	cls, err := GetAttr(None, "__class__")
	if err != nil || cls != NoneTypeType {
		t.Errorf("None.__class__ = %v, %v", cls, err)
	}
	rep, err := GetAttr(None, "__repr__")
	if err != nil {
		t.Fatal(err)
	}
	if r, err := Call(rep, nil, nil); err != nil || r != "None" {
		t.Errorf("None.__repr__() = %v, %v", r, err)
	}

	// __get__(None, type) from code still means class access.
	add, err := GetAttr(IntType, "__add__")
	if err != nil {
		t.Fatal(err)
	}
	get, err := GetAttr(add, "__get__")
	if err != nil {
		t.Fatal(err)
	}
	if r, err := Call(get, []Value{None, IntType}, nil); err != nil || r != add {
		t.Errorf("int.__add__.__get__(None, int) = %v, %v", r, err)
	}
}

func TestSetAttrWithoutInstanceDict(t *testing.T) {
	obj, err := Call(ObjectType, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := wantKind(t, SetAttr(obj, "x", 1), AttributeError)
	if e.Message != "'object' object has no attribute 'x'" {
		t.Errorf("message = %q", e.Message)
	}
	e = wantKind(t, SetAttr(obj, "__class__", 1), TypeError)
	if e.Message != "__class__ assignment is not supported" {
		t.Errorf("message = %q", e.Message)
	}

	e = wantKind(t, SetAttr(IntType, "x", 1), TypeError)
	if e.Message != "cannot set 'x' attribute of immutable type 'int'" {
		t.Errorf("message = %q", e.Message)
	}
}
