package vm

import (
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/slotvm/vm/opcode"
)

func mroNames(t *Type) []string {
	var names []string
	for _, c := range t.MRO() {
		names = append(names, c.Name())
	}
	return names
}

func TestMRODiamond(t *testing.T) {
	a := newClass(t, "A", nil, nil)
	b := newClass(t, "B", []*Type{a}, nil)
	c := newClass(t, "C", []*Type{a}, nil)
	d := newClass(t, "D", []*Type{b, c}, nil)

	got := fmt.Sprint(mroNames(d))
	if want := "[D B C A object]"; got != want {
		t.Errorf("MRO = %s, want %s", got, want)
	}
	if !d.IsSubtypeOf(a) || a.IsSubtypeOf(d) {
		t.Error("subtype relation is wrong")
	}
}

func TestMROInconsistent(t *testing.T) {
	a := newClass(t, "A", nil, nil)
	b := newClass(t, "B", []*Type{a}, nil)
	ns := NewDict()
	_, err := NewClass("C", []*Type{a, b}, ns)
	e := wantKind(t, err, TypeError)
	if e.Message != "Cannot create a consistent method resolution order (MRO) for bases A, B" {
		t.Errorf("message = %q", e.Message)
	}

	_, err = NewClass("D", []*Type{a, a}, NewDict())
	wantKind(t, err, TypeError)
}

func TestClassBases(t *testing.T) {
	_, err := NewClass("F", []*Type{BoolType}, NewDict())
	e := wantKind(t, err, TypeError)
	if e.Message != "type 'bool' is not an acceptable base type" {
		t.Errorf("message = %q", e.Message)
	}
	_, err = NewClass("X", []*Type{IntType, StrType}, NewDict())
	e = wantKind(t, err, TypeError)
	if e.Message != "multiple bases have instance lay-out conflict" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestSubclassOfBuiltin(t *testing.T) {
	myInt := newClass(t, "MyInt", []*Type{IntType}, nil)
	n := instantiate(t, myInt, 5)

	if TypeOf(n) != myInt {
		t.Errorf("type = %s", TypeOf(n).Name())
	}
	if ok, _ := IsInstance(n, IntType); !ok {
		t.Error("MyInt(5) is not an int")
	}
	r, err := Add(n, 2)
	if err != nil || r != 7 {
		t.Errorf("MyInt(5) + 2 = %v, %v", r, err)
	}
	if s, _ := Repr(n); s != "5" {
		t.Errorf("repr = %s", s)
	}
	if err := SetAttr(n, "tag", "x"); err != nil {
		t.Errorf("subclass instances carry a dict: %v", err)
	}

	got := fmt.Sprint(mroNames(myInt))
	if want := "[MyInt int object]"; got != want {
		t.Errorf("MRO = %s", got)
	}
}

func TestSubclassIterOverride(t *testing.T) {
	in := New(DefaultConfig())
	iterCode := funcCode("__iter__", []string{"self"}, []Value{None, NewTuple("x", "y")}, []string{"iter"},
		ins(opcode.LoadGlobal, 0<<1|1),
		ins(opcode.LoadConst, 1),
		ins(opcode.Call, 1),
		ins(opcode.ReturnValue),
	)
	myList := newClass(t, "MyList", []*Type{ListType}, map[string]Value{
		"__iter__": in.NewFunction(iterCode, in.NewGlobals("test")),
	})
	v := instantiate(t, myList, NewTuple(1, 2, 3))

	if n, err := Len(v); err != nil || n != 3 {
		t.Fatalf("len = %v, %v", n, err)
	}
	items, err := Collect(v)
	if err != nil || fmt.Sprint(items) != "[x y]" {
		t.Errorf("Collect = %v, %v; want [x y]", items, err)
	}
	var seen []Value
	err = Iterate(v, func(x Value) error {
		seen = append(seen, x)
		return nil
	})
	if err != nil || fmt.Sprint(seen) != "[x y]" {
		t.Errorf("Iterate = %v, %v; want [x y]", seen, err)
	}
	tup, err := Call(TupleType, []Value{v}, nil)
	if err != nil || len(tup.(*Tuple).Items()) != 2 {
		t.Errorf("tuple(MyList) = %v, %v", tup, err)
	}

	// Exact lists keep their own items.
	items, err = Collect(NewList(1, 2))
	if err != nil || fmt.Sprint(items) != "[1 2]" {
		t.Errorf("Collect(list) = %v, %v", items, err)
	}
}

func TestSubclassRegistry(t *testing.T) {
	base := newClass(t, "Base", nil, nil)
	sub := newClass(t, "Sub", []*Type{base}, nil)
	subs := base.Subclasses()
	if len(subs) != 1 || subs[0] != sub {
		t.Errorf("Subclasses = %v", subs)
	}
}

func TestInitArguments(t *testing.T) {
	cls := newClass(t, "Plain", nil, nil)
	_, err := Call(cls, []Value{1}, nil)
	e := wantKind(t, err, TypeError)
	if e.Message != "Plain() takes no arguments" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestConcurrentDispatchAndMutation(t *testing.T) {
	in := New(DefaultConfig())
	first := constMethod(in, "__add__", "first")
	second := constMethod(in, "__add__", "second")
	base := newClass(t, "Base", nil, map[string]Value{"__add__": first})
	sub := newClass(t, "Sub", []*Type{base}, nil)
	obj := instantiate(t, sub)

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < 200; i++ {
			impl := first
			if i%2 == 0 {
				impl = second
			}
			if err := base.SetTypeAttr("__add__", impl); err != nil {
				return err
			}
		}
		return nil
	})
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 500; i++ {
				r, err := Add(obj, i)
				if err != nil {
					return err
				}
				if r != "first" && r != "second" {
					return fmt.Errorf("unexpected result %v", r)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
