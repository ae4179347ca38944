package vm

import (
	"strings"
	"testing"
)

func TestAdapterRoundTrip(t *testing.T) {
	native := func(n int, s string) (bool, error) { return len(s) == n, nil }
	fn := NewBuiltin(Func2(NewSignature("check", "n", "s"), native))

	for _, tt := range []struct {
		n int
		s string
	}{{3, "abc"}, {2, "abc"}, {0, ""}} {
		want, _ := native(tt.n, tt.s)
		got, err := Call(fn, []Value{tt.n, tt.s}, nil)
		if err != nil {
			t.Fatalf("check(%d, %q): %v", tt.n, tt.s, err)
		}
		if got != Bool(want) {
			t.Errorf("check(%d, %q) = %v, want %v", tt.n, tt.s, got, want)
		}
	}
}

func TestAdapterConversionErrors(t *testing.T) {
	fn := NewBuiltin(Func2(NewSignature("check", "n", "s"), func(n int, s string) (bool, error) {
		return len(s) == n, nil
	}))
	tests := []struct {
		args []Value
		want string
	}{
		{[]Value{"x", "y"}, "check() 1st argument must be int, not 'str'"},
		{[]Value{1, 2}, "check() 2nd argument must be str, not 'int'"},
		{[]Value{1}, "check expected 2 arguments, got 1"},
	}
	for _, tt := range tests {
		_, err := Call(fn, tt.args, nil)
		e := wantKind(t, err, TypeError)
		if e.Message != tt.want {
			t.Errorf("message = %q, want %q", e.Message, tt.want)
		}
	}
	_, err := Call(fn, []Value{1, "x"}, []string{"s"})
	e := wantKind(t, err, TypeError)
	if e.Message != "check() takes no keyword arguments" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestAdapterBoolArgumentAcceptsInt(t *testing.T) {
	// An int-like bool converts as an int; a float does not.
	fn := NewBuiltin(Func1(NewSignature("twice", "n"), func(n int) (int, error) { return 2 * n, nil }))
	if r, err := Call(fn, []Value{true}, nil); err != nil || r != 2 {
		t.Errorf("twice(true) = %v, %v", r, err)
	}
	_, err := Call(fn, []Value{1.5}, nil)
	wantKind(t, err, TypeError)
}

func TestAdapterGeneralShape(t *testing.T) {
	sig := NewSignature("join", "parts", "sep").WithKeywords().WithDefaults(",")
	fn := NewBuiltin(Func2(sig, func(parts *List, sep string) (string, error) {
		var ss []string
		for _, p := range parts.items {
			ss = append(ss, p.(string))
		}
		return strings.Join(ss, sep), nil
	}))
	if fn.adapter.Shape() != General {
		t.Fatalf("shape = %s", fn.adapter.Shape())
	}
	parts := NewList("a", "b")
	tests := []struct {
		args    []Value
		kwnames []string
		want    string
	}{
		{[]Value{parts}, nil, "a,b"},
		{[]Value{parts, "-"}, nil, "a-b"},
		{[]Value{parts, "+"}, []string{"sep"}, "a+b"},
		{[]Value{"/", parts}, []string{"sep", "parts"}, "a/b"},
	}
	for _, tt := range tests {
		r, err := Call(fn, tt.args, tt.kwnames)
		if err != nil || r != tt.want {
			t.Errorf("join(%v, kw=%v) = %v, %v; want %s", tt.args, tt.kwnames, r, err, tt.want)
		}
	}

	errs := []struct {
		args    []Value
		kwnames []string
		msg     string
	}{
		{[]Value{parts, parts}, []string{"parts"}, "join() got multiple values for argument 'parts'"},
		{[]Value{parts, "-"}, []string{"glue"}, "join() got an unexpected keyword argument 'glue'"},
	}
	for _, tt := range errs {
		_, err := Call(fn, tt.args, tt.kwnames)
		e := wantKind(t, err, TypeError)
		if e != nil && e.Message != tt.msg {
			t.Errorf("message = %q, want %q", e.Message, tt.msg)
		}
	}
}

func TestAdapterArityMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for mismatched arity")
		}
	}()
	Func1(NewSignature("f", "a", "b"), func(int) (int, error) { return 0, nil })
}

func TestMethodAdapterSelf(t *testing.T) {
	m := Method1(NewSignature("has", "sub"), func(s, sub string) (bool, error) {
		return strings.Contains(s, sub), nil
	})
	r, err := m.Call("haystack", []Value{"st"}, nil)
	if err != nil || r != True {
		t.Errorf("has = %v, %v", r, err)
	}
	_, err = m.Call(5, []Value{"st"}, nil)
	e := wantKind(t, err, TypeError)
	if e.Message != "descriptor 'has' requires a 'str' object but received a 'int'" {
		t.Errorf("message = %q", e.Message)
	}
}
