package codec

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/chazu/slotvm/vm"
	"github.com/chazu/slotvm/vm/opcode"
)

func emit(prog ...[2]int) []uint16 {
	var code []uint16
	for _, p := range prog {
		code = opcode.Emit(code, opcode.Opcode(p[0]), p[1])
	}
	return code
}

// sampleCode returns a module that defines f(a, b) and returns f(3, 4).
func sampleCode() *vm.Code {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	f := &vm.Code{
		Name:      "f",
		QualName:  "f",
		Filename:  "sample",
		FirstLine: 1,
		ArgCount:  2,
		Flags:     vm.CodeOptimized | vm.CodeNewLocals,
		NLocals:   2,
		StackSize: 2,
		VarNames:  []string{"a", "b"},
		Instructions: emit(
			[2]int{int(opcode.LoadFast), 0},
			[2]int{int(opcode.PopJumpIfFalse), 6},
			[2]int{int(opcode.LoadFast), 0},
			[2]int{int(opcode.LoadFast), 1},
			[2]int{int(opcode.BinaryOp), opcode.NbAdd},
			[2]int{int(opcode.ReturnValue), 0},
			[2]int{int(opcode.LoadFast), 1},
			[2]int{int(opcode.ReturnValue), 0},
		),
	}
	return &vm.Code{
		Name:      "<module>",
		Filename:  "sample",
		StackSize: 4,
		Consts:    []vm.Value{f, 3, 4, vm.None, huge, vm.NewTuple(1, "a", 2.5, vm.True)},
		Names:     []string{"f"},
		Instructions: emit(
			[2]int{int(opcode.LoadConst), 0},
			[2]int{int(opcode.MakeFunction), 0},
			[2]int{int(opcode.StoreName), 0},
			[2]int{int(opcode.PushNull), 0},
			[2]int{int(opcode.LoadName), 0},
			[2]int{int(opcode.LoadConst), 1},
			[2]int{int(opcode.LoadConst), 2},
			[2]int{int(opcode.Call), 2},
			[2]int{int(opcode.ReturnValue), 0},
		),
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	c := sampleCode()
	data, err := Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Name != c.Name || got.StackSize != c.StackSize || len(got.Consts) != len(c.Consts) {
		t.Fatalf("header mismatch: %+v", got)
	}
	f, ok := got.Consts[0].(*vm.Code)
	if !ok || f.Name != "f" || f.Flags != c.Consts[0].(*vm.Code).Flags {
		t.Fatalf("nested code = %#v", got.Consts[0])
	}
	if n, ok := got.Consts[4].(*big.Int); !ok || n.Cmp(c.Consts[4].(*big.Int)) != 0 {
		t.Errorf("big constant = %v", got.Consts[4])
	}
	if s, _ := vm.Repr(got.Consts[5]); s != "(1, 'a', 2.5, True)" {
		t.Errorf("tuple constant = %s", s)
	}
	if !vm.IsNone(got.Consts[3]) {
		t.Errorf("None constant = %v", got.Consts[3])
	}
	if v := run(t, got); v != 7 {
		t.Errorf("result = %v, want 7", v)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	a, err := Marshal(sampleCode())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(sampleCode())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal code objects encoded differently")
	}
}

func TestMarshalUnsupportedConstant(t *testing.T) {
	c := sampleCode()
	c.Consts = append(c.Consts, vm.NewList())
	if _, err := Marshal(c); err == nil {
		t.Error("expected error for a list constant")
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	corrupt := func(mutate func(c *vm.Code)) []byte {
		c := sampleCode()
		mutate(c)
		data, err := Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte{0xff, 0xfe}},
		{"empty", nil},
		{"bad opcode", corrupt(func(c *vm.Code) { c.Instructions[0] = 0xfe00 })},
		{"const out of range", corrupt(func(c *vm.Code) {
			c.Instructions[0] = opcode.Word(opcode.LoadConst, 200)
		})},
		{"name out of range", corrupt(func(c *vm.Code) {
			c.Instructions[2] = opcode.Word(opcode.StoreName, 9)
		})},
		{"stack too small", corrupt(func(c *vm.Code) { c.StackSize = 1 })},
		{"nested stack too small", corrupt(func(c *vm.Code) { c.Consts[0].(*vm.Code).StackSize = 1 })},
		{"jump out of range", corrupt(func(c *vm.Code) {
			c.Consts[0].(*vm.Code).Instructions[1] = opcode.Word(opcode.PopJumpIfFalse, 60)
		})},
	}
	for _, tt := range tests {
		_, err := Unmarshal(tt.data)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: err = %v, want ErrMalformed", tt.name, err)
		}
	}
}

func TestUnmarshalVersion(t *testing.T) {
	w, err := encodeCode(sampleCode())
	if err != nil {
		t.Fatal(err)
	}
	data, err := cborEncMode.Marshal(&envelope{Version: Version + 1, Code: *w})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
