package codec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/slotvm/vm"
	"github.com/chazu/slotvm/vm/opcode"
)

const sumYAML = `
name: sum
filename: sum.yaml
consts: [0, 5, null]
names: [total]
instructions:
  - LOAD_CONST 0      # total = 0
  - STORE_NAME 0
  - "loop:"
  - LOAD_NAME 0
  - LOAD_CONST 1
  - BINARY_OP +=
  - STORE_NAME 0
  - LOAD_NAME 0
  - LOAD_CONST 1
  - LOAD_CONST 1
  - BINARY_OP *
  - COMPARE_OP <
  - POP_JUMP_IF_TRUE loop
  - LOAD_NAME 0
  - RETURN_VALUE
`

func run(t *testing.T, c *vm.Code) vm.Value {
	t.Helper()
	in := vm.New(vm.DefaultConfig())
	v, err := in.Exec(c, in.NewGlobals("__main__"))
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	return v
}

func TestParseListingYAML(t *testing.T) {
	c, err := ParseListing([]byte(sumYAML), FormatYAML)
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if c.Name != "sum" || c.Filename != "sum.yaml" {
		t.Errorf("name/filename = %q/%q", c.Name, c.Filename)
	}
	if c.StackSize != 3 {
		t.Errorf("StackSize = %d, want 3", c.StackSize)
	}
	if got := run(t, c); got != 25 {
		t.Errorf("result = %v, want 25", got)
	}
}

func TestParseListingTOML(t *testing.T) {
	src := `
name = "<module>"
consts = [{code = "add"}, 40, 2, {none = true}]
names = ["add"]
instructions = [
  "LOAD_CONST 0",
  "MAKE_FUNCTION 0",
  "STORE_NAME 0",
  "PUSH_NULL",
  "LOAD_NAME 0",
  "LOAD_CONST 1",
  "LOAD_CONST 2",
  "CALL 2",
  "RETURN_VALUE",
]

[functions.add]
argcount = 2
varnames = ["a", "b"]
instructions = ["LOAD_FAST 0", "LOAD_FAST 1", "BINARY_OP +", "RETURN_VALUE"]
`
	c, err := ParseListing([]byte(src), FormatTOML)
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	fn, ok := c.Consts[0].(*vm.Code)
	if !ok {
		t.Fatalf("const 0 = %T", c.Consts[0])
	}
	if fn.Name != "add" || fn.Flags != vm.CodeOptimized|vm.CodeNewLocals || fn.NLocals != 2 {
		t.Errorf("function header = %s %v %d", fn.Name, fn.Flags, fn.NLocals)
	}
	if !vm.IsNone(c.Consts[3]) {
		t.Errorf("const 3 = %v, want None", c.Consts[3])
	}
	if got := run(t, c); got != 42 {
		t.Errorf("result = %v, want 42", got)
	}
}

func TestAssembleExtendedArgLabels(t *testing.T) {
	// 300 NOPs push the label past 255, so the jump needs a prefix and
	// every later position shifts by one.
	lines := []string{"LOAD_CONST 0", "POP_JUMP_IF_FALSE end"}
	for i := 0; i < 300; i++ {
		lines = append(lines, "NOP")
	}
	lines = append(lines, "end:", "LOAD_CONST 0", "RETURN_VALUE")

	code, err := assembleInstructions(lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 1+2+300+2 {
		t.Fatalf("len = %d", len(code))
	}
	op, hi := opcode.Split(code[1])
	_, lo := opcode.Split(code[2])
	if op != opcode.ExtendedArg {
		t.Fatalf("expected EXTENDED_ARG, got %s", op)
	}
	if target := int(hi)<<8 | int(lo); target != 303 {
		t.Errorf("target = %d, want 303", target)
	}
}

func TestAssembleRelativeJumps(t *testing.T) {
	code, err := assembleInstructions([]string{
		"top:",
		"NOP",
		"JUMP_FORWARD skip",
		"NOP",
		"skip:",
		"JUMP_BACKWARD top",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, arg := opcode.Split(code[1]); arg != 1 {
		t.Errorf("JUMP_FORWARD arg = %d, want 1", arg)
	}
	if _, arg := opcode.Split(code[3]); arg != 4 {
		t.Errorf("JUMP_BACKWARD arg = %d, want 4", arg)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		lines []string
		want  string
	}{
		{[]string{"FROB 1"}, "unknown instruction"},
		{[]string{"POP_JUMP_IF_TRUE nowhere"}, "undefined label"},
		{[]string{"x:", "x:", "NOP"}, "duplicate label"},
		{[]string{"RETURN_VALUE 3"}, "takes no argument"},
		{[]string{"BINARY_OP ??"}, "bad argument"},
		{[]string{"EXTENDED_ARG 1"}, "emitted automatically"},
		{[]string{"JUMP_FORWARD"}, "needs a target"},
		{[]string{"top:", "JUMP_FORWARD top"}, "cannot reach"},
	}
	for _, tt := range tests {
		_, err := assembleInstructions(tt.lines)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%v: err = %v, want %q", tt.lines, err, tt.want)
		}
	}
}

func TestListingRoundTrip(t *testing.T) {
	for _, format := range []string{FormatYAML, FormatTOML} {
		t.Run(format, func(t *testing.T) {
			c := sampleCode()
			data, err := FormatListing(c, format)
			if err != nil {
				t.Fatalf("FormatListing: %v", err)
			}
			back, err := ParseListing(data, format)
			if err != nil {
				t.Fatalf("ParseListing: %v\n%s", err, data)
			}
			a, _ := Marshal(c)
			b, _ := Marshal(back)
			if string(a) != string(b) {
				t.Errorf("round trip changed the code object:\n%s", data)
			}
			if got := run(t, back); got != 7 {
				t.Errorf("result = %v, want 7", got)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	c := sampleCode()

	data, err := FormatListing(c, FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "prog.yaml")
	if err := os.WriteFile(yamlPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	wire, err := Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	cborPath := filepath.Join(dir, "prog.cbor")
	if err := os.WriteFile(cborPath, wire, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{yamlPath, cborPath} {
		got, err := LoadFile(p)
		if err != nil {
			t.Fatalf("LoadFile(%s): %v", p, err)
		}
		if v := run(t, got); v != 7 {
			t.Errorf("%s: result = %v", p, v)
		}
	}

	bad := filepath.Join(dir, "bad.cbor")
	os.WriteFile(bad, []byte{0xff, 0x00}, 0o644)
	if _, err := LoadFile(bad); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
