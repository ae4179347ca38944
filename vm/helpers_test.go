package vm

import (
	"errors"
	"testing"

	"github.com/chazu/slotvm/vm/opcode"
)

// instr is one instruction of a hand-assembled test program.
type instr struct {
	op  opcode.Opcode
	arg int
}

func ins(op opcode.Opcode, arg ...int) instr {
	if len(arg) > 0 {
		return instr{op, arg[0]}
	}
	return instr{op: op}
}

func assemble(prog ...instr) []uint16 {
	var code []uint16
	for _, i := range prog {
		code = opcode.Emit(code, i.op, i.arg)
	}
	return code
}

// funcCode builds an optimized function body whose locals are params
// followed by extra.
func funcCode(name string, params []string, consts []Value, names []string, prog ...instr) *Code {
	return &Code{
		Name:         name,
		ArgCount:     len(params),
		Flags:        CodeOptimized | CodeNewLocals,
		NLocals:      len(params),
		StackSize:    16,
		VarNames:     params,
		Consts:       consts,
		Names:        names,
		Instructions: assemble(prog...),
	}
}

// moduleCode builds a module body resolving names through a dict.
func moduleCode(consts []Value, names []string, prog ...instr) *Code {
	return &Code{
		Name:         "<module>",
		StackSize:    16,
		Consts:       consts,
		Names:        names,
		Instructions: assemble(prog...),
	}
}

// constMethod builds a function (self, other) returning result.
func constMethod(in *Interpreter, name string, result Value) *Function {
	code := funcCode(name, []string{"self", "other"}, []Value{None, result}, nil,
		ins(opcode.LoadConst, 1),
		ins(opcode.ReturnValue),
	)
	return in.NewFunction(code, in.NewGlobals("test"))
}

func newClass(t *testing.T, name string, bases []*Type, attrs map[string]Value) *Type {
	t.Helper()
	ns := NewDict()
	ns.SetStr("__module__", "test")
	for k, v := range attrs {
		ns.SetStr(k, v)
	}
	cls, err := NewClass(name, bases, ns)
	if err != nil {
		t.Fatalf("NewClass(%s): %v", name, err)
	}
	return cls
}

func instantiate(t *testing.T, cls *Type, args ...Value) Value {
	t.Helper()
	obj, err := Call(cls, args, nil)
	if err != nil {
		t.Fatalf("%s(): %v", cls.Name(), err)
	}
	return obj
}

func wantKind(t *testing.T, err error, kind Kind) *Exception {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got no error", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
	e, _ := AsException(err)
	return e
}
