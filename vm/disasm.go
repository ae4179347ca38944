package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/slotvm/vm/opcode"
)

// Disassemble returns a human-readable listing of the code and of every
// code object among its constants.
func (c *Code) Disassemble() string {
	var sb strings.Builder
	c.disassemble(&sb)
	return sb.String()
}

func (c *Code) disassemble(sb *strings.Builder) {
	fmt.Fprintf(sb, "; === %s ===\n", c.displayName())
	if c.Filename != "" {
		fmt.Fprintf(sb, "; File: %s, line %d\n", c.Filename, c.FirstLine)
	}
	fmt.Fprintf(sb, "; Flags: 0x%04X", uint32(c.Flags))
	for _, f := range []struct {
		flag CodeFlags
		name string
	}{
		{CodeOptimized, "OPTIMIZED"},
		{CodeNewLocals, "NEWLOCALS"},
		{CodeVarArgs, "VARARGS"},
		{CodeVarKwargs, "VARKEYWORDS"},
		{CodeNested, "NESTED"},
	} {
		if c.Flags&f.flag != 0 {
			fmt.Fprintf(sb, " [%s]", f.name)
		}
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "; Arguments: %d (positional-only %d, keyword-only %d)\n",
		c.ArgCount, c.PosOnlyArgCount, c.KwOnlyArgCount)
	fmt.Fprintf(sb, "; Locals: %d slots, stack %d\n", c.NLocals, c.StackSize)

	writeNames := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(sb, "; %s:\n", title)
		for i, n := range names {
			fmt.Fprintf(sb, ";   [%3d] %s\n", i, n)
		}
	}
	if len(c.Consts) > 0 {
		sb.WriteString("; Constants:\n")
		for i, k := range c.Consts {
			fmt.Fprintf(sb, ";   [%3d] %s\n", i, constDisplay(k))
		}
	}
	writeNames("Names", c.Names)
	writeNames("Variables", c.VarNames)
	writeNames("Cell variables", c.CellVars)
	writeNames("Free variables", c.FreeVars)

	sb.WriteString("\n; Code:\n")
	ext := 0
	for pc, w := range c.Instructions {
		op, b := opcode.Split(w)
		arg := ext | int(b)
		if op == opcode.ExtendedArg {
			ext = arg << 8
		} else {
			ext = 0
		}
		fmt.Fprintf(sb, "%04d  %s\n", pc, c.disassembleInstruction(pc, op, arg))
	}

	for _, k := range c.Consts {
		if inner, ok := k.(*Code); ok {
			sb.WriteString("\n")
			inner.disassemble(sb)
		}
	}
}

// disassembleInstruction renders one instruction with its argument
// resolved against the code's tables.
func (c *Code) disassembleInstruction(pc int, op opcode.Opcode, arg int) string {
	if !op.Valid() {
		return fmt.Sprintf("<invalid %d> %d", byte(op), arg)
	}
	info := op.Info()
	if !info.HasArg {
		return info.Name
	}
	name := func(names []string, i int) string {
		if i >= 0 && i < len(names) {
			return names[i]
		}
		return "?"
	}
	var note string
	switch op {
	case opcode.LoadConst, opcode.KwNames:
		if arg < len(c.Consts) {
			note = constDisplay(c.Consts[arg])
		}
	case opcode.LoadName, opcode.StoreName, opcode.DeleteName, opcode.LoadAttr, opcode.StoreAttr,
		opcode.DeleteAttr, opcode.StoreGlobal, opcode.DeleteGlobal, opcode.LoadMethod:
		note = name(c.Names, arg)
	case opcode.LoadGlobal:
		note = name(c.Names, arg>>1)
		if arg&1 != 0 {
			note = "NULL + " + note
		}
	case opcode.LoadFast, opcode.StoreFast, opcode.DeleteFast:
		note = name(c.VarNames, arg)
	case opcode.LoadClosure, opcode.LoadDeref, opcode.StoreDeref, opcode.DeleteDeref:
		note = c.derefName(arg)
	case opcode.BinaryOp:
		if arg < len(opcode.NbOperators) {
			note = opcode.NbOperators[arg]
		}
	case opcode.CompareOp:
		if arg < len(opcode.CmpOperators) {
			note = opcode.CmpOperators[arg]
		}
	case opcode.IsOp:
		note = "is"
		if arg == 1 {
			note = "is not"
		}
	case opcode.ContainsOp:
		note = "in"
		if arg == 1 {
			note = "not in"
		}
	case opcode.JumpForward, opcode.ForIter:
		note = fmt.Sprintf("-> %04d", pc+1+arg)
	case opcode.JumpBackward:
		note = fmt.Sprintf("-> %04d", pc+1-arg)
	case opcode.PopJumpIfFalse, opcode.PopJumpIfTrue, opcode.JumpIfFalseOrPop, opcode.JumpIfTrueOrPop:
		note = fmt.Sprintf("-> %04d", arg)
	}
	if note == "" {
		return fmt.Sprintf("%-20s %d", info.Name, arg)
	}
	return fmt.Sprintf("%-20s %-4d ; %s", info.Name, arg, note)
}

// constDisplay renders a constant for listings, truncating long values.
func constDisplay(v Value) string {
	if c, ok := v.(*Code); ok {
		return fmt.Sprintf("<code %s>", c.displayName())
	}
	s := safeRepr(v)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}
