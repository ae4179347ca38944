package vm

import (
	"fmt"
	"sync"

	"github.com/chazu/slotvm/vm/opcode"
)

// CodeFlags describe how a code object binds its arguments.
type CodeFlags uint32

const (
	CodeOptimized CodeFlags = 0x01
	CodeNewLocals CodeFlags = 0x02
	CodeVarArgs   CodeFlags = 0x04
	CodeVarKwargs CodeFlags = 0x08
	CodeNested    CodeFlags = 0x10
)

// Code is a compiled body: instructions, constants and name tables. A
// Code is immutable once built and may be run by many frames at once.
//
// The fast locals are laid out as positional parameters, keyword-only
// parameters, the *args tuple, the **kwargs dict, then other locals.
// Closure storage is CellVars followed by FreeVars.
type Code struct {
	Name            string
	QualName        string
	Filename        string
	FirstLine       int
	ArgCount        int
	PosOnlyArgCount int
	KwOnlyArgCount  int
	Flags           CodeFlags
	NLocals         int
	StackSize       int
	Instructions    []uint16
	Consts          []Value
	Names           []string
	VarNames        []string
	CellVars        []string
	FreeVars        []string

	once     sync.Once
	parser   *ArgParser
	cell2arg []int
	caches   *InlineCacheTable
	sites    []*operandCaches
}

// prepare derives the argument parser and the inline caches on first use.
func (c *Code) prepare() {
	c.once.Do(func() {
		nparams := c.ArgCount + c.KwOnlyArgCount
		names := make([]string, 0, nparams)
		for i := 0; i < nparams; i++ {
			names = append(names, c.varName(i))
		}
		c.parser = newArgParser(c.displayName(), names[:c.ArgCount], c.PosOnlyArgCount,
			names[c.ArgCount:], c.Flags&CodeVarArgs != 0, c.Flags&CodeVarKwargs != 0)

		c.cell2arg = make([]int, len(c.CellVars))
		for i, cv := range c.CellVars {
			c.cell2arg[i] = -1
			for j := 0; j < c.parser.Size() && j < len(c.VarNames); j++ {
				if c.VarNames[j] == cv {
					c.cell2arg[i] = j
					break
				}
			}
		}

		var pcs []int
		for pc, w := range c.Instructions {
			switch op, _ := opcode.Split(w); op {
			case opcode.BinaryOp, opcode.CompareOp:
				pcs = append(pcs, pc)
			}
		}
		c.caches = NewInlineCacheTable()
		c.sites = c.caches.sites(len(c.Instructions), pcs)
	})
}

func (c *Code) displayName() string {
	if c.QualName != "" {
		return c.QualName
	}
	return c.Name
}

func (c *Code) varName(i int) string {
	if i < len(c.VarNames) {
		return c.VarNames[i]
	}
	return fmt.Sprintf("<local %d>", i)
}

func (c *Code) derefName(i int) string {
	if i < len(c.CellVars) {
		return c.CellVars[i]
	}
	if j := i - len(c.CellVars); j < len(c.FreeVars) {
		return c.FreeVars[j]
	}
	return fmt.Sprintf("<cell %d>", i)
}

// Caches returns the inline cache table of the code.
func (c *Code) Caches() *InlineCacheTable {
	c.prepare()
	return c.caches
}

// Validate checks that the code is well-formed: every opcode is known,
// every argument indexes an existing constant, name, local or cell, every
// jump lands inside the code, and the locals can hold the parameters.
func (c *Code) Validate() error {
	nparams := c.ArgCount + c.KwOnlyArgCount
	if c.Flags&CodeVarArgs != 0 {
		nparams++
	}
	if c.Flags&CodeVarKwargs != 0 {
		nparams++
	}
	if c.NLocals < nparams {
		return fmt.Errorf("code %s: %d locals cannot hold %d parameters", c.Name, c.NLocals, nparams)
	}
	if c.PosOnlyArgCount > c.ArgCount {
		return fmt.Errorf("code %s: %d positional-only of %d positional parameters", c.Name, c.PosOnlyArgCount, c.ArgCount)
	}
	if c.StackSize < 0 {
		return fmt.Errorf("code %s: negative stack size", c.Name)
	}
	n := len(c.Instructions)
	ncells := len(c.CellVars) + len(c.FreeVars)
	ext := 0
	for pc, w := range c.Instructions {
		op, b := opcode.Split(w)
		if !op.Valid() {
			return fmt.Errorf("code %s: invalid opcode %d at %d", c.Name, byte(op), pc)
		}
		arg := ext | int(b)
		if op == opcode.ExtendedArg {
			ext = arg << 8
			continue
		}
		ext = 0
		check := func(limit int, what string) error {
			if arg >= limit {
				return fmt.Errorf("code %s: %s at %d: %s index %d out of range", c.Name, op, pc, what, arg)
			}
			return nil
		}
		var err error
		switch op {
		case opcode.LoadConst:
			err = check(len(c.Consts), "constant")
		case opcode.KwNames:
			err = check(len(c.Consts), "constant")
			if err == nil {
				if t, ok := c.Consts[arg].(*Tuple); !ok || !allStrings(t.items) {
					err = fmt.Errorf("code %s: KW_NAMES at %d: constant %d is not a tuple of str", c.Name, pc, arg)
				}
			}
		case opcode.LoadName, opcode.StoreName, opcode.DeleteName, opcode.LoadAttr, opcode.StoreAttr,
			opcode.DeleteAttr, opcode.StoreGlobal, opcode.DeleteGlobal, opcode.LoadMethod:
			err = check(len(c.Names), "name")
		case opcode.LoadGlobal:
			if arg>>1 >= len(c.Names) {
				err = fmt.Errorf("code %s: LOAD_GLOBAL at %d: name index %d out of range", c.Name, pc, arg>>1)
			}
		case opcode.LoadFast, opcode.StoreFast, opcode.DeleteFast:
			err = check(c.NLocals, "local")
		case opcode.LoadClosure, opcode.LoadDeref, opcode.StoreDeref, opcode.DeleteDeref:
			err = check(ncells, "cell")
		case opcode.BinaryOp:
			err = check(len(opcode.NbOperators), "operator")
		case opcode.CompareOp:
			err = check(len(opcode.CmpOperators), "comparison")
		case opcode.JumpForward, opcode.ForIter:
			if pc+1+arg > n {
				err = fmt.Errorf("code %s: %s at %d jumps outside the code", c.Name, op, pc)
			}
		case opcode.JumpBackward:
			if pc+1-arg < 0 {
				err = fmt.Errorf("code %s: %s at %d jumps outside the code", c.Name, op, pc)
			}
		case opcode.PopJumpIfFalse, opcode.PopJumpIfTrue, opcode.JumpIfFalseOrPop, opcode.JumpIfTrueOrPop:
			if arg >= n {
				err = fmt.Errorf("code %s: %s at %d jumps outside the code", c.Name, op, pc)
			}
		}
		if err != nil {
			return err
		}
	}
	for _, k := range c.Consts {
		if inner, ok := k.(*Code); ok {
			if err := inner.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func allStrings(items []Value) bool {
	for _, x := range items {
		if _, ok := x.(string); !ok {
			return false
		}
	}
	return true
}

func codeRepr(v Value) (Value, error) {
	c := v.(*Code)
	return fmt.Sprintf("<code object %s at %#x, file \"%s\", line %d>", c.Name, ID(c), c.Filename, c.FirstLine), nil
}

func stringTuple(names []string) *Tuple {
	items := make([]Value, len(names))
	for i, n := range names {
		items[i] = n
	}
	return NewTuple(items...)
}

func codeSpec() *TypeSpec {
	get := func(fn func(c *Code) Value) func(Value) (Value, error) {
		return func(v Value) (Value, error) { return fn(v.(*Code)), nil }
	}
	return NewSpec("code").
		Adopt((*Code)(nil)).
		Flag(Final|Immutable).
		Slot(OpRepr, codeRepr).
		GetSet("co_name", get(func(c *Code) Value { return c.Name }), nil, nil).
		GetSet("co_qualname", get(func(c *Code) Value { return c.displayName() }), nil, nil).
		GetSet("co_filename", get(func(c *Code) Value { return c.Filename }), nil, nil).
		GetSet("co_firstlineno", get(func(c *Code) Value { return c.FirstLine }), nil, nil).
		GetSet("co_argcount", get(func(c *Code) Value { return c.ArgCount }), nil, nil).
		GetSet("co_posonlyargcount", get(func(c *Code) Value { return c.PosOnlyArgCount }), nil, nil).
		GetSet("co_kwonlyargcount", get(func(c *Code) Value { return c.KwOnlyArgCount }), nil, nil).
		GetSet("co_flags", get(func(c *Code) Value { return int(c.Flags) }), nil, nil).
		GetSet("co_nlocals", get(func(c *Code) Value { return c.NLocals }), nil, nil).
		GetSet("co_stacksize", get(func(c *Code) Value { return c.StackSize }), nil, nil).
		GetSet("co_consts", get(func(c *Code) Value { return NewTuple(append([]Value(nil), c.Consts...)...) }), nil, nil).
		GetSet("co_names", get(func(c *Code) Value { return stringTuple(c.Names) }), nil, nil).
		GetSet("co_varnames", get(func(c *Code) Value { return stringTuple(c.VarNames) }), nil, nil).
		GetSet("co_cellvars", get(func(c *Code) Value { return stringTuple(c.CellVars) }), nil, nil).
		GetSet("co_freevars", get(func(c *Code) Value { return stringTuple(c.FreeVars) }), nil, nil)
}
