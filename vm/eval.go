package vm

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/slotvm/vm/opcode"
)

// binarySlots maps BINARY_OP arguments to slots. The in-place forms share
// the slot of the plain operator.
var binarySlots = [...]Slot{
	opcode.NbAdd:            OpAdd,
	opcode.NbAnd:            OpAnd,
	opcode.NbFloorDivide:    OpFloordiv,
	opcode.NbLshift:         OpLshift,
	opcode.NbMatrixMultiply: OpMatmul,
	opcode.NbMultiply:       OpMul,
	opcode.NbRemainder:      OpMod,
	opcode.NbOr:             OpOr,
	opcode.NbPower:          OpPow,
	opcode.NbRshift:         OpRshift,
	opcode.NbSubtract:       OpSub,
	opcode.NbTrueDivide:     OpTruediv,
	opcode.NbXor:            OpXor,
}

func binarySlot(arg int) Slot {
	if arg >= opcode.NbInplaceAdd {
		arg -= opcode.NbInplaceAdd
	}
	return binarySlots[arg]
}

// eval is the instruction loop. Failures are returned to the caller of
// the frame; there is no handler table.
func (f *Frame) eval() (Value, error) {
	code := f.Code
	instrs := code.Instructions
	trace := f.interp.Config.Trace && evalLog.AllowLevel(commonlog.Debug)
	var ext int

	for {
		pc := f.ip
		if pc >= len(instrs) {
			return nil, internalErrorf("%s: fell off the end of the code", code.displayName())
		}
		op, b := opcode.Split(instrs[pc])
		arg := ext | int(b)
		f.ip++
		f.Steps++
		if trace {
			evalLog.Debugf("%s %4d %-20s %-4d sp=%d", code.displayName(), pc, op, arg, f.sp)
		}
		if op == opcode.ExtendedArg {
			ext = arg << 8
			continue
		}
		ext = 0

		var err error
		switch op {
		case opcode.Nop, opcode.Resume:

		case opcode.PopTop:
			f.pop()

		case opcode.PushNull:
			f.push(null)

		case opcode.Copy:
			f.push(f.peek(arg))

		case opcode.Swap:
			i := f.sp - arg
			f.stack[f.sp-1], f.stack[i] = f.stack[i], f.stack[f.sp-1]

		case opcode.LoadConst:
			f.push(code.Consts[arg])

		case opcode.ReturnValue:
			return f.pop(), nil

		// Operators

		case opcode.UnaryPositive:
			err = f.unary(Positive)
		case opcode.UnaryNegative:
			err = f.unary(Negative)
		case opcode.UnaryNot:
			err = f.unary(Not)
		case opcode.UnaryInvert:
			err = f.unary(Invert)

		case opcode.BinaryOp:
			w := f.pop()
			v := f.top()
			var r Value
			if site := code.sites[pc]; site != nil {
				r, err = binaryOp(binarySlot(arg), v, site.left.lookupOps(v), w, site.right.lookupOps(w))
			} else {
				r, err = BinaryOp(binarySlot(arg), v, w)
			}
			if err == nil {
				f.setTop(r)
			}

		case opcode.CompareOp:
			if arg > int(GE) {
				return nil, internalErrorf("%s: invalid comparison %d at %d", code.displayName(), arg, pc)
			}
			w := f.pop()
			v := f.top()
			var r Value
			if site := code.sites[pc]; site != nil {
				r, err = richCompare(v, site.left.lookupOps(v), w, site.right.lookupOps(w), Comparison(arg))
			} else {
				r, err = RichCompare(v, w, Comparison(arg))
			}
			if err == nil {
				f.setTop(r)
			}

		case opcode.IsOp:
			w := f.pop()
			f.setTop(Bool(Is(f.top(), w) != (arg == 1)))

		case opcode.ContainsOp:
			container := f.pop()
			var in bool
			if in, err = Contains(container, f.top()); err == nil {
				f.setTop(Bool(in != (arg == 1)))
			}

		case opcode.BinarySubscr:
			key := f.pop()
			var r Value
			if r, err = GetItem(f.top(), key); err == nil {
				f.setTop(r)
			}

		case opcode.StoreSubscr:
			key := f.pop()
			container := f.pop()
			err = SetItem(container, key, f.pop())

		case opcode.DeleteSubscr:
			key := f.pop()
			err = DelItem(f.pop(), key)

		// Names

		case opcode.LoadName:
			var v Value
			if v, err = f.loadName(code.Names[arg]); err == nil {
				f.push(v)
			}

		case opcode.StoreName:
			if f.Locals == nil {
				err = internalErrorf("no locals when storing '%s'", code.Names[arg])
			} else {
				f.Locals.SetStr(code.Names[arg], f.pop())
			}

		case opcode.DeleteName:
			name := code.Names[arg]
			if f.Locals == nil {
				err = internalErrorf("no locals when deleting '%s'", name)
			} else if !f.Locals.DelStr(name) {
				err = nameError(name)
			}

		case opcode.LoadGlobal:
			name := code.Names[arg>>1]
			var v Value
			if v, err = f.loadGlobal(name); err == nil {
				if arg&1 != 0 {
					f.push(null)
				}
				f.push(v)
			}

		case opcode.StoreGlobal:
			f.Globals.SetStr(code.Names[arg], f.pop())

		case opcode.DeleteGlobal:
			if name := code.Names[arg]; !f.Globals.DelStr(name) {
				err = nameError(name)
			}

		case opcode.LoadFast:
			if arg >= len(f.fast) {
				return nil, f.localIndexError(op, arg)
			}
			v := f.fast[arg]
			if v == nil {
				err = f.unboundLocal(arg)
			} else {
				f.push(v)
			}

		case opcode.StoreFast:
			if arg >= len(f.fast) {
				return nil, f.localIndexError(op, arg)
			}
			f.fast[arg] = f.pop()

		case opcode.DeleteFast:
			if arg >= len(f.fast) {
				return nil, f.localIndexError(op, arg)
			}
			if f.fast[arg] == nil {
				err = f.unboundLocal(arg)
			} else {
				f.fast[arg] = nil
			}

		case opcode.LoadClosure:
			f.push(f.cell(arg))

		case opcode.LoadDeref:
			if v, ok := f.cell(arg).Get(); ok {
				f.push(v)
			} else {
				err = f.unboundDeref(arg)
			}

		case opcode.StoreDeref:
			f.cell(arg).Set(f.pop())

		case opcode.DeleteDeref:
			c := f.cell(arg)
			if _, ok := c.Get(); !ok {
				err = f.unboundDeref(arg)
			} else {
				c.Clear()
			}

		// Attributes

		case opcode.LoadAttr:
			var v Value
			if v, err = GetAttr(f.top(), code.Names[arg]); err == nil {
				f.setTop(v)
			}

		case opcode.StoreAttr:
			obj := f.pop()
			err = SetAttr(obj, code.Names[arg], f.pop())

		case opcode.DeleteAttr:
			err = DelAttr(f.pop(), code.Names[arg])

		case opcode.LoadMethod:
			name := code.Names[arg]
			obj := f.top()
			if meth, ok := methodFor(obj, name); ok {
				f.setTop(meth)
				f.push(obj)
			} else {
				var v Value
				if v, err = GetAttr(obj, name); err == nil {
					f.setTop(null)
					f.push(v)
				}
			}

		// Calls

		case opcode.KwNames:
			f.kwnames = kwNamesOf(code.Consts[arg].(*Tuple))

		case opcode.Call:
			err = f.call(arg)

		case opcode.CallFunctionEx:
			var kwargs Value
			if arg&1 != 0 {
				kwargs = f.pop()
			}
			args := f.pop()
			var r Value
			if r, err = f.callEx(f.top(), args, kwargs); err == nil {
				f.setTop(r)
			}

		case opcode.MakeFunction:
			err = f.makeFunction(arg)

		// Construction and iteration

		case opcode.BuildTuple:
			f.push(NewTuple(f.popN(arg)...))

		case opcode.BuildList:
			f.push(NewList(f.popN(arg)...))

		case opcode.BuildMap:
			items := f.popN(2 * arg)
			d := NewDict()
			for i := 0; i < len(items) && err == nil; i += 2 {
				err = d.Set(items[i], items[i+1])
			}
			if err == nil {
				f.push(d)
			}

		case opcode.GetIter:
			var it Value
			if it, err = GetIter(f.top()); err == nil {
				f.setTop(it)
			}

		case opcode.ForIter:
			v, ok, e := Next(f.top())
			switch {
			case e != nil:
				err = e
			case ok:
				f.push(v)
			default:
				f.pop()
				f.ip += arg
			}

		case opcode.LoadBuildClass:
			if v, ok := f.Builtins.GetStr("__build_class__"); ok {
				f.push(v)
			} else {
				err = NewException(NameError, "__build_class__ not found")
			}

		// Jumps

		case opcode.JumpForward:
			f.ip += arg

		case opcode.JumpBackward:
			f.ip -= arg

		case opcode.PopJumpIfFalse, opcode.PopJumpIfTrue:
			var t bool
			if t, err = IsTrue(f.pop()); err == nil && t == (op == opcode.PopJumpIfTrue) {
				f.ip = arg
			}

		case opcode.JumpIfFalseOrPop, opcode.JumpIfTrueOrPop:
			var t bool
			if t, err = IsTrue(f.top()); err == nil {
				if t == (op == opcode.JumpIfTrueOrPop) {
					f.ip = arg
				} else {
					f.pop()
				}
			}

		default:
			return nil, internalErrorf("%s: unknown opcode %d at %d", code.displayName(), byte(op), pc)
		}

		if err != nil {
			if trace {
				evalLog.Debugf("%s %4d raised %v", code.displayName(), pc, err)
			}
			return nil, err
		}
	}
}

func (f *Frame) unary(fn func(Value) (Value, error)) error {
	r, err := fn(f.top())
	if err != nil {
		return err
	}
	f.setTop(r)
	return nil
}

// ---------------------------------------------------------------------------
// Variable access
// ---------------------------------------------------------------------------

func nameError(name string) error {
	return NewException(NameError, "name '%.200s' is not defined", name)
}

// loadName resolves a name through the locals, the globals and the
// builtins, in that order.
func (f *Frame) loadName(name string) (Value, error) {
	if f.Locals == nil {
		return nil, internalErrorf("no locals when loading '%s'", name)
	}
	if v, ok := f.Locals.GetStr(name); ok {
		return v, nil
	}
	return f.loadGlobal(name)
}

func (f *Frame) loadGlobal(name string) (Value, error) {
	if v, ok := f.Globals.GetStr(name); ok {
		return v, nil
	}
	if f.Builtins != nil {
		if v, ok := f.Builtins.GetStr(name); ok {
			return v, nil
		}
	}
	return nil, nameError(name)
}

func (f *Frame) localIndexError(op opcode.Opcode, i int) error {
	return internalErrorf("%s: %s %d outside the %d local variables", f.Code.displayName(), op, i, len(f.fast))
}

func (f *Frame) unboundLocal(i int) error {
	return NewException(UnboundLocalError,
		"cannot access local variable '%s' where it is not associated with a value", f.Code.varName(i))
}

func (f *Frame) cell(i int) *Cell {
	if i >= len(f.cells) {
		panic(internalErrorf("%s: cell %d outside the %d cells", f.Code.displayName(), i, len(f.cells)))
	}
	return f.cells[i]
}

func (f *Frame) unboundDeref(i int) error {
	name := f.Code.derefName(i)
	if i < len(f.Code.CellVars) {
		return NewException(UnboundLocalError,
			"cannot access local variable '%s' where it is not associated with a value", name)
	}
	return NewException(NameError,
		"cannot access free variable '%s' where it is not associated with a value in enclosing scope", name)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// methodFor finds name as an unbound method of obj, so that the call can
// pass obj as first argument without creating a bound object. It fails
// when attribute access is customized or the instance dictionary shadows
// the attribute.
func methodFor(obj Value, name string) (Value, bool) {
	t := TypeOf(obj)
	if _, owner := t.lookupWhere("__getattribute__"); owner != ObjectType {
		return nil, false
	}
	attr, found := t.Lookup(name)
	if !found || TypeOf(attr).flags&MethodDescriptor == 0 {
		return nil, false
	}
	if d := instanceDict(obj); d != nil {
		if _, ok := d.GetStr(name); ok {
			return nil, false
		}
	}
	return attr, true
}

func kwNamesOf(t *Tuple) []string {
	names := make([]string, t.Len())
	for i, x := range t.items {
		names[i] = x.(string)
	}
	return names
}

// call implements CALL: below the arguments lie either a method and its
// self, or the null marker and a callable.
func (f *Frame) call(argc int) error {
	kwnames := f.kwnames
	f.kwnames = nil
	var callable Value
	var args []Value
	if m := f.peek(argc + 2); !isNull(m) {
		callable = m
		args = f.popN(argc + 1)
	} else {
		args = f.popN(argc)
		callable = f.pop()
	}
	f.pop()
	r, err := f.invoke(callable, args, kwnames)
	if err != nil {
		return err
	}
	f.push(r)
	return nil
}

// invoke calls callable, chaining a bytecode function's frame to f.
func (f *Frame) invoke(callable Value, args []Value, kwnames []string) (Value, error) {
	if fn, ok := callable.(*Function); ok {
		return fn.call(args, kwnames, f)
	}
	return Call(callable, args, kwnames)
}

// callEx implements CALL_FUNCTION_EX: positional arguments come from an
// iterable and keyword arguments from a mapping.
func (f *Frame) callEx(callable, args, kwargs Value) (Value, error) {
	var all []Value
	if t, ok := args.(*Tuple); ok {
		all = append(all, t.items...)
	} else {
		items, err := Collect(args)
		if err != nil {
			if isTypeError(err) {
				return nil, typeErrorf("%s argument after * must be an iterable, not %.200s",
					callableName(callable), TypeOf(args).name)
			}
			return nil, err
		}
		all = items
	}
	var kwnames []string
	if kwargs != nil {
		d, ok := kwargs.(*Dict)
		if !ok {
			return nil, typeErrorf("%s argument after ** must be a mapping, not %.200s",
				callableName(callable), TypeOf(kwargs).name)
		}
		var err error
		d.each(func(k, v Value) {
			s, ok := k.(string)
			if !ok {
				if err == nil {
					err = typeErrorf("keywords must be strings")
				}
				return
			}
			kwnames = append(kwnames, s)
			all = append(all, v)
		})
		if err != nil {
			return nil, err
		}
	}
	return f.invoke(callable, all, kwnames)
}

func isTypeError(err error) bool {
	e, ok := AsException(err)
	return ok && e.Kind == TypeError
}

func callableName(v Value) string {
	switch x := v.(type) {
	case *Function:
		return x.qualname + "()"
	case *BuiltinFunction:
		return x.Name() + "()"
	case *Type:
		return x.name + "()"
	}
	return TypeOf(v).name + " object"
}

// makeFunction implements MAKE_FUNCTION. The flag argument says which of
// closure, keyword defaults and defaults lie below the code object.
func (f *Frame) makeFunction(flags int) error {
	code, ok := f.pop().(*Code)
	if !ok {
		return internalErrorf("%s: MAKE_FUNCTION without a code object", f.Code.displayName())
	}
	fn := f.interp.NewFunction(code, f.Globals)
	fn.builtins = f.Builtins
	if flags&opcode.FuncClosure != 0 {
		t, ok := f.pop().(*Tuple)
		if !ok {
			return internalErrorf("%s: MAKE_FUNCTION closure is not a tuple", f.Code.displayName())
		}
		fn.closure = make([]*Cell, t.Len())
		for i, x := range t.items {
			if fn.closure[i], ok = x.(*Cell); !ok {
				return internalErrorf("%s: MAKE_FUNCTION closure item is not a cell", f.Code.displayName())
			}
		}
	}
	if flags&opcode.FuncKwDefaults != 0 {
		d, ok := f.pop().(*Dict)
		if !ok {
			return internalErrorf("%s: MAKE_FUNCTION keyword defaults are not a dict", f.Code.displayName())
		}
		m, err := kwDefaultsMap(d)
		if err != nil {
			return err
		}
		fn.kwdefaults = m
	}
	if flags&opcode.FuncDefaults != 0 {
		t, ok := f.pop().(*Tuple)
		if !ok {
			return internalErrorf("%s: MAKE_FUNCTION defaults are not a tuple", f.Code.displayName())
		}
		fn.defaults = t.items
	}
	f.push(fn)
	return nil
}
