package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Cell
// ---------------------------------------------------------------------------

// Cell holds a variable shared between a frame and the closures created
// in it. Closures may run on several goroutines, so access is atomic.
type Cell struct {
	ref atomic.Pointer[Value]
}

// NewCell returns a cell holding v, or an empty cell when v is nil.
func NewCell(v Value) *Cell {
	c := &Cell{}
	if v != nil {
		c.Set(v)
	}
	return c
}

// Get returns the contents and whether the cell is set.
func (c *Cell) Get() (Value, bool) {
	p := c.ref.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Set replaces the contents.
func (c *Cell) Set(v Value) { c.ref.Store(&v) }

// Clear empties the cell.
func (c *Cell) Clear() { c.ref.Store(nil) }

func cellRepr(v Value) (Value, error) {
	c := v.(*Cell)
	x, ok := c.Get()
	if !ok {
		return fmt.Sprintf("<cell at %#x: empty>", ID(c)), nil
	}
	return fmt.Sprintf("<cell at %#x: %s object at %#x>", ID(c), TypeOf(x).name, ID(x)), nil
}

func cellSpec() *TypeSpec {
	return NewSpec("cell").
		Adopt((*Cell)(nil)).
		Flag(Final|Immutable).
		Slot(OpRepr, cellRepr).
		GetSet("cell_contents",
			func(v Value) (Value, error) {
				x, ok := v.(*Cell).Get()
				if !ok {
					return nil, NewException(ValueError, "Cell is empty")
				}
				return x, nil
			},
			func(v, x Value) error { v.(*Cell).Set(x); return nil },
			func(v Value) error { v.(*Cell).Clear(); return nil })
}

// ---------------------------------------------------------------------------
// Function
// ---------------------------------------------------------------------------

// Function is a code object together with the globals, defaults and
// closure it was created with.
type Function struct {
	code       *Code
	globals    *Dict
	builtins   *Dict
	name       string
	qualname   string
	defaults   []Value
	kwdefaults map[string]Value
	closure    []*Cell
	doc        Value
	module     Value
	interp     *Interpreter

	attrsOnce sync.Once
	attrs     *Dict
}

// NewFunction creates a function running code against globals. Builtins
// are taken from the interpreter.
func (in *Interpreter) NewFunction(code *Code, globals *Dict) *Function {
	f := &Function{
		code:     code,
		globals:  globals,
		builtins: in.Builtins,
		name:     code.Name,
		qualname: code.displayName(),
		doc:      None,
		module:   None,
		interp:   in,
	}
	if m, ok := globals.GetStr("__name__"); ok {
		f.module = m
	}
	if len(code.Consts) > 0 {
		if s, ok := code.Consts[0].(string); ok {
			f.doc = s
		}
	}
	return f
}

// Name returns the function's name.
func (f *Function) Name() string { return f.name }

// Code returns the code object.
func (f *Function) Code() *Code { return f.code }

func (f *Function) dict() *Dict {
	f.attrsOnce.Do(func() { f.attrs = NewDict() })
	return f.attrs
}

// Call invokes the function.
func (f *Function) Call(args []Value, kwnames []string) (Value, error) {
	return f.call(args, kwnames, nil)
}

func (f *Function) call(args []Value, kwnames []string, back *Frame) (Value, error) {
	fr, err := f.frame(args, kwnames, back)
	if err != nil {
		return nil, err
	}
	return fr.Run()
}

func (f *Function) callSelf(self Value, args []Value, kwnames []string, back *Frame) (Value, error) {
	return f.call(prepend(self, args), kwnames, back)
}

// frame binds the arguments of a call into a new frame. A nil back links
// it to the frame the interpreter is running, as for calls that arrive
// through slot dispatch or from Go.
func (f *Function) frame(args []Value, kwnames []string, back *Frame) (*Frame, error) {
	if back == nil {
		back = f.interp.current.Load()
	}
	c := f.code
	c.prepare()
	if c.NLocals < c.parser.Size() {
		return nil, internalErrorf("code %s: %d locals cannot hold %d parameters", c.Name, c.NLocals, c.parser.Size())
	}
	var locals *Dict
	if c.Flags&CodeOptimized == 0 {
		locals = NewDict()
	}
	fr := newFrame(f.interp, c, f.globals, f.builtins, locals, back)
	fr.fn = f
	if len(kwnames) == 0 && len(args) == c.ArgCount && c.parser.Size() == c.ArgCount {
		copy(fr.fast, args)
	} else if err := c.parser.ParseInto(fr.fast, args, kwnames, f.defaults, f.kwdefaults); err != nil {
		return nil, err
	}
	if err := fr.initCells(f.closure); err != nil {
		return nil, err
	}
	return fr, nil
}

func funcGet(self, obj Value, _ *Type) (Value, error) {
	if obj == nil {
		return self, nil
	}
	return &BoundMethod{fn: self, self: obj}, nil
}

func funcCall(self Value, args []Value, kwnames []string) (Value, error) {
	return self.(*Function).call(args, kwnames, nil)
}

func funcRepr(v Value) (Value, error) {
	f := v.(*Function)
	return fmt.Sprintf("<function %s at %#x>", f.qualname, ID(f)), nil
}

func orNoneTuple(items []Value) Value {
	if len(items) == 0 {
		return None
	}
	return NewTuple(append([]Value(nil), items...)...)
}

func funcSpec() *TypeSpec {
	fn := func(v Value) *Function { return v.(*Function) }
	str := func(attr string, set func(f *Function, s string)) func(v, x Value) error {
		return func(v, x Value) error {
			s, ok := x.(string)
			if !ok {
				return typeErrorf("%s must be set to a string object", attr)
			}
			set(fn(v), s)
			return nil
		}
	}
	return NewSpec("function").
		Adopt((*Function)(nil)).
		Flag(Final|MethodDescriptor).
		Slot(OpGet, funcGet).
		Slot(OpCall, funcCall).
		Slot(OpRepr, funcRepr).
		GetSet("__name__",
			func(v Value) (Value, error) { return fn(v).name, nil },
			str("__name__", func(f *Function, s string) { f.name = s }), nil).
		GetSet("__qualname__",
			func(v Value) (Value, error) { return fn(v).qualname, nil },
			str("__qualname__", func(f *Function, s string) { f.qualname = s }), nil).
		GetSet("__code__", func(v Value) (Value, error) { return fn(v).code, nil }, nil, nil).
		GetSet("__globals__", func(v Value) (Value, error) { return fn(v).globals, nil }, nil, nil).
		GetSet("__builtins__", func(v Value) (Value, error) { return fn(v).builtins, nil }, nil, nil).
		GetSet("__closure__", func(v Value) (Value, error) {
			cells := make([]Value, len(fn(v).closure))
			for i, c := range fn(v).closure {
				cells[i] = c
			}
			return orNoneTuple(cells), nil
		}, nil, nil).
		GetSet("__defaults__",
			func(v Value) (Value, error) { return orNoneTuple(fn(v).defaults), nil },
			func(v, x Value) error {
				switch d := x.(type) {
				case NoneType, nil:
					fn(v).defaults = nil
				case *Tuple:
					fn(v).defaults = d.Items()
				default:
					return typeErrorf("__defaults__ must be set to a tuple object")
				}
				return nil
			},
			func(v Value) error { fn(v).defaults = nil; return nil }).
		GetSet("__kwdefaults__",
			func(v Value) (Value, error) {
				f := fn(v)
				if len(f.kwdefaults) == 0 {
					return None, nil
				}
				d := NewDict()
				for k, x := range f.kwdefaults {
					d.SetStr(k, x)
				}
				return d, nil
			}, nil, nil).
		GetSet("__doc__",
			func(v Value) (Value, error) { return fn(v).doc, nil },
			func(v, x Value) error { fn(v).doc = x; return nil }, nil).
		GetSet("__module__",
			func(v Value) (Value, error) { return fn(v).module, nil },
			func(v, x Value) error { fn(v).module = x; return nil }, nil).
		GetSet("__dict__", func(v Value) (Value, error) { return fn(v).dict(), nil }, nil, nil)
}

// kwDefaultsMap converts a keyword-defaults dict to the form the argument
// parser consumes.
func kwDefaultsMap(d *Dict) (map[string]Value, error) {
	if d == nil || d.Len() == 0 {
		return nil, nil
	}
	m := make(map[string]Value, d.Len())
	var err error
	d.each(func(k, v Value) {
		s, ok := k.(string)
		if !ok {
			err = typeErrorf("keyword names must be strings")
			return
		}
		m[s] = v
	})
	return m, err
}

// runBody runs the code of f with ns as its local namespace, as for a
// class body.
func (f *Function) runBody(ns *Dict) (Value, error) {
	fr := newFrame(f.interp, f.code, f.globals, f.builtins, ns, f.interp.current.Load())
	fr.fn = f
	if err := fr.initCells(f.closure); err != nil {
		return nil, err
	}
	return fr.Run()
}
