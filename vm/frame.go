package vm

import (
	"fmt"
	"runtime/debug"
)

// Frame is one activation of a code object. A frame is owned by the
// goroutine running it.
type Frame struct {
	Code     *Code
	Back     *Frame
	Globals  *Dict
	Locals   *Dict // nil in optimized frames
	Builtins *Dict

	fast  []Value
	cells []*Cell
	stack []Value
	sp    int
	ip    int

	// MaxDepth is the stack high-water mark and Steps the number of
	// instructions executed so far.
	MaxDepth int
	Steps    int

	interp  *Interpreter
	fn      *Function
	kwnames []string
}

// nullMarker fills the slot below a callable that is not a method.
type nullMarker struct{}

var null Value = nullMarker{}

func isNull(v Value) bool {
	_, ok := v.(nullMarker)
	return ok
}

func newFrame(in *Interpreter, c *Code, globals, builtins, locals *Dict, back *Frame) *Frame {
	c.prepare()
	return &Frame{
		Code:     c,
		Back:     back,
		Globals:  globals,
		Locals:   locals,
		Builtins: builtins,
		fast:     make([]Value, c.NLocals),
		stack:    make([]Value, c.StackSize),
		interp:   in,
	}
}

// initCells creates the cells of the frame's cell variables, seeding
// those that are also parameters, and installs the closure.
func (f *Frame) initCells(closure []*Cell) error {
	c := f.Code
	if len(closure) != len(c.FreeVars) {
		return internalErrorf("code %s: closure of %d cells for %d free variables", c.Name, len(closure), len(c.FreeVars))
	}
	n := len(c.CellVars) + len(c.FreeVars)
	if n == 0 {
		return nil
	}
	f.cells = make([]*Cell, n)
	for i := range c.CellVars {
		var v Value
		if arg := c.cell2arg[i]; arg >= 0 {
			v = f.fast[arg]
		}
		f.cells[i] = NewCell(v)
	}
	copy(f.cells[len(c.CellVars):], closure)
	return nil
}

// Function returns the function the frame is running, or nil for module
// and class bodies.
func (f *Frame) Function() *Function { return f.fn }

// Local returns local variable i, or nil when it is unbound.
func (f *Frame) Local(i int) Value {
	if i < 0 || i >= len(f.fast) {
		return nil
	}
	return f.fast[i]
}

// Depth returns the number of frames on the chain ending at f.
func (f *Frame) Depth() int {
	n := 0
	for ; f != nil; f = f.Back {
		n++
	}
	return n
}

func (f *Frame) String() string {
	return fmt.Sprintf("<frame %s ip=%d sp=%d>", f.Code.displayName(), f.ip, f.sp)
}

// Run evaluates the frame to completion. A Go panic raised while running
// (malformed code indexing outside its tables) is reported as an
// *InternalError.
func (f *Frame) Run() (result Value, err error) {
	in := f.interp
	if d := in.depth.Add(1); int(d) > in.Config.RecursionLimit {
		in.depth.Add(-1)
		return nil, NewException(RecursionError, "maximum recursion depth exceeded")
	}
	defer in.depth.Add(-1)
	prev := in.current.Swap(f)
	defer in.current.Store(prev)
	defer func() { in.steps.Add(int64(f.Steps)) }()
	defer func() {
		if r := recover(); r != nil {
			evalLog.Errorf("panic in %s at instruction %d: %v\n%s", f.Code.displayName(), f.ip, r, debug.Stack())
			result = nil
			err = &InternalError{Message: fmt.Sprintf("%s: instruction %d: %v", f.Code.displayName(), f.ip, r)}
		}
	}()
	return f.eval()
}

// ---------------------------------------------------------------------------
// Evaluation stack
// ---------------------------------------------------------------------------

func (f *Frame) push(v Value) {
	f.stack[f.sp] = v
	f.sp++
	if f.sp > f.MaxDepth {
		f.MaxDepth = f.sp
	}
}

func (f *Frame) pop() Value {
	f.sp--
	v := f.stack[f.sp]
	f.stack[f.sp] = nil
	return v
}

func (f *Frame) top() Value { return f.stack[f.sp-1] }

// peek returns the i-th item from the top, counting from 1.
func (f *Frame) peek(i int) Value { return f.stack[f.sp-i] }

func (f *Frame) setTop(v Value) { f.stack[f.sp-1] = v }

// popN removes the top n items and returns them in stack order.
func (f *Frame) popN(n int) []Value {
	items := make([]Value, n)
	copy(items, f.stack[f.sp-n:f.sp])
	clear(f.stack[f.sp-n : f.sp])
	f.sp -= n
	return items
}
