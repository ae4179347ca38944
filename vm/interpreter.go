package vm

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
)

// Config holds the settings of an Interpreter.
type Config struct {
	// RecursionLimit bounds the number of frames the interpreter may have
	// active at once.
	RecursionLimit int

	// Trace logs every instruction at Debug level on slotvm.eval.
	Trace bool

	// Stdout receives the output of print.
	Stdout io.Writer
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		RecursionLimit: 1000,
		Stdout:         os.Stdout,
	}
}

// Interpreter holds the builtins and settings shared by the frames it
// runs. Types are global and shared between interpreters. An Interpreter
// may run frames on several goroutines at once, but its depth count and
// frame chain follow a single thread of execution; give each goroutine
// its own Interpreter when those must be exact.
type Interpreter struct {
	ID       uuid.UUID
	Config   Config
	Builtins *Dict

	depth   atomic.Int32
	current atomic.Pointer[Frame]
	steps   atomic.Int64
}

// New creates an interpreter.
func New(cfg Config) *Interpreter {
	def := DefaultConfig()
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = def.RecursionLimit
	}
	if cfg.Stdout == nil {
		cfg.Stdout = def.Stdout
	}
	in := &Interpreter{ID: uuid.New(), Config: cfg}
	in.Builtins = newBuiltins(in)
	evalLog.Debugf("interpreter %s created (recursion limit %d)", in.ID, cfg.RecursionLimit)
	return in
}

// NewGlobals returns a module namespace named name.
func (in *Interpreter) NewGlobals(name string) *Dict {
	g := NewDict()
	g.SetStr("__name__", name)
	g.SetStr("__builtins__", in.Builtins)
	return g
}

// Exec runs module-level code with globals as its namespace and returns
// the value of the final RETURN_VALUE.
func (in *Interpreter) Exec(code *Code, globals *Dict) (Value, error) {
	return in.Eval(code, globals, globals)
}

// Eval runs code with separate global and local namespaces. A nil locals
// makes the frame optimized: names are then resolved only through the
// fast locals.
func (in *Interpreter) Eval(code *Code, globals, locals *Dict) (Value, error) {
	return in.EvalFrame(in.NewFrame(code, globals, locals))
}

// NewFrame prepares a frame for code without running it.
func (in *Interpreter) NewFrame(code *Code, globals, locals *Dict) *Frame {
	if globals == nil {
		globals = in.NewGlobals("__main__")
	}
	return newFrame(in, code, globals, in.Builtins, locals, in.current.Load())
}

// EvalFrame runs a frame prepared by NewFrame.
func (in *Interpreter) EvalFrame(f *Frame) (Value, error) {
	if err := f.initCells(nil); err != nil {
		return nil, err
	}
	return f.Run()
}

// Depth returns the number of frames the interpreter is running.
func (in *Interpreter) Depth() int { return int(in.depth.Load()) }

// CurrentFrame returns the innermost frame the interpreter is running, or
// nil when it is idle.
func (in *Interpreter) CurrentFrame() *Frame { return in.current.Load() }

// Steps returns the number of instructions executed by frames that have
// finished running.
func (in *Interpreter) Steps() int64 { return in.steps.Load() }
