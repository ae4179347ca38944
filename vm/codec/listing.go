package codec

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/slotvm/vm"
	"github.com/chazu/slotvm/vm/opcode"
	"gopkg.in/yaml.v3"
)

// Listing formats.
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Listing is the textual form of a code object.
//
// When flags are omitted, code defined under functions is optimized with
// new locals and module code has no flags.
//
// Instructions are mnemonic strings such as "LOAD_CONST 0". A line ending
// in a colon defines a label for the next instruction, and jump arguments
// may name labels. BINARY_OP and COMPARE_OP accept their operator symbol.
// Constants are scalars, lists (tuples), or tables: {none: true},
// {int: "<decimal>"} for integers wider than 64 bits, and {code: name}
// for a code object defined under functions.
type Listing struct {
	Name            string              `yaml:"name" toml:"name"`
	QualName        string              `yaml:"qualname,omitempty" toml:"qualname,omitempty"`
	Filename        string              `yaml:"filename,omitempty" toml:"filename,omitempty"`
	FirstLine       int                 `yaml:"firstline,omitempty" toml:"firstline,omitempty"`
	ArgCount        int                 `yaml:"argcount,omitempty" toml:"argcount,omitempty"`
	PosOnlyArgCount int                 `yaml:"posonlyargcount,omitempty" toml:"posonlyargcount,omitempty"`
	KwOnlyArgCount  int                 `yaml:"kwonlyargcount,omitempty" toml:"kwonlyargcount,omitempty"`
	Flags           []string            `yaml:"flags" toml:"flags"`
	NLocals         int                 `yaml:"nlocals,omitempty" toml:"nlocals,omitempty"`
	StackSize       int                 `yaml:"stacksize,omitempty" toml:"stacksize,omitempty"`
	Consts          []any               `yaml:"consts,omitempty" toml:"consts,omitempty"`
	Names           []string            `yaml:"names,omitempty" toml:"names,omitempty"`
	VarNames        []string            `yaml:"varnames,omitempty" toml:"varnames,omitempty"`
	CellVars        []string            `yaml:"cellvars,omitempty" toml:"cellvars,omitempty"`
	FreeVars        []string            `yaml:"freevars,omitempty" toml:"freevars,omitempty"`
	Instructions    []string            `yaml:"instructions" toml:"instructions"`
	Functions       map[string]*Listing `yaml:"functions,omitempty" toml:"functions,omitempty"`
}

var flagNames = map[string]vm.CodeFlags{
	"optimized": vm.CodeOptimized,
	"newlocals": vm.CodeNewLocals,
	"varargs":   vm.CodeVarArgs,
	"varkwargs": vm.CodeVarKwargs,
	"nested":    vm.CodeNested,
}

// FormatOf returns the listing format implied by a file name, or "".
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	}
	return ""
}

// ParseListing decodes a listing and assembles it.
func ParseListing(data []byte, format string) (*vm.Code, error) {
	var l Listing
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("codec: parse listing: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &l); err != nil {
			return nil, fmt.Errorf("codec: parse listing: %w", err)
		}
	default:
		return nil, fmt.Errorf("codec: unknown listing format %q", format)
	}
	return l.Assemble()
}

// LoadFile reads a code object from a listing or from CBOR wire form,
// chosen by the file extension.
func LoadFile(path string) (*vm.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := FormatOf(path)
	if format == "" {
		return Unmarshal(data)
	}
	c, err := ParseListing(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Filename == "" {
		c.Filename = path
	}
	return c, nil
}

// Assemble builds the code object the listing describes.
func (l *Listing) Assemble() (*vm.Code, error) {
	return l.assemble(nil, false)
}

type scope struct {
	funcs  map[string]*Listing
	outer  *scope
	cached map[*Listing]*vm.Code
}

func (s *scope) lookup(name string) *Listing {
	for ; s != nil; s = s.outer {
		if l, ok := s.funcs[name]; ok {
			return l
		}
	}
	return nil
}

func (l *Listing) assemble(outer *scope, function bool) (*vm.Code, error) {
	c := &vm.Code{
		Name:            l.Name,
		QualName:        l.QualName,
		Filename:        l.Filename,
		FirstLine:       l.FirstLine,
		ArgCount:        l.ArgCount,
		PosOnlyArgCount: l.PosOnlyArgCount,
		KwOnlyArgCount:  l.KwOnlyArgCount,
		NLocals:         l.NLocals,
		Names:           l.Names,
		VarNames:        l.VarNames,
		CellVars:        l.CellVars,
		FreeVars:        l.FreeVars,
	}
	if c.Name == "" {
		c.Name = "<module>"
	}
	if c.NLocals == 0 {
		c.NLocals = len(c.VarNames)
	}
	if l.Flags == nil && function {
		c.Flags = vm.CodeOptimized | vm.CodeNewLocals
	}
	for _, f := range l.Flags {
		flag, ok := flagNames[strings.ToLower(f)]
		if !ok {
			return nil, fmt.Errorf("%s: unknown flag %q", c.Name, f)
		}
		c.Flags |= flag
	}

	sc := &scope{funcs: l.Functions, outer: outer, cached: map[*Listing]*vm.Code{}}
	for i, k := range l.Consts {
		v, err := constValue(k, sc)
		if err != nil {
			return nil, fmt.Errorf("%s: constant %d: %w", c.Name, i, err)
		}
		c.Consts = append(c.Consts, v)
	}

	code, err := assembleInstructions(l.Instructions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	c.Instructions = code

	c.StackSize = l.StackSize
	if c.StackSize == 0 {
		depth, err := StackDepth(code)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		c.StackSize = depth
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func constValue(k any, sc *scope) (vm.Value, error) {
	switch x := k.(type) {
	case nil:
		return vm.None, nil
	case bool:
		return vm.Bool(x), nil
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case float64:
		return x, nil
	case string:
		return x, nil
	case []any:
		items := make([]vm.Value, len(x))
		for i, item := range x {
			v, err := constValue(item, sc)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return vm.NewTuple(items...), nil
	case map[string]any:
		return tableConst(x, sc)
	}
	return nil, fmt.Errorf("unsupported constant %v (%T)", k, k)
}

func tableConst(m map[string]any, sc *scope) (vm.Value, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("constant table must have exactly one key, got %d", len(m))
	}
	var key string
	var v any
	for key, v = range m {
	}
	switch key {
	case "none":
		return vm.None, nil
	case "int":
		s := fmt.Sprint(v)
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("bad integer %q", s)
		}
		if n.IsInt64() {
			return int(n.Int64()), nil
		}
		return n, nil
	case "code":
		name, _ := v.(string)
		fl := sc.lookup(name)
		if fl == nil {
			return nil, fmt.Errorf("undefined function %q", name)
		}
		if c, ok := sc.cached[fl]; ok {
			return c, nil
		}
		if fl.Name == "" {
			fl.Name = name
		}
		c, err := fl.assemble(sc, true)
		if err != nil {
			return nil, err
		}
		sc.cached[fl] = c
		return c, nil
	}
	return nil, fmt.Errorf("unknown constant table key %q", key)
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

type asmInstr struct {
	op    opcode.Opcode
	arg   int
	label string // jump target, resolved after layout
	line  int
}

func parseInstructions(lines []string) ([]asmInstr, map[string]int, error) {
	var out []asmInstr
	labels := map[string]int{} // label -> instruction index
	for n, raw := range lines {
		line := raw
		if i := strings.IndexAny(line, ";#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			name := strings.TrimSpace(strings.TrimSuffix(line, ":"))
			if _, dup := labels[name]; dup {
				return nil, nil, fmt.Errorf("line %d: duplicate label %q", n+1, name)
			}
			labels[name] = len(out)
			continue
		}

		fields := strings.Fields(line)
		op, ok := opcode.Lookup(strings.ToUpper(fields[0]))
		if !ok {
			return nil, nil, fmt.Errorf("line %d: unknown instruction %q", n+1, fields[0])
		}
		if op == opcode.ExtendedArg {
			return nil, nil, fmt.Errorf("line %d: EXTENDED_ARG is emitted automatically", n+1)
		}
		in := asmInstr{op: op, line: n + 1}
		info := op.Info()
		switch {
		case len(fields) > 2:
			return nil, nil, fmt.Errorf("line %d: too many operands", n+1)
		case len(fields) == 1:
			if info.HasArg && !info.Jump {
				// Zero is the natural default for counts and flags.
				break
			}
			if info.Jump {
				return nil, nil, fmt.Errorf("line %d: %s needs a target", n+1, info.Name)
			}
		default:
			if err := in.parseArg(fields[1]); err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", n+1, err)
			}
		}
		out = append(out, in)
	}
	return out, labels, nil
}

func (in *asmInstr) parseArg(s string) error {
	info := in.op.Info()
	if !info.HasArg {
		return fmt.Errorf("%s takes no argument", info.Name)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return fmt.Errorf("negative argument %d", n)
		}
		in.arg = n
		return nil
	}
	switch in.op {
	case opcode.BinaryOp:
		for i, sym := range opcode.NbOperators {
			if sym == s {
				in.arg = i
				return nil
			}
		}
	case opcode.CompareOp:
		for i, sym := range opcode.CmpOperators {
			if sym == s {
				in.arg = i
				return nil
			}
		}
	default:
		if info.Jump {
			in.label = s
			return nil
		}
	}
	return fmt.Errorf("bad argument %q for %s", s, info.Name)
}

func relativeJump(op opcode.Opcode) bool {
	return op == opcode.JumpForward || op == opcode.ForIter || op == opcode.JumpBackward
}

// assembleInstructions lays the instructions out and resolves labels.
// An argument that needs EXTENDED_ARG prefixes moves everything after it,
// so layout repeats until no instruction changes size.
func assembleInstructions(lines []string) ([]uint16, error) {
	instrs, labels, err := parseInstructions(lines)
	if err != nil {
		return nil, err
	}
	for _, in := range instrs {
		if in.label != "" {
			if _, ok := labels[in.label]; !ok {
				return nil, fmt.Errorf("line %d: undefined label %q", in.line, in.label)
			}
		}
	}

	sizes := make([]int, len(instrs))
	for i := range sizes {
		sizes[i] = 1
	}
	pos := make([]int, len(instrs)+1)
	for {
		for i := range instrs {
			pos[i+1] = pos[i] + sizes[i]
		}
		changed := false
		for i := range instrs {
			in := &instrs[i]
			if in.label != "" {
				target := pos[labels[in.label]]
				next := pos[i+1]
				switch {
				case !relativeJump(in.op):
					in.arg = target
				case in.op == opcode.JumpBackward:
					in.arg = next - target
				default:
					in.arg = target - next
				}
				if in.arg < 0 {
					return nil, fmt.Errorf("line %d: %s cannot reach label %q", in.line, in.op, in.label)
				}
			}
			if n := len(opcode.Emit(nil, in.op, in.arg)); n != sizes[i] {
				sizes[i] = n
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	var code []uint16
	for _, in := range instrs {
		code = opcode.Emit(code, in.op, in.arg)
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// FormatListing renders c, and the code objects among its constants, as a
// listing that ParseListing reads back.
func FormatListing(c *vm.Code, format string) ([]byte, error) {
	names := map[*vm.Code]string{}
	l, err := toListing(c, format, names, map[string]bool{})
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatYAML:
		return yaml.Marshal(l)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(l); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("codec: unknown listing format %q", format)
}

func toListing(c *vm.Code, format string, names map[*vm.Code]string, taken map[string]bool) (*Listing, error) {
	l := &Listing{
		Name:            c.Name,
		QualName:        c.QualName,
		Filename:        c.Filename,
		FirstLine:       c.FirstLine,
		ArgCount:        c.ArgCount,
		PosOnlyArgCount: c.PosOnlyArgCount,
		KwOnlyArgCount:  c.KwOnlyArgCount,
		NLocals:         c.NLocals,
		StackSize:       c.StackSize,
		Names:           c.Names,
		VarNames:        c.VarNames,
		CellVars:        c.CellVars,
		FreeVars:        c.FreeVars,
		Flags:           []string{},
	}
	var flags []string
	for name, f := range flagNames {
		if c.Flags&f != 0 {
			flags = append(flags, name)
		}
	}
	sort.Strings(flags)
	l.Flags = append(l.Flags, flags...)

	for _, k := range c.Consts {
		v, err := listingConst(k, format, l, names, taken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}
		l.Consts = append(l.Consts, v)
	}

	lines, err := formatInstructions(c.Instructions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	l.Instructions = lines
	return l, nil
}

func listingConst(k vm.Value, format string, parent *Listing, names map[*vm.Code]string, taken map[string]bool) (any, error) {
	switch x := k.(type) {
	case nil, vm.NoneType:
		if format == FormatYAML {
			return nil, nil
		}
		return map[string]any{"none": true}, nil
	case vm.Bool:
		return bool(x), nil
	case bool, int, float64, string:
		return x, nil
	case int64:
		return int(x), nil
	case *big.Int:
		if x.IsInt64() {
			return int(x.Int64()), nil
		}
		return map[string]any{"int": x.String()}, nil
	case *vm.Tuple:
		items := []any{}
		for _, item := range x.Items() {
			v, err := listingConst(item, format, parent, names, taken)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case *vm.Code:
		name, ok := names[x]
		if !ok {
			name = x.Name
			for i := 2; taken[name]; i++ {
				name = fmt.Sprintf("%s_%d", x.Name, i)
			}
			taken[name] = true
			names[x] = name
			fl, err := toListing(x, format, names, taken)
			if err != nil {
				return nil, err
			}
			if parent.Functions == nil {
				parent.Functions = map[string]*Listing{}
			}
			parent.Functions[name] = fl
		}
		return map[string]any{"code": name}, nil
	}
	return nil, fmt.Errorf("cannot list a '%s' constant", vm.TypeOf(k).Name())
}

func formatInstructions(code []uint16) ([]string, error) {
	instrs, err := decode(code)
	if err != nil {
		return nil, err
	}
	targets := map[int]string{}
	target := func(pc int) string {
		if pc >= 0 && pc < len(code) {
			pc = instrs[pc].pc
		}
		if name, ok := targets[pc]; ok {
			return name
		}
		name := fmt.Sprintf("L%d", pc)
		targets[pc] = name
		return name
	}

	// First pass names every jump target.
	args := map[int]string{}
	for pc, in := range instrs {
		if in.pc != pc {
			continue
		}
		info := in.op.Info()
		switch {
		case info.Jump && in.op == opcode.JumpBackward:
			args[pc] = target(in.next - in.arg)
		case info.Jump && relativeJump(in.op):
			args[pc] = target(in.next + in.arg)
		case info.Jump:
			args[pc] = target(in.arg)
		case in.op == opcode.BinaryOp && in.arg < len(opcode.NbOperators):
			args[pc] = opcode.NbOperators[in.arg]
		case in.op == opcode.CompareOp && in.arg < len(opcode.CmpOperators):
			args[pc] = opcode.CmpOperators[in.arg]
		case info.HasArg:
			args[pc] = strconv.Itoa(in.arg)
		}
	}

	var lines []string
	for pc, in := range instrs {
		if in.pc != pc {
			continue
		}
		if name, ok := targets[pc]; ok {
			lines = append(lines, name+":")
		}
		if a, ok := args[pc]; ok {
			lines = append(lines, in.op.Name()+" "+a)
		} else {
			lines = append(lines, in.op.Name())
		}
	}
	for pc := range targets {
		if pc < 0 || pc >= len(code) {
			return nil, fmt.Errorf("jump target %d out of range", pc)
		}
	}
	return lines, nil
}
