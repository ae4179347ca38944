package vm

import (
	"fmt"
	"strings"
)

// Shape is the calling convention an Adapter is invoked with. Fixed shapes
// take their arguments directly and never build an argument array.
type Shape uint8

const (
	NoArgs     Shape = iota // f()
	O1                      // f(a)
	O2                      // f(a, b)
	O3                      // f(a, b, c)
	Positional              // f(*args), or more than three positional-only parameters
	General                 // keywords, defaults or collectors: parsed into a frame
)

var shapeNames = [...]string{"NOARGS", "O1", "O2", "O3", "POSITIONAL", "GENERAL"}

func (s Shape) String() string { return shapeNames[s] }

// Signature describes the parameters of a callable. Params are bound
// positionally or by keyword, except the first PosOnly of them which are
// positional only. Defaults apply to the trailing Params.
type Signature struct {
	Name       string
	Params     []string
	PosOnly    int
	KwOnly     []string
	Defaults   []Value
	KwDefaults map[string]Value
	VarArgs    string
	VarKwargs  string
}

// NewSignature describes a callable whose parameters are all positional
// only, the common case for functions implemented in Go.
func NewSignature(name string, params ...string) *Signature {
	return &Signature{Name: name, Params: params, PosOnly: len(params)}
}

// WithKeywords allows all parameters to be passed by keyword.
func (s *Signature) WithKeywords() *Signature {
	s.PosOnly = 0
	return s
}

// WithDefaults supplies defaults for the trailing parameters.
func (s *Signature) WithDefaults(defaults ...Value) *Signature {
	s.Defaults = defaults
	return s
}

// WithKwOnly adds a keyword-only parameter; a nil default makes it required.
func (s *Signature) WithKwOnly(name string, def Value) *Signature {
	s.KwOnly = append(s.KwOnly, name)
	if def != nil {
		if s.KwDefaults == nil {
			s.KwDefaults = map[string]Value{}
		}
		s.KwDefaults[name] = def
	}
	return s
}

// WithVarArgs adds a collector for excess positional arguments.
func (s *Signature) WithVarArgs(name string) *Signature {
	s.VarArgs = name
	return s
}

// WithVarKwargs adds a collector for excess keyword arguments.
func (s *Signature) WithVarKwargs(name string) *Signature {
	s.VarKwargs = name
	return s
}

// Shape classifies the signature.
func (s *Signature) Shape() Shape {
	if s.VarKwargs != "" || len(s.KwOnly) > 0 || len(s.Defaults) > 0 || s.PosOnly < len(s.Params) {
		return General
	}
	if s.VarArgs != "" {
		return Positional
	}
	switch len(s.Params) {
	case 0:
		return NoArgs
	case 1:
		return O1
	case 2:
		return O2
	case 3:
		return O3
	}
	return Positional
}

// FrameSize is the number of values a parsed call produces: parameters,
// keyword-only parameters, then the collectors.
func (s *Signature) FrameSize() int {
	n := len(s.Params) + len(s.KwOnly)
	if s.VarArgs != "" {
		n++
	}
	if s.VarKwargs != "" {
		n++
	}
	return n
}

func (s *Signature) String() string {
	var parts []string
	for i, p := range s.Params {
		d := len(s.Params) - len(s.Defaults)
		if i >= d {
			p += "=" + safeRepr(s.Defaults[i-d])
		}
		parts = append(parts, p)
		if i == s.PosOnly-1 {
			parts = append(parts, "/")
		}
	}
	if s.VarArgs != "" {
		parts = append(parts, "*"+s.VarArgs)
	} else if len(s.KwOnly) > 0 {
		parts = append(parts, "*")
	}
	for _, k := range s.KwOnly {
		if d, ok := s.KwDefaults[k]; ok {
			k += "=" + safeRepr(d)
		}
		parts = append(parts, k)
	}
	if s.VarKwargs != "" {
		parts = append(parts, "**"+s.VarKwargs)
	}
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(parts, ", "))
}

func (s *Signature) parser() *ArgParser {
	return newArgParser(s.Name, s.Params, s.PosOnly, s.KwOnly, s.VarArgs != "", s.VarKwargs != "")
}

// ---------------------------------------------------------------------------
// ArgParser
// ---------------------------------------------------------------------------

// ArgParser binds a vector call (positional values followed by the values
// of keyword arguments named in kwnames) to a frame laid out as
// parameters, keyword-only parameters, *args tuple, **kwargs dict. It is
// shared by Go callables and bytecode functions.
type ArgParser struct {
	name      string
	params    []string
	posOnly   int
	kwOnly    []string
	varArgs   bool
	varKwargs bool
	index     map[string]int
	size      int
}

func newArgParser(name string, params []string, posOnly int, kwOnly []string, varArgs, varKwargs bool) *ArgParser {
	p := &ArgParser{
		name:      name,
		params:    params,
		posOnly:   posOnly,
		kwOnly:    kwOnly,
		varArgs:   varArgs,
		varKwargs: varKwargs,
		index:     make(map[string]int, len(params)-posOnly+len(kwOnly)),
	}
	for i := posOnly; i < len(params); i++ {
		p.index[params[i]] = i
	}
	for j, k := range kwOnly {
		p.index[k] = len(params) + j
	}
	p.size = len(params) + len(kwOnly)
	if varArgs {
		p.size++
	}
	if varKwargs {
		p.size++
	}
	return p
}

// Size is the number of frame entries Parse fills.
func (p *ArgParser) Size() int { return p.size }

// Parse binds args into a new frame.
func (p *ArgParser) Parse(args []Value, kwnames []string, defaults []Value, kwdefaults map[string]Value) ([]Value, error) {
	frame := make([]Value, p.size)
	if err := p.ParseInto(frame, args, kwnames, defaults, kwdefaults); err != nil {
		return nil, err
	}
	return frame, nil
}

// ParseInto binds args into frame, which must have at least Size entries
// all nil.
func (p *ArgParser) ParseInto(frame, args []Value, kwnames []string, defaults []Value, kwdefaults map[string]Value) error {
	npos := len(args) - len(kwnames)
	if npos < 0 {
		return internalErrorf("%s: %d keyword names for %d arguments", p.name, len(kwnames), len(args))
	}
	nparams := len(p.params)
	next := nparams + len(p.kwOnly)

	n := npos
	if n > nparams {
		n = nparams
	}
	copy(frame, args[:n])

	if p.varArgs {
		if npos > nparams {
			frame[next] = NewTuple(append([]Value(nil), args[nparams:npos]...)...)
		} else {
			frame[next] = EmptyTuple
		}
		next++
	} else if npos > nparams {
		return p.tooManyPositional(npos, len(defaults), kwnames)
	}

	var kwargs *Dict
	if p.varKwargs {
		kwargs = NewDict()
		frame[next] = kwargs
	}

	var posAsKw []string
	for i, name := range kwnames {
		v := args[npos+i]
		if idx, ok := p.index[name]; ok {
			if frame[idx] != nil {
				return typeErrorf("%s() got multiple values for argument '%s'", p.name, name)
			}
			frame[idx] = v
			continue
		}
		if kwargs != nil {
			kwargs.SetStr(name, v)
			continue
		}
		if p.isPosOnly(name) {
			posAsKw = append(posAsKw, name)
			continue
		}
		return typeErrorf("%s() got an unexpected keyword argument '%s'", p.name, name)
	}
	if len(posAsKw) > 0 {
		return typeErrorf("%s() got some positional-only arguments passed as keyword arguments: '%s'",
			p.name, strings.Join(posAsKw, ", "))
	}

	firstDefault := nparams - len(defaults)
	var missing []string
	for i := n; i < nparams; i++ {
		if frame[i] != nil {
			continue
		}
		if i >= firstDefault {
			frame[i] = defaults[i-firstDefault]
		} else {
			missing = append(missing, p.params[i])
		}
	}
	if len(missing) > 0 {
		return p.missingArguments(missing, "positional")
	}

	missing = missing[:0]
	for j, k := range p.kwOnly {
		idx := nparams + j
		if frame[idx] != nil {
			continue
		}
		if d, ok := kwdefaults[k]; ok {
			frame[idx] = d
		} else {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return p.missingArguments(missing, "keyword-only")
	}
	return nil
}

func (p *ArgParser) isPosOnly(name string) bool {
	for _, q := range p.params[:p.posOnly] {
		if q == name {
			return true
		}
	}
	return false
}

func (p *ArgParser) tooManyPositional(given, ndefaults int, kwnames []string) error {
	max := len(p.params)
	min := max - ndefaults
	var takes string
	switch {
	case min < max:
		takes = fmt.Sprintf("from %d to %d positional arguments", min, max)
	case max == 1:
		takes = "1 positional argument"
	default:
		takes = fmt.Sprintf("%d positional arguments", max)
	}
	kw := ""
	if len(kwnames) > 0 {
		kw = fmt.Sprintf(" positional argument%s (and %d keyword-only argument%s)",
			plural(given), len(kwnames), plural(len(kwnames)))
		return typeErrorf("%s() takes %s but %d%s were given", p.name, takes, given, kw)
	}
	verb := "were"
	if given == 1 {
		verb = "was"
	}
	return typeErrorf("%s() takes %s but %d %s given", p.name, takes, given, verb)
}

func (p *ArgParser) missingArguments(names []string, kind string) error {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	var list string
	switch len(quoted) {
	case 1:
		list = quoted[0]
	case 2:
		list = quoted[0] + " and " + quoted[1]
	default:
		list = strings.Join(quoted[:len(quoted)-1], ", ") + ", and " + quoted[len(quoted)-1]
	}
	return typeErrorf("%s() missing %d required %s argument%s: %s",
		p.name, len(names), kind, plural(len(names)), list)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
