package vm

import (
	"fmt"
	"hash/maphash"
	"strings"
	"unicode"
	"unicode/utf8"
)

var strSeed = maphash.MakeSeed()

func strHash(s string) int {
	h := int(maphash.String(strSeed, s) >> 1)
	if h == -1 {
		h = -2
	}
	return h
}

func strSelf(v Value) string {
	s, _ := baseOf(v).(string)
	return s
}

// strRepr quotes s the way repr() does: single quotes unless s contains a
// single quote and no double quote.
func strRepr(s string) string {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < ' ' || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r):
			if r <= 0xff {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else if r <= 0xffff {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				fmt.Fprintf(&b, `\U%08x`, r)
			}
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// strIndex normalizes a possibly negative index into a length-n sequence.
func strIndex(key Value, n int, what string) (int, error) {
	if !OpsOf(key).Has(OpIndex) {
		return 0, typeErrorf("%s indices must be integers, not '%.200s'", what, TypeOf(key).name)
	}
	i, err := AsSize(key)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, NewException(IndexError, "%s index out of range", what)
	}
	return i, nil
}

func strGetItem(v, key Value) (Value, error) {
	runes := []rune(strSelf(v))
	i, err := strIndex(key, len(runes), "string")
	if err != nil {
		return nil, err
	}
	return string(runes[i]), nil
}

func strContains(v, item Value) (bool, error) {
	sub, ok := baseOf(item).(string)
	if !ok {
		return false, typeErrorf("'in <string>' requires string as left operand, not %.200s", TypeOf(item).name)
	}
	return strings.Contains(strSelf(v), sub), nil
}

func strConcat(v, w Value) (Value, error) {
	a, ok := baseOf(v).(string)
	if !ok {
		return NotImplemented, nil
	}
	b, ok := baseOf(w).(string)
	if !ok {
		return NotImplemented, nil
	}
	return a + b, nil
}

func strRepeat(v, n Value) (Value, error) {
	s, ok := baseOf(v).(string)
	if !ok || !OpsOf(n).Has(OpIndex) {
		return NotImplemented, nil
	}
	count, err := AsSize(n)
	if err != nil {
		return nil, err
	}
	if count <= 0 || s == "" {
		return "", nil
	}
	if len(s) > maxRepeatBytes/count {
		return nil, NewException(OverflowError, "repeated string is too long")
	}
	return strings.Repeat(s, count), nil
}

const maxRepeatBytes = 1 << 31

func strComparison(c Comparison) BinaryFunc {
	return func(v, w Value) (Value, error) {
		a, ok := baseOf(v).(string)
		if !ok {
			return NotImplemented, nil
		}
		b, ok := baseOf(w).(string)
		if !ok {
			return NotImplemented, nil
		}
		return Bool(c.ToBool(strings.Compare(a, b))), nil
	}
}

var strParser = newArgParser("str", []string{"object"}, 0, nil, false, false)

func strNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := strParser.Parse(args, kwnames, []Value{""}, nil)
	if err != nil {
		return nil, err
	}
	return Str(frame[0])
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func strJoin(sep string, iterable Value) (string, error) {
	var parts []string
	i := 0
	err := Iterate(iterable, func(x Value) error {
		s, ok := baseOf(x).(string)
		if !ok {
			return typeErrorf("sequence item %d: expected str instance, %.80s found", i, TypeOf(x).name)
		}
		parts = append(parts, s)
		i++
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, sep), nil
}

func strSplit(s string, frame []Value) (*List, error) {
	sep, maxsplit := frame[0], frame[1]
	n, err := AsInt(maxsplit)
	if err != nil {
		return nil, err
	}
	var parts []string
	if IsNone(sep) {
		parts = strings.Fields(s)
		if n >= 0 && len(parts) > n+1 {
			// Rejoin the tail from the original text after n splits.
			rest := s
			for i := 0; i < n; i++ {
				rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
				rest = rest[len(parts[i]):]
			}
			parts = append(parts[:n], strings.TrimLeftFunc(rest, unicode.IsSpace))
		}
	} else {
		d, ok := baseOf(sep).(string)
		if !ok {
			return nil, typeErrorf("must be str or None, not %.200s", TypeOf(sep).name)
		}
		if d == "" {
			return nil, NewException(ValueError, "empty separator")
		}
		parts = strings.SplitN(s, d, n+1)
		if n < 0 {
			parts = strings.Split(s, d)
		}
	}
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = p
	}
	return NewList(items...), nil
}

func strFind(s, sub string) (int, error) {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1, nil
	}
	return utf8.RuneCountInString(s[:i]), nil
}

func strStrip(s string, chars Value) (string, error) {
	if IsNone(chars) {
		return strings.TrimSpace(s), nil
	}
	cs, ok := baseOf(chars).(string)
	if !ok {
		return "", typeErrorf("strip arg must be None or str")
	}
	return strings.Trim(s, cs), nil
}

func strPrefixCheck(name string, check func(s, affix string) bool) func(string, Value) (bool, error) {
	return func(s string, affix Value) (bool, error) {
		if t, ok := baseOf(affix).(*Tuple); ok {
			for _, x := range t.items {
				a, ok := baseOf(x).(string)
				if !ok {
					return false, typeErrorf("tuple for %s must only contain str, not %.100s", name, TypeOf(x).name)
				}
				if check(s, a) {
					return true, nil
				}
			}
			return false, nil
		}
		a, ok := baseOf(affix).(string)
		if !ok {
			return false, typeErrorf("%s first arg must be str or a tuple of str, not %.100s", name, TypeOf(affix).name)
		}
		return check(s, a), nil
	}
}

func strSpec() *TypeSpec {
	s := NewSpec("str").
		Doc("str(object='') -> str").
		Adopt("").
		Flag(Immutable).
		New(strNew).
		Slot(OpRepr, func(v Value) (Value, error) { return strRepr(strSelf(v)), nil }).
		Slot(OpStr, func(v Value) (Value, error) { return strSelf(v), nil }).
		Slot(OpHash, func(v Value) (int, error) { return strHash(strSelf(v)), nil }).
		Slot(OpLen, func(v Value) (int, error) { return utf8.RuneCountInString(strSelf(v)), nil }).
		Slot(OpContains, strContains).
		Slot(OpGetItem, strGetItem).
		Slot(OpIter, func(v Value) (Value, error) { return &strIterator{runes: []rune(strSelf(v))}, nil }).
		Slot(OpAdd, strConcat).
		Slot(OpMul, strRepeat).
		Slot(OpRmul, strRepeat).
		Method(Method0(NewSignature("upper"), func(s string) (string, error) { return strings.ToUpper(s), nil })).
		Method(Method0(NewSignature("lower"), func(s string) (string, error) { return strings.ToLower(s), nil })).
		Method(Method1(NewSignature("strip", "chars").WithDefaults(None), strStrip)).
		Method(Method1(NewSignature("join", "iterable"), strJoin)).
		Method(MethodGeneral(NewSignature("split", "sep", "maxsplit").WithKeywords().WithDefaults(None, -1), strSplit)).
		Method(Method2(NewSignature("replace", "old", "new"), func(s, old, repl string) (string, error) {
			return strings.ReplaceAll(s, old, repl), nil
		})).
		Method(Method1(NewSignature("find", "sub"), strFind)).
		Method(Method1(NewSignature("count", "sub"), func(s, sub string) (int, error) {
			if sub == "" {
				return utf8.RuneCountInString(s) + 1, nil
			}
			return strings.Count(s, sub), nil
		})).
		Method(Method1(NewSignature("startswith", "prefix"), strPrefixCheck("startswith", strings.HasPrefix))).
		Method(Method1(NewSignature("endswith", "suffix"), strPrefixCheck("endswith", strings.HasSuffix))).
		Method(Method0(NewSignature("isdigit"), func(s string) (bool, error) {
			if s == "" {
				return false, nil
			}
			for _, r := range s {
				if !unicode.IsDigit(r) {
					return false, nil
				}
			}
			return true, nil
		}))
	for _, c := range []Comparison{LT, LE, EQ, NE, GT, GE} {
		s.Slot(c.Slot(), strComparison(c))
	}
	return s
}
