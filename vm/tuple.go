package vm

import "strings"

// Tuple is an immutable sequence.
type Tuple struct {
	items []Value
}

// EmptyTuple is the shared empty tuple.
var EmptyTuple = &Tuple{}

// NewTuple returns a tuple holding items. The slice is retained.
func NewTuple(items ...Value) *Tuple {
	if len(items) == 0 {
		return EmptyTuple
	}
	return &Tuple{items: items}
}

// Items returns the elements. The caller must not modify them.
func (t *Tuple) Items() []Value { return t.items }

// Len returns the number of elements.
func (t *Tuple) Len() int { return len(t.items) }

func tupleSelf(v Value) *Tuple {
	t, _ := baseOf(v).(*Tuple)
	return t
}

// seqRepr formats items between open and close, calling repr on each.
func seqRepr(open, close string, items []Value) (string, error) {
	var b strings.Builder
	b.WriteString(open)
	for i, x := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := Repr(x)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString(close)
	return b.String(), nil
}

func tupleRepr(v Value) (Value, error) {
	t := tupleSelf(v)
	if len(t.items) == 1 {
		return seqRepr("(", ",)", t.items)
	}
	return seqRepr("(", ")", t.items)
}

// tupleHash combines item hashes with the xxHash-style mixing used for
// tuples, so equal tuples hash alike.
func tupleHash(v Value) (int, error) {
	const (
		prime1 = 11400714785074694791
		prime2 = 14029467366897019727
		prime5 = 2870177450012600261
	)
	acc := uint64(prime5)
	for _, x := range tupleSelf(v).items {
		h, err := Hash(x)
		if err != nil {
			return 0, err
		}
		acc += uint64(h) * prime2
		acc = acc<<31 | acc>>33
		acc *= prime1
	}
	acc += uint64(len(tupleSelf(v).items)) ^ (prime5 ^ 3527539)
	h := int(acc >> 1)
	if h == -1 {
		h = -2
	}
	return h, nil
}

func seqGetItem(items []Value, key Value, what string) (Value, error) {
	i, err := strIndex(key, len(items), what)
	if err != nil {
		return nil, err
	}
	return items[i], nil
}

func seqContains(items []Value, x Value) (bool, error) {
	for _, y := range items {
		eq, err := Equal(y, x)
		if err != nil || eq {
			return eq, err
		}
	}
	return false, nil
}

func seqCount(items []Value, x Value) (int, error) {
	n := 0
	for _, y := range items {
		eq, err := Equal(y, x)
		if err != nil {
			return 0, err
		}
		if eq {
			n++
		}
	}
	return n, nil
}

func seqIndex(items []Value, x Value, what string) (int, error) {
	for i, y := range items {
		eq, err := Equal(y, x)
		if err != nil {
			return 0, err
		}
		if eq {
			return i, nil
		}
	}
	return 0, NewException(ValueError, "%s.index(x): x not in %s", what, what)
}

// seqCompare orders two sequences lexicographically.
func seqCompare(a, b []Value, c Comparison) (Value, error) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if Is(a[i], b[i]) {
			continue
		}
		eq, err := Equal(a[i], b[i])
		if err != nil {
			return nil, err
		}
		if eq {
			continue
		}
		switch c {
		case EQ:
			return False, nil
		case NE:
			return True, nil
		}
		return RichCompare(a[i], b[i], c)
	}
	cmp := 0
	switch {
	case len(a) < len(b):
		cmp = -1
	case len(a) > len(b):
		cmp = 1
	}
	return Bool(c.ToBool(cmp)), nil
}

func seqRepeat(items []Value, n Value) ([]Value, bool, error) {
	if !OpsOf(n).Has(OpIndex) {
		return nil, false, nil
	}
	count, err := AsSize(n)
	if err != nil {
		return nil, true, err
	}
	if count <= 0 || len(items) == 0 {
		return nil, true, nil
	}
	if len(items) > maxRepeatBytes/count {
		return nil, true, NewException(OverflowError, "repeated sequence is too long")
	}
	out := make([]Value, 0, len(items)*count)
	for i := 0; i < count; i++ {
		out = append(out, items...)
	}
	return out, true, nil
}

func tupleComparison(c Comparison) BinaryFunc {
	return func(v, w Value) (Value, error) {
		a, ok := baseOf(v).(*Tuple)
		if !ok {
			return NotImplemented, nil
		}
		b, ok := baseOf(w).(*Tuple)
		if !ok {
			return NotImplemented, nil
		}
		return seqCompare(a.items, b.items, c)
	}
}

var tupleParser = newArgParser("tuple", []string{"iterable"}, 1, nil, false, false)

func tupleNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := tupleParser.Parse(args, kwnames, []Value{EmptyTuple}, nil)
	if err != nil {
		return nil, err
	}
	if x, ok := frame[0].(*Tuple); ok {
		return x, nil
	}
	items, err := Collect(frame[0])
	if err != nil {
		return nil, err
	}
	return NewTuple(items...), nil
}

func tupleSpec() *TypeSpec {
	s := NewSpec("tuple").
		Doc("Built-in immutable sequence.").
		Adopt((*Tuple)(nil)).
		Flag(Immutable).
		New(tupleNew).
		Slot(OpRepr, tupleRepr).
		Slot(OpHash, tupleHash).
		Slot(OpLen, func(v Value) (int, error) { return len(tupleSelf(v).items), nil }).
		Slot(OpGetItem, func(v, key Value) (Value, error) { return seqGetItem(tupleSelf(v).items, key, "tuple") }).
		Slot(OpContains, func(v, x Value) (bool, error) { return seqContains(tupleSelf(v).items, x) }).
		Slot(OpIter, func(v Value) (Value, error) { return &tupleIterator{items: tupleSelf(v).items}, nil }).
		Slot(OpAdd, func(v, w Value) (Value, error) {
			b, ok := baseOf(w).(*Tuple)
			if !ok {
				return NotImplemented, nil
			}
			a := tupleSelf(v)
			return NewTuple(append(append([]Value(nil), a.items...), b.items...)...), nil
		}).
		Slot(OpMul, tupleRepeat).
		Slot(OpRmul, tupleRepeat).
		Method(Method1(NewSignature("index", "value"), func(t *Tuple, x Value) (int, error) {
			return seqIndex(t.items, x, "tuple")
		})).
		Method(Method1(NewSignature("count", "value"), func(t *Tuple, x Value) (int, error) {
			return seqCount(t.items, x)
		}))
	for _, c := range []Comparison{LT, LE, EQ, NE, GT, GE} {
		s.Slot(c.Slot(), tupleComparison(c))
	}
	return s
}

func tupleRepeat(v, n Value) (Value, error) {
	items, ok, err := seqRepeat(tupleSelf(v).items, n)
	if !ok || err != nil {
		return orNotImplemented(ok), err
	}
	return NewTuple(items...), nil
}
