package vm

// Comparison is one of the rich comparisons, or a containment or identity
// test expressed in the same form.
type Comparison uint8

const (
	LT Comparison = iota
	LE
	EQ
	NE
	GT
	GE
	In
	NotIn
	IsSame
	IsNot
)

type comparisonInfo struct {
	text    string
	slot    Slot
	swapped Comparison
	toBool  func(c int) bool
}

var comparisons = [...]comparisonInfo{
	LT:     {"<", OpLT, GT, func(c int) bool { return c < 0 }},
	LE:     {"<=", OpLE, GE, func(c int) bool { return c <= 0 }},
	EQ:     {"==", OpEQ, EQ, func(c int) bool { return c == 0 }},
	NE:     {"!=", OpNE, NE, func(c int) bool { return c != 0 }},
	GT:     {">", OpGT, LT, func(c int) bool { return c > 0 }},
	GE:     {">=", OpGE, LE, func(c int) bool { return c >= 0 }},
	In:     {"in", OpContains, In, func(c int) bool { return c >= 0 }},
	NotIn:  {"not in", OpContains, NotIn, func(c int) bool { return c < 0 }},
	IsSame: {"is", OpEQ, IsSame, func(c int) bool { return c == 0 }},
	IsNot:  {"is not", OpNE, IsNot, func(c int) bool { return c != 0 }},
}

// String returns the operator token.
func (c Comparison) String() string { return comparisons[c].text }

// Slot returns the slot implementing the comparison.
func (c Comparison) Slot() Slot { return comparisons[c].slot }

// Swapped returns the comparison with operands exchanged, e.g. LT for GT.
func (c Comparison) Swapped() Comparison { return comparisons[c].swapped }

// ToBool maps the result of a three-way comparison (negative, zero,
// positive) to the outcome of c. Types whose ordering is a single
// compare function build their six comparison slots from it.
func (c Comparison) ToBool(cmp int) bool { return comparisons[c].toBool(cmp) }

// RichCompare compares v and w. The result is whatever the winning
// special method returns, not necessarily a bool.
func RichCompare(v, w Value, c Comparison) (Value, error) {
	return richCompare(v, OpsOf(v), w, OpsOf(w), c)
}

func richCompare(v Value, vOps *Operations, w Value, wOps *Operations, c Comparison) (Value, error) {
	switch c {
	case IsSame:
		return Bool(Is(v, w)), nil
	case IsNot:
		return Bool(!Is(v, w)), nil
	case In, NotIn:
		found, err := containsOps(wOps, w, v)
		if err != nil {
			return nil, err
		}
		return Bool(found == (c == In)), nil
	}

	vt, wt := vOps.typ, wOps.typ
	s := c.Slot()
	ss := c.Swapped().Slot()

	if vt == wt {
		if vOps.Has(s) {
			r, err := vOps.Binary(s)(v, w)
			if err != nil || !isNotImplemented(r) {
				return r, err
			}
		}
	} else if !wt.IsSubtypeOf(vt) {
		if vOps.Has(s) {
			r, err := vOps.Binary(s)(v, w)
			if err != nil || !isNotImplemented(r) {
				return r, err
			}
		}
		if wOps.Has(ss) {
			r, err := wOps.Binary(ss)(w, v)
			if err != nil || !isNotImplemented(r) {
				return r, err
			}
		}
	} else {
		if wOps.Has(ss) {
			r, err := wOps.Binary(ss)(w, v)
			if err != nil || !isNotImplemented(r) {
				return r, err
			}
		}
		if vOps.Has(s) {
			r, err := vOps.Binary(s)(v, w)
			if err != nil || !isNotImplemented(r) {
				return r, err
			}
		}
	}

	switch c {
	case EQ:
		return Bool(Is(v, w)), nil
	case NE:
		return Bool(!Is(v, w)), nil
	}
	return nil, typeErrorf("'%s' not supported between instances of '%.100s' and '%.100s'", c, vt.name, wt.name)
}

// RichCompareBool compares v and w and reduces the result to a Go bool.
// Identity implies equality, as for container membership.
func RichCompareBool(v, w Value, c Comparison) (bool, error) {
	if Is(v, w) {
		switch c {
		case EQ:
			return true, nil
		case NE:
			return false, nil
		}
	}
	r, err := RichCompare(v, w, c)
	if err != nil {
		return false, err
	}
	return IsTrue(r)
}

// Equal reports whether v == w.
func Equal(v, w Value) (bool, error) { return RichCompareBool(v, w, EQ) }

// Contains reports whether item is in container, through __contains__.
func Contains(container, item Value) (bool, error) {
	return containsOps(OpsOf(container), container, item)
}

func containsOps(ops *Operations, container, item Value) (bool, error) {
	if !ops.Has(OpContains) {
		return false, typeErrorf("'%.200s' object is not a container", ops.typ.name)
	}
	return ops.Contains()(container, item)
}
