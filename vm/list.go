package vm

import (
	"slices"
)

// List is a mutable sequence. A List is not synchronized: sharing one
// between goroutines that mutate it needs external locking.
type List struct {
	items []Value
}

// NewList returns a list holding items. The slice is retained.
func NewList(items ...Value) *List {
	return &List{items: items}
}

// Items returns the elements. The caller must not modify them.
func (l *List) Items() []Value { return l.items }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.items) }

// Append adds x at the end.
func (l *List) Append(x Value) { l.items = append(l.items, x) }

func listSelf(v Value) *List {
	l, _ := baseOf(v).(*List)
	return l
}

// sort orders the list in place with the < operator. The sort is stable.
func (l *List) sort() error {
	var err error
	slices.SortStableFunc(l.items, func(a, b Value) int {
		if err != nil {
			return 0
		}
		lt, e := RichCompareBool(a, b, LT)
		if e != nil {
			err = e
			return 0
		}
		if lt {
			return -1
		}
		gt, e := RichCompareBool(b, a, LT)
		if e != nil {
			err = e
			return 0
		}
		if gt {
			return 1
		}
		return 0
	})
	return err
}

func listSetItem(v, key, x Value) error {
	l := listSelf(v)
	i, err := strIndex(key, len(l.items), "list assignment")
	if err != nil {
		return err
	}
	l.items[i] = x
	return nil
}

func listDelItem(v, key Value) error {
	l := listSelf(v)
	i, err := strIndex(key, len(l.items), "list assignment")
	if err != nil {
		return err
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

func listComparison(c Comparison) BinaryFunc {
	return func(v, w Value) (Value, error) {
		a, ok := baseOf(v).(*List)
		if !ok {
			return NotImplemented, nil
		}
		b, ok := baseOf(w).(*List)
		if !ok {
			return NotImplemented, nil
		}
		return seqCompare(a.items, b.items, c)
	}
}

func listRepeat(v, n Value) (Value, error) {
	items, ok, err := seqRepeat(listSelf(v).items, n)
	if !ok || err != nil {
		return orNotImplemented(ok), err
	}
	return NewList(items...), nil
}

func listPop(l *List, index int) (Value, error) {
	if len(l.items) == 0 {
		return nil, NewException(IndexError, "pop from empty list")
	}
	if index < 0 {
		index += len(l.items)
	}
	if index < 0 || index >= len(l.items) {
		return nil, NewException(IndexError, "pop index out of range")
	}
	x := l.items[index]
	l.items = slices.Delete(l.items, index, index+1)
	return x, nil
}

func listInsert(l *List, index int, x Value) (Value, error) {
	n := len(l.items)
	if index < 0 {
		index = max(index+n, 0)
	}
	index = min(index, n)
	l.items = slices.Insert(l.items, index, x)
	return nil, nil
}

func listRemove(l *List, x Value) (Value, error) {
	i, err := seqIndex(l.items, x, "list")
	if err != nil {
		if exc, ok := AsException(err); ok && exc.Kind == ValueError {
			return nil, NewException(ValueError, "list.remove(x): x not in list")
		}
		return nil, err
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil, nil
}

func listExtend(l *List, iterable Value) (Value, error) {
	items, err := Collect(iterable)
	if err != nil {
		return nil, err
	}
	l.items = append(l.items, items...)
	return nil, nil
}

var listParser = newArgParser("list", []string{"iterable"}, 1, nil, false, false)

func listNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := listParser.Parse(args, kwnames, []Value{EmptyTuple}, nil)
	if err != nil {
		return nil, err
	}
	items, err := Collect(frame[0])
	if err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

func listSpec() *TypeSpec {
	s := NewSpec("list").
		Doc("Built-in mutable sequence.").
		Adopt((*List)(nil)).
		Flag(Immutable).
		New(listNew).
		Attr("__hash__", None).
		Slot(OpRepr, func(v Value) (Value, error) { return seqRepr("[", "]", listSelf(v).items) }).
		Slot(OpLen, func(v Value) (int, error) { return len(listSelf(v).items), nil }).
		Slot(OpGetItem, func(v, key Value) (Value, error) { return seqGetItem(listSelf(v).items, key, "list") }).
		Slot(OpSetItem, listSetItem).
		Slot(OpDelItem, listDelItem).
		Slot(OpContains, func(v, x Value) (bool, error) { return seqContains(listSelf(v).items, x) }).
		Slot(OpIter, func(v Value) (Value, error) { return &listIterator{list: listSelf(v)}, nil }).
		Slot(OpAdd, func(v, w Value) (Value, error) {
			b, ok := baseOf(w).(*List)
			if !ok {
				return NotImplemented, nil
			}
			return NewList(append(append([]Value(nil), listSelf(v).items...), b.items...)...), nil
		}).
		Slot(OpMul, listRepeat).
		Slot(OpRmul, listRepeat).
		Method(Method1(NewSignature("append", "object"), func(l *List, x Value) (Value, error) {
			l.Append(x)
			return nil, nil
		})).
		Method(Method1(NewSignature("extend", "iterable"), listExtend)).
		Method(Method1(NewSignature("pop", "index").WithDefaults(-1), listPop)).
		Method(Method2(NewSignature("insert", "index", "object"), listInsert)).
		Method(Method1(NewSignature("remove", "value"), listRemove)).
		Method(Method1(NewSignature("index", "value"), func(l *List, x Value) (int, error) {
			return seqIndex(l.items, x, "list")
		})).
		Method(Method1(NewSignature("count", "value"), func(l *List, x Value) (int, error) {
			return seqCount(l.items, x)
		})).
		Method(Method0(NewSignature("reverse"), func(l *List) (Value, error) {
			slices.Reverse(l.items)
			return nil, nil
		})).
		Method(Method0(NewSignature("sort"), func(l *List) (Value, error) { return nil, l.sort() })).
		Method(Method0(NewSignature("copy"), func(l *List) (*List, error) {
			return NewList(slices.Clone(l.items)...), nil
		})).
		Method(Method0(NewSignature("clear"), func(l *List) (Value, error) {
			l.items = nil
			return nil, nil
		}))
	for _, c := range []Comparison{LT, LE, EQ, NE, GT, GE} {
		s.Slot(c.Slot(), listComparison(c))
	}
	return s
}
