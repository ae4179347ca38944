package vm

import "errors"

var errStop = NewException(StopIteration, "")

// SeqIterator iterates an object that supports __getitem__ with int
// indices, until IndexError.
type SeqIterator struct {
	seq   Value
	index int
}

func seqIterNext(v Value) (Value, error) {
	it := v.(*SeqIterator)
	if it.seq == nil {
		return nil, errStop
	}
	x, err := GetItem(it.seq, it.index)
	if err != nil {
		if errors.Is(err, IndexError) || errors.Is(err, StopIteration) {
			it.seq = nil
			return nil, errStop
		}
		return nil, err
	}
	it.index++
	return x, nil
}

type tupleIterator struct {
	items []Value
	index int
}

func tupleIterNext(v Value) (Value, error) {
	it := v.(*tupleIterator)
	if it.index >= len(it.items) {
		return nil, errStop
	}
	x := it.items[it.index]
	it.index++
	return x, nil
}

// listIterator sees items appended during iteration.
type listIterator struct {
	list  *List
	index int
}

func listIterNext(v Value) (Value, error) {
	it := v.(*listIterator)
	if it.list == nil || it.index >= len(it.list.items) {
		it.list = nil
		return nil, errStop
	}
	x := it.list.items[it.index]
	it.index++
	return x, nil
}

type strIterator struct {
	runes []rune
	index int
}

func strIterNext(v Value) (Value, error) {
	it := v.(*strIterator)
	if it.index >= len(it.runes) {
		return nil, errStop
	}
	x := string(it.runes[it.index])
	it.index++
	return x, nil
}

type dictKeyIterator struct {
	dict  *Dict
	index int
}

func dictKeyIterNext(v Value) (Value, error) {
	it := v.(*dictKeyIterator)
	for it.dict != nil && it.index < len(it.dict.entries) {
		e := it.dict.entries[it.index]
		it.index++
		if !e.deleted {
			return e.key, nil
		}
	}
	it.dict = nil
	return nil, errStop
}

func iterSelf(v Value) (Value, error) { return v, nil }

func iteratorSpec(name string, sample any, next UnaryFunc) *TypeSpec {
	return NewSpec(name).
		Adopt(sample).
		Flag(Final|Immutable).
		Slot(OpIter, iterSelf).
		Slot(OpNext, next)
}

func iteratorSpecs() []*TypeSpec {
	return []*TypeSpec{
		iteratorSpec("iterator", (*SeqIterator)(nil), seqIterNext),
		iteratorSpec("tuple_iterator", (*tupleIterator)(nil), tupleIterNext),
		iteratorSpec("list_iterator", (*listIterator)(nil), listIterNext),
		iteratorSpec("str_iterator", (*strIterator)(nil), strIterNext),
		iteratorSpec("dict_keyiterator", (*dictKeyIterator)(nil), dictKeyIterNext),
	}
}
