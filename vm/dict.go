package vm

import "strings"

// Dict is an insertion-ordered hash map keyed by hashable values. Like
// List it is not synchronized.
type Dict struct {
	entries []dictEntry
	index   map[int][]int
	used    int
}

type dictEntry struct {
	hash    int
	key     Value
	value   Value
	deleted bool
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{index: map[int][]int{}}
}

// Len returns the number of entries.
func (d *Dict) Len() int { return d.used }

// find returns the position of key in entries, or -1.
func (d *Dict) find(h int, key Value) (int, error) {
	for _, i := range d.index[h] {
		e := &d.entries[i]
		if e.deleted {
			continue
		}
		if ks, ok := e.key.(string); ok {
			if s, ok := key.(string); ok {
				if ks == s {
					return i, nil
				}
				continue
			}
		}
		eq, err := Equal(e.key, key)
		if err != nil {
			return -1, err
		}
		if eq {
			return i, nil
		}
	}
	return -1, nil
}

// Get returns the value stored under key.
func (d *Dict) Get(key Value) (Value, bool, error) {
	h, err := Hash(key)
	if err != nil {
		return nil, false, err
	}
	i, err := d.find(h, key)
	if err != nil || i < 0 {
		return nil, false, err
	}
	return d.entries[i].value, true, nil
}

// Set stores v under key.
func (d *Dict) Set(key, v Value) error {
	h, err := Hash(key)
	if err != nil {
		return err
	}
	return d.setHashed(h, key, v)
}

func (d *Dict) setHashed(h int, key, v Value) error {
	i, err := d.find(h, key)
	if err != nil {
		return err
	}
	if i >= 0 {
		d.entries[i].value = v
		return nil
	}
	d.index[h] = append(d.index[h], len(d.entries))
	d.entries = append(d.entries, dictEntry{hash: h, key: key, value: v})
	d.used++
	return nil
}

// Delete removes key, reporting whether it was present.
func (d *Dict) Delete(key Value) (bool, error) {
	h, err := Hash(key)
	if err != nil {
		return false, err
	}
	i, err := d.find(h, key)
	if err != nil || i < 0 {
		return false, err
	}
	d.remove(i)
	return true, nil
}

func (d *Dict) remove(i int) {
	e := &d.entries[i]
	ids := d.index[e.hash]
	for j, k := range ids {
		if k == i {
			ids = append(ids[:j:j], ids[j+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(d.index, e.hash)
	} else {
		d.index[e.hash] = ids
	}
	*e = dictEntry{deleted: true}
	d.used--
	if d.used == 0 {
		d.entries = d.entries[:0]
	}
}

// GetStr looks up a string key.
func (d *Dict) GetStr(key string) (Value, bool) {
	i, err := d.find(strHash(key), key)
	if err != nil || i < 0 {
		return nil, false
	}
	return d.entries[i].value, true
}

// SetStr stores v under a string key.
func (d *Dict) SetStr(key string, v Value) {
	if err := d.setHashed(strHash(key), key, v); err != nil {
		panic(internalErrorf("string key %q: %v", key, err))
	}
}

// DelStr removes a string key, reporting whether it was present.
func (d *Dict) DelStr(key string) bool {
	i, err := d.find(strHash(key), key)
	if err != nil || i < 0 {
		return false
	}
	d.remove(i)
	return true
}

// each calls fn for every entry in insertion order.
func (d *Dict) each(fn func(k, v Value)) {
	for i := 0; i < len(d.entries); i++ {
		if e := d.entries[i]; !e.deleted {
			fn(e.key, e.value)
		}
	}
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value {
	keys := make([]Value, 0, d.used)
	d.each(func(k, _ Value) { keys = append(keys, k) })
	return keys
}

// Copy returns a shallow copy.
func (d *Dict) Copy() *Dict {
	c := NewDict()
	for _, e := range d.entries {
		if !e.deleted {
			c.index[e.hash] = append(c.index[e.hash], len(c.entries))
			c.entries = append(c.entries, e)
			c.used++
		}
	}
	return c
}

// Update merges a mapping or an iterable of pairs into d.
func (d *Dict) Update(src Value) error {
	if o, ok := baseOf(src).(*Dict); ok {
		for _, e := range o.entries {
			if !e.deleted {
				if err := d.setHashed(e.hash, e.key, e.value); err != nil {
					return err
				}
			}
		}
		return nil
	}
	n := 0
	return Iterate(src, func(item Value) error {
		pair, err := Collect(item)
		if err != nil {
			return typeErrorf("cannot convert dictionary update sequence element #%d to a sequence", n)
		}
		if len(pair) != 2 {
			return NewException(ValueError, "dictionary update sequence element #%d has length %d; 2 is required", n, len(pair))
		}
		n++
		return d.Set(pair[0], pair[1])
	})
}

func dictSelf(v Value) *Dict {
	d, _ := baseOf(v).(*Dict)
	return d
}

func dictRepr(v Value) (Value, error) {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	var err error
	dictSelf(v).each(func(k, x Value) {
		if err != nil {
			return
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		var ks, xs string
		if ks, err = Repr(k); err != nil {
			return
		}
		if xs, err = Repr(x); err != nil {
			return
		}
		b.WriteString(ks)
		b.WriteString(": ")
		b.WriteString(xs)
	})
	if err != nil {
		return nil, err
	}
	b.WriteByte('}')
	return b.String(), nil
}

func dictGetItem(v, key Value) (Value, error) {
	x, ok, err := dictSelf(v).Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, keyError(key)
	}
	return x, nil
}

func keyError(key Value) error {
	return NewException(KeyError, "%s", safeRepr(key))
}

func dictDelItem(v, key Value) error {
	ok, err := dictSelf(v).Delete(key)
	if err != nil {
		return err
	}
	if !ok {
		return keyError(key)
	}
	return nil
}

func dictEq(v, w Value) (Value, error) {
	a := dictSelf(v)
	b, ok := baseOf(w).(*Dict)
	if !ok {
		return NotImplemented, nil
	}
	if a.used != b.used {
		return False, nil
	}
	for _, e := range a.entries {
		if e.deleted {
			continue
		}
		i, err := b.find(e.hash, e.key)
		if err != nil {
			return nil, err
		}
		if i < 0 {
			return False, nil
		}
		eq, err := Equal(e.value, b.entries[i].value)
		if err != nil || !eq {
			return Bool(eq), err
		}
	}
	return True, nil
}

func dictNew(t *Type, args []Value, kwnames []string) (Value, error) {
	frame, err := dictParser.Parse(args, kwnames, nil, nil)
	if err != nil {
		return nil, err
	}
	d := NewDict()
	pos := frame[0].(*Tuple)
	if len(pos.items) > 1 {
		return nil, typeErrorf("dict expected at most 1 argument, got %d", len(pos.items))
	}
	if len(pos.items) == 1 {
		if err := d.Update(pos.items[0]); err != nil {
			return nil, err
		}
	}
	if err := d.Update(frame[1]); err != nil {
		return nil, err
	}
	return d, nil
}

var dictParser = newArgParser("dict", nil, 0, nil, true, true)

func dictGet(d *Dict, key, def Value) (Value, error) {
	x, ok, err := d.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return x, nil
}

func dictPop(d *Dict, args []Value) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, typeErrorf("pop expected at most 2 arguments, got %d", len(args))
	}
	x, ok, err := d.Get(args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, keyError(args[0])
	}
	_, err = d.Delete(args[0])
	return x, err
}

func dictSetDefault(d *Dict, key, def Value) (Value, error) {
	x, ok, err := d.Get(key)
	if err != nil {
		return nil, err
	}
	if ok {
		return x, nil
	}
	return def, d.Set(key, def)
}

func dictSpec() *TypeSpec {
	return NewSpec("dict").
		Doc("dict() -> new empty dictionary").
		Adopt((*Dict)(nil)).
		Flag(Immutable).
		New(dictNew).
		Attr("__hash__", None).
		Slot(OpRepr, dictRepr).
		Slot(OpLen, func(v Value) (int, error) { return dictSelf(v).used, nil }).
		Slot(OpGetItem, dictGetItem).
		Slot(OpSetItem, func(v, key, x Value) error { return dictSelf(v).Set(key, x) }).
		Slot(OpDelItem, dictDelItem).
		Slot(OpContains, func(v, key Value) (bool, error) {
			_, ok, err := dictSelf(v).Get(key)
			return ok, err
		}).
		Slot(OpIter, func(v Value) (Value, error) { return &dictKeyIterator{dict: dictSelf(v)}, nil }).
		Slot(OpEQ, dictEq).
		Slot(OpNE, func(v, w Value) (Value, error) {
			r, err := dictEq(v, w)
			if b, ok := r.(Bool); ok {
				return !b, err
			}
			return r, err
		}).
		Method(Method2(NewSignature("get", "key", "default").WithDefaults(None), dictGet)).
		Method(MethodN(NewSignature("pop", "key").WithVarArgs("default"), dictPop)).
		Method(Method2(NewSignature("setdefault", "key", "default").WithDefaults(None), dictSetDefault)).
		Method(Method0(NewSignature("keys"), func(d *Dict) (*List, error) { return NewList(d.Keys()...), nil })).
		Method(Method0(NewSignature("values"), func(d *Dict) (*List, error) {
			vals := make([]Value, 0, d.used)
			d.each(func(_, v Value) { vals = append(vals, v) })
			return NewList(vals...), nil
		})).
		Method(Method0(NewSignature("items"), func(d *Dict) (*List, error) {
			items := make([]Value, 0, d.used)
			d.each(func(k, v Value) { items = append(items, NewTuple(k, v)) })
			return NewList(items...), nil
		})).
		Method(Method1(NewSignature("update", "other"), func(d *Dict, other Value) (Value, error) {
			return nil, d.Update(other)
		})).
		Method(Method0(NewSignature("copy"), func(d *Dict) (*Dict, error) { return d.Copy(), nil })).
		Method(Method0(NewSignature("clear"), func(d *Dict) (Value, error) {
			*d = *NewDict()
			return nil, nil
		}))
}
