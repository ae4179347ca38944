package vm

// namespace is an immutable attribute dictionary of a type. Writers build
// a modified copy and publish it atomically, so a reader holding a
// namespace never sees a partial edit.
type namespace struct {
	keys []string
	m    map[string]Value
}

var emptyNamespace = &namespace{m: map[string]Value{}}

func (ns *namespace) get(name string) (Value, bool) {
	v, ok := ns.m[name]
	return v, ok
}

func (ns *namespace) len() int { return len(ns.keys) }

// with returns a copy of ns in which name is bound to v.
func (ns *namespace) with(name string, v Value) *namespace {
	n := &namespace{m: make(map[string]Value, len(ns.m)+1)}
	for k, val := range ns.m {
		n.m[k] = val
	}
	n.keys = append(make([]string, 0, len(ns.keys)+1), ns.keys...)
	if _, ok := ns.m[name]; !ok {
		n.keys = append(n.keys, name)
	}
	n.m[name] = v
	return n
}

// without returns a copy of ns with name removed.
func (ns *namespace) without(name string) *namespace {
	n := &namespace{m: make(map[string]Value, len(ns.m))}
	n.keys = make([]string, 0, len(ns.keys))
	for _, k := range ns.keys {
		if k != name {
			n.keys = append(n.keys, k)
			n.m[k] = ns.m[k]
		}
	}
	return n
}

// each calls fn for every entry in insertion order.
func (ns *namespace) each(fn func(name string, v Value)) {
	for _, k := range ns.keys {
		fn(k, ns.m[k])
	}
}

// namespaceBuilder accumulates entries during type construction.
type namespaceBuilder struct {
	ns *namespace
}

func newNamespaceBuilder() *namespaceBuilder {
	return &namespaceBuilder{ns: &namespace{m: map[string]Value{}}}
}

func (b *namespaceBuilder) set(name string, v Value) {
	if _, ok := b.ns.m[name]; !ok {
		b.ns.keys = append(b.ns.keys, name)
	}
	b.ns.m[name] = v
}

func (b *namespaceBuilder) has(name string) bool {
	_, ok := b.ns.m[name]
	return ok
}

func (b *namespaceBuilder) build() *namespace { return b.ns }
