package vm

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Flags are feature flags of a Type.
type Flags uint16

const (
	// Final types may not be subclassed.
	Final Flags = 1 << iota
	// Immutable types reject attribute assignment on the type object.
	Immutable
	// Abstract types cannot be instantiated directly.
	Abstract
	// HasDict types give each instance an attribute dictionary.
	HasDict
	// MethodDescriptor marks callables that bind to an instance on
	// attribute access and accept that instance as first argument, so
	// that method lookup may skip creating a bound object.
	MethodDescriptor
)

var (
	// typeLock serializes every mutation of a type namespace and every
	// type creation. Readers never take it.
	typeLock sync.Mutex

	// typeEpoch advances after every namespace mutation that may change
	// dispatch. Inline caches compare against it.
	typeEpoch atomic.Uint64
)

// instanceRep is the representation class of all derived-type instances.
var instanceRep = reflect.TypeOf((*Instance)(nil))

// Type is the runtime type object. A Type is shared by all goroutines; its
// namespace and Operations are replaced atomically under typeLock.
type Type struct {
	name     string
	qualname string
	doc      string
	meta     *Type
	bases    []*Type
	mro      []*Type
	flags    Flags

	dict atomic.Pointer[namespace]

	// reps lists adopted classes then accepted classes. Operations exist
	// for the adopted ones only.
	reps     []reflect.Type
	nAdopted int
	ops      []atomic.Pointer[Operations]

	// solid is the nearest ancestor with a host layout: t itself for a
	// builtin type, object for a plain derived type.
	solid   *Type
	derived bool
	newFn   NewFunc
	nslots  int

	subclasses []*Type // guarded by typeLock
}

// NewType creates and registers a type from its specification.
func NewType(spec *TypeSpec) (*Type, error) {
	typeLock.Lock()
	defer typeLock.Unlock()
	return newTypeLocked(spec, nil)
}

// MustNewType is NewType for builtin types created at start-up.
func MustNewType(spec *TypeSpec) *Type {
	t, err := NewType(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// newTypeLocked builds a type. When t is non-nil the type object was
// pre-allocated (bootstrap of type and object).
func newTypeLocked(spec *TypeSpec, t *Type) (*Type, error) {
	if spec.err != nil {
		return nil, spec.err
	}
	if t == nil {
		t = &Type{}
	}
	t.name = spec.name
	t.qualname = spec.qualname
	t.doc = spec.doc
	t.flags = spec.flags
	if t.meta == nil {
		t.meta = TypeType
	}

	bases := spec.bases
	if len(bases) == 0 && !spec.noBase {
		bases = []*Type{ObjectType}
	}
	for _, b := range bases {
		if b.flags&Final != 0 {
			return nil, typeErrorf("type '%.100s' is not an acceptable base type", b.name)
		}
	}
	t.bases = bases

	mro, err := linearize(t, bases)
	if err != nil {
		return nil, err
	}
	t.mro = mro

	if err := t.setLayout(spec); err != nil {
		return nil, err
	}

	t.dict.Store(t.buildNamespace(spec))

	t.ops = make([]atomic.Pointer[Operations], t.nAdopted)
	for i := 0; i < t.nAdopted; i++ {
		t.ops[i].Store(t.computeOps(i))
	}

	if err := t.register(); err != nil {
		return nil, err
	}
	for _, b := range bases {
		b.subclasses = append(b.subclasses, t)
	}
	typesLog.Debugf("created type %s mro=%v reps=%d", t.name, t.mroNames(), t.nAdopted)
	return t, nil
}

// setLayout fixes the representation classes, solid base and instance
// storage of t.
func (t *Type) setLayout(spec *TypeSpec) error {
	if len(spec.adopted) > 0 {
		t.reps = append(append([]reflect.Type(nil), spec.adopted...), spec.accepted...)
		t.nAdopted = len(spec.adopted)
		t.solid = t
		t.newFn = spec.newFn
	} else {
		t.reps = []reflect.Type{instanceRep}
		t.nAdopted = 1
		t.derived = true
		solid, err := solidBase(t.bases)
		if err != nil {
			return err
		}
		t.solid = solid
	}

	for _, b := range t.bases {
		if b.nslots > t.nslots {
			t.nslots = b.nslots
		}
		if b.flags&HasDict != 0 {
			t.flags |= HasDict
		}
	}
	return nil
}

// solidBase picks the most derived host layout among bases.
func solidBase(bases []*Type) (*Type, error) {
	var solid, slotted *Type
	for _, b := range bases {
		s := b.solid
		switch {
		case solid == nil || s.IsSubtypeOf(solid):
			solid = s
		case solid.IsSubtypeOf(s):
		default:
			return nil, typeErrorf("multiple bases have instance lay-out conflict")
		}
		if b.nslots > 0 {
			switch {
			case slotted == nil || b.IsSubtypeOf(slotted):
				slotted = b
			case slotted.IsSubtypeOf(b):
			default:
				return nil, typeErrorf("multiple bases have instance lay-out conflict")
			}
		}
	}
	if solid == nil {
		solid = ObjectType
	}
	return solid, nil
}

func (t *Type) buildNamespace(spec *TypeSpec) *namespace {
	b := newNamespaceBuilder()
	if spec.dict != nil {
		spec.dict.each(b.set)
	}
	for _, e := range spec.entries {
		b.set(e.name, e.make(t))
	}
	for _, s := range spec.slots {
		b.set(s.slot.MethodName(), newWrapperDescr(t, s.slot, s.impls))
	}
	for _, m := range spec.members {
		b.set(m.name, &MemberDescr{objclass: t, name: m.name, index: t.nslots, readonly: m.readonly})
		t.nslots++
	}
	if t.derived {
		if slots, ok := b.ns.get("__slots__"); ok {
			t.flags &^= HasDict
			for _, name := range slotNames(slots) {
				if name == "__dict__" {
					t.flags |= HasDict
					continue
				}
				b.set(name, &MemberDescr{objclass: t, name: name, index: t.nslots})
				t.nslots++
			}
			for _, base := range t.bases {
				if base.flags&HasDict != 0 {
					t.flags |= HasDict
				}
			}
		} else {
			t.flags |= HasDict
		}
		if t.flags&HasDict != 0 && !b.has("__dict__") && !t.solidHasDictAttr() {
			b.set("__dict__", &GetSetDescr{objclass: t, name: "__dict__", get: objectDictGet, set: objectDictSet})
		}
		// A class that defines equality without hashing is unhashable.
		if b.has("__eq__") && !b.has("__hash__") {
			b.set("__hash__", None)
		}
	}
	if !b.has("__doc__") {
		if spec.doc != "" {
			b.set("__doc__", spec.doc)
		} else {
			b.set("__doc__", None)
		}
	}
	return b.build()
}

// solidHasDictAttr reports whether a base already provides __dict__.
func (t *Type) solidHasDictAttr() bool {
	for _, b := range t.bases {
		if b.derived && b.flags&HasDict != 0 {
			return true
		}
	}
	return false
}

func slotNames(v Value) []string {
	if s, ok := v.(string); ok {
		return []string{s}
	}
	var names []string
	if items, ok := sequenceItems(v); ok {
		for _, x := range items {
			if s, ok := x.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names
}

// register binds the adopted classes of a builtin type in the registry.
func (t *Type) register() error {
	if t.derived {
		return nil
	}
	for i := 0; i < t.nAdopted; i++ {
		rep := t.reps[i]
		if rep == instanceRep {
			continue
		}
		if prev, loaded := registry.LoadOrStore(rep, &binding{typ: t, index: i}); loaded {
			return internalErrorf("class %s is already bound to type %s", rep, prev.(*binding).typ.name)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Name returns the type's name.
func (t *Type) Name() string { return t.name }

// QualName returns the qualified name.
func (t *Type) QualName() string { return t.qualname }

// Bases returns a copy of the base list.
func (t *Type) Bases() []*Type { return append([]*Type(nil), t.bases...) }

// MRO returns a copy of the resolution order, t first.
func (t *Type) MRO() []*Type { return append([]*Type(nil), t.mro...) }

// Flags returns the feature flags.
func (t *Type) Flags() Flags { return t.flags }

// IsFinal reports whether subclassing is forbidden.
func (t *Type) IsFinal() bool { return t.flags&Final != 0 }

// Reps returns the adopted representation classes.
func (t *Type) Reps() []reflect.Type { return append([]reflect.Type(nil), t.reps[:t.nAdopted]...) }

func (t *Type) hasRep(rep reflect.Type) bool {
	for _, r := range t.reps {
		if r == rep {
			return true
		}
	}
	return false
}

func (t *Type) mroNames() []string {
	names := make([]string, len(t.mro))
	for i, m := range t.mro {
		names[i] = m.name
	}
	return names
}

// IsSubtypeOf reports whether t is other or derives from it.
func (t *Type) IsSubtypeOf(other *Type) bool {
	if t == other {
		return true
	}
	for _, m := range t.mro {
		if m == other {
			return true
		}
	}
	return false
}

// Lookup finds name along the resolution order without invoking any
// descriptor.
func (t *Type) Lookup(name string) (Value, bool) {
	for _, m := range t.mro {
		if v, ok := m.dict.Load().get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// lookupWhere is Lookup that also reports the defining type.
func (t *Type) lookupWhere(name string) (Value, *Type) {
	for _, m := range t.mro {
		if v, ok := m.dict.Load().get(name); ok {
			return v, m
		}
	}
	return nil, nil
}

// Ops returns the Operations of the type's canonical representation.
func (t *Type) Ops() *Operations { return t.ops[0].Load() }

// Subclasses returns the direct subclasses.
func (t *Type) Subclasses() []*Type {
	typeLock.Lock()
	defer typeLock.Unlock()
	return append([]*Type(nil), t.subclasses...)
}

// ---------------------------------------------------------------------------
// Namespace mutation
// ---------------------------------------------------------------------------

// SetTypeAttr binds name in the namespace of t and recomputes any slot
// named by it, in t and every subtype.
func (t *Type) SetTypeAttr(name string, v Value) error {
	typeLock.Lock()
	defer typeLock.Unlock()
	if t.flags&Immutable != 0 {
		return typeErrorf("cannot set '%.100s' attribute of immutable type '%.100s'", name, t.name)
	}
	t.dict.Store(t.dict.Load().with(name, v))
	t.updateAfterSetAttr(name)
	return nil
}

// DelTypeAttr removes name from the namespace of t.
func (t *Type) DelTypeAttr(name string) error {
	typeLock.Lock()
	defer typeLock.Unlock()
	if t.flags&Immutable != 0 {
		return typeErrorf("cannot delete '%.100s' attribute of immutable type '%.100s'", name, t.name)
	}
	ns := t.dict.Load()
	if _, ok := ns.get(name); !ok {
		return attributeErrorf("type object '%.50s' has no attribute '%.400s'", t.name, name)
	}
	t.dict.Store(ns.without(name))
	t.updateAfterSetAttr(name)
	return nil
}

func (t *Type) updateAfterSetAttr(name string) {
	if s, ok := slotByName[name]; ok {
		t.updateSlot(s, map[*Type]bool{})
		typesLog.Debugf("slot %s of %s recomputed", s, t.name)
	}
	typeEpoch.Add(1)
}

// updateSlot re-resolves one slot for t and all its subtypes, replacing
// each affected Operations with a fresh copy.
func (t *Type) updateSlot(s Slot, done map[*Type]bool) {
	if done[t] {
		return
	}
	done[t] = true
	def, _ := t.Lookup(s.MethodName())
	for i := range t.ops {
		old := t.ops[i].Load()
		ops := *old
		ops.handles[s] = resolveHandle(s, t.reps[i], def)
		t.ops[i].Store(&ops)
	}
	for _, sub := range t.subclasses {
		sub.updateSlot(s, done)
	}
}

// ---------------------------------------------------------------------------
// Instantiation
// ---------------------------------------------------------------------------

// construct creates an uninitialized instance of t.
func (t *Type) construct(args []Value, kwnames []string) (Value, error) {
	if t.flags&Abstract != 0 {
		return nil, typeErrorf("cannot create '%.100s' instances", t.name)
	}
	if !t.derived {
		if t.newFn == nil {
			return nil, typeErrorf("cannot create '%.100s' instances", t.name)
		}
		return t.newFn(t, args, kwnames)
	}
	inst := &Instance{typ: t}
	if t.solid != ObjectType {
		if t.solid.newFn == nil {
			return nil, typeErrorf("cannot create '%.100s' instances", t.name)
		}
		base, err := t.solid.newFn(t.solid, args, kwnames)
		if err != nil {
			return nil, err
		}
		inst.Base = base
	}
	if t.flags&HasDict != 0 {
		inst.dict = NewDict()
	}
	if t.nslots > 0 {
		inst.slots = make([]Value, t.nslots)
	}
	return inst, nil
}
