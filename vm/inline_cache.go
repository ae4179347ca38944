package vm

import (
	"sync"
	"sync/atomic"
)

// Inline Caching for Operand Dispatch
//
// Each BINARY_OP and COMPARE_OP instruction remembers the Operations of
// the representation classes it has seen:
// - most sites see a single class (monomorphic)
// - some see a handful (polymorphic, up to MaxPICEntries)
// - a few see many (megamorphic: the cache stops recording)
//
// Entries are valid for one type epoch only. Any namespace mutation
// advances the epoch, so a cache can never return Operations that a
// mutation has replaced.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single class cached
	CachePolymorphic                   // 2-6 entries in PIC
	CacheMegamorphic                   // Too many classes, use full lookup
)

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached lookup result.
type InlineCacheEntry struct {
	Key any // reflect.Type of the value, or *Type for derived instances
	Ops *Operations
}

type cacheSnapshot struct {
	epoch   uint64
	state   CacheState
	count   int
	entries [MaxPICEntries]InlineCacheEntry
}

var emptySnapshot = &cacheSnapshot{}

// InlineCache is the cache for a single operand position of one
// instruction. It may be shared by goroutines running the same code;
// updates publish a new snapshot and a lost race only loses an entry.
type InlineCache struct {
	snap atomic.Pointer[cacheSnapshot]

	// Statistics for profiling
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (ic *InlineCache) load() *cacheSnapshot {
	if s := ic.snap.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// State returns the current cache state.
func (ic *InlineCache) State() CacheState { return ic.load().state }

// Count returns the number of valid entries.
func (ic *InlineCache) Count() int { return ic.load().count }

// Hits returns the number of lookups answered from the cache.
func (ic *InlineCache) Hits() uint64 { return ic.hits.Load() }

// Misses returns the number of lookups not answered from the cache.
func (ic *InlineCache) Misses() uint64 { return ic.misses.Load() }

// Lookup returns the cached Operations for key, or nil on a miss or when
// the cache predates the current type epoch.
func (ic *InlineCache) Lookup(key any) *Operations {
	s := ic.load()
	if s.epoch == typeEpoch.Load() {
		switch s.state {
		case CacheMonomorphic:
			if s.entries[0].Key == key {
				ic.hits.Add(1)
				return s.entries[0].Ops
			}
		case CachePolymorphic:
			for i := 0; i < s.count; i++ {
				if s.entries[i].Key == key {
					ic.hits.Add(1)
					return s.entries[i].Ops
				}
			}
		}
	}
	ic.misses.Add(1)
	return nil
}

// Update records a (key, ops) pair, potentially upgrading the cache state.
// A snapshot from an older epoch is discarded first.
func (ic *InlineCache) Update(key any, ops *Operations) {
	ic.update(key, ops, typeEpoch.Load())
}

// update records ops as valid for epoch, which must have been read before
// ops was looked up.
func (ic *InlineCache) update(key any, ops *Operations, epoch uint64) {
	if ops == nil {
		return
	}
	raw := ic.snap.Load()
	var s cacheSnapshot
	if raw != nil && raw.epoch == epoch {
		s = *raw
	} else {
		s.epoch = epoch
	}

	switch s.state {
	case CacheEmpty:
		s.state = CacheMonomorphic
		s.entries[0] = InlineCacheEntry{Key: key, Ops: ops}
		s.count = 1

	case CacheMonomorphic:
		if s.entries[0].Key == key {
			s.entries[0].Ops = ops
			break
		}
		s.state = CachePolymorphic
		s.entries[1] = InlineCacheEntry{Key: key, Ops: ops}
		s.count = 2

	case CachePolymorphic:
		if i := s.find(key); i >= 0 {
			s.entries[i].Ops = ops
			break
		}
		if s.count < MaxPICEntries {
			s.entries[s.count] = InlineCacheEntry{Key: key, Ops: ops}
			s.count++
		} else {
			s.state = CacheMegamorphic
			s.entries = [MaxPICEntries]InlineCacheEntry{}
			s.count = 0
		}

	case CacheMegamorphic:
		return
	}
	ic.snap.CompareAndSwap(raw, &s)
}

func (s *cacheSnapshot) find(key any) int {
	for i := 0; i < s.count; i++ {
		if s.entries[i].Key == key {
			return i
		}
	}
	return -1
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	hits, misses := ic.hits.Load(), ic.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state.
func (ic *InlineCache) Reset() {
	ic.snap.Store(nil)
	ic.hits.Store(0)
	ic.misses.Store(0)
}

// lookupOps answers OpsOf(v) through the cache.
func (ic *InlineCache) lookupOps(v Value) *Operations {
	key := opsKey(v)
	if ops := ic.Lookup(key); ops != nil {
		return ops
	}
	epoch := typeEpoch.Load()
	ops := OpsOf(v)
	ic.update(key, ops, epoch)
	return ops
}

// ---------------------------------------------------------------------------
// Per-code cache table
// ---------------------------------------------------------------------------

// operandCaches is the pair of caches of a binary instruction.
type operandCaches struct {
	left, right InlineCache
}

// InlineCacheTable holds the operand caches of all binary instructions in
// a code object, indexed by instruction position.
type InlineCacheTable struct {
	mu     sync.Mutex
	caches map[int]*operandCaches
}

// NewInlineCacheTable creates a new inline cache table.
func NewInlineCacheTable() *InlineCacheTable {
	return &InlineCacheTable{caches: make(map[int]*operandCaches)}
}

// getOrCreate returns the caches for the instruction at pc.
func (t *InlineCacheTable) getOrCreate(pc int) *operandCaches {
	t.mu.Lock()
	defer t.mu.Unlock()
	if oc := t.caches[pc]; oc != nil {
		return oc
	}
	oc := &operandCaches{}
	t.caches[pc] = oc
	return oc
}

// Get returns the left-operand cache for pc, or nil if none exists.
func (t *InlineCacheTable) Get(pc int) *InlineCache {
	t.mu.Lock()
	defer t.mu.Unlock()
	if oc := t.caches[pc]; oc != nil {
		return &oc.left
	}
	return nil
}

// Stats returns aggregate statistics for all caches in the table.
func (t *InlineCacheTable) Stats() (mono, poly, mega, empty int, totalHits, totalMisses uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, oc := range t.caches {
		for _, ic := range []*InlineCache{&oc.left, &oc.right} {
			switch ic.State() {
			case CacheMonomorphic:
				mono++
			case CachePolymorphic:
				poly++
			case CacheMegamorphic:
				mega++
			case CacheEmpty:
				empty++
			}
			totalHits += ic.Hits()
			totalMisses += ic.Misses()
		}
	}
	return
}

// Reset clears all caches in the table.
func (t *InlineCacheTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, oc := range t.caches {
		oc.left.Reset()
		oc.right.Reset()
	}
}

// ICStats holds aggregate inline cache statistics.
type ICStats struct {
	TotalSites      int     // Operand positions with caches
	Monomorphic     int     // Positions in monomorphic state
	Polymorphic     int     // Positions in polymorphic state
	Megamorphic     int     // Positions in megamorphic state
	Empty           int     // Positions never used in this epoch
	TotalHits       uint64  // Total cache hits
	TotalMisses     uint64  // Total cache misses
	HitRate         float64 // Overall hit rate percentage
	MonomorphicRate float64 // Percentage of used positions that are monomorphic
}

// CollectICStats gathers inline cache statistics from code objects and
// every code object nested in their constants.
func CollectICStats(codes ...*Code) ICStats {
	var stats ICStats
	seen := map[*Code]bool{}
	var walk func(c *Code)
	walk = func(c *Code) {
		if c == nil || seen[c] {
			return
		}
		seen[c] = true
		if c.caches != nil {
			mono, poly, mega, empty, hits, misses := c.caches.Stats()
			stats.Monomorphic += mono
			stats.Polymorphic += poly
			stats.Megamorphic += mega
			stats.Empty += empty
			stats.TotalHits += hits
			stats.TotalMisses += misses
			stats.TotalSites += mono + poly + mega + empty
		}
		for _, k := range c.Consts {
			if inner, ok := k.(*Code); ok {
				walk(inner)
			}
		}
	}
	for _, c := range codes {
		walk(c)
	}

	total := stats.TotalHits + stats.TotalMisses
	if total > 0 {
		stats.HitRate = float64(stats.TotalHits) * 100 / float64(total)
	}
	nonEmpty := stats.TotalSites - stats.Empty
	if nonEmpty > 0 {
		stats.MonomorphicRate = float64(stats.Monomorphic) * 100 / float64(nonEmpty)
	}
	return stats
}

// sites creates the caches of the instructions at pcs and returns them in
// a slice indexed by instruction position, for lock-free access.
func (t *InlineCacheTable) sites(n int, pcs []int) []*operandCaches {
	s := make([]*operandCaches, n)
	for _, pc := range pcs {
		s[pc] = t.getOrCreate(pc)
	}
	return s
}
