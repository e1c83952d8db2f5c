package intern

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kolkov/calltrack/internal/track/invariant"
)

const (
	// DefaultCapacity is the initial index capacity used when New is given 0.
	DefaultCapacity = 1024

	// chunkSize is the number of entries per arena chunk.
	chunkSize = 256

	// loadFactor triggers an index resize when exceeded after an insert.
	loadFactor = 0.75

	// emptySlot marks an unused index bucket. Buckets store slot+1.
	emptySlot = 0
)

// FNV-1a 64-bit parameters.
const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// lifetime is shared by a table and every entry it issues.
// Destroy flips alive to false, which invalidates all handles at once.
type lifetime struct {
	alive atomic.Bool
}

// entry is one interned string in the arena.
type entry struct {
	s    string
	hash uint64
	slot int
	life *lifetime
}

// Handle is an identity-comparable reference to an interned string.
//
// The zero Handle is the null string. Handles from the same table compare
// equal with == if and only if their content is equal.
type Handle struct {
	e *entry
}

// IsNil reports whether h is the null handle.
func (h Handle) IsNil() bool {
	return h.e == nil
}

// String returns the interned content.
//
// The null handle returns "". Reading a handle whose table was destroyed
// panics: the handle outlived its owner.
func (h Handle) String() string {
	if h.e == nil {
		return ""
	}
	invariant.Require(h.e.life.alive.Load(), "interned string used after table destroy", "table alive")
	return h.e.s
}

// Slot returns the arena slot of the handle, or -1 for the null handle.
func (h Handle) Slot() int {
	if h.e == nil {
		return -1
	}
	return h.e.slot
}

// Valid reports whether the handle is non-null and its table is alive.
func (h Handle) Valid() bool {
	return h.e != nil && h.e.life.alive.Load()
}

// Table is a deduplicating string table with handle stability.
//
// Thread Safety: All methods are safe for concurrent calls.
type Table struct {
	mu sync.Mutex

	// chunks is the arena. Each chunk has len == cap == chunkSize and is never
	// reallocated; only the outer slice grows.
	chunks [][]entry
	count  int

	// index holds slot+1 per bucket, emptySlot when unused.
	// len(index) is always a power of two.
	index []uint32

	bytes   int64
	resizes int
	life    *lifetime
}

// Stats describes table occupancy.
type Stats struct {
	Unique        int   // Number of unique strings.
	IndexCapacity int   // Number of index buckets.
	Chunks        int   // Number of arena chunks.
	Resizes       int   // Index rebuilds since creation.
	Bytes         int64 // Total bytes of interned content.
}

// New creates a table whose index starts with at least initialCapacity
// buckets (rounded up to a power of two). 0 selects DefaultCapacity.
func New(initialCapacity int) *Table {
	if initialCapacity <= 0 {
		initialCapacity = DefaultCapacity
	}

	capacity := 1
	for capacity < initialCapacity {
		capacity *= 2
	}

	t := &Table{
		index: make([]uint32, capacity),
		life:  &lifetime{},
	}
	t.life.alive.Store(true)
	return t
}

// Intern returns the handle for *s, or the null handle when s is nil.
//
// This is the nullable form used at the hook boundary where a host may not
// have a file name (builtins) or a type tag.
func (t *Table) Intern(s *string) Handle {
	if s == nil {
		return Handle{}
	}
	return t.InternString(*s)
}

// InternString returns the handle for s, inserting a copy on first sight.
//
// The empty string is a valid, non-null entry.
//
// Performance: one FNV-1a pass over s plus a short probe sequence under the
// table mutex. Inserting copies s so the caller's buffer may be reused.
func (t *Table) InternString(s string) Handle {
	hash := fnv1a(s)

	t.mu.Lock()
	defer t.mu.Unlock()

	invariant.Require(t.life.alive.Load(), "intern on destroyed string table", "table alive")

	bucket, found := t.find(s, hash)
	if found {
		return Handle{e: t.at(int(t.index[bucket] - 1))}
	}

	if float64(t.count+1)/float64(len(t.index)) > loadFactor {
		t.resize()
		bucket, found = t.find(s, hash)
		invariant.Require(!found, "string appeared during resize", "!found")
	}

	e := t.appendEntry(s, hash)
	//nolint:gosec // G115: slot count is bounded far below MaxUint32 by memory.
	t.index[bucket] = uint32(e.slot + 1)

	return Handle{e: e}
}

// Lookup returns the handle stored at an arena slot.
//
// Slots are dense: 0 <= slot < Count(). An out-of-range slot is a programming
// error.
func (t *Table) Lookup(slot int) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	invariant.Require(t.life.alive.Load(), "lookup on destroyed string table", "table alive")
	invariant.Require(slot >= 0 && slot < t.count, "string table lookup out of bounds", "0 <= slot < count")

	return Handle{e: t.at(slot)}
}

// Count returns the number of unique strings.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// IsInitialized reports whether the table has not been destroyed.
func (t *Table) IsInitialized() bool {
	return t.life.alive.Load()
}

// Stats returns a snapshot of table occupancy.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Unique:        t.count,
		IndexCapacity: len(t.index),
		Chunks:        len(t.chunks),
		Resizes:       t.resizes,
		Bytes:         t.bytes,
	}
}

// Destroy releases the arena and invalidates every handle.
//
// Idempotent. After Destroy, Intern and Lookup panic, and String on any
// previously issued handle panics.
func (t *Table) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.life.alive.Load() {
		return
	}
	t.life.alive.Store(false)

	// Entries stay reachable through outstanding handles so that a late
	// String() reports a violation instead of reading freed content. The
	// table drops its own references.
	t.chunks = nil
	t.index = nil
	t.count = 0
	t.bytes = 0
}

// find probes for s. It returns the bucket holding s, or the first empty
// bucket of the probe sequence. Caller holds t.mu.
func (t *Table) find(s string, hash uint64) (bucket int, found bool) {
	mask := uint64(len(t.index) - 1)
	idx := hash & mask
	start := idx

	for {
		slot := t.index[idx]
		if slot == emptySlot {
			return int(idx), false
		}

		e := t.at(int(slot - 1))
		if e.hash == hash && e.s == s {
			return int(idx), true
		}

		idx = (idx + 1) & mask
		if idx == start {
			break
		}
	}

	// Unreachable while the load factor check holds.
	invariant.Fail("string table index full")
	return 0, false
}

// resize doubles the index and rehashes every slot. The arena is untouched.
// Caller holds t.mu.
func (t *Table) resize() {
	old := t.index
	t.index = make([]uint32, len(old)*2)
	t.resizes++
	mask := uint64(len(t.index) - 1)

	for _, slot := range old {
		if slot == emptySlot {
			continue
		}
		idx := t.at(int(slot-1)).hash & mask
		for t.index[idx] != emptySlot {
			idx = (idx + 1) & mask
		}
		t.index[idx] = slot
	}
}

// appendEntry copies s into the arena. Caller holds t.mu.
func (t *Table) appendEntry(s string, hash uint64) *entry {
	if t.count == len(t.chunks)*chunkSize {
		t.chunks = append(t.chunks, make([]entry, chunkSize))
	}

	slot := t.count
	e := &t.chunks[slot/chunkSize][slot%chunkSize]
	// Detach from the caller's backing array.
	e.s = strings.Clone(s)
	e.hash = hash
	e.slot = slot
	e.life = t.life

	t.count++
	t.bytes += int64(len(s))
	return e
}

// at returns the arena entry for slot. Caller holds t.mu.
func (t *Table) at(slot int) *entry {
	return &t.chunks[slot/chunkSize][slot%chunkSize]
}

// fnv1a computes the FNV-1a hash of s without allocating.
func fnv1a(s string) uint64 {
	hash := uint64(fnvOffset)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= fnvPrime
	}
	return hash
}
