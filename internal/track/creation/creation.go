// Package creation tracks where live objects were created.
//
// On a CREATE event the session stores a Record keyed by object identity. On
// the matching DESTROY event the record is taken out of the map (copied, then
// erased) and attached to the DESTROY event, so the event stays
// self-contained after the map entry is gone.
package creation

import (
	"sync"

	"github.com/kolkov/calltrack/internal/track/callstack"
	"github.com/kolkov/calltrack/internal/track/intern"
)

// MaxTraceback is the maximum number of frames kept in a creation traceback.
const MaxTraceback = 16

// Record is the creation context of one object.
//
// Traceback is innermost first and holds at most MaxTraceback frames.
type Record struct {
	Location  callstack.Frame   // Innermost frame at creation, NoFrame if none.
	Traceback []callstack.Frame // Bounded snapshot of the creating stack.
	TypeTag   intern.Handle     // Interned type name.
}

// Clone returns a deep copy of r. The traceback does not alias r's.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Traceback != nil {
		c.Traceback = make([]callstack.Frame, len(r.Traceback))
		copy(c.Traceback, r.Traceback)
	}
	return &c
}

// Capture builds a record from the current state of a goroutine's stack.
//
// depth is clamped to MaxTraceback.
func Capture(s *callstack.Stack, typeTag intern.Handle, depth int) Record {
	depth = min(max(depth, 0), MaxTraceback)

	r := Record{TypeTag: typeTag}
	if top, ok := s.Top(); ok {
		r.Location = top
		r.Traceback = s.Snapshot(depth)
	}
	return r
}

// Map associates object identities with creation records.
//
// Implementation:
//   - single mutex around a Go map
//   - records stored by value; callers only ever receive copies
//
// Thread Safety: All methods are safe for concurrent calls.
type Map struct {
	mu      sync.Mutex
	records map[uint64]Record
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{records: make(map[uint64]Record)}
}

// Put stores r for objID, replacing any previous record.
//
// A replaced record means the host reused an identity without reporting the
// destruction; the newest creation wins.
func (m *Map) Put(objID uint64, r Record) {
	m.mu.Lock()
	m.records[objID] = r
	m.mu.Unlock()
}

// Take removes the record for objID and returns it.
//
// Returns (nil, false) if there is no record. Ownership of the returned
// record moves to the caller.
func (m *Map) Take(objID uint64) (*Record, bool) {
	m.mu.Lock()
	r, ok := m.records[objID]
	if ok {
		delete(m.records, objID)
	}
	m.mu.Unlock()

	if !ok {
		return nil, false
	}
	return &r, true
}

// Get returns a copy of the record for objID without removing it.
func (m *Map) Get(objID uint64) (*Record, bool) {
	m.mu.Lock()
	r, ok := m.records[objID]
	m.mu.Unlock()

	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Len returns the number of live records.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Reset removes every record.
func (m *Map) Reset() {
	m.mu.Lock()
	m.records = make(map[uint64]Record)
	m.mu.Unlock()
}
