// Package store holds the events and errors recorded by a tracking session.
//
// Store is an append-only buffer guarded by one mutex. Every append takes the
// lock, so events from any single goroutine keep their program order in the
// buffer. Events from different goroutines interleave in lock-acquisition
// order.
package store

import (
	"fmt"
	"sync"

	"github.com/kolkov/calltrack/internal/track/event"
)

// DefaultCapacity is the initial event capacity used when New gets 0.
const DefaultCapacity = 4096

// Category classifies a recorded error.
type Category uint8

const (
	CategoryString    Category = iota // String handling failed.
	CategoryCapacity                  // Event buffer limit reached, event dropped.
	CategoryCallback                  // User callback panicked.
	CategorySerialize                 // Result serialization failed.
)

// String returns the string representation of a Category.
func (c Category) String() string {
	switch c {
	case CategoryString:
		return "string"
	case CategoryCapacity:
		return "capacity"
	case CategoryCallback:
		return "callback"
	case CategorySerialize:
		return "serialize"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so reports print the name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	for _, cand := range []Category{CategoryString, CategoryCapacity, CategoryCallback, CategorySerialize} {
		if cand.String() == string(text) {
			*c = cand
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", text)
}

// RecordError is a non-fatal failure noted while recording.
type RecordError struct {
	Context  string   `json:"context" yaml:"context"`
	Category Category `json:"category" yaml:"category"`
	Message  string   `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e RecordError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Context, e.Message, e.Category)
}

// Store is the event buffer of one session.
//
// Thread Safety: All methods are safe for concurrent calls.
type Store struct {
	mu       sync.Mutex
	events   []event.Event
	errors   []RecordError
	initial  int
	limit    int    // 0 = unbounded
	dropped  uint64 // events refused because of limit
	overflow bool   // a CategoryCapacity error has been recorded
}

// New creates a store with the given initial capacity and event limit.
//
// initialCapacity <= 0 selects DefaultCapacity. limit <= 0 means unbounded.
func New(initialCapacity, limit int) *Store {
	if initialCapacity <= 0 {
		initialCapacity = DefaultCapacity
	}
	return &Store{
		initial: initialCapacity,
		limit:   max(limit, 0),
	}
}

// Append adds ev to the buffer and returns its index.
//
// When the limit is reached the event is dropped and ok is false. The first
// drop records one CategoryCapacity error; later drops only bump the counter.
func (s *Store) Append(ev event.Event) (index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.events) >= s.limit {
		s.dropped++
		if !s.overflow {
			s.overflow = true
			s.errors = append(s.errors, RecordError{
				Context:  "store.Append",
				Category: CategoryCapacity,
				Message:  fmt.Sprintf("event limit %d reached, dropping %s events", s.limit, ev.Kind),
			})
		}
		return -1, false
	}

	if len(s.events) == cap(s.events) {
		s.grow()
	}
	s.events = append(s.events, ev)
	return len(s.events) - 1, true
}

// grow doubles the buffer. Caller must hold mu.
func (s *Store) grow() {
	newCap := s.initial
	if c := cap(s.events); c > 0 {
		newCap = c * 2
	}
	if s.limit > 0 && newCap > s.limit {
		newCap = s.limit
	}
	grown := make([]event.Event, len(s.events), newCap)
	copy(grown, s.events)
	s.events = grown
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Cap returns the current buffer capacity.
func (s *Store) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cap(s.events)
}

// Dropped returns the number of events refused because of the limit.
func (s *Store) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Each calls fn for every stored event in order while holding the lock.
//
// fn must not call back into s.
func (s *Store) Each(fn func(index int, ev *event.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		fn(i, &s.events[i])
	}
}

// Drain hands the buffered events to the caller and empties the store.
//
// The store keeps no reference to the returned slice.
func (s *Store) Drain() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events
	s.events = nil
	return events
}

// RecordError appends a non-fatal error.
func (s *Store) RecordError(e RecordError) {
	s.mu.Lock()
	s.errors = append(s.errors, e)
	s.mu.Unlock()
}

// Errors returns a copy of the recorded errors.
func (s *Store) Errors() []RecordError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) == 0 {
		return nil
	}
	out := make([]RecordError, len(s.errors))
	copy(out, s.errors)
	return out
}

// Reset clears events, errors, and the drop counter.
//
// limit replaces the current event limit. The buffer is released; the next
// Append allocates initial capacity again.
func (s *Store) Reset(limit int) {
	s.mu.Lock()
	s.events = nil
	s.errors = nil
	s.dropped = 0
	s.overflow = false
	s.limit = max(limit, 0)
	s.mu.Unlock()
}
