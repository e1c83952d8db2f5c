package barrier

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kolkov/calltrack/internal/track/invariant"
)

// StopResult is the outcome of Stop.
type StopResult int

const (
	// StopOK means the barrier is stopped and no section is in flight.
	StopOK StopResult = iota
	// StopCalledFromProtectedSection means Stop was called by a goroutine that is
	// itself inside a protected section. Nothing changed; retry from outside.
	StopCalledFromProtectedSection
)

// ErrCalledFromProtectedSection is the error form of StopCalledFromProtectedSection.
var ErrCalledFromProtectedSection = errors.New("barrier: stop called from within a protected section")

// String returns the string representation of a StopResult.
func (r StopResult) String() string {
	switch r {
	case StopOK:
		return "OK"
	case StopCalledFromProtectedSection:
		return "CALLED_FROM_PROTECTED_SECTION"
	default:
		return "Unknown"
	}
}

// Err returns nil for StopOK and ErrCalledFromProtectedSection otherwise.
func (r StopResult) Err() error {
	if r == StopOK {
		return nil
	}
	return ErrCalledFromProtectedSection
}

// State is the lifecycle state of a Barrier.
type State int

const (
	// StateUninitialized is a barrier that was never initialized.
	StateUninitialized State = iota
	// StateActive admits protected sections.
	StateActive
	// StateStopped rejects new sections; in-flight sections have drained.
	StateStopped
	// StateDestroyed is a torn-down barrier. Init re-activates it.
	StateDestroyed
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateActive:
		return "ACTIVE"
	case StateStopped:
		return "STOPPED"
	case StateDestroyed:
		return "DESTROYED"
	default:
		return "Unknown"
	}
}

// Depth is the per-goroutine reentrancy counter.
//
// A Depth must only be used by the goroutine that owns it. It is not
// synchronized.
type Depth struct {
	n int
}

// InSection reports whether the owning goroutine is inside a protected section.
func (d *Depth) InSection() bool {
	return d.n > 0
}

// Level returns the current nesting level.
func (d *Depth) Level() int {
	return d.n
}

// Barrier is a reference-counted shutdown gate.
//
// Layout:
//   - active: in-flight protected sections
//   - stopping: no new sections are admitted
//   - initialized: true between Init and Destroy
//   - mu/cond: drain wait for Stop
//
// Thread Safety: All methods are safe for concurrent calls. Depth arguments
// belong to the calling goroutine.
type Barrier struct {
	active      atomic.Int64
	stopping    atomic.Bool
	initialized atomic.Bool
	destroyed   atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// New returns an uninitialized barrier. Call Init before use.
func New() *Barrier {
	b := &Barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Init transitions UNINITIALIZED/DESTROYED to ACTIVE.
//
// Idempotent: no-op while initialized. The active count is never reset: a
// TryEnter racing with Init may hold an increment it has yet to undo.
func (b *Barrier) Init() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized.Load() {
		return
	}

	b.stopping.Store(false)
	b.destroyed.Store(false)
	b.initialized.Store(true)
}

// Destroy transitions the barrier to DESTROYED.
//
// Precondition: Stop returned StopOK (or the barrier was never started).
// Idempotent.
func (b *Barrier) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized.Load() {
		return
	}

	b.initialized.Store(false)
	b.destroyed.Store(true)
}

// TryEnter attempts to enter a protected section.
//
// Returns true if the section was entered; the caller MUST call Leave.
// Returns false if the barrier is uninitialized, stopping, stopped or
// destroyed.
//
// Protocol:
//  1. Initialized check
//  2. Stopping check (fast path)
//  3. Increment active
//  4. Re-check stopping; on a lost race, undo and wake Stop
//  5. Increment the goroutine's depth
func (b *Barrier) TryEnter(d *Depth) bool {
	if !b.initialized.Load() {
		return false
	}

	if b.stopping.Load() {
		return false
	}

	b.active.Add(1)

	if b.stopping.Load() {
		if b.active.Add(-1) == 0 {
			b.signal()
		}
		return false
	}

	d.n++
	return true
}

// Leave exits a protected section.
//
// Must be called exactly once per successful TryEnter. A leave after a
// concurrent Destroy is not an error: it only unwinds its own depth and
// count. Leave with zero depth panics.
func (b *Barrier) Leave(d *Depth) {
	if !b.initialized.Load() {
		// Late leave: the barrier was destroyed while this section ran.
		if d.n > 0 {
			d.n--
			b.active.Add(-1)
		}
		return
	}

	invariant.Require(d.n > 0, "barrier leave without try_enter", "depth > 0")

	d.n--

	if b.active.Add(-1) == 0 && b.stopping.Load() {
		b.signal()
	}
}

// Stop stops admitting sections and waits for in-flight sections to drain.
//
// Returns StopCalledFromProtectedSection immediately when the calling
// goroutine is inside a section (waiting would deadlock). Returns StopOK when
// uninitialized, already stopping, or after the drain completes.
func (b *Barrier) Stop(d *Depth) StopResult {
	if d != nil && d.n > 0 {
		return StopCalledFromProtectedSection
	}

	if !b.initialized.Load() {
		return StopOK
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopping.Load() {
		return StopOK
	}

	b.stopping.Store(true)

	for b.active.Load() > 0 {
		b.cond.Wait()
	}

	return StopOK
}

// Dispatch runs work(ctx) inside a protected section.
//
// Equivalent to:
//
//	if b.TryEnter(d) {
//	    work(ctx)
//	    b.Leave(d)
//	}
//
// A nil work is a no-op. Returns whether work ran. Leave runs even if work
// panics so a panicking section cannot wedge Stop.
func (b *Barrier) Dispatch(d *Depth, work func(ctx any), ctx any) bool {
	if work == nil {
		return false
	}

	if !b.TryEnter(d) {
		return false
	}
	defer b.Leave(d)

	work(ctx)
	return true
}

// IsStopping reports whether Stop is in progress or completed.
// False when uninitialized.
func (b *Barrier) IsStopping() bool {
	if !b.initialized.Load() {
		return false
	}
	return b.stopping.Load()
}

// ActiveCount returns the number of in-flight sections.
//
// For testing and diagnostics: the value may change immediately after return.
// 0 when uninitialized.
func (b *Barrier) ActiveCount() int64 {
	if !b.initialized.Load() {
		return 0
	}
	return b.active.Load()
}

// State returns the lifecycle state.
func (b *Barrier) State() State {
	switch {
	case b.initialized.Load() && b.stopping.Load():
		return StateStopped
	case b.initialized.Load():
		return StateActive
	case b.destroyed.Load():
		return StateDestroyed
	default:
		return StateUninitialized
	}
}

// signal wakes a Stop waiting on the drain.
//
// Taking mu orders the wake-up after the waiter's check of active, so the
// signal cannot fall between that check and cond.Wait.
func (b *Barrier) signal() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}
