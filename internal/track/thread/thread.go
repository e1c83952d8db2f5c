// Package thread keeps per-goroutine tracking state.
//
// Every goroutine that records events owns one Context: its call stack and
// its barrier depth. Contexts are created lazily on first use and found again
// by goroutine ID.
//
// Lookup path:
//
//	goid.Current() → sync.Map.Load (lock-free for existing keys) → *Context
//
// Contexts of goroutines that exited without calling Done are reclaimed by a
// periodic sweep that compares the registry against the live goroutine list.
package thread

import (
	"sync"
	"sync/atomic"

	"github.com/kolkov/calltrack/internal/track/barrier"
	"github.com/kolkov/calltrack/internal/track/callstack"
	"github.com/kolkov/calltrack/internal/track/goid"
)

// DefaultSweepInterval is the number of context allocations between sweeps.
const DefaultSweepInterval = 1000

// Context is the tracking state owned by one goroutine.
//
// Only the owning goroutine may touch Stack and Depth.
type Context struct {
	GID   int64
	Stack callstack.Stack
	Depth barrier.Depth

	// Epoch is the session generation the stack contents belong to. A
	// session that finds a foreign epoch clears the stack before use.
	Epoch uint64

	seq uint64 // allocation order, used by Sweep
}

// ThreadID returns the goroutine ID in the form events carry.
func (c *Context) ThreadID() uint64 {
	return uint64(c.GID)
}

// Registry maps goroutine IDs to contexts.
//
// Thread Safety: All methods are safe for concurrent calls.
type Registry struct {
	contexts sync.Map // int64 → *Context
	count    atomic.Int64
	seq      atomic.Uint64

	sweepEvery uint64
	sweeping   atomic.Bool
}

// NewRegistry creates an empty registry.
//
// sweepEvery is the number of allocations between background sweeps of dead
// goroutines; 0 selects DefaultSweepInterval and a negative value disables
// automatic sweeps.
func NewRegistry(sweepEvery int) *Registry {
	r := &Registry{}
	switch {
	case sweepEvery == 0:
		r.sweepEvery = DefaultSweepInterval
	case sweepEvery > 0:
		r.sweepEvery = uint64(sweepEvery)
	}
	return r
}

// Current returns the calling goroutine's context, creating it on first use.
func (r *Registry) Current() *Context {
	gid := goid.Current()

	if val, ok := r.contexts.Load(gid); ok {
		return val.(*Context)
	}

	// Slow path: first access from this goroutine. Nobody else can store
	// this key, so Store does not race with another creator.
	ctx := &Context{GID: gid, seq: r.seq.Add(1)}
	r.contexts.Store(gid, ctx)
	r.count.Add(1)

	r.maybeSweep(ctx.seq)

	return ctx
}

// Peek returns the calling goroutine's context without creating one.
func (r *Registry) Peek() (*Context, bool) {
	return r.Lookup(goid.Current())
}

// Lookup returns the context of goroutine gid without creating one.
func (r *Registry) Lookup(gid int64) (*Context, bool) {
	val, ok := r.contexts.Load(gid)
	if !ok {
		return nil, false
	}
	return val.(*Context), true
}

// Done releases the calling goroutine's context.
//
// Safe to call when no context exists. Must not be called while the
// goroutine is inside a protected section.
func (r *Registry) Done() {
	gid := goid.Current()
	if val, ok := r.contexts.LoadAndDelete(gid); ok {
		r.count.Add(-1)
		val.(*Context).Stack.Destroy()
	}
}

// ResetCurrent clears the calling goroutine's call stack, keeping its storage.
func (r *Registry) ResetCurrent() {
	if ctx, ok := r.Lookup(goid.Current()); ok {
		ctx.Stack.Clear()
	}
}

// Len returns the number of registered contexts.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// maybeSweep starts a background sweep every sweepEvery allocations.
func (r *Registry) maybeSweep(seq uint64) {
	if r.sweepEvery == 0 || seq%r.sweepEvery != 0 {
		return
	}
	if !r.sweeping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer r.sweeping.Store(false)
		r.Sweep()
	}()
}

// Sweep removes contexts whose goroutines no longer exist.
//
// Only contexts allocated before the live list was taken are candidates, so a
// goroutine that registers during the sweep is never removed.
//
// Returns the number of contexts removed.
func (r *Registry) Sweep() int {
	mark := r.seq.Load()
	live := goid.Live()

	liveSet := make(map[int64]struct{}, len(live))
	for _, gid := range live {
		liveSet[gid] = struct{}{}
	}

	removed := 0
	r.contexts.Range(func(key, value any) bool {
		gid := key.(int64)
		ctx := value.(*Context)

		if ctx.seq > mark {
			return true
		}
		if _, alive := liveSet[gid]; alive {
			return true
		}
		if r.contexts.CompareAndDelete(gid, ctx) {
			r.count.Add(-1)
			removed++
		}
		return true
	})
	return removed
}
