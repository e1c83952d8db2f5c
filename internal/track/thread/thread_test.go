package thread

import (
	"sync"
	"testing"
	"time"

	"github.com/kolkov/calltrack/internal/track/callstack"
	"github.com/kolkov/calltrack/internal/track/goid"
)

func TestCurrentIsStablePerGoroutine(t *testing.T) {
	r := NewRegistry(-1)

	a := r.Current()
	b := r.Current()
	if a != b {
		t.Fatal("Current() returned different contexts on one goroutine")
	}
	if a.GID != goid.Current() {
		t.Fatalf("context GID = %d, want %d", a.GID, goid.Current())
	}
	if a.ThreadID() != uint64(a.GID) {
		t.Fatal("ThreadID must mirror GID")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestContextsAreDistinct(t *testing.T) {
	r := NewRegistry(-1)

	const n = 16
	ctxs := make([]*Context, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctxs[i] = r.Current()
			ctxs[i].Stack.Push(callstack.Frame{Line: int32(i)})
		}(i)
	}
	wg.Wait()

	seen := make(map[*Context]bool)
	for i, c := range ctxs {
		if seen[c] {
			t.Fatalf("goroutine %d shares a context", i)
		}
		seen[c] = true
		if top, _ := c.Stack.Top(); top.Line != int32(i) {
			t.Fatalf("goroutine %d sees foreign frame %d", i, top.Line)
		}
	}
}

func TestDone(t *testing.T) {
	r := NewRegistry(-1)

	ctx := r.Current()
	ctx.Stack.Push(callstack.Frame{Line: 1})
	r.Done()

	if r.Len() != 0 {
		t.Fatalf("Len() = %d after Done", r.Len())
	}
	if _, ok := r.Lookup(goid.Current()); ok {
		t.Fatal("context still registered after Done")
	}
	if ctx.Stack.Capacity() != 0 {
		t.Fatal("Done must release the call stack")
	}

	r.Done() // no context: no-op

	if r.Current() == ctx {
		t.Fatal("Current() after Done must allocate a fresh context")
	}
}

func TestResetCurrent(t *testing.T) {
	r := NewRegistry(-1)
	r.ResetCurrent() // no context yet

	ctx := r.Current()
	ctx.Stack.Push(callstack.Frame{Line: 1})
	ctx.Stack.Push(callstack.Frame{Line: 2})
	r.ResetCurrent()

	if ctx.Stack.Depth() != 0 {
		t.Fatalf("Depth() = %d after ResetCurrent", ctx.Stack.Depth())
	}
	if ctx.Stack.Capacity() == 0 {
		t.Fatal("ResetCurrent must keep stack storage")
	}
	if r.Current() != ctx {
		t.Fatal("ResetCurrent must keep the context")
	}
}

func TestSweepRemovesExitedGoroutines(t *testing.T) {
	r := NewRegistry(-1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Current()
		}()
	}
	wg.Wait()

	self := r.Current()

	// Exited goroutines may linger briefly in the runtime's list; retry.
	for attempt := 0; attempt < 100 && r.Len() > 1; attempt++ {
		r.Sweep()
		if r.Len() > 1 {
			time.Sleep(time.Millisecond)
		}
	}

	if r.Len() != 1 {
		t.Fatalf("Len() = %d after sweep, want only the live test goroutine", r.Len())
	}
	if got, ok := r.Lookup(goid.Current()); !ok || got != self {
		t.Fatal("sweep removed a live goroutine's context")
	}
}

func TestSweepKeepsBlockedGoroutines(t *testing.T) {
	r := NewRegistry(-1)

	registered := make(chan *Context)
	release := make(chan struct{})
	go func() {
		registered <- r.Current()
		<-release
	}()
	ctx := <-registered
	defer close(release)

	if n := r.Sweep(); n != 0 {
		t.Fatalf("Sweep removed %d contexts of live goroutines", n)
	}
	if got, ok := r.Lookup(ctx.GID); !ok || got != ctx {
		t.Fatal("blocked goroutine lost its context")
	}
}

func BenchmarkCurrent(b *testing.B) {
	r := NewRegistry(-1)
	r.Current()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Current()
	}
}

func TestPeekDoesNotAllocate(t *testing.T) {
	r := NewRegistry(-1)

	if _, ok := r.Peek(); ok {
		t.Fatal("Peek found a context before Current")
	}
	if r.Len() != 0 {
		t.Fatal("Peek must not register a context")
	}

	ctx := r.Current()
	if got, ok := r.Peek(); !ok || got != ctx {
		t.Fatal("Peek must return the existing context")
	}
}
