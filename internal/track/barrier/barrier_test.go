package barrier

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kolkov/calltrack/internal/track/invariant"
)

func TestUninitialized(t *testing.T) {
	b := New()
	var d Depth

	if b.State() != StateUninitialized {
		t.Fatalf("State() = %v, want UNINITIALIZED", b.State())
	}
	if b.TryEnter(&d) {
		t.Fatal("TryEnter on uninitialized barrier must fail")
	}
	if d.InSection() {
		t.Fatal("failed TryEnter must not change depth")
	}
	if got := b.Stop(&d); got != StopOK {
		t.Errorf("Stop() on uninitialized = %v, want OK", got)
	}
	if b.IsStopping() || b.ActiveCount() != 0 {
		t.Error("uninitialized barrier must report not stopping, zero active")
	}
}

func TestEnterLeave(t *testing.T) {
	b := New()
	b.Init()
	var d Depth

	if !b.TryEnter(&d) {
		t.Fatal("TryEnter on active barrier failed")
	}
	if !b.TryEnter(&d) {
		t.Fatal("nested TryEnter failed")
	}
	if d.Level() != 2 || b.ActiveCount() != 2 {
		t.Fatalf("depth %d active %d, want 2/2", d.Level(), b.ActiveCount())
	}

	b.Leave(&d)
	b.Leave(&d)

	if d.InSection() || b.ActiveCount() != 0 {
		t.Fatalf("depth %d active %d after leave, want 0/0", d.Level(), b.ActiveCount())
	}
}

func TestLeaveWithoutEnterPanics(t *testing.T) {
	b := New()
	b.Init()
	var d Depth

	defer func() {
		var v *invariant.Violation
		if err := invariant.Recover(recover()); !errors.As(err, &v) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	}()
	b.Leave(&d)
}

func TestStopDrainsSlowSection(t *testing.T) {
	b := New()
	b.Init()

	entered := make(chan struct{})
	var finished atomic.Bool

	go func() {
		var d Depth
		b.Dispatch(&d, func(any) {
			close(entered)
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
		}, nil)
	}()

	<-entered
	var d Depth
	if got := b.Stop(&d); got != StopOK {
		t.Fatalf("Stop() = %v, want OK", got)
	}
	if !finished.Load() {
		t.Fatal("Stop returned before the in-flight section completed")
	}
	if got := b.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount() after Stop = %d, want 0", got)
	}
	if b.TryEnter(&d) {
		t.Fatal("TryEnter after Stop must fail")
	}
	if b.State() != StateStopped {
		t.Errorf("State() = %v, want STOPPED", b.State())
	}
}

func TestStopFromProtectedSection(t *testing.T) {
	b := New()
	b.Init()
	var d Depth

	var inner StopResult
	done := make(chan struct{})
	go func() {
		defer close(done)
		var d Depth
		b.Dispatch(&d, func(any) {
			inner = b.Stop(&d)
		}, nil)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop from inside a protected section deadlocked")
	}

	if inner != StopCalledFromProtectedSection {
		t.Fatalf("inner Stop() = %v, want CALLED_FROM_PROTECTED_SECTION", inner)
	}
	if !errors.Is(inner.Err(), ErrCalledFromProtectedSection) {
		t.Errorf("Err() = %v", inner.Err())
	}
	if b.IsStopping() {
		t.Fatal("rejected Stop must not set the stopping flag")
	}

	if got := b.Stop(&d); got != StopOK {
		t.Fatalf("outer Stop() = %v, want OK", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	b := New()
	b.Init()
	var d Depth

	for i := 0; i < 3; i++ {
		if got := b.Stop(&d); got != StopOK {
			t.Fatalf("Stop() #%d = %v, want OK", i+1, got)
		}
	}

	b.Destroy()
	if got := b.Stop(&d); got != StopOK {
		t.Fatalf("Stop() after Destroy = %v, want OK", got)
	}
}

func TestConcurrentStops(t *testing.T) {
	b := New()
	b.Init()

	var d Depth
	if !b.TryEnter(&d) {
		t.Fatal("TryEnter failed")
	}

	var wg sync.WaitGroup
	results := make([]StopResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var d Depth
			results[i] = b.Stop(&d)
		}(i)
	}

	// Let the stoppers block on the drain, then release the section.
	time.Sleep(20 * time.Millisecond)
	b.Leave(&d)
	wg.Wait()

	for i, r := range results {
		if r != StopOK {
			t.Errorf("Stop #%d = %v, want OK", i, r)
		}
	}
}

func TestLateLeaveAfterDestroy(t *testing.T) {
	b := New()
	b.Init()
	var d Depth

	if !b.TryEnter(&d) {
		t.Fatal("TryEnter failed")
	}

	// Simulate teardown racing with the section: force the state directly.
	b.Destroy()

	// Must not panic.
	b.Leave(&d)

	if d.InSection() {
		t.Error("late leave should unwind the goroutine's depth")
	}
	if b.State() != StateDestroyed {
		t.Errorf("State() = %v, want DESTROYED", b.State())
	}
	if b.TryEnter(&d) {
		t.Error("TryEnter after Destroy must fail")
	}
}

func TestReinitAfterDestroy(t *testing.T) {
	b := New()
	var d Depth

	for cycle := 0; cycle < 3; cycle++ {
		b.Init()
		b.Init() // idempotent
		if b.State() != StateActive {
			t.Fatalf("cycle %d: State() = %v, want ACTIVE", cycle, b.State())
		}
		if !b.TryEnter(&d) {
			t.Fatalf("cycle %d: TryEnter failed", cycle)
		}
		b.Leave(&d)
		if b.Stop(&d) != StopOK {
			t.Fatalf("cycle %d: Stop failed", cycle)
		}
		b.Destroy()
	}
}

func TestDispatch(t *testing.T) {
	b := New()
	var d Depth

	ran := 0
	work := func(ctx any) { ran += ctx.(int) }

	if b.Dispatch(&d, work, 1) {
		t.Error("Dispatch on uninitialized barrier ran work")
	}

	b.Init()
	if !b.Dispatch(&d, work, 2) {
		t.Error("Dispatch on active barrier did not run")
	}
	if b.Dispatch(&d, nil, 3) {
		t.Error("Dispatch(nil) reported running")
	}
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
	if d.InSection() || b.ActiveCount() != 0 {
		t.Error("Dispatch leaked a section")
	}
}

func TestDispatchLeavesOnPanic(t *testing.T) {
	b := New()
	b.Init()
	var d Depth

	func() {
		defer func() { _ = recover() }()
		b.Dispatch(&d, func(any) { panic("boom") }, nil)
	}()

	if d.InSection() || b.ActiveCount() != 0 {
		t.Fatal("panicking work leaked a section")
	}
	if b.Stop(&d) != StopOK {
		t.Fatal("Stop after panicking section failed")
	}
}

// TestEnterStopRace hammers TryEnter/Leave from many goroutines while Stop runs.
// After Stop returns no goroutine may be inside a section and none may enter.
func TestEnterStopRace(t *testing.T) {
	for round := 0; round < 20; round++ {
		b := New()
		b.Init()

		var inside atomic.Int64
		var violated atomic.Bool
		var stopped atomic.Bool
		var wg sync.WaitGroup

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var d Depth
				for i := 0; i < 2000; i++ {
					if b.TryEnter(&d) {
						if stopped.Load() {
							violated.Store(true)
						}
						inside.Add(1)
						inside.Add(-1)
						b.Leave(&d)
					}
				}
			}()
		}

		var d Depth
		if b.Stop(&d) != StopOK {
			t.Fatal("Stop failed")
		}
		stopped.Store(true)
		if inside.Load() != 0 {
			t.Fatalf("round %d: %d sections in flight after Stop", round, inside.Load())
		}
		wg.Wait()

		if violated.Load() {
			t.Fatalf("round %d: section admitted after Stop returned", round)
		}
		b.Destroy()
	}
}

func TestStringers(t *testing.T) {
	if StopOK.String() != "OK" || StopCalledFromProtectedSection.String() != "CALLED_FROM_PROTECTED_SECTION" {
		t.Error("StopResult.String mismatch")
	}
	if StopResult(99).String() != "Unknown" || State(99).String() != "Unknown" {
		t.Error("unknown values must stringify to Unknown")
	}
	if StateDestroyed.String() != "DESTROYED" {
		t.Error("State.String mismatch")
	}
}

func BenchmarkTryEnterLeave(b *testing.B) {
	bar := New()
	bar.Init()
	var d Depth

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if bar.TryEnter(&d) {
			bar.Leave(&d)
		}
	}
}
