// Package barrier implements the shutdown barrier that makes stopping a
// tracking session safe while other goroutines are still recording.
//
// # Protocol
//
// Every unit of work that touches session resources runs as a protected
// section:
//
//	if b.TryEnter(d) {
//	    // resources valid here
//	    b.Leave(d)
//	}
//
// Stop flips a stopping flag so no new section is admitted, then blocks until
// the active count drains to zero. Only after Stop returns may the caller
// release the resources the sections were using.
//
// TryEnter increments the active count and then re-checks the stopping flag.
// Without the second check a section could slip in after Stop decided that no
// more sections would start.
//
// # State Machine
//
//	[UNINITIALIZED] --Init--> [ACTIVE] --Stop--> [STOPPED] --Destroy--> [DESTROYED]
//	       ^                                                                |
//	       +------------------------------Init------------------------------+
//
// DESTROYED is a valid runtime state, not an error: TryEnter returns false,
// a late Leave after a concurrent Destroy only unwinds its own bookkeeping,
// and Stop returns StopOK. Producers may keep calling right up to and past a stop without any
// coordination other than the barrier.
//
// # Reentrancy
//
// Each goroutine owns a Depth counter (held in its thread context). Stop from a
// goroutine whose depth is non-zero returns StopCalledFromProtectedSection
// instead of waiting on its own completion. Leave with depth zero is a
// mismatched enter/leave and panics.
package barrier
