// Package callstack implements the per-goroutine call stack used to compute
// the caller of every new frame.
//
// A Stack is owned by exactly one goroutine and is never shared, so it needs
// no synchronization. Frames hold only interned handles, which makes push a
// cheap value copy and frame comparison a handle-identity check.
//
// The stack has no depth limit. It starts with room for 64 frames and doubles
// when full; memory is bounded by the actual call depth.
package callstack

import (
	"github.com/kolkov/calltrack/internal/track/intern"
	"github.com/kolkov/calltrack/internal/track/invariant"
)

const (
	// InitialCapacity is the number of frames allocated on first push.
	InitialCapacity = 64

	// growthFactor multiplies the capacity when the stack is full.
	growthFactor = 2
)

// Frame is a single call-site record.
//
// Location and Function are interned, so two frames are equal (==) exactly
// when they name the same site. The zero Frame is NoFrame.
type Frame struct {
	Location intern.Handle // Interned file path (null for builtins).
	Line     int32         // First line number.
	Function intern.Handle // Interned qualified function name.
}

// NoFrame is the sentinel for "no frame".
var NoFrame = Frame{}

// IsEmpty reports whether f has neither location nor function.
func (f Frame) IsEmpty() bool {
	return f.Location.IsNil() && f.Function.IsNil()
}

// Stack is a growable per-goroutine call stack.
//
// Invariant: frames[depth:] are NoFrame.
type Stack struct {
	frames []Frame
	depth  int
}

// Push appends f to the top of the stack, growing storage as needed.
func (s *Stack) Push(f Frame) {
	if s.depth == len(s.frames) {
		s.grow()
	}
	s.frames[s.depth] = f
	s.depth++
}

// Pop removes and returns the top frame.
//
// Popping an empty stack is a programming error and panics.
func (s *Stack) Pop() Frame {
	invariant.Require(s.depth > 0, "call stack underflow", "depth > 0")

	s.depth--
	f := s.frames[s.depth]
	// Clear the vacated slot so stale handles are not retained.
	s.frames[s.depth] = NoFrame
	return f
}

// Top returns the innermost frame, or false if the stack is empty.
func (s *Stack) Top() (Frame, bool) {
	if s.depth == 0 {
		return NoFrame, false
	}
	return s.frames[s.depth-1], true
}

// Caller returns the frame one below the top, or false if depth < 2.
//
// Example:
//
//	s.Push(a); s.Push(b); s.Push(c)
//	s.Caller() // b, true
//	s.Pop()
//	s.Caller() // a, true
func (s *Stack) Caller() (Frame, bool) {
	if s.depth < 2 {
		return NoFrame, false
	}
	return s.frames[s.depth-2], true
}

// Depth returns the number of frames on the stack.
func (s *Stack) Depth() int {
	return s.depth
}

// Capacity returns the number of frames the stack can hold without growing.
func (s *Stack) Capacity() int {
	return len(s.frames)
}

// Snapshot copies up to limit frames, innermost first.
//
// Used to capture creation tracebacks. The result is independent of the
// stack and survives later pushes and pops.
func (s *Stack) Snapshot(limit int) []Frame {
	n := min(s.depth, limit)
	if n <= 0 {
		return nil
	}

	out := make([]Frame, n)
	for i := 0; i < n; i++ {
		out[i] = s.frames[s.depth-1-i]
	}
	return out
}

// Clear resets the depth to zero and keeps the storage for reuse.
func (s *Stack) Clear() {
	clear(s.frames[:s.depth])
	s.depth = 0
}

// Destroy releases the storage. A destroyed stack may be pushed again and
// will reallocate.
func (s *Stack) Destroy() {
	s.frames = nil
	s.depth = 0
}

// grow extends storage to InitialCapacity or by growthFactor.
func (s *Stack) grow() {
	newCap := InitialCapacity
	if len(s.frames) > 0 {
		newCap = len(s.frames) * growthFactor
	}

	frames := make([]Frame, newCap)
	copy(frames, s.frames[:s.depth])
	s.frames = frames
}
