// Package invariant reports caller-contract violations in the tracking core.
//
// A violation means the core cannot safely continue: a mismatched barrier
// enter/leave, popping an empty call stack, or using the string table after it
// was destroyed. These never degrade silently. They panic with a *Violation so
// the failure carries the message, the violated condition and the call site.
//
// Recoverable conditions (a single dropped event, a stop requested from inside
// a protected section) are NOT violations and are reported through ordinary
// error values instead.
package invariant

import (
	"fmt"
	"runtime"
)

// Violation describes a broken invariant.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type Violation struct {
	Message   string // What went wrong.
	Condition string // The condition that did not hold (empty for Fail).
	Function  string // Function that detected the violation.
	File      string // Source file of the check.
	Line      int    // Source line of the check.
}

// Error implements the error interface.
//
// Format:
//
//	invariant violated: <message> (condition: <cond>) at file:line in func
func (v *Violation) Error() string {
	loc := fmt.Sprintf("%s:%d in %s", v.File, v.Line, v.Function)
	if v.Condition == "" {
		return fmt.Sprintf("invariant violated: %s at %s", v.Message, loc)
	}
	return fmt.Sprintf("invariant violated: %s (condition: %s) at %s", v.Message, v.Condition, loc)
}

// Require panics with a *Violation if cond is false.
//
// The condition text is optional documentation for the report; pass the Go
// expression that was checked.
//
// Example:
//
//	invariant.Require(depth > 0, "leave without try_enter", "depth > 0")
func Require(cond bool, msg, condition string) {
	if cond {
		return
	}
	panic(newViolation(msg, condition))
}

// Fail panics unconditionally with a *Violation.
//
// Used for code paths that must never execute (exhausted probe sequences,
// unknown enum values).
func Fail(msg string) {
	panic(newViolation(msg, ""))
}

// Recover converts a recovered *Violation back into an error.
//
// It returns nil for a nil recover() value and re-panics anything that is not a
// *Violation. Used by tests, and by the session to turn an event that cannot
// be resolved into a recorded error instead of a crash.
//
// Example:
//
//	defer func() { err = invariant.Recover(recover()) }()
func Recover(r any) error {
	if r == nil {
		return nil
	}
	if v, ok := r.(*Violation); ok {
		return v
	}
	panic(r)
}

func newViolation(msg, condition string) *Violation {
	v := &Violation{Message: msg, Condition: condition}
	// Skip newViolation and Require/Fail.
	pc, file, line, ok := runtime.Caller(2)
	if ok {
		v.File = file
		v.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			v.Function = fn.Name()
		}
	}
	return v
}
