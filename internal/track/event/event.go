// Package event defines the records produced by the tracking core.
//
// Three shapes exist, one per lifetime:
//
//   - Raw: the host's payload at a hook. Strings are only valid for the
//     duration of the call.
//   - Event: what the core stores while a session runs. Strings are interned
//     handles, valid until the session stops.
//   - Resolved: what a stopped session returns. Strings are plain Go strings
//     with no tie to the string table.
package event

import (
	"github.com/kolkov/calltrack/internal/track/callstack"
	"github.com/kolkov/calltrack/internal/track/creation"
	"github.com/kolkov/calltrack/internal/track/intern"
)

// Kind identifies the event variant.
type Kind uint8

const (
	KindCall    Kind = iota // Function entry.
	KindReturn              // Function exit.
	KindCreate              // Object creation.
	KindDestroy             // Object destruction.
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "CALL"
	case KindReturn:
		return "RETURN"
	case KindCreate:
		return "CREATE"
	case KindDestroy:
		return "DESTROY"
	default:
		return "Unknown"
	}
}

// ParseKind maps a case-insensitive kind name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "call", "CALL":
		return KindCall, true
	case "return", "RETURN":
		return KindReturn, true
	case "create", "CREATE":
		return KindCreate, true
	case "destroy", "DESTROY":
		return KindDestroy, true
	default:
		return 0, false
	}
}

// Site is a source location reported by the host.
//
// An empty File means the site has no file (builtins); it interns to the null
// handle.
type Site struct {
	File   string
	Line   int32
	Symbol string
}

// MaxArgs is the number of call arguments kept per CALL event. Further
// arguments are dropped.
const MaxArgs = 8

// Arg describes one argument of a call.
type Arg struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	ObjectID uint64 `json:"object_id,omitempty" yaml:"object_id,omitempty"`
	TypeTag  string `json:"type,omitempty" yaml:"type,omitempty"`
}

// StoredArg is an Arg with interned strings.
type StoredArg struct {
	Name     intern.Handle
	ObjectID uint64
	TypeTag  intern.Handle
}

// Raw is the payload delivered at one of the four hook points.
//
// ThreadID and Timestamp may be zero, in which case the session fills them
// from the current goroutine and its monotonic clock.
type Raw struct {
	Kind      Kind
	Site      Site
	ThreadID  uint64
	Timestamp uint64

	// ObjectID is the object identity for CREATE/DESTROY and the returned
	// value's identity for RETURN.
	ObjectID uint64

	// TypeTag names the object's type for CREATE/DESTROY and the returned
	// value's type for RETURN.
	TypeTag string

	// Args are the call arguments for CALL.
	Args []Arg

	// Exception marks a RETURN that unwound with an exception.
	Exception bool
}

// Event is a recorded event. Immutable once recorded.
//
// Layout by kind:
//   - CALL: Location = callee, Caller = calling frame (HasCaller), Args
//   - RETURN: Location = returning frame, ObjectID and TypeTag = returned
//     value, Exception
//   - CREATE: Location = creating frame, ObjectID, TypeTag
//   - DESTROY: Location = destroying frame, ObjectID, TypeTag, Creation
type Event struct {
	Kind      Kind
	Location  callstack.Frame
	Caller    callstack.Frame
	HasCaller bool
	ObjectID  uint64
	TypeTag   intern.Handle
	ThreadID  uint64
	Timestamp uint64
	Exception bool

	// Args holds at most MaxArgs call arguments (CALL only).
	Args []StoredArg

	// Creation is an owned copy of the matching creation record (DESTROY only).
	// Nil if the object was created before the session started.
	Creation *creation.Record
}

// CallInfo is the payload of a CALL hook.
type CallInfo struct {
	Site      Site
	Args      []Arg
	ThreadID  uint64
	Timestamp uint64
}

// ReturnInfo is the payload of a RETURN hook.
type ReturnInfo struct {
	Site      Site
	ObjectID  uint64
	TypeTag   string
	Exception bool
	ThreadID  uint64
	Timestamp uint64
}

// ObjectInfo is the payload of a CREATE or DESTROY hook.
type ObjectInfo struct {
	Site      Site
	ObjectID  uint64
	TypeTag   string
	ThreadID  uint64
	Timestamp uint64
}

// Call returns the CALL payload carried by r.
func (r *Raw) Call() CallInfo {
	return CallInfo{Site: r.Site, Args: r.Args, ThreadID: r.ThreadID, Timestamp: r.Timestamp}
}

// Return returns the RETURN payload carried by r.
func (r *Raw) Return() ReturnInfo {
	return ReturnInfo{
		Site:      r.Site,
		ObjectID:  r.ObjectID,
		TypeTag:   r.TypeTag,
		Exception: r.Exception,
		ThreadID:  r.ThreadID,
		Timestamp: r.Timestamp,
	}
}

// Object returns the CREATE/DESTROY payload carried by r.
func (r *Raw) Object() ObjectInfo {
	return ObjectInfo{
		Site:      r.Site,
		ObjectID:  r.ObjectID,
		TypeTag:   r.TypeTag,
		ThreadID:  r.ThreadID,
		Timestamp: r.Timestamp,
	}
}
