package track

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/kolkov/calltrack/internal/track/config"
	"github.com/kolkov/calltrack/internal/track/event"
	"github.com/kolkov/calltrack/internal/track/session"
)

// Hook payloads and records.
type (
	Site       = event.Site
	CallInfo   = event.CallInfo
	ReturnInfo = event.ReturnInfo
	ObjectInfo = event.ObjectInfo
	Arg        = event.Arg
	Raw        = event.Raw
	Kind       = event.Kind
	Event      = event.Event
	Resolved   = event.Resolved
	Frame      = event.Frame
	Creation   = event.Creation

	// Callback receives events in push mode. ev is only valid until the
	// callback returns; use Resolve to keep it.
	Callback = session.Callback

	// Result is returned by Stop.
	Result = session.Result

	// Mode selects buffered or push delivery.
	Mode = session.Mode

	// Option configures the default session.
	Option = session.Option
)

const (
	KindCall    = event.KindCall
	KindReturn  = event.KindReturn
	KindCreate  = event.KindCreate
	KindDestroy = event.KindDestroy

	// MaxArgs is the number of call arguments kept per CALL event.
	MaxArgs = event.MaxArgs

	ModeBuffered = session.ModeBuffered
	ModePush     = session.ModePush
)

// Options for Configure.
var (
	WithMode   = session.WithMode
	WithLogger = session.WithLogger
	WithClock  = session.WithClock
)

var (
	// ErrCalledFromProtectedSection is returned by Stop from inside a hook or
	// callback.
	ErrCalledFromProtectedSection = session.ErrCalledFromProtectedSection

	// ErrActive is returned by Configure while a session is running.
	ErrActive = errors.New("track: session is active")
)

var std atomic.Pointer[session.Session]

func init() {
	std.Store(session.New())
}

func current() *session.Session {
	return std.Load()
}

// Configure replaces the default session with one built from opts.
//
// Returns ErrActive while the current session is running.
//
// Thread Safety: NOT safe for concurrent calls with Start. Configure the
// session during program startup.
func Configure(opts ...Option) error {
	cur := current()
	if cur.IsActive() {
		return ErrActive
	}
	if !std.CompareAndSwap(cur, session.New(opts...)) {
		return ErrActive
	}
	return nil
}

// ConfigureFile loads a YAML session configuration and applies it, followed
// by opts.
func ConfigureFile(path string, opts ...Option) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return Configure(append([]Option{session.WithConfig(cfg)}, opts...)...)
}

// Start begins a session, or replaces the callback of the running one.
//
// cb may be nil in buffered mode. userCtx is passed back to every callback.
func Start(cb Callback, userCtx any) error {
	return current().Start(cb, userCtx)
}

// Stop ends the session, waits for in-flight hooks, and returns the
// captured events with all strings resolved.
//
// Stop on an inactive session returns an empty Result.
func Stop() (*Result, error) {
	return current().Stop()
}

// RecordCall records a function entry on the calling goroutine.
func RecordCall(info CallInfo) {
	current().RecordCall(info)
}

// RecordReturn records a function exit on the calling goroutine.
func RecordReturn(info ReturnInfo) {
	current().RecordReturn(info)
}

// RecordCreate records an object creation.
func RecordCreate(info ObjectInfo) {
	current().RecordCreate(info)
}

// RecordDestroy records an object destruction.
func RecordDestroy(info ObjectInfo) {
	current().RecordDestroy(info)
}

// Dispatch routes a raw hook payload to the matching Record function.
func Dispatch(raw *Raw) {
	current().Dispatch(raw)
}

// Count returns the number of events captured by the running session.
func Count() int {
	return current().Count()
}

// Events returns the events buffered so far without stopping the session.
func Events() []Resolved {
	return current().Events()
}

// IsActive reports whether the default session accepts events.
func IsActive() bool {
	return current().IsActive()
}

// SessionID returns the current or last session ID.
func SessionID() string {
	return current().ID()
}

// LookupCreation returns where a live object was created. Answers only while
// the session is active.
func LookupCreation(objID uint64) (*Creation, bool) {
	return current().LookupCreation(objID)
}

// ThreadDone releases the calling goroutine's tracking state. Call it before
// a goroutine that recorded events exits.
func ThreadDone() {
	current().ThreadDone()
}

// ResetThread clears the calling goroutine's call stack.
func ResetThread() {
	current().ResetThread()
}

// Resolve copies ev into a record with plain strings. Call it inside a push
// callback to keep an event past the callback's return.
func Resolve(ev *Event) Resolved {
	return event.Resolve(0, ev)
}

// Here returns the site of its caller, skip frames up.
//
// Here(0) is the line calling Here.
func Here(skip int) Site {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Site{}
	}
	s := Site{File: file, Line: int32(line)}
	if fn := runtime.FuncForPC(pc); fn != nil {
		s.Symbol = fn.Name()
	}
	return s
}
