package session

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kolkov/calltrack/internal/track/callstack"
	"github.com/kolkov/calltrack/internal/track/creation"
	"github.com/kolkov/calltrack/internal/track/event"
	"github.com/kolkov/calltrack/internal/track/intern"
	"github.com/kolkov/calltrack/internal/track/invariant"
	"github.com/kolkov/calltrack/internal/track/store"
	"github.com/kolkov/calltrack/internal/track/thread"
)

// enter opens a protected section for the calling goroutine.
//
// Returns false when the session is inactive or stopping; the caller must
// then return without touching session state.
func (s *Session) enter() (*thread.Context, bool) {
	if !s.active.Load() {
		return nil, false
	}

	ctx := s.threads.Current()
	if !s.barrier.TryEnter(&ctx.Depth) {
		return nil, false
	}

	// Frames left over from an earlier session hold dead handles.
	if epoch := s.epoch.Load(); ctx.Epoch != epoch {
		ctx.Stack.Clear()
		ctx.Epoch = epoch
	}
	return ctx, true
}

func (s *Session) leave(ctx *thread.Context) {
	s.barrier.Leave(&ctx.Depth)
}

// frame interns a host site. Empty strings map to the null handle.
func (s *Session) frame(site event.Site) callstack.Frame {
	return callstack.Frame{
		Location: s.intern(site.File, "file"),
		Line:     site.Line,
		Function: s.intern(site.Symbol, "func"),
	}
}

// intern copies a host string into the session's table. Invalid UTF-8 is
// replaced and recorded as a CategoryString error against field.
func (s *Session) intern(str, field string) intern.Handle {
	if str == "" {
		return s.strings.Intern(nil)
	}
	if !utf8.ValidString(str) {
		s.store.RecordError(store.RecordError{
			Context:  field,
			Category: store.CategoryString,
			Message:  fmt.Sprintf("invalid UTF-8 in %q", str),
		})
		str = strings.ToValidUTF8(str, string(utf8.RuneError))
	}
	return s.strings.InternString(str)
}

// argFields names each argument slot in error contexts.
var argFields = func() (f [event.MaxArgs]struct{ name, typ string }) {
	for i := range f {
		f[i].name = fmt.Sprintf("args[%d].name", i)
		f[i].typ = fmt.Sprintf("args[%d].type", i)
	}
	return f
}()

// args interns the first MaxArgs call arguments.
func (s *Session) args(in []event.Arg) []event.StoredArg {
	if len(in) == 0 {
		return nil
	}
	in = in[:min(len(in), event.MaxArgs)]

	out := make([]event.StoredArg, len(in))
	for i, a := range in {
		out[i] = event.StoredArg{
			Name:     s.intern(a.Name, argFields[i].name),
			ObjectID: a.ObjectID,
			TypeTag:  s.intern(a.TypeTag, argFields[i].typ),
		}
	}
	return out
}

// siteOrTop returns the interned site, or the innermost stack frame when the
// host gave no site.
func (s *Session) siteOrTop(ctx *thread.Context, site event.Site) callstack.Frame {
	if site != (event.Site{}) {
		return s.frame(site)
	}
	top, _ := ctx.Stack.Top()
	return top
}

// callerOf returns the innermost stack frame that is not loc.
func callerOf(ctx *thread.Context, loc callstack.Frame) (callstack.Frame, bool) {
	top, ok := ctx.Stack.Top()
	if !ok {
		return callstack.NoFrame, false
	}
	if top == loc {
		return ctx.Stack.Caller()
	}
	return top, true
}

func (s *Session) stamp(ctx *thread.Context, ev *event.Event, threadID, timestamp uint64) {
	ev.ThreadID = threadID
	if ev.ThreadID == 0 {
		ev.ThreadID = ctx.ThreadID()
	}
	ev.Timestamp = timestamp
	if ev.Timestamp == 0 {
		ev.Timestamp = s.clock()
	}
}

// RecordCall records a function entry and pushes the callee frame.
//
// The caller frame is the calling goroutine's stack top before the push.
func (s *Session) RecordCall(info event.CallInfo) {
	ctx, ok := s.enter()
	if !ok {
		return
	}
	defer s.leave(ctx)

	callee := s.frame(info.Site)
	ev := event.Event{Kind: event.KindCall, Location: callee, Args: s.args(info.Args)}
	ev.Caller, ev.HasCaller = ctx.Stack.Top()
	s.stamp(ctx, &ev, info.ThreadID, info.Timestamp)

	ctx.Stack.Push(callee)
	s.emit(&ev)
}

// RecordReturn records a function exit and pops the returning frame.
//
// The event location is the popped frame. A return with an empty stack (the
// function was entered before the session started) uses the host's site.
func (s *Session) RecordReturn(info event.ReturnInfo) {
	ctx, ok := s.enter()
	if !ok {
		return
	}
	defer s.leave(ctx)

	var loc callstack.Frame
	if ctx.Stack.Depth() > 0 {
		loc = ctx.Stack.Pop()
	} else {
		loc = s.frame(info.Site)
	}

	ev := event.Event{
		Kind:      event.KindReturn,
		Location:  loc,
		ObjectID:  info.ObjectID,
		TypeTag:   s.intern(info.TypeTag, "type"),
		Exception: info.Exception,
	}
	ev.Caller, ev.HasCaller = ctx.Stack.Top()
	s.stamp(ctx, &ev, info.ThreadID, info.Timestamp)

	s.emit(&ev)
}

// RecordCreate records an object creation and remembers where it happened.
func (s *Session) RecordCreate(info event.ObjectInfo) {
	ctx, ok := s.enter()
	if !ok {
		return
	}
	defer s.leave(ctx)

	loc := s.siteOrTop(ctx, info.Site)
	typeTag := s.intern(info.TypeTag, "type")

	rec := creation.Capture(&ctx.Stack, typeTag, s.cfg.TracebackDepth)
	rec.Location = loc
	s.creations.Put(info.ObjectID, rec)

	ev := event.Event{
		Kind:     event.KindCreate,
		Location: loc,
		ObjectID: info.ObjectID,
		TypeTag:  typeTag,
	}
	ev.Caller, ev.HasCaller = callerOf(ctx, loc)
	s.stamp(ctx, &ev, info.ThreadID, info.Timestamp)

	s.emit(&ev)
}

// RecordDestroy records an object destruction.
//
// The matching creation record, if any, moves out of the creation map into
// the event.
func (s *Session) RecordDestroy(info event.ObjectInfo) {
	ctx, ok := s.enter()
	if !ok {
		return
	}
	defer s.leave(ctx)

	loc := s.siteOrTop(ctx, info.Site)
	rec, _ := s.creations.Take(info.ObjectID)

	ev := event.Event{
		Kind:     event.KindDestroy,
		Location: loc,
		ObjectID: info.ObjectID,
		TypeTag:  s.intern(info.TypeTag, "type"),
		Creation: rec,
	}
	ev.Caller, ev.HasCaller = callerOf(ctx, loc)
	s.stamp(ctx, &ev, info.ThreadID, info.Timestamp)

	s.emit(&ev)
}

// Dispatch routes a raw hook payload to the matching Record method.
func (s *Session) Dispatch(raw *event.Raw) {
	if raw == nil {
		return
	}

	switch raw.Kind {
	case event.KindCall:
		s.RecordCall(raw.Call())
	case event.KindReturn:
		s.RecordReturn(raw.Return())
	case event.KindCreate:
		s.RecordCreate(raw.Object())
	case event.KindDestroy:
		s.RecordDestroy(raw.Object())
	default:
		invariant.Fail(fmt.Sprintf("unknown event kind %d", raw.Kind))
	}
}

// emit stores ev (buffered) or hands it to the callback (push).
// Runs inside the caller's protected section.
func (s *Session) emit(ev *event.Event) {
	if s.cfg.Mode == ModePush {
		s.deliver(ev)
		return
	}

	if _, ok := s.store.Append(*ev); !ok && s.dropLogged.CompareAndSwap(false, true) {
		s.logger.Warn("event limit reached, dropping events",
			slog.String("session_id", s.ID()),
			slog.Int("max_events", s.cfg.MaxEvents),
		)
	}
}

// deliver invokes the callback. A panicking callback is recorded as a
// CategoryCallback error; contract violations still propagate.
func (s *Session) deliver(ev *event.Event) {
	reg := s.reg.Load()
	if reg == nil || reg.cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if v, ok := r.(*invariant.Violation); ok {
				panic(v)
			}
			s.store.RecordError(store.RecordError{
				Context:  "callback " + ev.Kind.String(),
				Category: store.CategoryCallback,
				Message:  fmt.Sprint(r),
			})
			s.logger.Warn("callback panicked",
				slog.String("session_id", s.ID()),
				slog.String("kind", ev.Kind.String()),
				slog.Any("panic", r),
			)
		}
	}()

	s.delivered.Add(1)
	reg.cb(ev, reg.userCtx)
}
