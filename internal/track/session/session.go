package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kolkov/calltrack/internal/track/barrier"
	"github.com/kolkov/calltrack/internal/track/config"
	"github.com/kolkov/calltrack/internal/track/creation"
	"github.com/kolkov/calltrack/internal/track/event"
	"github.com/kolkov/calltrack/internal/track/intern"
	"github.com/kolkov/calltrack/internal/track/invariant"
	"github.com/kolkov/calltrack/internal/track/store"
	"github.com/kolkov/calltrack/internal/track/thread"
)

// Callback receives events in push mode.
//
// ev and every handle it holds are only valid until the callback returns.
type Callback func(ev *event.Event, userCtx any)

var (
	// ErrCalledFromProtectedSection is returned by Stop when invoked from
	// inside a hook or callback. The session stays active.
	ErrCalledFromProtectedSection = barrier.ErrCalledFromProtectedSection

	// ErrNoCallback is returned by Start in push mode without a callback.
	ErrNoCallback = errors.New("session: push mode requires a callback")
)

// Result is what Stop hands back. It holds no interned handles.
type Result struct {
	SessionID string              `json:"session_id" yaml:"session_id"`
	Events    []event.Resolved    `json:"events" yaml:"events"`
	Errors    []store.RecordError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Dropped   uint64              `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Strings   intern.Stats        `json:"strings" yaml:"strings"`
}

// registration is the callback pair swapped atomically on re-registration.
type registration struct {
	cb      Callback
	userCtx any
}

// Session is one tracking session. The zero value is not usable; call New.
//
// Thread Safety: Record*, Count, IsActive and LookupCreation may be called
// from any goroutine at any time. Start and Stop serialize on an internal
// mutex.
type Session struct {
	cfg    config.Config
	logger *slog.Logger
	clock  func() uint64

	mu     sync.Mutex // serializes Start and Stop
	active atomic.Bool
	epoch  atomic.Uint64
	id     atomic.Pointer[string]

	// Written only by Start before barrier.Init; read only inside a
	// protected section.
	strings *intern.Table

	reg        atomic.Pointer[registration]
	barrier    *barrier.Barrier
	store      *store.Store
	creations  *creation.Map
	threads    *thread.Registry
	delivered  atomic.Uint64
	dropLogged atomic.Bool
}

// New creates an idle session.
func New(opts ...Option) *Session {
	s := &Session{
		cfg:    config.Default(),
		logger: slog.New(slog.DiscardHandler),
		clock:  monotonicNanos,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.barrier = barrier.New()
	s.store = store.New(s.cfg.EventCapacity, s.cfg.MaxEvents)
	s.creations = creation.NewMap()
	s.threads = thread.NewRegistry(0)
	return s
}

// Config returns the session configuration.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Start begins accepting events.
//
// While active, Start only replaces the callback and user context. Otherwise
// it allocates a fresh string table, clears the store and creation map,
// advances the epoch that invalidates every goroutine's leftover frames, and
// opens the barrier.
func (s *Session) Start(cb Callback, userCtx any) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.cfg.Mode == ModePush && cb == nil {
		return ErrNoCallback
	}

	// Inside a hook or callback the session is active or draining, and a
	// draining Stop holds mu until this goroutine leaves.
	if ctx, ok := s.threads.Peek(); ok && ctx.Depth.InSection() {
		if !s.active.Load() {
			return ErrCalledFromProtectedSection
		}
		s.reg.Store(&registration{cb: cb, userCtx: userCtx})
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reg.Store(&registration{cb: cb, userCtx: userCtx})

	if s.active.Load() {
		s.logger.Debug("callback re-registered", slog.String("session_id", s.ID()))
		return nil
	}

	id := uuid.NewString()
	s.id.Store(&id)
	s.epoch.Add(1)
	s.strings = intern.New(s.cfg.InternerCapacity)
	s.store.Reset(s.cfg.MaxEvents)
	s.creations.Reset()
	s.delivered.Store(0)
	s.dropLogged.Store(false)

	s.barrier.Init()
	s.active.Store(true)

	s.logger.Info("session started",
		slog.String("session_id", id),
		slog.String("mode", string(s.cfg.Mode)),
		slog.Int("max_events", s.cfg.MaxEvents),
	)
	return nil
}

// Stop ends the session and returns what it captured.
//
// Returns an empty Result and nil when the session is not active. Returns
// ErrCalledFromProtectedSection, with the session still active, when called
// from inside a hook or callback. Otherwise blocks until in-flight hooks
// drain.
func (s *Session) Stop() (*Result, error) {
	if !s.active.Load() {
		return &Result{}, nil
	}

	var depth *barrier.Depth
	if ctx, ok := s.threads.Peek(); ok {
		depth = &ctx.Depth
		if depth.InSection() {
			return nil, ErrCalledFromProtectedSection
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active.Load() {
		return &Result{}, nil
	}

	s.active.Store(false)

	if r := s.barrier.Stop(depth); r != barrier.StopOK {
		s.active.Store(true)
		return nil, r.Err()
	}

	// Drained: no hook can touch the table, store or map from here on.
	s.barrier.Destroy()

	res := &Result{
		SessionID: s.ID(),
		Dropped:   s.store.Dropped(),
		Strings:   s.strings.Stats(),
	}
	res.Events = s.resolve(s.store.Drain())
	res.Errors = s.store.Errors()

	// Goroutine contexts stay registered across sessions. A hook may hold
	// one between Current and TryEnter; the next epoch clears its stack.
	s.strings.Destroy()
	s.creations.Reset()
	s.store.Reset(s.cfg.MaxEvents)
	s.delivered.Store(0)
	s.reg.Store(nil)

	s.logger.Info("session stopped",
		slog.String("session_id", res.SessionID),
		slog.Int("events", len(res.Events)),
		slog.Int("errors", len(res.Errors)),
		slog.Uint64("dropped", res.Dropped),
		slog.Int("strings", res.Strings.Unique),
	)
	return res, nil
}

// resolve converts stored events into handle-free records.
//
// An event that cannot be resolved is skipped and reported as a
// CategorySerialize error.
func (s *Session) resolve(events []event.Event) []event.Resolved {
	out := make([]event.Resolved, 0, len(events))
	for i := range events {
		r, err := resolveOne(i, &events[i])
		if err != nil {
			s.store.RecordError(store.RecordError{
				Context:  fmt.Sprintf("event[%d]", i),
				Category: store.CategorySerialize,
				Message:  err.Error(),
			})
			continue
		}
		out = append(out, r)
	}
	return out
}

func resolveOne(i int, ev *event.Event) (r event.Resolved, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = invariant.Recover(p)
		}
	}()
	return event.Resolve(i, ev), nil
}

// Count returns the number of events captured so far: buffered events in
// buffered mode, delivered events in push mode.
func (s *Session) Count() int {
	if s.cfg.Mode == ModePush {
		return int(s.delivered.Load())
	}
	return s.store.Len()
}

// Events returns the events buffered so far, resolved, without stopping the
// session. Returns nil when inactive. Push-mode sessions buffer nothing.
func (s *Session) Events() []event.Resolved {
	ctx, ok := s.enter()
	if !ok {
		return nil
	}
	defer s.leave(ctx)

	out := make([]event.Resolved, 0, s.store.Len())
	s.store.Each(func(i int, ev *event.Event) {
		out = append(out, event.Resolve(i, ev))
	})
	return out
}

// IsActive reports whether the session accepts events.
func (s *Session) IsActive() bool {
	return s.active.Load()
}

// ID returns the current or last session ID, empty before the first Start.
func (s *Session) ID() string {
	if id := s.id.Load(); id != nil {
		return *id
	}
	return ""
}

// Epoch returns the session generation, incremented by every fresh Start.
func (s *Session) Epoch() uint64 {
	return s.epoch.Load()
}

// LookupCreation returns where a live object was created.
//
// Only answers while the session is active. The record is resolved inside a
// protected section, so it stays valid after the session stops.
func (s *Session) LookupCreation(objID uint64) (*event.Creation, bool) {
	ctx, ok := s.enter()
	if !ok {
		return nil, false
	}
	defer s.leave(ctx)

	r, ok := s.creations.Get(objID)
	if !ok {
		return nil, false
	}
	return event.ResolveCreation(r), true
}

// LiveObjects returns the number of created objects not yet destroyed.
func (s *Session) LiveObjects() int {
	return s.creations.Len()
}

// Stats returns string table occupancy while active.
func (s *Session) Stats() (intern.Stats, bool) {
	ctx, ok := s.enter()
	if !ok {
		return intern.Stats{}, false
	}
	defer s.leave(ctx)
	return s.strings.Stats(), true
}

// ThreadDone releases the calling goroutine's context. Call it when a
// goroutine that recorded events is about to exit.
func (s *Session) ThreadDone() {
	s.threads.Done()
}

// ResetThread clears the calling goroutine's call stack and keeps its storage.
func (s *Session) ResetThread() {
	s.threads.ResetCurrent()
}

// Threads returns the number of goroutine contexts currently registered.
func (s *Session) Threads() int {
	return s.threads.Len()
}
