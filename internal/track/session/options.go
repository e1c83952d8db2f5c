package session

import (
	"log/slog"
	"time"

	"github.com/kolkov/calltrack/internal/track/config"
)

// Mode selects how a session delivers events.
type Mode = config.Mode

const (
	// ModeBuffered stores events and returns them from Stop.
	ModeBuffered = config.ModeBuffered
	// ModePush invokes the callback synchronously at every hook.
	ModePush = config.ModePush
)

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the whole configuration.
func WithConfig(cfg config.Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithMode overrides the delivery mode.
func WithMode(m Mode) Option {
	return func(s *Session) {
		s.cfg.Mode = m
	}
}

// WithLogger sets the lifecycle logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the timestamp source used when the host passes no
// timestamp. The clock must be monotonic.
func WithClock(clock func() uint64) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// processStart anchors the default monotonic clock.
var processStart = time.Now()

// monotonicNanos returns nanoseconds since process start on the monotonic
// clock.
func monotonicNanos() uint64 {
	return uint64(time.Since(processStart))
}
