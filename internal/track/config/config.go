// Package config loads tracking session configuration from YAML.
//
// Example file:
//
//	mode: buffered          # buffered | push
//	interner_capacity: 1024
//	event_capacity: 4096
//	max_events: 0           # 0 = unbounded
//	traceback_depth: 16     # at most 16
//	log_level: info         # debug | info | warn | error
//
// Missing fields keep their defaults. Unknown fields are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects how a session delivers events.
type Mode string

const (
	// ModeBuffered stores events and hands them over at Stop.
	ModeBuffered Mode = "buffered"
	// ModePush invokes the callback synchronously at every hook.
	ModePush Mode = "push"
)

// MaxTracebackDepth bounds TracebackDepth.
const MaxTracebackDepth = 16

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Config is the session configuration.
type Config struct {
	Mode             Mode   `yaml:"mode"`
	InternerCapacity int    `yaml:"interner_capacity"`
	EventCapacity    int    `yaml:"event_capacity"`
	MaxEvents        int    `yaml:"max_events"`
	TracebackDepth   int    `yaml:"traceback_depth"`
	LogLevel         string `yaml:"log_level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Mode:             ModeBuffered,
		InternerCapacity: 1024,
		EventCapacity:    4096,
		MaxEvents:        0,
		TracebackDepth:   MaxTracebackDepth,
		LogLevel:         "info",
	}
}

// Validate checks field ranges.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeBuffered, ModePush:
	default:
		return fmt.Errorf("%w: mode %q (want %q or %q)", ErrInvalid, c.Mode, ModeBuffered, ModePush)
	}
	if c.InternerCapacity < 0 {
		return fmt.Errorf("%w: interner_capacity %d is negative", ErrInvalid, c.InternerCapacity)
	}
	if c.EventCapacity < 0 {
		return fmt.Errorf("%w: event_capacity %d is negative", ErrInvalid, c.EventCapacity)
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("%w: max_events %d is negative", ErrInvalid, c.MaxEvents)
	}
	if c.TracebackDepth < 0 || c.TracebackDepth > MaxTracebackDepth {
		return fmt.Errorf("%w: traceback_depth %d out of range [0, %d]", ErrInvalid, c.TracebackDepth, MaxTracebackDepth)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return lvl, nil
}

// Parse decodes YAML over the defaults and validates the result.
//
// Empty input yields Default().
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("yaml marshal: %w", err)
	}
	return data, nil
}
