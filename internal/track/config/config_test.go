package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParseEmptyYieldsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("Parse(nil) = %+v, want defaults", cfg)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("mode: push\nmax_events: 100\nlog_level: debug\n"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if cfg.Mode != ModePush || cfg.MaxEvents != 100 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.EventCapacity != 4096 || cfg.TracebackDepth != MaxTracebackDepth {
		t.Fatalf("defaults lost: %+v", cfg)
	}

	lvl, err := cfg.Level()
	if err != nil || lvl != slog.LevelDebug {
		t.Fatalf("Level() = %v/%v, want debug", lvl, err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad mode", "mode: streaming\n"},
		{"negative capacity", "event_capacity: -1\n"},
		{"negative interner", "interner_capacity: -5\n"},
		{"negative max", "max_events: -1\n"},
		{"deep traceback", "traceback_depth: 17\n"},
		{"bad level", "log_level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Parse(%q) error = %v, want ErrInvalid", tt.yaml, err)
			}
		})
	}
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte("buffer_size: 10\n"))
	if err == nil || !strings.Contains(err.Error(), "yaml") {
		t.Fatalf("unknown field error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calltrack.yaml")
	if err := os.WriteFile(path, []byte("traceback_depth: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TracebackDepth != 4 {
		t.Fatalf("TracebackDepth = %d, want 4", cfg.TracebackDepth)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load(missing) error = %v, want ErrNotExist", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	want := Default()
	want.Mode = ModePush

	data, err := want.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}
