// replay.go implements the 'calltrack replay' command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kolkov/calltrack/internal/track/config"
	"github.com/kolkov/calltrack/internal/track/event"
	"github.com/kolkov/calltrack/internal/track/replay"
	"github.com/kolkov/calltrack/internal/track/report"
	"github.com/kolkov/calltrack/internal/track/session"
)

// replayConfig holds parsed 'calltrack replay' arguments.
type replayConfig struct {
	configPath string
	format     string
	outputFile string
	push       bool
	verbose    bool
	tracePath  string
}

// replayCommand implements the 'calltrack replay' command.
//
// Flow:
//  1. Parse flags and load the session configuration
//  2. Map and parse the trace file
//  3. Start a session and replay every recorded thread concurrently
//  4. Stop the session and write the report
//
// Example:
//
//	calltrack replay trace.txt
//	calltrack replay -format yaml -o report.yaml trace.txt
func replayCommand(args []string) {
	rc, err := parseReplayArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runReplay(context.Background(), rc, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseReplayArgs parses flags followed by exactly one trace path.
func parseReplayArgs(args []string) (*replayConfig, error) {
	rc := &replayConfig{}

	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&rc.configPath, "config", "", "session configuration file (YAML)")
	fs.StringVar(&rc.format, "format", string(report.FormatText), "report format: text, json or yaml")
	fs.StringVar(&rc.outputFile, "o", "", "write the report to this file")
	fs.BoolVar(&rc.push, "push", false, "deliver events through a callback")
	fs.BoolVar(&rc.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
		return nil, errors.New("no trace file specified")
	case 1:
		rc.tracePath = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected one trace file, got %d", fs.NArg())
	}

	if _, err := report.ParseFormat(rc.format); err != nil {
		return nil, err
	}
	return rc, nil
}

// loadConfig returns the session configuration for rc.
func loadConfig(rc *replayConfig) (config.Config, error) {
	cfg := config.Default()
	if rc.configPath != "" {
		var err error
		if cfg, err = config.Load(rc.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if rc.push {
		cfg.Mode = config.ModePush
	}
	return cfg, cfg.Validate()
}

// newLogger builds the stderr lifecycle logger at the configured level.
func newLogger(w io.Writer, cfg config.Config, verbose bool) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// collector resolves pushed events while their handles are still valid.
type collector struct {
	mu     sync.Mutex
	events []event.Resolved
}

func (c *collector) callback(ev *event.Event, _ any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event.Resolve(len(c.events), ev))
}

// runReplay replays rc.tracePath and writes the report to stdout or
// rc.outputFile. Logs go to logw.
func runReplay(ctx context.Context, rc *replayConfig, stdout, logw io.Writer) error {
	cfg, err := loadConfig(rc)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(rc.format)
	if err != nil {
		return err
	}
	logger, err := newLogger(logw, cfg, rc.verbose)
	if err != nil {
		return err
	}

	tr, err := replay.Open(rc.tracePath)
	if err != nil {
		return err
	}
	logger.Debug("trace loaded",
		slog.String("path", tr.Name),
		slog.Int("threads", len(tr.Threads)),
		slog.Int("events", tr.Len()),
	)

	s := session.New(session.WithConfig(cfg), session.WithLogger(logger))

	var pushed *collector
	var cb session.Callback
	if cfg.Mode == config.ModePush {
		pushed = &collector{}
		cb = pushed.callback
	}

	if err := s.Start(cb, nil); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	runErr := replay.Run(ctx, s, tr)

	res, err := s.Stop()
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("replay %s: %w", tr.Name, runErr)
	}
	if pushed != nil {
		res.Events = pushed.events
	}

	rep := report.FromResult(res, modulePathFor(rc.tracePath), rc.tracePath)
	return writeReport(rc.outputFile, stdout, format, rep)
}

// writeReport writes rep to path, or to stdout when path is empty.
func writeReport(path string, stdout io.Writer, format report.Format, rep *report.Report) (err error) {
	if path == "" {
		return report.Write(stdout, format, rep)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()

	return report.Write(f, format, rep)
}

// modulePathFor returns the module path of the go.mod nearest to the trace
// file, or "" when there is none.
func modulePathFor(tracePath string) string {
	abs, err := filepath.Abs(tracePath)
	if err != nil {
		return ""
	}
	goMod := findGoMod(filepath.Dir(abs))
	if goMod == "" {
		return ""
	}
	return modulePath(goMod)
}
