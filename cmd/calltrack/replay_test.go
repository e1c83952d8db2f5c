// replay_test.go tests the 'calltrack replay' command.
package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kolkov/calltrack/internal/track/report"
)

const testTrace = `# widget lifecycle on two threads
1 call    main.go   3  main.main
1 call    widget.go 12 widget.New size=0x8:int
1 create  widget.go 13 widget.New 0x10 Widget
1 return  widget.go 15 widget.New 0x10 Widget
2 call    worker.go 7  worker.run
2 return  worker.go 9  worker.run 0 exc
1 destroy main.go   8  main.main  0x10 Widget
1 return  main.go   9  main.main
`

// writeProject creates a temp module containing the test trace.
func writeProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/traced\n\ngo 1.24\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "traces")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "trace.txt")
	if err := os.WriteFile(path, []byte(testTrace), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseReplayArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    replayConfig
		wantErr bool
	}{
		{
			name: "trace only",
			args: []string{"trace.txt"},
			want: replayConfig{format: "text", tracePath: "trace.txt"},
		},
		{
			name: "all flags",
			args: []string{"-config", "c.yaml", "-format", "json", "-o", "out.json", "-push", "-v", "t.txt"},
			want: replayConfig{configPath: "c.yaml", format: "json", outputFile: "out.json", push: true, verbose: true, tracePath: "t.txt"},
		},
		{name: "no trace", args: []string{"-format", "yaml"}, wantErr: true},
		{name: "two traces", args: []string{"a.txt", "b.txt"}, wantErr: true},
		{name: "bad format", args: []string{"-format", "xml", "t.txt"}, wantErr: true},
		{name: "unknown flag", args: []string{"-bogus", "t.txt"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := parseReplayArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseReplayArgs(%v) succeeded, want error", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReplayArgs() error: %v", err)
			}
			if *rc != tt.want {
				t.Errorf("parseReplayArgs() = %+v, want %+v", *rc, tt.want)
			}
		})
	}
}

func TestRunReplayText(t *testing.T) {
	path := writeProject(t)

	var out, logs bytes.Buffer
	rc := &replayConfig{format: "text", tracePath: path}
	if err := runReplay(context.Background(), rc, &out, &logs); err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Call Tracking Report",
		"Module:  example.com/traced",
		"Events:  8",
		"widget.New (widget.go:12)",
		"called from main.main (main.go:3)",
		"args: size=0x8:int",
		"value=0x10 type=Widget",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}

	if !strings.Contains(logs.String(), "session stopped") {
		t.Errorf("lifecycle not logged: %s", logs.String())
	}
}

func TestRunReplayJSONFile(t *testing.T) {
	path := writeProject(t)
	outPath := filepath.Join(t.TempDir(), "report.json")

	var out, logs bytes.Buffer
	rc := &replayConfig{format: "json", outputFile: outPath, tracePath: path}
	if err := runReplay(context.Background(), rc, &out, &logs); err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout written with -o: %q", out.String())
	}

	rep, err := readReport(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Module != "example.com/traced" || rep.SessionID == "" {
		t.Errorf("report header = %q / %q", rep.Module, rep.SessionID)
	}
	counts := rep.Counts()
	if counts["CALL"] != 3 || counts["RETURN"] != 3 || counts["CREATE"] != 1 || counts["DESTROY"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRunReplayPush(t *testing.T) {
	path := writeProject(t)

	var out, logs bytes.Buffer
	rc := &replayConfig{format: "yaml", push: true, tracePath: path}
	if err := runReplay(context.Background(), rc, &out, &logs); err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}

	rep, err := report.ReadYAML(&out)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Events) != 8 {
		t.Fatalf("push mode collected %d events, want 8", len(rep.Events))
	}
	for i, ev := range rep.Events {
		if ev.Index != i {
			t.Fatalf("event %d has index %d", i, ev.Index)
		}
	}
}

func TestRunReplayConfigLimit(t *testing.T) {
	path := writeProject(t)
	cfgPath := filepath.Join(t.TempDir(), "track.yaml")
	if err := os.WriteFile(cfgPath, []byte("max_events: 3\nlog_level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var out, logs bytes.Buffer
	rc := &replayConfig{configPath: cfgPath, format: "json", tracePath: path}
	if err := runReplay(context.Background(), rc, &out, &logs); err != nil {
		t.Fatalf("runReplay() error: %v", err)
	}

	rep, err := report.ReadJSON(&out)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Events) != 3 || rep.Dropped != 5 {
		t.Errorf("events=%d dropped=%d, want 3 and 5", len(rep.Events), rep.Dropped)
	}
	if len(rep.Errors) != 1 {
		t.Errorf("errors = %+v, want one capacity error", rep.Errors)
	}

	// warn level hides the info lifecycle lines but keeps the drop warning.
	if strings.Contains(logs.String(), "session started") {
		t.Errorf("info line logged at warn level: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "event limit reached") {
		t.Errorf("drop warning missing: %s", logs.String())
	}
}

func TestRunReplayErrors(t *testing.T) {
	dir := t.TempDir()

	badTrace := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(badTrace, []byte("1 jump f.go 1 f\n"), 0644); err != nil {
		t.Fatal(err)
	}
	badConfig := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("traceback_depth: 99\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		rc   replayConfig
		want string
	}{
		{"missing trace", replayConfig{format: "text", tracePath: filepath.Join(dir, "none.txt")}, "open trace"},
		{"syntax error", replayConfig{format: "text", tracePath: badTrace}, "unknown event kind"},
		{"bad config", replayConfig{configPath: badConfig, format: "text", tracePath: badTrace}, "traceback_depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, logs bytes.Buffer
			err := runReplay(context.Background(), &tt.rc, &out, &logs)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("runReplay() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRunReplayCancelled(t *testing.T) {
	path := writeProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, logs bytes.Buffer
	rc := &replayConfig{format: "text", tracePath: path}
	err := runReplay(ctx, rc, &out, &logs)
	if err == nil || !strings.Contains(err.Error(), "context canceled") {
		t.Fatalf("runReplay() error = %v, want context canceled", err)
	}
	if out.Len() != 0 {
		t.Errorf("report written after cancel: %q", out.String())
	}
}
