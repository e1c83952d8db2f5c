package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindGoMod(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	rootMod := filepath.Join(root, "go.mod")
	if err := os.WriteFile(rootMod, []byte("module example.com/root\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := findGoMod(nested); got != rootMod {
		t.Errorf("findGoMod(nested) = %q, want %q", got, rootMod)
	}

	inner := filepath.Join(root, "a", "go.mod")
	if err := os.WriteFile(inner, []byte("module example.com/inner\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := findGoMod(nested); got != inner {
		t.Errorf("findGoMod(nested) = %q, want nearest %q", got, inner)
	}
}

func TestModulePath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "module example.com/app\n\ngo 1.24\n", "example.com/app"},
		{"with requires", "module github.com/x/y\n\nrequire golang.org/x/mod v0.30.0\n", "github.com/x/y"},
		{"malformed", "module\n", ""},
		{"no module line", "go 1.24\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".mod")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if got := modulePath(path); got != tt.want {
				t.Errorf("modulePath() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := modulePath(filepath.Join(dir, "missing.mod")); got != "" {
		t.Errorf("modulePath(missing) = %q", got)
	}
}

func TestShowSavedReports(t *testing.T) {
	trace := writeProject(t)
	dir := t.TempDir()

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			saved := filepath.Join(dir, "report."+format)

			var stdout, logs bytes.Buffer
			rc := &replayConfig{format: format, outputFile: saved, tracePath: trace}
			if err := runReplay(context.Background(), rc, &stdout, &logs); err != nil {
				t.Fatal(err)
			}

			var out bytes.Buffer
			if err := show(saved, &out); err != nil {
				t.Fatalf("show() error: %v", err)
			}
			if !strings.Contains(out.String(), "Call Tracking Report") ||
				!strings.Contains(out.String(), "created at widget.New (widget.go:13)") {
				t.Errorf("rendered report:\n%s", out.String())
			}
		})
	}
}

func TestReadReportRejectsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readReport(path); err == nil {
		t.Fatal("readReport accepted a .txt file")
	}
}
