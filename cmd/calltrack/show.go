// show.go implements the 'calltrack show' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolkov/calltrack/internal/track/report"
)

// showCommand renders a saved JSON or YAML report as text.
//
// Example:
//
//	calltrack show report.json
func showCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one report file")
		os.Exit(1)
	}

	if err := show(args[0], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func show(path string, w io.Writer) error {
	rep, err := readReport(path)
	if err != nil {
		return err
	}
	return report.WriteText(w, rep)
}

// readReport decodes a report file, picking the decoder by extension.
func readReport(path string) (*report.Report, error) {
	var read func(io.Reader) (*report.Report, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		read = report.ReadJSON
	case ".yaml", ".yml":
		read = report.ReadYAML
	default:
		return nil, errors.New("report file must end in .json, .yaml or .yml")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rep, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rep, nil
}
