// Package report serializes the result of a stopped tracking session.
//
// Three encodings are supported:
//
//   - text: human-readable summary in the style of the race detector report
//   - json: one JSON document (encoding/json)
//   - yaml: one YAML document (gopkg.in/yaml.v3)
//
// The tracking core itself never persists events; this package is the
// adapter that gives a Result an external form.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/calltrack/internal/track/event"
	"github.com/kolkov/calltrack/internal/track/intern"
	"github.com/kolkov/calltrack/internal/track/session"
	"github.com/kolkov/calltrack/internal/track/store"
)

// Format selects an encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// Report is the serializable form of a session result.
type Report struct {
	Module    string              `json:"module,omitempty" yaml:"module,omitempty"`
	Source    string              `json:"source,omitempty" yaml:"source,omitempty"`
	SessionID string              `json:"session_id" yaml:"session_id"`
	Events    []event.Resolved    `json:"events" yaml:"events"`
	Errors    []store.RecordError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Dropped   uint64              `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Strings   Strings             `json:"strings" yaml:"strings"`
}

// Strings summarizes string table usage.
type Strings struct {
	Unique  int   `json:"unique" yaml:"unique"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
	Resizes int   `json:"resizes" yaml:"resizes"`
}

// FromResult builds a Report. module and source are optional labels.
func FromResult(res *session.Result, module, source string) *Report {
	return &Report{
		Module:    module,
		Source:    source,
		SessionID: res.SessionID,
		Events:    res.Events,
		Errors:    res.Errors,
		Dropped:   res.Dropped,
		Strings:   stringsOf(res.Strings),
	}
}

func stringsOf(st intern.Stats) Strings {
	return Strings{Unique: st.Unique, Bytes: st.Bytes, Resizes: st.Resizes}
}

// Counts returns the number of events per kind.
func (r *Report) Counts() map[string]int {
	counts := make(map[string]int, 4)
	for _, ev := range r.Events {
		counts[ev.Kind]++
	}
	return counts
}

// Write encodes r to w in format f.
func Write(w io.Writer, f Format, r *Report) error {
	switch f {
	case FormatText:
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// WriteJSON encodes r as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return nil
}

// WriteYAML encodes r as YAML.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return nil
}

// ReadJSON decodes a report written by WriteJSON.
func ReadJSON(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return &r, nil
}

// ReadYAML decodes a report written by WriteYAML.
func ReadYAML(rd io.Reader) (*Report, error) {
	var r Report
	if err := yaml.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return &r, nil
}
