package replay

import "fmt"

// SyntaxError reports a malformed trace line.
//
// Fields:
//   - File: Trace name (path or label given to Parse)
//   - Line: Line number (1-indexed)
//   - Message: Human-readable error description
//   - Suggestion: Optional hint for fixing the line
//
// Example output:
//
//	trace.txt:12: create needs 7 fields, got 5
//
//	Suggestion: <thread> create <file> <line> <symbol> <object-id> <type>
type SyntaxError struct {
	File       string
	Line       int
	Message    string
	Suggestion string
}

// Error implements the error interface.
//
// Format: file:line: message, plus the suggestion on its own paragraph.
func (e *SyntaxError) Error() string {
	result := fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// usage is the expected shape of each line kind.
var usage = map[string]string{
	"call":    "<thread> call <file> <line> <symbol> [name=object-id[:type] ...]",
	"return":  "<thread> return <file> <line> <symbol> [object-id [type]] [exc]",
	"create":  "<thread> create <file> <line> <symbol> <object-id> <type>",
	"destroy": "<thread> destroy <file> <line> <symbol> <object-id> <type>",
}

func syntaxErrorf(file string, line int, kind, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		File:       file,
		Line:       line,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: usage[kind],
	}
}
