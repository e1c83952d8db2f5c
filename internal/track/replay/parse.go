// Package replay feeds recorded raw-event traces into a tracking session.
//
// A trace is plain text, one hook invocation per line:
//
//	# comment
//	<thread> call    <file> <line> <symbol> [name=object-id[:type] ...]
//	<thread> return  <file> <line> <symbol> [object-id [type]] [exc]
//	<thread> create  <file> <line> <symbol> <object-id> <type>
//	<thread> destroy <file> <line> <symbol> <object-id> <type>
//
// A file or symbol of "-" means none (builtins). Thread and object IDs accept
// any Go integer literal (42, 0x2a). Thread IDs must be positive.
//
// Replay runs every recorded thread on its own goroutine, so each one gets
// its own call stack exactly as live hooks would.
package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/mmap"

	"github.com/kolkov/calltrack/internal/track/event"
)

// Source is the input of Parse. mmap.ReaderAt, bytes.Reader and
// strings.Reader all satisfy it.
type Source interface {
	io.ReaderAt
	Len() int
}

// maxLineSize bounds a single trace line.
const maxLineSize = 1 << 20

// Script is the event sequence of one recorded thread, in file order.
type Script struct {
	Thread uint64
	Events []event.Raw
	Lines  []int // source line of each event
}

// Trace is a parsed trace file.
type Trace struct {
	Name    string
	Threads []*Script // in order of first appearance
}

// Len returns the total number of events.
func (t *Trace) Len() int {
	n := 0
	for _, s := range t.Threads {
		n += len(s.Events)
	}
	return n
}

// Open maps the file at path read-only and parses it.
func Open(path string) (*Trace, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer r.Close()

	return Parse(path, r)
}

// Parse reads a trace. name labels error messages.
func Parse(name string, r Source) (*Trace, error) {
	tr := &Trace{Name: name}
	byThread := make(map[uint64]*Script)

	sc := bufio.NewScanner(io.NewSectionReader(r, 0, int64(r.Len())))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		raw, err := parseLine(name, lineNo, strings.Fields(line))
		if err != nil {
			return nil, err
		}

		s, ok := byThread[raw.ThreadID]
		if !ok {
			s = &Script{Thread: raw.ThreadID}
			byThread[raw.ThreadID] = s
			tr.Threads = append(tr.Threads, s)
		}
		s.Events = append(s.Events, raw)
		s.Lines = append(s.Lines, lineNo)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: read trace: %w", name, err)
	}

	return tr, nil
}

func parseLine(name string, lineNo int, fields []string) (event.Raw, error) {
	if len(fields) < 2 {
		return event.Raw{}, syntaxErrorf(name, lineNo, "", "want <thread> <kind> ..., got %q", strings.Join(fields, " "))
	}

	thread, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil || thread == 0 {
		return event.Raw{}, syntaxErrorf(name, lineNo, "", "bad thread id %q (want a positive integer)", fields[0])
	}

	kindName := strings.ToLower(fields[1])
	kind, ok := event.ParseKind(kindName)
	if !ok {
		return event.Raw{}, syntaxErrorf(name, lineNo, "", "unknown event kind %q (want call, return, create or destroy)", fields[1])
	}

	minFields, maxFields := 5, 5
	switch kind {
	case event.KindCall:
		maxFields = -1
	case event.KindReturn:
		maxFields = 8
	case event.KindCreate, event.KindDestroy:
		minFields, maxFields = 7, 7
	}
	if len(fields) < minFields || (maxFields >= 0 && len(fields) > maxFields) {
		switch {
		case maxFields < 0:
			return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "%s needs at least %d fields, got %d", kindName, minFields, len(fields))
		case minFields == maxFields:
			return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "%s needs %d fields, got %d", kindName, minFields, len(fields))
		}
		return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "%s needs %d to %d fields, got %d", kindName, minFields, maxFields, len(fields))
	}

	line, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "bad line number %q", fields[3])
	}

	raw := event.Raw{
		Kind:     kind,
		ThreadID: thread,
		Site: event.Site{
			File:   optional(fields[2]),
			Line:   int32(line),
			Symbol: optional(fields[4]),
		},
	}

	rest := fields[5:]
	switch kind {
	case event.KindCall:
		for _, f := range rest {
			arg, err := parseArg(f)
			if err != nil {
				return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "bad argument %q: %v", f, err)
			}
			raw.Args = append(raw.Args, arg)
		}
	case event.KindReturn:
		if n := len(rest); n > 0 && rest[n-1] == "exc" {
			raw.Exception = true
			rest = rest[:n-1]
		}
		if len(rest) > 2 {
			return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "unexpected field %q", rest[2])
		}
		if len(rest) >= 1 {
			if raw.ObjectID, err = strconv.ParseUint(rest[0], 0, 64); err != nil {
				return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "bad object id %q", rest[0])
			}
		}
		if len(rest) == 2 {
			raw.TypeTag = optional(rest[1])
		}
	case event.KindCreate, event.KindDestroy:
		if raw.ObjectID, err = strconv.ParseUint(rest[0], 0, 64); err != nil {
			return event.Raw{}, syntaxErrorf(name, lineNo, kindName, "bad object id %q", rest[0])
		}
		raw.TypeTag = optional(rest[1])
	}

	return raw, nil
}

// parseArg reads "name=object-id" or "name=object-id:type".
func parseArg(f string) (event.Arg, error) {
	name, val, ok := strings.Cut(f, "=")
	if !ok {
		return event.Arg{}, errors.New("want name=object-id[:type]")
	}
	id, typ, _ := strings.Cut(val, ":")
	objID, err := strconv.ParseUint(id, 0, 64)
	if err != nil {
		return event.Arg{}, fmt.Errorf("bad object id %q", id)
	}
	return event.Arg{Name: optional(name), ObjectID: objID, TypeTag: typ}, nil
}

func optional(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
