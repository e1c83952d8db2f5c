package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/calltrack/internal/track/event"
)

const rule = "==================\n"

// WriteText prints a human-readable report.
//
// Format:
//
//	==================
//	Call Tracking Report
//	==================
//	Session: 0b6c...
//	Events:  4 (CALL 2, RETURN 2)
//	------------------
//	#0     CALL     app.handle (app.go:10)  thread=1
//	         args: req=0x10:Request
//	         called from main.main (main.go:3)
//	...
func WriteText(w io.Writer, r *Report) error {
	var b strings.Builder

	b.WriteString(rule)
	b.WriteString("Call Tracking Report\n")
	b.WriteString(rule)

	if r.Module != "" {
		fmt.Fprintf(&b, "Module:  %s\n", r.Module)
	}
	if r.Source != "" {
		fmt.Fprintf(&b, "Source:  %s\n", r.Source)
	}
	fmt.Fprintf(&b, "Session: %s\n", r.SessionID)
	fmt.Fprintf(&b, "Events:  %d%s\n", len(r.Events), kindSummary(r))
	if r.Dropped > 0 {
		fmt.Fprintf(&b, "Dropped: %d\n", r.Dropped)
	}
	fmt.Fprintf(&b, "Strings: %d unique, %d bytes\n", r.Strings.Unique, r.Strings.Bytes)

	if len(r.Events) > 0 {
		b.WriteString("------------------\n")
		for i := range r.Events {
			writeEvent(&b, &r.Events[i])
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("------------------\n")
		fmt.Fprintf(&b, "WARNING: %d recording error(s)\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", e.Category, e.Context, e.Message)
		}
	}

	b.WriteString(rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func kindSummary(r *Report) string {
	if len(r.Events) == 0 {
		return ""
	}
	counts := r.Counts()
	var parts []string
	for _, k := range []event.Kind{event.KindCall, event.KindReturn, event.KindCreate, event.KindDestroy} {
		if n := counts[k.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, n))
		}
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func writeEvent(b *strings.Builder, ev *event.Resolved) {
	fmt.Fprintf(b, "#%-5d %-8s %s  thread=%d", ev.Index, ev.Kind, formatFrame(ev.Location), ev.ThreadID)

	switch ev.Kind {
	case event.KindReturn.String():
		if ev.ObjectID != 0 {
			fmt.Fprintf(b, " value=%#x", ev.ObjectID)
		}
		if ev.TypeTag != "" {
			fmt.Fprintf(b, " type=%s", ev.TypeTag)
		}
		if ev.Exception {
			b.WriteString(" exception")
		}
	case event.KindCreate.String(), event.KindDestroy.String():
		fmt.Fprintf(b, " object=%#x", ev.ObjectID)
		if ev.TypeTag != "" {
			fmt.Fprintf(b, " type=%s", ev.TypeTag)
		}
	}
	b.WriteByte('\n')

	if len(ev.Args) > 0 {
		b.WriteString("         args:")
		for _, a := range ev.Args {
			fmt.Fprintf(b, " %s", formatArg(a))
		}
		b.WriteByte('\n')
	}
	if ev.Caller != nil {
		fmt.Fprintf(b, "         called from %s\n", formatFrame(*ev.Caller))
	}
	if c := ev.Creation; c != nil {
		fmt.Fprintf(b, "         created at %s\n", formatFrame(c.Location))
		for _, f := range c.Traceback {
			fmt.Fprintf(b, "           %s\n", formatFrame(f))
		}
	}
}

// formatArg renders "name=id:type", with "?" for a missing name.
func formatArg(a event.Arg) string {
	name := a.Name
	if name == "" {
		name = "?"
	}
	if a.TypeTag == "" {
		return fmt.Sprintf("%s=%#x", name, a.ObjectID)
	}
	return fmt.Sprintf("%s=%#x:%s", name, a.ObjectID, a.TypeTag)
}

// formatFrame renders "function (file:line)", with "?" for missing parts.
func formatFrame(f event.Frame) string {
	fn := f.Function
	if fn == "" {
		fn = "?"
	}
	if f.File == "" {
		return fn
	}
	return fmt.Sprintf("%s (%s:%d)", fn, f.File, f.Line)
}
