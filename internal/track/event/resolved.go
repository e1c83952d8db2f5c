package event

import (
	"github.com/kolkov/calltrack/internal/track/callstack"
	"github.com/kolkov/calltrack/internal/track/creation"
)

// Frame is a resolved call-site.
type Frame struct {
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Line     int32  `json:"line" yaml:"line"`
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
}

// Creation is a resolved creation record.
type Creation struct {
	Location  Frame   `json:"location" yaml:"location"`
	Traceback []Frame `json:"traceback,omitempty" yaml:"traceback,omitempty"`
	TypeTag   string  `json:"type,omitempty" yaml:"type,omitempty"`
}

// Resolved is an event whose strings no longer depend on the string table.
type Resolved struct {
	Index     int       `json:"index" yaml:"index"`
	Kind      string    `json:"kind" yaml:"kind"`
	Location  Frame     `json:"location" yaml:"location"`
	Caller    *Frame    `json:"caller,omitempty" yaml:"caller,omitempty"`
	ObjectID  uint64    `json:"object_id,omitempty" yaml:"object_id,omitempty"`
	TypeTag   string    `json:"type,omitempty" yaml:"type,omitempty"`
	ThreadID  uint64    `json:"thread_id" yaml:"thread_id"`
	Timestamp uint64    `json:"timestamp_ns" yaml:"timestamp_ns"`
	Exception bool      `json:"exception,omitempty" yaml:"exception,omitempty"`
	Args      []Arg     `json:"args,omitempty" yaml:"args,omitempty"`
	Creation  *Creation `json:"creation,omitempty" yaml:"creation,omitempty"`
}

// ResolveFrame dereferences the handles of f.
//
// Must be called while the string table that issued f is alive.
func ResolveFrame(f callstack.Frame) Frame {
	return Frame{
		File:     f.Location.String(),
		Line:     f.Line,
		Function: f.Function.String(),
	}
}

// ResolveCreation dereferences a creation record. Nil stays nil.
func ResolveCreation(r *creation.Record) *Creation {
	if r == nil {
		return nil
	}

	c := &Creation{
		Location: ResolveFrame(r.Location),
		TypeTag:  r.TypeTag.String(),
	}
	if len(r.Traceback) > 0 {
		c.Traceback = make([]Frame, len(r.Traceback))
		for i, f := range r.Traceback {
			c.Traceback[i] = ResolveFrame(f)
		}
	}
	return c
}

// Resolve converts ev into its table-independent form.
//
// Must be called while the string table that issued ev's handles is alive.
func Resolve(index int, ev *Event) Resolved {
	r := Resolved{
		Index:     index,
		Kind:      ev.Kind.String(),
		Location:  ResolveFrame(ev.Location),
		ObjectID:  ev.ObjectID,
		TypeTag:   ev.TypeTag.String(),
		ThreadID:  ev.ThreadID,
		Timestamp: ev.Timestamp,
		Exception: ev.Exception,
		Creation:  ResolveCreation(ev.Creation),
	}
	if ev.HasCaller {
		caller := ResolveFrame(ev.Caller)
		r.Caller = &caller
	}
	if len(ev.Args) > 0 {
		r.Args = make([]Arg, len(ev.Args))
		for i, a := range ev.Args {
			r.Args[i] = Arg{Name: a.Name.String(), ObjectID: a.ObjectID, TypeTag: a.TypeTag.String()}
		}
	}
	return r
}
