// Package das records diagnostic analytics events the way the robot
// firmware reports them: a named event with short string and integer
// fields, stamped with a session id and a monotonically increasing
// sequence number, fanned out to one or more sinks.
package das

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Name    string           `json:"name"`
	Session string           `json:"session"`
	Seq     uint64           `json:"seq"`
	Time    time.Time        `json:"time"`
	Str     map[string]string `json:"str,omitempty"`
	Int     map[string]int64  `json:"int,omitempty"`
}

// Sink receives recorded events. Implementations must not retain the
// maps beyond the call unless they copy them.
type Sink interface {
	Record(e Event)
}

type Field func(*Event)

func Str(key, val string) Field {
	return func(e *Event) { e.Str[key] = val }
}

func Int(key string, val int64) Field {
	return func(e *Event) { e.Int[key] = val }
}

// Recorder stamps events with a per-process session id and fans them
// out to its sinks.
type Recorder struct {
	session string
	seq     atomic.Uint64
	sinks   []Sink
}

func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{
		session: uuid.NewString(),
		sinks:   sinks,
	}
}

func (r *Recorder) Session() string { return r.session }

func (r *Recorder) Record(name string, fields ...Field) {
	e := Event{
		Name:    name,
		Session: r.session,
		Seq:     r.seq.Add(1),
		Time:    time.Now(),
		Str:     make(map[string]string),
		Int:     make(map[string]int64),
	}
	for _, f := range fields {
		f(&e)
	}
	for _, s := range r.sinks {
		s.Record(e)
	}
}

// SlogSink logs each event through a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

func (s *SlogSink) Record(e Event) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	args := []any{"session", e.Session, "seq", e.Seq}
	for k, v := range e.Str {
		args = append(args, k, v)
	}
	for k, v := range e.Int {
		args = append(args, k, v)
	}
	l.Info("das."+e.Name, args...)
}

// MemorySink buffers events, used by tests and the web dashboard.
type MemorySink struct {
	events []Event
}

func (m *MemorySink) Record(e Event) {
	cp := e
	cp.Str = make(map[string]string, len(e.Str))
	for k, v := range e.Str {
		cp.Str[k] = v
	}
	cp.Int = make(map[string]int64, len(e.Int))
	for k, v := range e.Int {
		cp.Int[k] = v
	}
	m.events = append(m.events, cp)
}

func (m *MemorySink) Events() []Event { return m.events }

func (m *MemorySink) Named(name string) []Event {
	var out []Event
	for _, e := range m.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
