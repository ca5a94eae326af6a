// Package events defines the run event stream shared by the engine, the
// HTTP/WebSocket server, and the terminal UI.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the event kinds a run can emit.
type Type string

const (
	TypeStatus    Type = "status"
	TypeCode      Type = "code"
	TypePlot      Type = "plot"
	TypePlan      Type = "plan"
	TypeAssistant Type = "assistant_message"
	TypeMetadata  Type = "metadata"
	TypeArtifacts Type = "artifacts"
	TypeError     Type = "error"
)

// Event 运行过程中的一条可观测记录
// Event is one observable step of a run. Payload shape depends on Type.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	Step      int            `json:"step"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// New stamps a fresh event with an identifier and RFC3339 timestamp.
func New(typ Type, step int, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Step:      step,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
}

// Sink consumes events in emission order. Implementations must not block
// the engine for long; slow consumers should buffer or drop.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard ignores every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans one event out to several sinks, in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// Recorder 收集事件，测试和 TUI 用
// Recorder is a threadsafe in-memory sink.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByType filters recorded events by kind.
func (r *Recorder) ByType(typ Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
