package server

import (
	"sync"

	"github.com/google/uuid"

	"mlagent/internal/events"
)

// session is one client's unit of work: a busy flag, the accumulated
// event history, and live subscribers. Event fan-out preserves emission
// order; late subscribers replay the history first.
type session struct {
	id string

	mu          sync.Mutex
	busy        bool
	history     []events.Event
	subscribers map[chan events.Event]struct{}
	lastError   string
}

func newSession() *session {
	return &session{
		id:          uuid.NewString(),
		subscribers: map[chan events.Event]struct{}{},
	}
}

// Emit implements events.Sink. Slow subscribers are skipped rather than
// blocking the run.
func (s *session) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, e)
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// subscribe returns a channel replaying history then receiving live
// events, plus an unsubscribe func.
func (s *session) subscribe() (chan events.Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan events.Event, 256+len(s.history))
	for _, e := range s.history {
		ch <- e
	}
	s.subscribers[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, ch)
	}
}

// tryAcquire marks the session busy; it fails while a run is in flight.
func (s *session) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *session) release(errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.lastError = errText
}

func (s *session) status() (busy bool, eventCount int, lastError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy, len(s.history), s.lastError
}

// sessionManager tracks sessions by id.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: map[string]*session{}}
}

func (m *sessionManager) create() *session {
	s := newSession()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
	return s
}

func (m *sessionManager) get(id string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}
