package server

import (
	"sync"

	"github.com/google/uuid"
)

// Hub tracks the live websocket sessions.
type Hub struct {
	Register   chan *Session
	Unregister chan *Session
	sessions   map[string]*Session
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
}

// NewHub returns an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Session),
		Unregister: make(chan *Session),
		sessions:   make(map[string]*Session),
		done:       make(chan struct{}),
	}
}

// newSessionID returns a fresh session id.
func newSessionID() string {
	return uuid.NewString()
}

// Run serves registrations until Stop.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.Register:
			h.mu.Lock()
			h.sessions[s.ID] = s
			h.mu.Unlock()
		case s := <-h.Unregister:
			h.mu.Lock()
			delete(h.sessions, s.ID)
			h.mu.Unlock()
		case <-h.done:
			return
		}
	}
}

func (h *Hub) add(s *Session) {
	select {
	case h.Register <- s:
	case <-h.done:
	}
}

func (h *Hub) remove(s *Session) {
	select {
	case h.Unregister <- s:
	case <-h.done:
	}
}

// Stop ends Run and closes every session.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		for _, s := range h.Sessions() {
			s.Close()
		}
	})
}

// Sessions returns a snapshot of the live sessions.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Get returns the session with id.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}
