package core

import "sync"

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Session is the server-side state of one live connection.
type Session struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// transition serializes room changes and disconnect for this session.
	transition sync.Mutex

	mu     sync.RWMutex
	name   string
	bound  bool // name comes from a verified token and join cannot change it
	room   string
	closed bool
	done   chan struct{}
}

// NewSession constructs a session with initialized channels and no room.
func NewSession(id, name string) *Session {
	if name == "" {
		name = id
	}
	return &Session{
		ID:       id,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, eventBuffer),
		name:     name,
		done:     make(chan struct{}),
	}
}

// NewBoundSession constructs a session whose identity was established by
// the auth layer.
func NewBoundSession(id, name string) *Session {
	s := NewSession(id, name)
	s.bound = true
	return s
}

// Name returns the display name used as sender identity.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Room returns the current room, or "" when the session has not joined one.
func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Done is closed when the session is disconnected.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setRoom(room, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = room
	if name != "" && !s.bound {
		s.name = name
	}
}

// markClosed flips the session to closed. Returns false if it already was.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	return true
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// deliver queues an event without blocking. Returns false when the session
// is gone or its queue is full.
func (s *Session) deliver(ev *Event) bool {
	if s.isClosed() {
		return false
	}
	select {
	case s.Events <- ev:
		return true
	default:
		return false
	}
}
