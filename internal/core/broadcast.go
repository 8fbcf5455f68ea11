package core

import "github.com/rs/zerolog"

// SessionLookup resolves live sessions by id.
type SessionLookup interface {
	Session(id string) (*Session, bool)
	Sessions() []*Session
}

// Broadcaster fans events out to sessions. Room membership is read at
// delivery time, never cached.
type Broadcaster struct {
	rooms    *Registry
	sessions SessionLookup
	log      *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over the registry and session table.
func NewBroadcaster(rooms *Registry, sessions SessionLookup, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{rooms: rooms, sessions: sessions, log: logger}
}

// ToRoom sends an event to every session currently in room and returns the
// number of sessions that received it.
func (b *Broadcaster) ToRoom(room string, ev *Event) int {
	delivered := 0
	for _, id := range b.rooms.Members(room) {
		s, ok := b.sessions.Session(id)
		if !ok || s.Room() != room {
			continue
		}
		if b.send(s, ev) {
			delivered++
		}
	}
	return delivered
}

// ToSession sends an event to a single session.
func (b *Broadcaster) ToSession(s *Session, ev *Event) bool {
	return b.send(s, ev)
}

// ToAll sends an event to every connected session.
func (b *Broadcaster) ToAll(ev *Event) {
	for _, s := range b.sessions.Sessions() {
		b.send(s, ev)
	}
}

// Presence publishes the current member count of room to its members.
func (b *Broadcaster) Presence(room string) {
	if room == "" {
		return
	}
	b.ToRoom(room, &Event{
		Kind:  EventRoomData,
		Room:  room,
		Users: b.rooms.Count(room),
	})
}

func (b *Broadcaster) send(s *Session, ev *Event) bool {
	if s.deliver(ev) {
		return true
	}
	if !s.isClosed() {
		b.log.Warn().Str("session_id", s.ID).Int("kind", int(ev.Kind)).Msg("dropping event for slow consumer")
	}
	return false
}
