package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/vovakirdan/modchat-server/internal/store"
)

// MemoryStore implements store.MessageStore in process memory.
// Records are copied on the way in and out so callers never share them.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*store.Message
	byRoom map[string][]string
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*store.Message),
		byRoom: make(map[string][]string),
	}
}

// SaveMessage appends the message to its room.
func (s *MemoryStore) SaveMessage(_ context.Context, msg *store.Message) error {
	if msg == nil || msg.ID == "" {
		return fmt.Errorf("save message: missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[msg.ID]; !exists {
		s.byRoom[msg.Room] = append(s.byRoom[msg.Room], msg.ID)
	}
	s.byID[msg.ID] = clone(msg)
	return nil
}

// GetMessage retrieves a message by id.
func (s *MemoryStore) GetMessage(_ context.Context, id string) (*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(msg), nil
}

// ListMessages returns the latest messages of a room in save order.
func (s *MemoryStore) ListMessages(_ context.Context, room string, limit int) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRoom[room]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	messages := make([]*store.Message, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, clone(s.byID[id]))
	}
	return messages, nil
}

// ListVisibleMessages returns the latest non-blocked messages of a room in save order.
func (s *MemoryStore) ListVisibleMessages(_ context.Context, room string, limit int) ([]*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRoom[room]
	messages := make([]*store.Message, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		if limit > 0 && len(messages) == limit {
			break
		}
		if msg := s.byID[ids[i]]; msg.Visible() {
			messages = append(messages, clone(msg))
		}
	}
	slices.Reverse(messages)
	return messages, nil
}

// DeleteMessage removes a single message.
func (s *MemoryStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byID, id)

	ids := s.byRoom[msg.Room]
	for i, candidate := range ids {
		if candidate == id {
			s.byRoom[msg.Room] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byRoom[msg.Room]) == 0 {
		delete(s.byRoom, msg.Room)
	}
	return nil
}

// DeleteRoomMessages removes every message of a room.
func (s *MemoryStore) DeleteRoomMessages(_ context.Context, room string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byRoom[room]
	for _, id := range ids {
		delete(s.byID, id)
	}
	delete(s.byRoom, room)
	return int64(len(ids)), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func clone(msg *store.Message) *store.Message {
	cp := *msg
	if msg.Moderation != nil {
		mod := *msg.Moderation
		mod.Labels = slices.Clone(msg.Moderation.Labels)
		mod.Scores = maps.Clone(msg.Moderation.Scores)
		cp.Moderation = &mod
	}
	return &cp
}
