package core

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// MaxChannelNameLen bounds channel names in runes.
const MaxChannelNameLen = 64

type channel struct {
	name      string
	isDefault bool

	mu      sync.RWMutex
	members map[string]struct{} // session ids

	// writes is read-held while a message of this channel is being persisted.
	// Remove takes it exclusively once the channel is out of the map.
	writes sync.RWMutex
}

// Registry owns the set of channels and their member sets.
// The registry lock guards the channel map; each channel's lock guards its
// members, so mutations of one room never wait on another.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*channel
	order    []string
}

// NewRegistry creates a registry seeded with non-deletable default channels.
// The first default is where members of deleted channels are moved.
func NewRegistry(defaults []string) *Registry {
	r := &Registry{channels: make(map[string]*channel)}
	for _, name := range defaults {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, exists := r.channels[name]; exists {
			continue
		}
		r.add(name, true)
	}
	if len(r.order) == 0 {
		r.add(DefaultChannel, true)
	}
	return r
}

// DefaultChannel is used when no defaults are configured.
const DefaultChannel = "General"

func (r *Registry) add(name string, isDefault bool) {
	r.channels[name] = &channel{
		name:      name,
		isDefault: isDefault,
		members:   make(map[string]struct{}),
	}
	r.order = append(r.order, name)
}

// Default returns the relocation target for members of deleted channels.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order[0]
}

// IsDefault reports whether name is a protected default channel.
func (r *Registry) IsDefault(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ok && ch.isDefault
}

// Exists reports whether a channel with exactly this name exists.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[name]
	return ok
}

// List returns channel names in creation order, defaults first.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ValidateChannelName trims name and checks its length.
func ValidateChannelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: channel name is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(name) > MaxChannelNameLen {
		return "", fmt.Errorf("%w: channel name longer than %d characters", ErrBadRequest, MaxChannelNameLen)
	}
	return name, nil
}

// Create adds an empty channel. Names are case-sensitive.
func (r *Registry) Create(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r.add(name, false)
	return nil
}

// Hold pins a channel against removal until release is called. ok is false
// if the channel does not exist.
func (r *Registry) Hold(name string) (release func(), ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, false
	}
	ch.writes.RLock()
	return ch.writes.RUnlock, true
}

// Remove deletes a non-default channel and returns the ids of its members
// at removal time. It returns once every Hold on the channel is released.
func (r *Registry) Remove(name string) ([]string, error) {
	ch, members, err := r.detach(name)
	if err != nil {
		return nil, err
	}
	// No new holder can find the channel now; wait for the current ones.
	ch.writes.Lock()
	ch.writes.Unlock()
	return members, nil
}

func (r *Registry) detach(name string) (*channel, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownRoom, name)
	}
	if ch.isDefault {
		return nil, nil, fmt.Errorf("%w: %s", ErrProtectedChannel, name)
	}

	delete(r.channels, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	members := make([]string, 0, len(ch.members))
	for id := range ch.members {
		members = append(members, id)
	}
	ch.members = make(map[string]struct{})
	return ch, members, nil
}

// AddMember inserts a session into a room's member set.
func (r *Registry) AddMember(room, sessionID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[room]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	ch.mu.Lock()
	ch.members[sessionID] = struct{}{}
	ch.mu.Unlock()
	return nil
}

// RemoveMember deletes a session from a room. Returns true if it was a member.
func (r *Registry) RemoveMember(room, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[room]
	if !ok {
		return false
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if _, member := ch.members[sessionID]; !member {
		return false
	}
	delete(ch.members, sessionID)
	return true
}

// Members returns a snapshot of the session ids in a room.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[room]
	if !ok {
		return nil
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	ids := make([]string, 0, len(ch.members))
	for id := range ch.members {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the size of a room's member set.
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[room]
	if !ok {
		return 0
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.members)
}
