package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/store/memory"
)

// Options configures a Hub.
type Options struct {
	DefaultChannels   []string
	Store             store.MessageStore // nil selects an in-memory store
	Moderator         Moderator          // nil selects moderation.Disabled
	FailurePolicy     moderation.FailurePolicy
	ModerationTimeout time.Duration // required
	MaxMessageRunes   int           // 0 disables the limit
	HistoryLimit      int           // messages replayed on join; 0 disables replay
	Logger            *zerolog.Logger
}

// Hub owns the connection table and dispatches client commands to the
// registry and the moderation pipeline.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	rooms        *Registry
	bcast        *Broadcaster
	pipeline     *Pipeline
	store        store.MessageStore
	historyLimit int
	log          *zerolog.Logger
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) (*Hub, error) {
	if opts.ModerationTimeout <= 0 {
		return nil, fmt.Errorf("moderation timeout must be positive, got %s", opts.ModerationTimeout)
	}
	policy, err := moderation.ParsePolicy(string(opts.FailurePolicy))
	if err != nil {
		return nil, err
	}
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Moderator == nil {
		opts.Moderator = moderation.Disabled{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	h := &Hub{
		sessions:     make(map[string]*Session),
		rooms:        NewRegistry(opts.DefaultChannels),
		store:        opts.Store,
		historyLimit: opts.HistoryLimit,
		log:          opts.Logger,
	}
	h.bcast = NewBroadcaster(h.rooms, h, opts.Logger)
	h.pipeline = &Pipeline{
		store:     opts.Store,
		moderator: opts.Moderator,
		policy:    policy,
		timeout:   opts.ModerationTimeout,
		maxRunes:  opts.MaxMessageRunes,
		rooms:     h.rooms,
		bcast:     h.bcast,
		log:       opts.Logger,
		now:       time.Now,
	}
	return h, nil
}

// Run blocks until ctx is cancelled, then disconnects every session and
// waits for in-flight moderation to finish.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	for _, s := range h.Sessions() {
		h.UnregisterClient(s)
	}
	h.pipeline.Wait()
	h.log.Info().Msg("hub stopped")
}

// Session returns a live session by id.
func (h *Hub) Session(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Sessions returns a snapshot of all live sessions.
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// Channels lists channel names, defaults first.
func (h *Hub) Channels() []string {
	return h.rooms.List()
}

// RegisterClient adds a connected session without a room, sends it the
// channel list and starts its command worker.
func (h *Hub) RegisterClient(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	h.log.Debug().Str("session_id", s.ID).Msg("session connected")
	h.bcast.ToSession(s, &Event{Kind: EventChannelList, Channels: h.rooms.List()})

	go h.serve(s)
}

// UnregisterClient removes a session and leaves its room. Calling it twice is a no-op.
func (h *Hub) UnregisterClient(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if !ok {
		return
	}

	s.transition.Lock()
	defer s.transition.Unlock()

	s.markClosed()
	room := s.Room()
	if room == "" {
		return
	}
	h.rooms.RemoveMember(room, s.ID)
	s.setRoom("", "")
	h.bcast.Presence(room)
	h.log.Debug().Str("session_id", s.ID).Str("room", room).Msg("session disconnected")
}

func (h *Hub) serve(s *Session) {
	for {
		select {
		case cmd := <-s.Commands:
			if cmd != nil {
				h.Dispatch(s, cmd)
			}
		case <-s.Done():
			return
		}
	}
}

// Dispatch executes a command on behalf of a session. Rejections are sent
// back to that session only.
func (h *Hub) Dispatch(s *Session, cmd *Command) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	switch cmd.Kind {
	case CommandJoinRoom:
		err = h.Join(ctx, s, cmd.Room, cmd.Username)
	case CommandCreateChannel:
		err = h.CreateChannel(cmd.Room)
	case CommandDeleteChannel:
		err = h.DeleteChannel(ctx, cmd.Room)
	case CommandSendMessage:
		_, err = h.SendMessage(s, cmd.Room, cmd.Text, cmd.CorrelationID)
	case CommandDeleteMessage:
		err = h.DeleteMessage(ctx, s, cmd.MessageID)
	case CommandClearHistory:
		err = h.ClearHistory(ctx, s, cmd.Room)
	default:
		err = fmt.Errorf("%w: unknown command", ErrBadRequest)
	}

	if err != nil {
		ce := ToCoreError(err)
		if ce.Code == ErrCodeInternal {
			h.log.Error().Err(err).Str("session_id", s.ID).Int("command", int(cmd.Kind)).Msg("command failed")
		}
		h.bcast.ToSession(s, &Event{Kind: EventError, Room: cmd.Room, Error: ce})
	}
}

// Join moves a session into room under displayName. The session leaves its
// previous room, and both rooms get a fresh presence count.
func (h *Hub) Join(ctx context.Context, s *Session, room, displayName string) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	if s.isClosed() {
		return nil
	}

	prev := s.Room()
	if err := h.rooms.AddMember(room, s.ID); err != nil {
		return err
	}
	if prev != "" && prev != room {
		h.rooms.RemoveMember(prev, s.ID)
	}
	s.setRoom(room, displayName)

	if prev != "" && prev != room {
		h.bcast.Presence(prev)
	}
	h.bcast.Presence(room)
	h.sendHistory(ctx, s, room)

	h.log.Debug().Str("session_id", s.ID).Str("user", s.Name()).Str("from", prev).Str("room", room).Msg("joined room")
	return nil
}

// relocate moves a member of a deleted channel into the default channel.
func (h *Hub) relocate(ctx context.Context, s *Session, from, to string) {
	s.transition.Lock()
	defer s.transition.Unlock()

	if s.isClosed() || s.Room() != from {
		return
	}
	if err := h.rooms.AddMember(to, s.ID); err != nil {
		h.log.Error().Err(err).Str("session_id", s.ID).Str("room", to).Msg("failed to relocate session")
		return
	}
	s.setRoom(to, "")
	h.bcast.Presence(to)
	h.sendHistory(ctx, s, to)
}

func (h *Hub) sendHistory(ctx context.Context, s *Session, room string) {
	if h.historyLimit <= 0 {
		return
	}
	messages, err := h.History(ctx, room, h.historyLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Msg("failed to load history")
		return
	}
	h.bcast.ToSession(s, &Event{Kind: EventHistory, Room: room, Messages: messages})
}

// History returns up to limit of the latest visible messages of room.
func (h *Hub) History(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	if !h.rooms.Exists(room) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	messages, err := h.store.ListVisibleMessages(ctx, room, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// CreateChannel adds a channel and announces the new list to everyone.
func (h *Hub) CreateChannel(name string) error {
	name, err := ValidateChannelName(name)
	if err != nil {
		return err
	}
	if err := h.rooms.Create(name); err != nil {
		return err
	}

	h.log.Info().Str("room", name).Msg("channel created")
	h.bcast.ToAll(&Event{Kind: EventChannelList, Channels: h.rooms.List()})
	return nil
}

// DeleteChannel removes a non-default channel, purges its messages and
// moves its members to the default channel.
func (h *Hub) DeleteChannel(ctx context.Context, name string) error {
	members, err := h.rooms.Remove(name)
	if err != nil {
		return err
	}

	if n, err := h.store.DeleteRoomMessages(ctx, name); err != nil {
		h.log.Error().Err(err).Str("room", name).Msg("failed to purge channel messages")
	} else {
		h.log.Info().Str("room", name).Int64("purged", n).Msg("channel messages purged")
	}

	target := h.rooms.Default()
	for _, id := range members {
		if s, ok := h.Session(id); ok {
			h.relocate(ctx, s, name, target)
		}
	}

	h.log.Info().Str("room", name).Int("relocated", len(members)).Msg("channel deleted")
	h.bcast.ToAll(&Event{Kind: EventChannelList, Channels: h.rooms.List()})
	h.bcast.ToAll(&Event{Kind: EventChannelDeleted, Room: name})
	return nil
}

// SendMessage submits a message to the moderation pipeline.
func (h *Hub) SendMessage(s *Session, room, text, correlationID string) (string, error) {
	return h.pipeline.Submit(s, room, text, correlationID)
}

// DeleteMessage removes a message owned by s.
func (h *Hub) DeleteMessage(ctx context.Context, s *Session, messageID string) error {
	return h.pipeline.Delete(ctx, s, messageID)
}

// ClearHistory wipes the history of the room s is in.
func (h *Hub) ClearHistory(ctx context.Context, s *Session, room string) error {
	return h.pipeline.ClearHistory(ctx, s, room)
}
