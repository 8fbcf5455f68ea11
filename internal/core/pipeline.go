package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/utils"
)

const storeTimeout = 5 * time.Second

// Moderator produces a verdict for a message body.
type Moderator interface {
	Moderate(ctx context.Context, text string) (moderation.Verdict, error)
}

// Pipeline moves messages through pending -> allowed/flagged/blocked and
// delivers the outcome.
type Pipeline struct {
	store     store.MessageStore
	moderator Moderator
	policy    moderation.FailurePolicy
	timeout   time.Duration
	maxRunes  int

	rooms *Registry
	bcast *Broadcaster
	log   *zerolog.Logger

	inflight sync.WaitGroup
	now      func() time.Time
}

// Submit validates a message, acknowledges it to the sender as pending and
// starts moderation in the background. It returns the server-assigned id.
func (p *Pipeline) Submit(sender *Session, room, text, correlationID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	if p.maxRunes > 0 && utf8.RuneCountInString(text) > p.maxRunes {
		return "", fmt.Errorf("%w: limit is %d characters", ErrMessageTooLong, p.maxRunes)
	}
	if sender.Room() != room {
		return "", fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}

	msg := &store.Message{
		ID:            utils.NewMessageID(),
		Room:          room,
		Sender:        sender.Name(),
		Text:          text,
		Status:        store.StatusPending,
		CorrelationID: correlationID,
		CreatedAt:     p.now().UTC(),
	}

	// The ack is queued before moderation starts, so it always precedes the outcome.
	// A message whose ack could not be queued is not accepted at all.
	if !p.bcast.ToSession(sender, &Event{
		Kind:          EventMessagePending,
		Room:          room,
		CorrelationID: correlationID,
		MessageID:     msg.ID,
	}) {
		return "", ErrSlowConsumer
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.resolve(sender, msg)
	}()

	return msg.ID, nil
}

// resolve runs moderation for one message, persists the terminal state and
// delivers it. A disconnected sender does not cancel it.
func (p *Pipeline) resolve(sender *Session, msg *store.Message) {
	logger := p.log.With().Str("message_id", msg.ID).Str("room", msg.Room).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	verdict, err := p.moderator.Moderate(ctx, msg.Text)
	cancel()

	if err != nil {
		logger.Warn().Err(err).Str("policy", string(p.policy)).Msg("moderation failed, applying failure policy")
		applyVerdict(msg, p.policy.Fallback())
	} else {
		applyVerdict(msg, &verdict)
	}

	// Holding the room keeps a concurrent delete from purging before this save lands.
	release, ok := p.rooms.Hold(msg.Room)
	if !ok {
		logger.Info().Msg("room deleted while message was pending, dropping")
		return
	}
	saveCtx, cancelSave := context.WithTimeout(context.Background(), storeTimeout)
	if err := p.store.SaveMessage(saveCtx, msg); err != nil {
		logger.Error().Err(err).Msg("failed to persist message")
	}
	cancelSave()
	release()

	logger.Debug().Str("status", string(msg.Status)).Msg("message moderated")

	if msg.Visible() {
		p.bcast.ToRoom(msg.Room, &Event{Kind: EventNewMessage, Room: msg.Room, Message: msg})
		return
	}
	p.bcast.ToSession(sender, &Event{
		Kind:          EventMessageBlocked,
		Room:          msg.Room,
		CorrelationID: msg.CorrelationID,
		MessageID:     msg.ID,
		Reason:        blockReason(msg.Moderation),
	})
}

// applyVerdict sets the terminal status. A nil verdict is fail-open.
func applyVerdict(msg *store.Message, v *moderation.Verdict) {
	if v == nil {
		msg.Status = store.StatusAllowed
		msg.Moderation = nil
		return
	}

	switch v.Action {
	case moderation.ActionFlag:
		msg.Status = store.StatusFlagged
	case moderation.ActionBlock:
		msg.Status = store.StatusBlocked
	default:
		msg.Status = store.StatusAllowed
	}
	msg.Moderation = &store.Moderation{
		Action: string(v.Action),
		Labels: v.Labels,
		Scores: v.Scores,
	}
}

func blockReason(m *store.Moderation) string {
	if m == nil || len(m.Labels) == 0 {
		return "message blocked by moderation"
	}
	if len(m.Labels) == 1 && m.Labels[0] == moderation.LabelUnavailable {
		return "message blocked: moderation unavailable"
	}
	return "message blocked by moderation: " + strings.Join(m.Labels, ", ")
}

// Delete removes a message owned by the requester and tells its room.
func (p *Pipeline) Delete(ctx context.Context, requester *Session, messageID string) error {
	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, messageID)
		}
		return fmt.Errorf("load message: %w", err)
	}
	if msg.Sender != requester.Name() {
		return ErrNotOwner
	}

	if err := p.store.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, messageID)
		}
		return fmt.Errorf("delete message: %w", err)
	}

	p.bcast.ToRoom(msg.Room, &Event{Kind: EventMessageDeleted, Room: msg.Room, MessageID: messageID})
	return nil
}

// ClearHistory removes every stored message of room. The requester must be
// a member of it.
func (p *Pipeline) ClearHistory(ctx context.Context, requester *Session, room string) error {
	if requester.Room() != room {
		return fmt.Errorf("%w: %s", ErrNotInRoom, room)
	}

	n, err := p.store.DeleteRoomMessages(ctx, room)
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	p.log.Info().Str("room", room).Int64("removed", n).Str("by", requester.Name()).Msg("history cleared")

	p.bcast.ToRoom(room, &Event{Kind: EventHistoryCleared, Room: room})
	return nil
}

// Wait blocks until every in-flight moderation has been delivered.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}
