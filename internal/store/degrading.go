package store

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Degrading serves every call from a durable store until that store fails,
// then switches to the fallback for the rest of the process lifetime.
// The failing call is retried on the fallback so callers never observe the outage.
type Degrading struct {
	primary  MessageStore
	fallback MessageStore
	degraded atomic.Bool
	log      *zerolog.Logger
}

var _ MessageStore = (*Degrading)(nil)

// NewDegrading wraps primary with a one-way switch to fallback.
func NewDegrading(primary, fallback MessageStore, logger *zerolog.Logger) *Degrading {
	return &Degrading{primary: primary, fallback: fallback, log: logger}
}

// Degraded reports whether the fallback is in use.
func (d *Degrading) Degraded() bool {
	return d.degraded.Load()
}

// shouldDegrade reports whether err came from the durable backend being
// unusable, and flips the switch if so.
func (d *Degrading) shouldDegrade(op string, err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	if d.degraded.CompareAndSwap(false, true) && d.log != nil {
		d.log.Error().Err(err).Str("op", op).Msg("durable message store unavailable, switching to in-memory store")
	}
	return true
}

// SaveMessage persists a message to storage.
func (d *Degrading) SaveMessage(ctx context.Context, msg *Message) error {
	if d.degraded.Load() {
		return d.fallback.SaveMessage(ctx, msg)
	}
	err := d.primary.SaveMessage(ctx, msg)
	if d.shouldDegrade("save", err) {
		return d.fallback.SaveMessage(ctx, msg)
	}
	return err
}

// GetMessage retrieves a message by id.
func (d *Degrading) GetMessage(ctx context.Context, id string) (*Message, error) {
	if d.degraded.Load() {
		return d.fallback.GetMessage(ctx, id)
	}
	msg, err := d.primary.GetMessage(ctx, id)
	if d.shouldDegrade("get", err) {
		return d.fallback.GetMessage(ctx, id)
	}
	return msg, err
}

// ListMessages returns the latest messages of a room in save order.
func (d *Degrading) ListMessages(ctx context.Context, room string, limit int) ([]*Message, error) {
	if d.degraded.Load() {
		return d.fallback.ListMessages(ctx, room, limit)
	}
	messages, err := d.primary.ListMessages(ctx, room, limit)
	if d.shouldDegrade("list", err) {
		return d.fallback.ListMessages(ctx, room, limit)
	}
	return messages, err
}

// ListVisibleMessages returns the latest non-blocked messages of a room in save order.
func (d *Degrading) ListVisibleMessages(ctx context.Context, room string, limit int) ([]*Message, error) {
	if d.degraded.Load() {
		return d.fallback.ListVisibleMessages(ctx, room, limit)
	}
	messages, err := d.primary.ListVisibleMessages(ctx, room, limit)
	if d.shouldDegrade("list_visible", err) {
		return d.fallback.ListVisibleMessages(ctx, room, limit)
	}
	return messages, err
}

// DeleteMessage removes a single message.
func (d *Degrading) DeleteMessage(ctx context.Context, id string) error {
	if d.degraded.Load() {
		return d.fallback.DeleteMessage(ctx, id)
	}
	err := d.primary.DeleteMessage(ctx, id)
	if d.shouldDegrade("delete", err) {
		return d.fallback.DeleteMessage(ctx, id)
	}
	return err
}

// DeleteRoomMessages removes every message of a room.
func (d *Degrading) DeleteRoomMessages(ctx context.Context, room string) (int64, error) {
	if d.degraded.Load() {
		return d.fallback.DeleteRoomMessages(ctx, room)
	}
	n, err := d.primary.DeleteRoomMessages(ctx, room)
	if d.shouldDegrade("delete_room", err) {
		return d.fallback.DeleteRoomMessages(ctx, room)
	}
	return n, err
}

// Close closes both stores and returns the first error.
func (d *Degrading) Close() error {
	return errors.Join(d.primary.Close(), d.fallback.Close())
}
