// Package storetest holds the behaviour every store.MessageStore must share.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/modchat-server/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.MessageStore

// Run exercises a store implementation against the MessageStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("ListOrderAndLimit", func(t *testing.T) { testListOrderAndLimit(t, newStore(t)) })
	t.Run("ListVisible", func(t *testing.T) { testListVisible(t, newStore(t)) })
	t.Run("DeleteMessage", func(t *testing.T) { testDeleteMessage(t, newStore(t)) })
	t.Run("DeleteRoomMessages", func(t *testing.T) { testDeleteRoomMessages(t, newStore(t)) })
}

// NewMessage builds a message with a unique id in room.
func NewMessage(id, room, text string) *store.Message {
	return &store.Message{
		ID:        id,
		Room:      room,
		Sender:    "alice",
		Text:      text,
		Status:    store.StatusAllowed,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testSaveAndGet(t *testing.T, s store.MessageStore) {
	defer s.Close()
	ctx := context.Background()

	msg := NewMessage("m1", "General", "you are rude")
	msg.Status = store.StatusFlagged
	msg.CorrelationID = "tmp-1"
	msg.Moderation = &store.Moderation{
		Action: "flag",
		Labels: []string{"insult"},
		Scores: map[string]float64{"insult": 0.91},
	}
	require.NoError(t, s.SaveMessage(ctx, msg))

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "General", got.Room)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "you are rude", got.Text)
	assert.Equal(t, store.StatusFlagged, got.Status)
	assert.Equal(t, "tmp-1", got.CorrelationID)
	require.NotNil(t, got.Moderation)
	assert.Equal(t, []string{"insult"}, got.Moderation.Labels)
	assert.InDelta(t, 0.91, got.Moderation.Scores["insult"], 1e-9)
	assert.True(t, got.CreatedAt.Equal(msg.CreatedAt), "created_at %v != %v", got.CreatedAt, msg.CreatedAt)

	_, err = s.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListOrderAndLimit(t *testing.T, s store.MessageStore) {
	defer s.Close()
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.SaveMessage(ctx, NewMessage(fmt.Sprintf("g%d", i), "General", fmt.Sprintf("msg %d", i))))
	}
	require.NoError(t, s.SaveMessage(ctx, NewMessage("r0", "Random", "elsewhere")))

	all, err := s.ListMessages(ctx, "General", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, msg := range all {
		assert.Equal(t, fmt.Sprintf("g%d", i), msg.ID)
		assert.Nil(t, msg.Moderation)
	}

	latest, err := s.ListMessages(ctx, "General", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "g3", latest[0].ID)
	assert.Equal(t, "g4", latest[1].ID)

	empty, err := s.ListMessages(ctx, "Nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testListVisible(t *testing.T, s store.MessageStore) {
	defer s.Close()
	ctx := context.Background()

	statuses := []store.Status{
		store.StatusAllowed, store.StatusBlocked, store.StatusFlagged,
		store.StatusBlocked, store.StatusAllowed, store.StatusBlocked,
	}
	for i, status := range statuses {
		msg := NewMessage(fmt.Sprintf("v%d", i), "General", fmt.Sprintf("msg %d", i))
		msg.Status = status
		require.NoError(t, s.SaveMessage(ctx, msg))
	}

	all, err := s.ListVisibleMessages(ctx, "General", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "v0", all[0].ID)
	assert.Equal(t, "v2", all[1].ID)
	assert.Equal(t, "v4", all[2].ID)

	// The limit counts visible messages, not rows scanned.
	latest, err := s.ListVisibleMessages(ctx, "General", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "v2", latest[0].ID)
	assert.Equal(t, "v4", latest[1].ID)

	empty, err := s.ListVisibleMessages(ctx, "Nowhere", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDeleteMessage(t *testing.T, s store.MessageStore) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveMessage(ctx, NewMessage("a", "General", "one")))
	require.NoError(t, s.SaveMessage(ctx, NewMessage("b", "General", "two")))

	require.NoError(t, s.DeleteMessage(ctx, "a"))
	assert.ErrorIs(t, s.DeleteMessage(ctx, "a"), store.ErrNotFound)

	_, err := s.GetMessage(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	left, err := s.ListMessages(ctx, "General", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", left[0].ID)
}

func testDeleteRoomMessages(t *testing.T, s store.MessageStore) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveMessage(ctx, NewMessage("a", "General", "one")))
	require.NoError(t, s.SaveMessage(ctx, NewMessage("b", "General", "two")))
	require.NoError(t, s.SaveMessage(ctx, NewMessage("c", "Random", "three")))

	n, err := s.DeleteRoomMessages(ctx, "General")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	general, err := s.ListMessages(ctx, "General", 0)
	require.NoError(t, err)
	assert.Empty(t, general)

	random, err := s.ListMessages(ctx, "Random", 0)
	require.NoError(t, err)
	assert.Len(t, random, 1)

	n, err = s.DeleteRoomMessages(ctx, "General")
	require.NoError(t, err)
	assert.Zero(t, n)
}
