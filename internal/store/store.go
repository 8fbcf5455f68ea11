package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a message id does not exist.
var ErrNotFound = errors.New("message not found")

// Status is the moderation lifecycle state of a message.
type Status string

const (
	StatusPending Status = "pending"
	StatusAllowed Status = "allowed"
	StatusFlagged Status = "flagged"
	StatusBlocked Status = "blocked"
)

// Terminal reports whether the status is a final moderation outcome.
func (s Status) Terminal() bool {
	return s == StatusAllowed || s == StatusFlagged || s == StatusBlocked
}

// Moderation is the verdict recorded alongside a message.
type Moderation struct {
	Action string             `json:"action"`
	Labels []string           `json:"labels"`
	Scores map[string]float64 `json:"scores"`
}

// Message represents a persisted chat message.
type Message struct {
	ID            string
	Room          string
	Sender        string
	Text          string
	Status        Status
	Moderation    *Moderation // nil when moderation did not produce a verdict
	CorrelationID string
	CreatedAt     time.Time
}

// Visible reports whether room members may see the message.
func (m *Message) Visible() bool {
	return m.Status != StatusBlocked
}

// MessageStore handles message persistence.
// Implementations must be safe for concurrent use; list order reflects the
// order in which messages were saved.
type MessageStore interface {
	// SaveMessage persists a message in its terminal state.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by id. Returns ErrNotFound if absent.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// ListMessages returns the latest messages of a room in save order.
	// A non-positive limit returns all of them.
	ListMessages(ctx context.Context, room string, limit int) ([]*Message, error)

	// ListVisibleMessages is ListMessages restricted to messages that are not blocked.
	// The limit applies after the filter.
	ListVisibleMessages(ctx context.Context, room string, limit int) ([]*Message, error)

	// DeleteMessage removes a single message. Returns ErrNotFound if absent.
	DeleteMessage(ctx context.Context, id string) error

	// DeleteRoomMessages removes every message of a room and reports how many were removed.
	DeleteRoomMessages(ctx context.Context, room string) (int64, error)

	// Close releases the underlying connection.
	Close() error
}

// MarshalModeration encodes a verdict for a text column. A nil verdict encodes to nil.
func MarshalModeration(m *Moderation) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// UnmarshalModeration decodes a verdict column. Empty input yields nil.
func UnmarshalModeration(data []byte) (*Moderation, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m Moderation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
