package utils

import (
	"github.com/google/uuid"
)

// NewID returns a random identifier for connections and sessions.
func NewID() string {
	return uuid.NewString()
}

// NewMessageID returns a time-ordered identifier, so ids issued later sort later.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		return uuid.NewString()
	}
	return id.String()
}
