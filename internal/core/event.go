package core

import "github.com/vovakirdan/modchat-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventChannelList carries the full channel list. Sent to everyone on change and on connect.
	EventChannelList EventKind = iota
	// EventChannelDeleted notifies everyone that a channel was removed.
	EventChannelDeleted
	// EventRoomData carries the presence count of a room.
	EventRoomData
	// EventMessagePending acknowledges a submission to its sender.
	EventMessagePending
	// EventNewMessage delivers a moderated, visible message to a room.
	EventNewMessage
	// EventMessageBlocked tells the sender its message was blocked.
	EventMessageBlocked
	// EventMessageDeleted notifies a room that a message was removed.
	EventMessageDeleted
	// EventHistoryCleared notifies a room that its history was wiped.
	EventHistoryCleared
	// EventHistory delivers recent room messages to a client upon joining.
	EventHistory
	// EventError notifies a client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be modified after delivery.
type Event struct {
	Kind          EventKind
	Room          string
	Channels      []string         // EventChannelList
	Users         int              // EventRoomData
	CorrelationID string           // EventMessagePending, EventMessageBlocked
	MessageID     string           // EventMessagePending, EventMessageDeleted
	Reason        string           // EventMessageBlocked
	Message       *store.Message   // EventNewMessage
	Messages      []*store.Message // EventHistory
	Error         *CoreError
}
