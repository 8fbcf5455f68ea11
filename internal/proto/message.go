// Package proto defines the JSON wire format of the chat WebSocket.
package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom      = "join_room"
	InboundTypeCreateChannel = "create_channel"
	InboundTypeDeleteChannel = "delete_channel"
	InboundTypeSendMessage   = "send_message"
	InboundTypeDeleteMessage = "delete_message"
	InboundTypeClearHistory  = "clear_history"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventChannelList    = "channel_list"
	EventChannelDeleted = "channel_deleted"
	EventRoomData       = "room_data"
	EventMessagePending = "message_pending"
	EventNewMessage     = "new_message"
	EventMessageBlocked = "message_blocked"
	EventMessageDeleted = "message_deleted"
	EventHistoryCleared = "history_cleared"
	EventMessageHistory = "message_history"
)

// JoinRoomData moves the client into a room.
type JoinRoomData struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// ChannelData names a channel to create or delete.
type ChannelData struct {
	Name string `json:"name"`
}

// SendMessageData submits a chat message. SenderID is accepted for
// compatibility but ignored: the sender is always the session identity.
type SendMessageData struct {
	RoomID       string `json:"roomId"`
	Text         string `json:"text"`
	SenderID     string `json:"senderId,omitempty"`
	ClientTempID string `json:"clientTempId,omitempty"`
}

// DeleteMessageData identifies a message to remove.
type DeleteMessageData struct {
	MessageID string `json:"messageId"`
}

// ClearHistoryData identifies a room whose history is wiped.
type ClearHistoryData struct {
	RoomID string `json:"roomId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Moderation is the verdict attached to a delivered message.
type Moderation struct {
	Action string             `json:"action"`
	Labels []string           `json:"labels"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// Message is a moderated chat message as seen by clients.
type Message struct {
	ID           string      `json:"id"`
	RoomID       string      `json:"roomId"`
	SenderID     string      `json:"senderId"`
	Text         string      `json:"text"`
	Status       string      `json:"status"`
	Moderation   *Moderation `json:"moderation"`
	ClientTempID string      `json:"clientTempId,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type ChannelListEvent struct {
	Channels []string `json:"channels"`
}

type ChannelDeletedEvent struct {
	Name string `json:"name"`
}

// RoomDataEvent carries the presence count of a room.
type RoomDataEvent struct {
	Room  string `json:"room"`
	Users int    `json:"users"`
}

// MessagePendingEvent acknowledges a submission to its sender.
type MessagePendingEvent struct {
	ClientTempID string `json:"clientTempId"`
	ServerID     string `json:"serverId"`
}

type NewMessageEvent struct {
	Message Message `json:"message"`
}

// MessageBlockedEvent is sent only to the author of a blocked message.
type MessageBlockedEvent struct {
	ClientTempID string `json:"clientTempId"`
	ServerID     string `json:"serverId,omitempty"`
	Reason       string `json:"reason"`
}

type MessageDeletedEvent struct {
	MessageID string `json:"messageId"`
}

type HistoryClearedEvent struct {
	Room string `json:"room"`
}

// MessageHistoryEvent replays recent messages after a join.
type MessageHistoryEvent struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
