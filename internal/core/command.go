package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom moves the client into a room under a display name.
	CommandJoinRoom CommandKind = iota
	// CommandCreateChannel adds a new channel.
	CommandCreateChannel
	// CommandDeleteChannel removes a non-default channel.
	CommandDeleteChannel
	// CommandSendMessage submits a message for moderation and delivery.
	CommandSendMessage
	// CommandDeleteMessage removes one of the client's own messages.
	CommandDeleteMessage
	// CommandClearHistory wipes the stored history of the client's room.
	CommandClearHistory
)

// Command represents an action requested by a client.
type Command struct {
	Kind          CommandKind
	Room          string // room or channel name
	Username      string // CommandJoinRoom
	Text          string // CommandSendMessage
	CorrelationID string // CommandSendMessage
	MessageID     string // CommandDeleteMessage
}
