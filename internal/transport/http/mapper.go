package http

import (
	"encoding/json"

	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/store"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// inboundToCommand decodes a client envelope. Malformed payloads yield a
// protocol error for the client rather than closing the connection.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var data proto.JoinRoomData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, badRequest("invalid join_room payload")
		}
		if data.RoomID == "" {
			return nil, badRequest("roomId is required")
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: data.RoomID, Username: data.Username}, nil
	case proto.InboundTypeCreateChannel, proto.InboundTypeDeleteChannel:
		var data proto.ChannelData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, badRequest("invalid channel payload")
		}
		kind := core.CommandCreateChannel
		if inbound.Type == proto.InboundTypeDeleteChannel {
			kind = core.CommandDeleteChannel
		}
		return &core.Command{Kind: kind, Room: data.Name}, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, badRequest("invalid send_message payload")
		}
		if data.RoomID == "" {
			return nil, badRequest("roomId is required")
		}
		return &core.Command{
			Kind:          core.CommandSendMessage,
			Room:          data.RoomID,
			Text:          data.Text,
			CorrelationID: data.ClientTempID,
		}, nil
	case proto.InboundTypeDeleteMessage:
		var data proto.DeleteMessageData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, badRequest("invalid delete_message payload")
		}
		if data.MessageID == "" {
			return nil, badRequest("messageId is required")
		}
		return &core.Command{Kind: core.CommandDeleteMessage, MessageID: data.MessageID}, nil
	case proto.InboundTypeClearHistory:
		var data proto.ClearHistoryData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, badRequest("invalid clear_history payload")
		}
		if data.RoomID == "" {
			return nil, badRequest("roomId is required")
		}
		return &core.Command{Kind: core.CommandClearHistory, Room: data.RoomID}, nil
	default:
		return nil, badRequest("unknown message type")
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func event(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventChannelList:
		return event(proto.EventChannelList, proto.ChannelListEvent{Channels: ev.Channels})
	case core.EventChannelDeleted:
		return event(proto.EventChannelDeleted, proto.ChannelDeletedEvent{Name: ev.Room})
	case core.EventRoomData:
		return event(proto.EventRoomData, proto.RoomDataEvent{Room: ev.Room, Users: ev.Users})
	case core.EventMessagePending:
		return event(proto.EventMessagePending, proto.MessagePendingEvent{
			ClientTempID: ev.CorrelationID,
			ServerID:     ev.MessageID,
		})
	case core.EventNewMessage:
		return event(proto.EventNewMessage, proto.NewMessageEvent{Message: messageToProto(ev.Message)})
	case core.EventMessageBlocked:
		return event(proto.EventMessageBlocked, proto.MessageBlockedEvent{
			ClientTempID: ev.CorrelationID,
			ServerID:     ev.MessageID,
			Reason:       ev.Reason,
		})
	case core.EventMessageDeleted:
		return event(proto.EventMessageDeleted, proto.MessageDeletedEvent{MessageID: ev.MessageID})
	case core.EventHistoryCleared:
		return event(proto.EventHistoryCleared, proto.HistoryClearedEvent{Room: ev.Room})
	case core.EventHistory:
		return event(proto.EventMessageHistory, proto.MessageHistoryEvent{
			Room:     ev.Room,
			Messages: messagesToProto(ev.Messages),
		})
	case core.EventError:
		if ev.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageToProto(msg *store.Message) proto.Message {
	if msg == nil {
		return proto.Message{}
	}
	out := proto.Message{
		ID:           msg.ID,
		RoomID:       msg.Room,
		SenderID:     msg.Sender,
		Text:         msg.Text,
		Status:       string(msg.Status),
		ClientTempID: msg.CorrelationID,
		CreatedAt:    msg.CreatedAt,
	}
	if msg.Moderation != nil {
		labels := msg.Moderation.Labels
		if labels == nil {
			labels = []string{}
		}
		out.Moderation = &proto.Moderation{
			Action: msg.Moderation.Action,
			Labels: labels,
			Scores: msg.Moderation.Scores,
		}
	}
	return out
}

func messagesToProto(messages []*store.Message) []proto.Message {
	out := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageToProto(msg))
	}
	return out
}
