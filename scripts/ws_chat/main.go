// Command ws_chat is a terminal client for manual testing of the chat server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/utils"
)

type inboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	room := flag.String("room", "General", "room to join")
	token := flag.String("token", "", "bearer token, see modchat token")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	var opts *websocket.DialOptions
	if *token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": {"Bearer " + *token}}}
	}
	conn, _, err := websocket.Dial(ctx, *addr, opts)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: *room, Username: *user}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *addr, *user, *room)
	fmt.Println("Type messages and press Enter to send. Commands: /join NAME, /create NAME, /delete NAME, /del ID, /clear. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *room)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if frame.Type == proto.OutboundTypeError && frame.Error != nil {
			fmt.Printf("! %s: %s\n", frame.Error.Code, frame.Error.Msg)
			continue
		}
		printEvent(frame)
	}
}

func printEvent(frame inboundFrame) {
	switch frame.Event {
	case proto.EventNewMessage:
		var evt proto.NewMessageEvent
		if decode(frame, &evt) {
			m := evt.Message
			marker := ""
			if m.Status == "flagged" {
				marker = " (flagged)"
			}
			fmt.Printf("[%s] %s: %s%s  #%s\n", m.RoomID, m.SenderID, m.Text, marker, m.ID)
		}
	case proto.EventMessageHistory:
		var evt proto.MessageHistoryEvent
		if decode(frame, &evt) {
			fmt.Printf("-- %d earlier messages in %s --\n", len(evt.Messages), evt.Room)
			for _, m := range evt.Messages {
				fmt.Printf("[%s] %s: %s  #%s\n", m.RoomID, m.SenderID, m.Text, m.ID)
			}
		}
	case proto.EventMessageBlocked:
		var evt proto.MessageBlockedEvent
		if decode(frame, &evt) {
			fmt.Printf("x your message was blocked: %s\n", evt.Reason)
		}
	case proto.EventRoomData:
		var evt proto.RoomDataEvent
		if decode(frame, &evt) {
			fmt.Printf("[room %s] %d online\n", evt.Room, evt.Users)
		}
	case proto.EventChannelList:
		var evt proto.ChannelListEvent
		if decode(frame, &evt) {
			fmt.Printf("channels: %s\n", strings.Join(evt.Channels, ", "))
		}
	case proto.EventChannelDeleted:
		var evt proto.ChannelDeletedEvent
		if decode(frame, &evt) {
			fmt.Printf("channel %s was deleted\n", evt.Name)
		}
	case proto.EventMessageDeleted:
		var evt proto.MessageDeletedEvent
		if decode(frame, &evt) {
			fmt.Printf("message #%s deleted\n", evt.MessageID)
		}
	case proto.EventHistoryCleared:
		fmt.Println("history cleared")
	case proto.EventMessagePending:
		// the moderated message follows
	default:
		fmt.Printf("event=%s data=%s\n", frame.Event, frame.Data)
	}
}

func decode(frame inboundFrame, v any) bool {
	if err := json.Unmarshal(frame.Data, v); err != nil {
		log.Printf("unmarshal %s: %v", frame.Event, err)
		return false
	}
	return true
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			cmd, arg, _ := strings.Cut(text, " ")
			switch cmd {
			case "/join":
				room = arg
				err = send(ctx, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: arg})
			case "/create":
				err = send(ctx, conn, proto.InboundTypeCreateChannel, proto.ChannelData{Name: arg})
			case "/delete":
				err = send(ctx, conn, proto.InboundTypeDeleteChannel, proto.ChannelData{Name: arg})
			case "/del":
				err = send(ctx, conn, proto.InboundTypeDeleteMessage, proto.DeleteMessageData{MessageID: arg})
			case "/clear":
				err = send(ctx, conn, proto.InboundTypeClearHistory, proto.ClearHistoryData{RoomID: room})
			default:
				err = send(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{
					RoomID:       room,
					Text:         text,
					ClientTempID: utils.NewID(),
				})
			}
			if err != nil {
				log.Printf("%v", err)
				return
			}
		}
	}
}
