package http

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/store"
)

func TestInboundToCommandIgnoresSenderID(t *testing.T) {
	cmd, perr := inboundToCommand(proto.Inbound{
		Type: proto.InboundTypeSendMessage,
		Data: json.RawMessage(`{"roomId":"General","text":"hi","senderId":"mallory","clientTempId":"tmp-9"}`),
	})
	if perr != nil {
		t.Fatalf("unexpected protocol error: %+v", perr)
	}
	if cmd.Kind != core.CommandSendMessage || cmd.Room != "General" || cmd.Text != "hi" || cmd.CorrelationID != "tmp-9" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestInboundToCommandKinds(t *testing.T) {
	cases := map[string]struct {
		data string
		kind core.CommandKind
	}{
		proto.InboundTypeJoinRoom:      {`{"roomId":"General","username":"alice"}`, core.CommandJoinRoom},
		proto.InboundTypeCreateChannel: {`{"name":"Random"}`, core.CommandCreateChannel},
		proto.InboundTypeDeleteChannel: {`{"name":"Random"}`, core.CommandDeleteChannel},
		proto.InboundTypeDeleteMessage: {`{"messageId":"m1"}`, core.CommandDeleteMessage},
		proto.InboundTypeClearHistory:  {`{"roomId":"General"}`, core.CommandClearHistory},
	}
	for typ, tc := range cases {
		cmd, perr := inboundToCommand(proto.Inbound{Type: typ, Data: json.RawMessage(tc.data)})
		if perr != nil {
			t.Fatalf("%s: unexpected error %+v", typ, perr)
		}
		if cmd.Kind != tc.kind {
			t.Fatalf("%s: kind = %v, want %v", typ, cmd.Kind, tc.kind)
		}
	}
}

func TestOutboundNewMessageShape(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	out := outboundFromEvent(&core.Event{
		Kind: core.EventNewMessage,
		Message: &store.Message{
			ID:            "m1",
			Room:          "General",
			Sender:        "alice",
			Text:          "hello",
			Status:        store.StatusFlagged,
			Moderation:    &store.Moderation{Action: "flag"},
			CorrelationID: "tmp-1",
			CreatedAt:     created,
		},
	})

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		`"type":"event"`,
		`"event":"new_message"`,
		`"senderId":"alice"`,
		`"roomId":"General"`,
		`"status":"flagged"`,
		`"labels":[]`,
		`"clientTempId":"tmp-1"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s in %s", want, body)
		}
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventNewMessage, Message: &store.Message{ID: "m2", Status: store.StatusAllowed}})
	raw, _ = json.Marshal(out)
	if !strings.Contains(string(raw), `"moderation":null`) {
		t.Fatalf("fail-open message should carry null moderation: %s", raw)
	}
}

func TestOutboundError(t *testing.T) {
	out := outboundFromEvent(&core.Event{Kind: core.EventError, Error: core.ToCoreError(core.ErrNotOwner)})
	if out.Type != proto.OutboundTypeError || out.Error.Code != core.ErrCodeNotOwner {
		t.Fatalf("unexpected error frame: %+v", out)
	}
}
