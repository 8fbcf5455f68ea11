package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/proto"
)

type moderatorFunc func(ctx context.Context, text string) (moderation.Verdict, error)

func (f moderatorFunc) Moderate(ctx context.Context, text string) (moderation.Verdict, error) {
	return f(ctx, text)
}

// keywordModerator blocks texts containing "stupid" and allows the rest.
var keywordModerator = moderatorFunc(func(_ context.Context, text string) (moderation.Verdict, error) {
	if strings.Contains(text, "stupid") {
		return moderation.Verdict{Action: moderation.ActionBlock, Labels: []string{"toxicity"}}, nil
	}
	return moderation.Verdict{Action: moderation.ActionAllow, Labels: []string{}}, nil
})

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.RateLimitPerMinute = 0
	cfg.DefaultChannels = []string{"General", "Tech"}
	return cfg
}

func startTestServer(t *testing.T, cfg config.Config) (*httptest.Server, *core.Hub) {
	t.Helper()
	ts, hub, _ := startStoppableServer(t, cfg)
	return ts, hub
}

// startStoppableServer also returns the function that shuts the hub down.
func startStoppableServer(t *testing.T, cfg config.Config) (*httptest.Server, *core.Hub, context.CancelFunc) {
	t.Helper()

	logger := zerolog.Nop()
	hub, err := core.NewHub(core.Options{
		DefaultChannels:   cfg.DefaultChannels,
		Moderator:         keywordModerator,
		ModerationTimeout: time.Second,
		MaxMessageRunes:   cfg.MaxMessageRunes,
		HistoryLimit:      cfg.HistoryLimit,
		Logger:            &logger,
	})
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := NewServer(hub, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub, cancel
}

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func dial(ctx context.Context, t *testing.T, url string, header stdhttp.Header) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until one matches an event name in names, or any
// error frame when names contains "error".
func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, names ...string) wireOutbound {
	t.Helper()

	for {
		var out wireOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %v: %v", names, err)
		}
		for _, name := range names {
			if out.Event == name || (name == proto.OutboundTypeError && out.Type == proto.OutboundTypeError) {
				return out
			}
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
