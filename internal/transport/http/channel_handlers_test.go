package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/core"
)

func doJSON(t *testing.T, handler stdhttp.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChannelAPI(t *testing.T) {
	ts, _ := startTestServer(t, testConfig())
	handler := ts.Config.Handler

	rec := doJSON(t, handler, stdhttp.MethodGet, "/api/channels", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	var list ChannelListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{"General", "Tech"}, list.Channels)

	rec = doJSON(t, handler, stdhttp.MethodPost, "/api/channels", `{"name":"Random"}`, "")
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, []string{"General", "Tech", "Random"}, list.Channels)

	rec = doJSON(t, handler, stdhttp.MethodPost, "/api/channels", `{"name":"Random"}`, "")
	assert.Equal(t, stdhttp.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, core.ErrCodeDuplicateChannel, errResp.Code)

	rec = doJSON(t, handler, stdhttp.MethodPost, "/api/channels", `{"name":"   "}`, "")
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, stdhttp.MethodPost, "/api/channels", `not json`, "")
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestChannelHistoryAPI(t *testing.T) {
	ts, hub := startTestServer(t, testConfig())
	handler := ts.Config.Handler

	alice := core.NewSession("a", "")
	hub.RegisterClient(alice)
	t.Cleanup(func() { hub.UnregisterClient(alice) })
	require.NoError(t, hub.Join(context.Background(), alice, "General", "alice"))

	for _, text := range []string{"first", "you are stupid", "second", "third"} {
		_, err := hub.SendMessage(alice, "General", text, "")
		require.NoError(t, err)
	}

	var history HistoryResponse
	require.Eventually(t, func() bool {
		rec := doJSON(t, handler, stdhttp.MethodGet, "/api/channels/General/messages", "", "")
		if rec.Code != stdhttp.StatusOK {
			return false
		}
		history = HistoryResponse{}
		return json.Unmarshal(rec.Body.Bytes(), &history) == nil && len(history.Messages) == 3
	}, 2*time.Second, 20*time.Millisecond)

	for _, msg := range history.Messages {
		assert.NotEqual(t, "blocked", msg.Status)
		assert.Equal(t, "alice", msg.SenderID)
	}

	rec := doJSON(t, handler, stdhttp.MethodGet, "/api/channels/General/messages?limit=1", "", "")
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Messages, 1)

	rec = doJSON(t, handler, stdhttp.MethodGet, "/api/channels/General/messages?limit=zero", "", "")
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, stdhttp.MethodGet, "/api/channels/Ghost/messages", "", "")
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestChannelAPIRequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "test-secret"
	cfg.JWTAudience = "modchat"
	ts, _ := startTestServer(t, cfg)
	handler := ts.Config.Handler

	rec := doJSON(t, handler, stdhttp.MethodGet, "/api/channels", "", "")
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, stdhttp.MethodGet, "/api/channels", "", "garbage")
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}, "alice")
	require.NoError(t, err)

	rec = doJSON(t, handler, stdhttp.MethodGet, "/api/channels", "", token)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	rec = doJSON(t, handler, stdhttp.MethodGet, "/health", "", "")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
}

func TestMessageLimiter(t *testing.T) {
	var unlimited *messageLimiter
	for range 100 {
		require.True(t, unlimited.allow())
	}
	require.Nil(t, newMessageLimiter(0))

	limited := newMessageLimiter(3)
	for range 3 {
		require.True(t, limited.allow())
	}
	require.False(t, limited.allow())
}
