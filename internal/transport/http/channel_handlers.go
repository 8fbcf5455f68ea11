package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ChatHub is the part of the core hub the transport layer drives.
type ChatHub interface {
	RegisterClient(s *core.Session)
	UnregisterClient(s *core.Session)
	Channels() []string
	CreateChannel(name string) error
	History(ctx context.Context, room string, limit int) ([]*store.Message, error)
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ChannelHandlers provides HTTP handlers for channel endpoints.
type ChannelHandlers struct {
	hub ChatHub
	log *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(hub ChatHub, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{hub: hub, log: logger}
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	Name string `json:"name" binding:"required"`
}

// ChannelListResponse lists channel names, defaults first.
type ChannelListResponse struct {
	Channels []string `json:"channels"`
}

// HistoryResponse carries visible messages of a channel, oldest first.
type HistoryResponse struct {
	Room     string          `json:"room"`
	Messages []proto.Message `json:"messages"`
}

// ListChannels handles listing channels.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, ChannelListResponse{Channels: h.hub.Channels()})
}

// CreateChannel handles channel creation. Connected clients learn about the
// new channel through channel_list.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	if err := h.hub.CreateChannel(req.Name); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ChannelListResponse{Channels: h.hub.Channels()})
}

// ListMessages returns the visible history of a channel.
// GET /api/channels/:name/messages?limit=N
func (h *ChannelHandlers) ListMessages(c *gin.Context) {
	room := c.Param("name")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: core.ErrCodeBadRequest})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	messages, err := h.hub.History(c.Request.Context(), room, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Room: room, Messages: messagesToProto(messages)})
}

func (h *ChannelHandlers) writeError(c *gin.Context, err error) {
	ce := core.ToCoreError(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrDuplicateChannel):
		status = http.StatusConflict
	case errors.Is(err, core.ErrUnknownRoom):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrProtectedChannel):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("channel request failed")
	}

	c.JSON(status, ErrorResponse{Error: ce.Message, Code: ce.Code})
}
