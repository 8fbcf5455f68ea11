package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/proto"
	"github.com/vovakirdan/modchat-server/internal/utils"
)

// WSOptions tunes a WebSocket handler.
type WSOptions struct {
	JWT                *auth.JWTConfig // nil or empty secret disables token checks
	JWTRequired        bool
	MaxMessageBytes    int64
	RateLimitPerMinute int
}

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	hub  ChatHub
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub ChatHub, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, status := h.authenticate(r)
	if status != 0 {
		stdhttp.Error(w, stdhttp.StatusText(status), status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	var session *core.Session
	if claims != nil {
		session = core.NewBoundSession(utils.NewID(), claims.Username)
	} else {
		session = core.NewSession(utils.NewID(), "")
	}
	h.hub.RegisterClient(session)
	defer h.hub.UnregisterClient(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	closeStatus := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			closeStatus = s
		}
		if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if closeStatus == websocket.StatusNormalClosure {
				closeStatus = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(closeStatus, reason)
}

// authenticate resolves the optional bearer token. A non-zero status
// rejects the upgrade.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, int) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = auth.BearerToken(r.Header.Get("Authorization"))
	}

	if !h.opts.JWT.Enabled() {
		return nil, 0
	}
	if token == "" {
		if h.opts.JWTRequired {
			h.log.Debug().Msg("ws connection without token rejected")
			return nil, stdhttp.StatusUnauthorized
		}
		return nil, 0
	}

	claims, err := auth.ValidateToken(h.opts.JWT, token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws token rejected")
		return nil, stdhttp.StatusUnauthorized
	}
	return claims, 0
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	limiter := newMessageLimiter(h.opts.RateLimitPerMinute)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr == nil && cmd.Kind == core.CommandSendMessage && !limiter.allow() {
			protoErr = &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages, slow down"}
		}
		if protoErr != nil {
			h.log.Debug().Str("session_id", session.ID).Str("type", inbound.Type).Str("code", protoErr.Code).Msg("inbound rejected")
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); err != nil {
				return err
			}
			continue
		}

		select {
		case session.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case event := <-session.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws event")
				return err
			}
		case <-session.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
