package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/config"
)

// NewServer builds the HTTP server: health check, WebSocket endpoint and
// the channel API.
func NewServer(hub ChatHub, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	jwtCfg := JWTConfig(cfg)

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, WSOptions{
		JWT:                jwtCfg,
		JWTRequired:        cfg.JWTRequired,
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)))

	channels := NewChannelHandlers(hub, logger)
	api := router.Group("/api")
	if jwtCfg.Enabled() {
		api.Use(AuthMiddleware(jwtCfg, logger))
	}
	api.GET("/channels", channels.ListChannels)
	api.POST("/channels", channels.CreateChannel)
	api.GET("/channels/:name/messages", channels.ListMessages)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// JWTConfig derives token settings from the server configuration.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
}
