package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/store/memory"
	"github.com/vovakirdan/modchat-server/internal/store/postgres"
	"github.com/vovakirdan/modchat-server/internal/store/redis"
	"github.com/vovakirdan/modchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/modchat-server/internal/transport/http"
)

const connectTimeout = 10 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.MessageStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st := openStore(ctx, cfg.Store, logger)

	moderator, err := newModerator(cfg.Moderation, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	hub, err := core.NewHub(core.Options{
		DefaultChannels:   cfg.DefaultChannels,
		Store:             st,
		Moderator:         moderator,
		FailurePolicy:     moderation.FailurePolicy(cfg.Moderation.FailurePolicy),
		ModerationTimeout: cfg.Moderation.Timeout,
		MaxMessageRunes:   cfg.MaxMessageRunes,
		HistoryLimit:      cfg.HistoryLimit,
		Logger:            logger,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init hub: %w", err)
	}

	return &App{
		server:          transporthttp.NewServer(hub, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// openStore connects the configured durable store. If it cannot be reached
// at startup the in-memory store is used for the rest of the process.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zerolog.Logger) store.MessageStore {
	if cfg.Driver == config.DriverMemory {
		logger.Info().Msg("using in-memory message store")
		return memory.New()
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var (
		durable store.MessageStore
		err     error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		durable, err = sqlite.New(cfg.DSN)
	case config.DriverRedis:
		durable, err = redis.New(ctx, cfg.DSN)
	case config.DriverPostgres:
		durable, err = postgres.New(ctx, cfg.DSN)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Driver).Msg("durable message store unavailable, using in-memory store")
		return memory.New()
	}

	logger.Info().Str("driver", cfg.Driver).Msg("message store initialized")
	return store.NewDegrading(durable, memory.New(), logger)
}

func newModerator(cfg config.ModerationConfig, logger *zerolog.Logger) (core.Moderator, error) {
	if cfg.URL == "" {
		logger.Warn().Str("policy", cfg.FailurePolicy).Msg("moderation url not set, every message takes the failure policy")
		return moderation.Disabled{}, nil
	}
	client, err := moderation.NewClient(cfg.URL, cfg.Timeout, nil)
	if err != nil {
		return nil, fmt.Errorf("init moderation client: %w", err)
	}
	logger.Info().Str("url", cfg.URL).Dur("timeout", cfg.Timeout).Msg("moderation client configured")
	return client, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// cleanup closes the message store.
func (a *App) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
		return
	}
	a.log.Info().Msg("store closed")
}
