package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hr-benefits-assistant/server/internal/agent/gateway"
	"github.com/hr-benefits-assistant/server/internal/agent/graph"
	"github.com/hr-benefits-assistant/server/internal/agent/model"
	"github.com/hr-benefits-assistant/server/internal/agent/records"
	"github.com/hr-benefits-assistant/server/internal/agent/repo"
	"github.com/hr-benefits-assistant/server/internal/api"
	"github.com/hr-benefits-assistant/server/internal/core"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
	pkgredis "github.com/hr-benefits-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the assistant,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Server  model.ServerConfig
	Redis   pkgredis.Config
	Records model.RecordsConfig

	// Inference
	Gateway model.GatewayConfig

	// Agent configs
	Extraction model.ExtractionConfig
	Classifier model.ClassifierConfig
	Composer   model.ComposerConfig
	Session    model.SessionConfig
}

func main() {
	// Load .env file
	envErr := godotenv.Load(".env")

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Service: "hr-benefits-assistant"})
	if envErr != nil {
		logx.Debug().Err(envErr).Msg("no .env file loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := records.Open(ctx, cfg.Records)
	if err != nil {
		logx.Fatal().Err(err).Str("backend", cfg.Records.Backend).Msg("failed to open record store")
	}
	defer store.Close()

	backend, err := gateway.NewBackend(ctx, cfg.Gateway)
	if err != nil {
		logx.Fatal().Err(err).Str("provider", cfg.Gateway.Provider).Msg("failed to initialise inference backend")
	}
	gw, err := gateway.New(backend, cfg.Gateway)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise inference gateway")
	}

	sessions, closeSessions := newSessionRepository(ctx, cfg)
	defer closeSessions()

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		Gateway:    gw,
		Apology:    gw.Apology(),
		Store:      store,
		Sessions:   sessions,
		Session:    cfg.Session,
		Extraction: cfg.Extraction,
		Classifier: cfg.Classifier,
		Composer:   cfg.Composer,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build response graph")
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(api.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	api.NewChatHandler(runner, gw).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A turn may make three inference calls.
		WriteTimeout: 3*cfg.Gateway.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Environment.String()).
			Str("provider", cfg.Gateway.Provider).
			Str("model", cfg.Gateway.Model).
			Str("session_backend", cfg.Session.Backend).
			Str("records_backend", cfg.Records.Backend).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	stop()
	logx.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("server forced to shutdown")
	}
}

// newSessionRepository returns the configured session repository and its cleanup.
func newSessionRepository(ctx context.Context, cfg AppConfig) (model.SessionRepository, func()) {
	switch cfg.Session.Backend {
	case "redis":
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("failed to initialise Redis client")
		}
		logx.Info().Msg("connected to Redis")
		return repo.NewRedisSessionRepository(rdb, cfg.Session.TTL), func() { _ = rdb.Close() }
	case "", "memory":
		mem := repo.NewMemorySessionRepository(cfg.Session.TTL)
		go mem.Run(ctx, cfg.Session.SweepInterval)
		return mem, func() {}
	default:
		logx.Fatal().Str("backend", cfg.Session.Backend).Msg("unknown session backend")
		return nil, nil
	}
}
