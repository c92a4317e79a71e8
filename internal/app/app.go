// Package app wires configuration, infrastructure, and the game engine into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/brainbrawler/game-service/internal/auth"
	"github.com/brainbrawler/game-service/internal/config"
	"github.com/brainbrawler/game-service/internal/events"
	"github.com/brainbrawler/game-service/internal/game"
	"github.com/brainbrawler/game-service/internal/game/scoring"
	"github.com/brainbrawler/game-service/internal/logging"
	"github.com/brainbrawler/game-service/internal/persist"
	"github.com/brainbrawler/game-service/internal/rank"
	"github.com/brainbrawler/game-service/internal/server"
	"github.com/brainbrawler/game-service/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, Postgres, Redis, and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	verifier := auth.NewVerifier([]byte(cfg.Security.JWTSecret), cfg.Security.JWTIssuer)

	matchStore := game.NewStore(ctx, redisClient, logger)
	persistStore := persist.NewStore(pool, logger)
	rankSvc := rank.NewService(redisClient, logger, rank.ServiceOptions{TopN: cfg.Rank.TopN})
	eventsPub := events.NewPublisher(redisClient, "", logger)
	hub := ws.NewHub(logger)

	engine := game.NewEngine(
		matchStore,
		persistStore,
		hub,
		game.NewClock(),
		game.EngineOptions{
			Rank:   rankSvc,
			Events: eventsPub,
			Config: game.Config{
				RoomCapacity:      cfg.Game.RoomCapacity,
				TimePerQuestion:   cfg.Game.TimePerQuestion,
				WarmupDelay:       cfg.Game.WarmupDelay,
				ReviewDelay:       cfg.Game.ReviewDelay,
				StateTTL:          cfg.Game.StateTTL,
				FinishedRetention: cfg.Game.FinishedRetention,
				Scoring:           scoring.DefaultConfig(),
			},
		},
		logger,
	)

	gameHandler := game.NewHandler(engine, hub, verifier, logger)
	roomHandlers := game.NewHTTPHandlers(engine, logger)
	rankHandler := rank.NewHTTPHandler(rankSvc, logger)

	apiServer := server.NewHTTPServer(
		cfg,
		logger,
		pool,
		redisClient,
		gameHandler.HandleWebSocket,
		roomHandlers.GetRoom,
		rankHandler.HandleGet,
	)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
