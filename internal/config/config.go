package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration for the game service.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"game-service"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres Postgres
	Redis    Redis
	Security Security
	Game     Game
	Rank     Rank
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds match state and leaderboard store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for token verification.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER"`
}

// Game groups gameplay timing and capacity defaults.
type Game struct {
	RoomCapacity      int           `env:"GAME_ROOM_CAPACITY" envDefault:"8"`
	TimePerQuestion   time.Duration `env:"GAME_TIME_PER_QUESTION" envDefault:"15s"`
	WarmupDelay       time.Duration `env:"GAME_WARMUP_DELAY" envDefault:"3s"`
	ReviewDelay       time.Duration `env:"GAME_REVIEW_DELAY" envDefault:"5s"`
	StateTTL          time.Duration `env:"GAME_STATE_TTL" envDefault:"1h"`
	FinishedRetention time.Duration `env:"GAME_FINISHED_RETENTION" envDefault:"30s"`
}

// Rank governs the cross-match leaderboard.
type Rank struct {
	TopN int `env:"RANK_TOP_N" envDefault:"50"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DSN builds the pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
