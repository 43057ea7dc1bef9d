package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection pool
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "Database").Logger()
	log.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes schema migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id SERIAL PRIMARY KEY,
			cycle_id VARCHAR(40),
			strategy VARCHAR(50) NOT NULL,
			symbol VARCHAR(30) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			entry_price DECIMAL(14, 4) NOT NULL,
			stop_loss DECIMAL(14, 4),
			target DECIMAL(14, 4),
			star_rating SMALLINT NOT NULL,
			composite_score DECIMAL(10, 4),
			confirmation VARCHAR(10),
			reason TEXT,
			signalled_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_time ON signals(symbol, signalled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_strategy ON signals(strategy)`,

		`CREATE TABLE IF NOT EXISTS circuit_breaker_activations (
			id SERIAL PRIMARY KEY,
			trading_day DATE NOT NULL,
			sl_hits INTEGER NOT NULL,
			total_loss DECIMAL(14, 4) NOT NULL,
			overridden BOOLEAN DEFAULT FALSE,
			overridden_at TIMESTAMP,
			resumed_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_cb_activations_day ON circuit_breaker_activations(trading_day)`,

		`CREATE TABLE IF NOT EXISTS adaptation_log (
			id SERIAL PRIMARY KEY,
			strategy VARCHAR(50) NOT NULL,
			old_level VARCHAR(10) NOT NULL,
			new_level VARCHAR(10) NOT NULL,
			consecutive_losses INTEGER NOT NULL,
			reason TEXT,
			changed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_adaptation_log_strategy ON adaptation_log(strategy, changed_at)`,

		`CREATE TABLE IF NOT EXISTS strategy_performance (
			id SERIAL PRIMARY KEY,
			trading_day DATE NOT NULL,
			strategy VARCHAR(50) NOT NULL,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			total_pnl DECIMAL(14, 4) NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (trading_day, strategy)
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("Migrations complete")
	return nil
}
