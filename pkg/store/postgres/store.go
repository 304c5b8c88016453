// Package postgres implements the persistence layer on PostgreSQL via pgx.
// Every multi-statement write runs inside a single transaction; the worker
// drives whole batches through WithTx using the Tx-suffixed operations.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/config"
)

// Store is the PostgreSQL-backed implementation of models.Store plus the
// transactional operations used by the worker and the scheduler.
type Store struct {
	pool   *pgxpool.Pool
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// New connects to PostgreSQL, applies pool limits from cfg and optionally
// runs pending migrations.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	log := logger.With("component", "postgres_store")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MinConns = int32(cfg.PoolMinSize)
	poolConfig.MaxConns = int32(cfg.PoolMaxSize)
	if cfg.PoolMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.PoolMaxIdleTime
	}
	if cfg.PoolAcquireTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.PoolAcquireTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		log.Info("running database migrations")
		if err := runMigrations(ctx, cfg.DSN(), log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info("auto-migrate disabled, skipping migrations")
	}

	log.Info("connected to database",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
		"min_conns", cfg.PoolMinSize,
		"max_conns", cfg.PoolMaxSize,
	)

	return &Store{pool: pool, cfg: cfg, logger: log}, nil
}

// Close drains the pool, giving in-flight queries until the configured
// close timeout before returning anyway.
func (s *Store) Close() {
	timeout := s.cfg.PoolCloseTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("database pool closed")
	case <-time.After(timeout):
		s.logger.Warn("database pool close timed out", "timeout", timeout)
	}
}

// Ping verifies connectivity. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
