// Package db provides PostgreSQL connectivity and schema migrations for the ficticia service.
// It owns the pgx connection pool that the stores in auth/postgres run on and the embedded
// golang-migrate migrations that create the users, roles and user_roles tables.
// In Nest.js terms this is the TypeOrmModule configuration: one place that hands a ready
// connection to the rest of the application.
package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/user/ficticia-go/apperror"
	"github.com/user/ficticia-go/config"
)

const (
	maxConnIdleTime = 10 * time.Minute
	maxConnLifetime = 30 * time.Minute
	pingAttempts    = 5
	pingTimeout     = 5 * time.Second
)

// pingBaseDelay is the first backoff step between pings.
var pingBaseDelay = 200 * time.Millisecond

// NewPool creates a pgxpool for cfg and waits until the database answers a ping.
// The database container usually starts alongside the service, so the first pings are
// retried with exponential backoff before giving up.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, apperror.NewConfigError("invalid database connection string", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxSize)
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	poolConfig.MaxConnLifetime = maxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to create connection pool", err)
	}

	if err := Ping(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks connectivity, retrying a bounded number of times.
func Ping(ctx context.Context, p Pinger, logger *slog.Logger) error {
	backoff := retry.WithMaxRetries(pingAttempts-1, retry.NewExponential(pingBaseDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return apperror.NewDatabaseError("database unreachable", err)
	}
	return nil
}
