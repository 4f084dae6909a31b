package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection. A Pool may be
// disconnected: Connect hands back a degraded Pool after exhausting its
// retries so the stores built on it can keep answering with defaults
// instead of failing the caller.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool creates a connected Postgres pool or fails. Used where degraded
// operation makes no sense (tests, migrations tooling).
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// Connect attempts to connect retries times with delay doubling after each
// failed attempt. On total failure it returns a disconnected Pool together
// with the last error; the caller logs and continues in degraded mode.
func Connect(ctx context.Context, dsn string, retries int, initialDelay time.Duration, logger *log.Logger) (*Pool, error) {
	if retries < 1 {
		retries = 1
	}

	delay := initialDelay
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		p, err := NewPool(ctx, dsn)
		if err == nil {
			if attempt > 1 && logger != nil {
				logger.Printf("postgres connected on attempt %d", attempt)
			}
			return p, nil
		}
		lastErr = err

		if logger != nil {
			logger.Printf("postgres connection attempt %d/%d failed: %v", attempt, retries, err)
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				return &Pool{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return &Pool{}, lastErr
}

// Connected reports whether the pool has a live connection.
func (p *Pool) Connected() bool {
	return p != nil && p.pool != nil
}

// DB returns the underlying pgx pool. Callers must check Connected first.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Connected() {
		p.pool.Close()
	}
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
