package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresClient owns the connection pool of the history database.
type PostgresClient struct {
	Pool *pgxpool.Pool
}

// NewPostgresClient opens a pool on dsn and verifies it with a ping.
// maxConns <= 0 keeps the pgxpool default.
func NewPostgresClient(ctx context.Context, dsn string, maxConns int32) (*PostgresClient, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	// History writes are sparse; idle connections are not worth keeping.
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return &PostgresClient{Pool: pool}, nil
}

// Ping checks database connectivity.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close closes every pooled connection.
func (c *PostgresClient) Close() {
	c.Pool.Close()
}
