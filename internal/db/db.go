package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/storage/postgres"
)

type DB struct {
	Pool *pgxpool.Pool
}

func Open(ctx context.Context, c config.DatabaseConfig) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(postgres.DSN(&c))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if c.MaxConns > 0 {
		cfg.MaxConns = int32(c.MaxConns)
	}
	if c.MinConns > 0 {
		cfg.MinConns = int32(c.MinConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	// Fail fast
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}
