// Package db is the Postgres persistence layer: pool management, schema
// bootstrap, and per-table stores for every relation the pipeline writes.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB wraps a pgxpool.Pool; every per-table method in this package runs
// through it.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// Open parses dsn and establishes a connection pool, then runs the schema
// bootstrap (CREATE TABLE IF NOT EXISTS for every relation).
func Open(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	d := &DB{Pool: pool, log: log}
	if err := d.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return d, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}
