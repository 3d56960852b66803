// Package postgres implements the persistence collaborators the rest of
// the pipeline only ever sees as interfaces: preparation.DataFetcher,
// commit.ResultStore, commit.OutboxStore, and commit.AdvisoryLocker.
// Grounded on github.com/jackc/pgx/v5, the library the rest of the
// example pack reaches for whenever it needs a real Postgres driver
// (xraph-ledger's pgdriver, accordsai-contractlane, colonystack-colonycore)
// — the teacher itself never touches a database, so this package has no
// direct teacher file to adapt and is built from that pack-wide idiom
// instead.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the connection pool. Field names match the
// "DB URL" ops knob §6 calls out as the only configuration surface this
// collaborator should expose.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// NewPool opens a pgx connection pool and verifies connectivity with a
// single ping, so a misconfigured DSN fails fast at startup rather than
// on the first request.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}
