package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
)

type connKey struct{}

// connFromContext returns the connection a PostgresLocker pinned to ctx,
// if any. ResultStore calls this so work performed inside
// an AdvisoryLocker.WithLock callback runs on the very session holding
// the lock, not a fresh connection pulled from the pool — an advisory
// lock held on connection A gives callers on connection B no exclusion
// at all.
func connFromContext(ctx context.Context) (*pgxpool.Conn, bool) {
	conn, ok := ctx.Value(connKey{}).(*pgxpool.Conn)
	return conn, ok
}

// AdvisoryLocker implements commit.AdvisoryLocker with a session-level
// Postgres advisory lock (pg_advisory_lock/pg_advisory_unlock), matching
// §4.4's "per-proposal advisory lock acquired before the transaction
// begins and released after commit" exactly — a transaction-scoped lock
// would release too early if Lookup's read happened outside a
// transaction of its own.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

func (l *AdvisoryLocker) WithLock(ctx context.Context, proposalID string, fn func(ctx context.Context) error) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquiring connection for advisory lock: %w", err)
	}
	defer conn.Release()

	lockID := commit.AdvisoryLockID(proposalID)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return fmt.Errorf("postgres: acquiring advisory lock %d: %w", lockID, err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", lockID)
	}()

	return fn(context.WithValue(ctx, connKey{}, conn))
}
