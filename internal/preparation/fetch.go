package preparation

import "context"

// DataFetcher loads a consistent snapshot of one proposal's inputs.
// Implementations must fetch every collection inside a single
// REPEATABLE READ transaction (§4.2) so a concurrent write to, say, the
// modifier table can never be observed alongside a stale line-item read.
// The Postgres implementation lives in internal/infrastructure/postgres
// and is what the server and the diagnostic CLI use; tests use an
// in-memory fake satisfying the same interface.
type DataFetcher interface {
	Fetch(ctx context.Context, proposalID, tenant string) (Snapshot, error)
}
