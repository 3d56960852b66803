package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
)

// OutboxStore implements commit.OutboxStore. ClaimBatch uses
// FOR UPDATE SKIP LOCKED so multiple outbox-worker processes can run
// concurrently without double-claiming a row (§4.4, §5).
type OutboxStore struct {
	pool *pgxpool.Pool
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]commit.OutboxEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: beginning outbox claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, metadata, status, retry_count, next_retry_at, created_at
		FROM outbox_events
		WHERE status IN ('PENDING', 'PROCESSING') AND next_retry_at <= now()
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying due outbox_events: %w", err)
	}

	var claimed []commit.OutboxEvent
	for rows.Next() {
		var e commit.OutboxEvent
		var metadataRaw []byte
		var status string
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &e.Payload, &metadataRaw, &status, &e.RetryCount, &e.NextRetryAt, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scanning outbox_events row: %w", err)
		}
		e.Status = commit.OutboxStatus(status)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &e.Metadata); err != nil {
				rows.Close()
				return nil, fmt.Errorf("postgres: decoding outbox metadata: %w", err)
			}
		}
		claimed = append(claimed, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("postgres: iterating outbox_events rows: %w", err)
	}
	rows.Close()

	ids := make([]string, len(claimed))
	for i, e := range claimed {
		ids[i] = e.ID
	}
	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE outbox_events SET status = 'PROCESSING' WHERE id = ANY($1)`, ids); err != nil {
			return nil, fmt.Errorf("postgres: marking outbox_events processing: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: committing outbox claim tx: %w", err)
	}
	return claimed, nil
}

func (s *OutboxStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox_events SET status = 'COMPLETED', processed_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: marking outbox event %s completed: %w", id, err)
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET status = 'PENDING', retry_count = $2, next_retry_at = $3, error = $4
		WHERE id = $1`, id, retryCount, nextRetryAt, errMsg)
	if err != nil {
		return fmt.Errorf("postgres: marking outbox event %s failed: %w", id, err)
	}
	return nil
}

func (s *OutboxStore) MarkDeadLetter(ctx context.Context, id string, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox_events SET status = 'DEAD_LETTER', error = $2 WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("postgres: dead-lettering outbox event %s: %w", id, err)
	}
	return nil
}
