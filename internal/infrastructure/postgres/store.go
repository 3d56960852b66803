package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// ResultStore implements commit.ResultStore: the idempotency lookup and
// the single §4.4 transaction (calculation_results upsert, calc_audit +
// calc_audit_groups upsert, outbox_events insert).
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and *pgxpool.Conn, so
// beginTx below works whether or not WithLock already pinned a
// connection to ctx.
type querier interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

func (s *ResultStore) beginTx(ctx context.Context) (pgx.Tx, error) {
	var q querier = s.pool
	if conn, ok := connFromContext(ctx); ok {
		q = conn
	}
	return q.BeginTx(ctx, pgx.TxOptions{})
}

func (s *ResultStore) Lookup(ctx context.Context, checksum string) (commit.WriteInput, bool, error) {
	var q interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	} = s.pool
	if conn, ok := connFromContext(ctx); ok {
		q = conn
	}

	var proposalID, payloadRaw string
	row := q.QueryRow(ctx, `SELECT proposal_id, payload FROM calc_audit WHERE checksum = $1`, checksum)
	if err := row.Scan(&proposalID, &payloadRaw); err != nil {
		if err == pgx.ErrNoRows {
			return commit.WriteInput{}, false, nil
		}
		return commit.WriteInput{}, false, fmt.Errorf("postgres: looking up calc_audit by checksum: %w", err)
	}

	var result pricing.Result
	if err := json.Unmarshal([]byte(payloadRaw), &result); err != nil {
		return commit.WriteInput{}, false, fmt.Errorf("postgres: decoding stored audit payload: %w", err)
	}

	// The stored payload is the JSON encoding of the committed
	// pricing.Result (see Write), so a replay served from the store hands
	// back the same Result the original commit wrote.
	return commit.WriteInput{
		ProposalID: proposalID,
		Audit:      commit.AuditRecord{ProposalID: proposalID, Result: result},
	}, true, nil
}

func (s *ResultStore) Write(ctx context.Context, input commit.WriteInput) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning commit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result := input.Audit.Result

	_, err = tx.Exec(ctx, `
		INSERT INTO calculation_results (proposal_id, subtotal, total, checksum, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (proposal_id) DO UPDATE
		SET subtotal = EXCLUDED.subtotal, total = EXCLUDED.total,
		    checksum = EXCLUDED.checksum, updated_at = now()`,
		input.ProposalID, result.SubtotalQ2.String(), result.CustomerGrandTotalQ2.String(), result.Checksum)
	if err != nil {
		return fmt.Errorf("postgres: upserting calculation_results: %w", err)
	}

	payload, err := json.Marshal(result) // money.Decimal marshals as a decimal string via its own MarshalJSON
	if err != nil {
		return fmt.Errorf("postgres: marshalling result for audit payload: %w", err)
	}
	phaseTimings, err := json.Marshal(input.Audit.Timings)
	if err != nil {
		return fmt.Errorf("postgres: marshalling phase timings: %w", err)
	}

	calcID := input.Audit.CalcID
	if calcID == "" {
		calcID = uuid.NewString()
	}

	useTax := (*string)(nil)
	if result.UseTaxQ7 != nil {
		s := result.UseTaxQ7.String()
		useTax = &s
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO calc_audit (
			calc_id, proposal_id, tenant, version, started_at, finished_at, phase_timings,
			subtotal_q7, modifier_total_q7, taxable_base_q7, non_taxable_q7, retail_tax_q7,
			use_tax_q7, customer_grand_total_q7, grand_total_q2, tax_mode, engine_version,
			checksum, payload
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (checksum) DO NOTHING`,
		calcID, input.ProposalID, input.Audit.Tenant, input.Audit.Version,
		input.Audit.StartedAt, input.Audit.FinishedAt, phaseTimings,
		result.SubtotalQ7.String(), result.ModifierTotalQ7.String(), result.TaxableBaseQ7.String(),
		result.NonTaxableBaseQ7.String(), result.RetailTaxQ7.String(), useTax,
		result.CustomerGrandTotalQ7.String(), result.CustomerGrandTotalQ2.String(),
		string(result.TaxMode), input.Audit.EngineVersion, result.Checksum, payload)
	if err != nil {
		return fmt.Errorf("postgres: inserting calc_audit: %w", err)
	}

	for _, adj := range result.Adjustments {
		attributes, err := json.Marshal(adj.GroupKey)
		if err != nil {
			return fmt.Errorf("postgres: marshalling group key: %w", err)
		}
		modifierIDs, err := json.Marshal(adj.ModifierIDs)
		if err != nil {
			return fmt.Errorf("postgres: marshalling modifier ids: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO calc_audit_groups (calc_id, group_key, attributes, combined_value, adjustment_q7, modifier_ids)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			calcID, groupKeyString(adj.GroupKey), attributes, adj.CombinedValue.String(), adj.AmountQ7.String(), modifierIDs)
		if err != nil {
			return fmt.Errorf("postgres: inserting calc_audit_groups row: %w", err)
		}
	}

	metadata, err := json.Marshal(input.Event.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshalling outbox metadata: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, metadata, status, retry_count, next_retry_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7,now())`,
		uuid.NewString(), input.Event.EventType, input.Event.AggregateID, input.Event.Payload, metadata,
		string(commit.OutboxPending), time.Now())
	if err != nil {
		return fmt.Errorf("postgres: inserting outbox_events row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: committing calc tx: %w", err)
	}
	return nil
}

// groupKeyString renders a GroupKey into the flat string calc_audit_groups
// stores alongside the full JSON attributes, for quick equality lookups
// without a JSON containment query.
func groupKeyString(k any) string {
	b, _ := json.Marshal(k)
	return string(b)
}
