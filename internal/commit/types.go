// Package commit implements §4.4, the commit stage: idempotent,
// transactional persistence of a pure-stage Result, an outbox row for
// downstream event delivery, and best-effort webhook fan-out. Unlike
// internal/compute, every operation here suspends on I/O — database
// round-trips, broker publishes, webhook calls — so every exported
// method takes a context.Context and every collaborator is an
// interface, satisfied by internal/infrastructure/postgres and
// internal/infrastructure/broker.
package commit

import (
	"time"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// OutboxStatus is the lifecycle state of one outbox_events row.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxCompleted  OutboxStatus = "COMPLETED"
	OutboxDeadLetter OutboxStatus = "DEAD_LETTER"
)

// OutboxEvent mirrors one row of the outbox_events table (§6).
type OutboxEvent struct {
	ID          string
	EventType   string
	AggregateID string // proposalId; the broker partition key
	Payload     []byte // canonical Result bytes
	Metadata    map[string]any
	Status      OutboxStatus
	RetryCount  int
	NextRetryAt time.Time
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Error       string
}

// PhaseTimings records how long each pipeline stage took, surfaced both
// in the external RPC response and in the calc_audit row.
type PhaseTimings struct {
	PreparationMs int64
	ComputeMs     int64
	CommitMs      int64
	TotalMs       int64
}

// AuditRecord is the write-side shape of one calc_audit row plus its
// calc_audit_groups children.
type AuditRecord struct {
	CalcID        string
	ProposalID    string
	Tenant        string
	Version       string
	StartedAt     time.Time
	FinishedAt    time.Time
	Timings       PhaseTimings
	Result        pricing.Result
	EngineVersion string
}

// WriteInput is everything one commit transaction needs: the
// calculation_results upsert, the calc_audit (+groups) upsert, and the
// outbox_events insert, all in the single transaction §4.4 requires.
type WriteInput struct {
	ProposalID string
	Audit      AuditRecord
	Event      OutboxEvent
}

// Outcome is what Stage.Commit returns: either the result of a fresh
// write, or the stored result returned unchanged because an identical
// checksum had already been committed.
type Outcome struct {
	Result     pricing.Result
	Idempotent bool
}

// Request bundles everything Stage.Commit needs to run §4.4 for one
// computation.
type Request struct {
	ProposalID    string
	Tenant        string
	Version       string
	EngineVersion string
	StartedAt     time.Time
	FinishedAt    time.Time
	Timings       PhaseTimings
	Result        pricing.Result
}
