// Package pricingengine is the public-facing entrypoint to the pricing
// pipeline: a small facade over internal/orchestrator, exposing exactly
// the Compute RPC of §6 and nothing about how preparation, compute, or
// commit are wired internally. Grounded on the teacher's
// pkg/engine + internal/interfaces.EngineFacade split — a public
// package thin enough to be a constructor and one method, backed by an
// internal service the public package never re-implements.
package pricingengine

import (
	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

// CalculateRequest is the public request shape: a proposal to price,
// optionally patched by a delta since the last calculation.
type CalculateRequest struct {
	ProposalID string
	Tenant     string
	Changes    *preparation.Delta
}

// CalculateResponse is the public response shape: the computed result,
// whether it was served from an idempotent replay, and the phase-timing
// breakdown §6 calls for.
type CalculateResponse struct {
	Result     pricing.Result
	Idempotent bool
	Timings    commit.PhaseTimings
}
