package preparation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// Stage is the preparation pipeline's single entrypoint: fetch, normalise,
// validate, compile rules, freeze, and — on repeat calls for the same
// proposal — short-circuit through the cache or a delta patch instead of
// repeating all of that work (§4.2).
type Stage struct {
	fetcher  DataFetcher
	compiler *RuleCompiler
	cache    *FrozenInputCache
	coalesce *Coalescer
	log      *zap.Logger
}

// NewStage wires a preparation pipeline. ruleCache is shared across every
// Stage in the process (and therefore across tenants), matching §4.2's
// cache-key design, which already partitions entries by tenant.
func NewStage(fetcher DataFetcher, ruleCache *ruleeval.Cache, frozenCache *FrozenInputCache, log *zap.Logger) *Stage {
	return &Stage{
		fetcher:  fetcher,
		compiler: NewRuleCompiler(ruleCache),
		cache:    frozenCache,
		coalesce: NewCoalescer(),
		log:      log,
	}
}

// Prepare returns a FrozenInput ready for the compute stage. Concurrent
// calls for the same proposalId share one in-flight fetch; a request
// without a delta is served from the most recently prepared input for
// that proposal while it is cached, and an incoming delta is applied to
// that cached input when one exists, avoiding a full re-fetch.
func (s *Stage) Prepare(ctx context.Context, req Request) (pricing.FrozenInput, error) {
	if req.ProposalID == "" {
		return pricing.FrozenInput{}, pricingerr.New(pricingerr.InvalidInput, "proposalId is required")
	}

	if req.Changes != nil && (req.Changes.Type == DeltaModifierOnly || req.Changes.Type == DeltaLineItem) {
		if base, ok := s.cache.GetLastForProposal(req.ProposalID); ok {
			now := time.Now()
			if failures := s.cache.RecentFailureCount(req.ProposalID, now, deltaFailureWindow); failures > deltaFailureCountLimit {
				s.log.Debug("recent delta failures exceed threshold, forcing full rebuild",
					zap.String("proposalId", req.ProposalID), zap.Int("failures", failures))
			} else if updated, err := ApplyDelta(base, *req.Changes); err != nil {
				s.cache.RecordDeltaFailure(req.ProposalID, now)
				s.log.Warn("delta application failed, falling back to full fetch",
					zap.String("proposalId", req.ProposalID), zap.Error(err))
			} else if forced, reason := shouldForceRebuild(base, updated, *req.Changes); forced {
				s.log.Debug("delta decision forced full rebuild",
					zap.String("proposalId", req.ProposalID), zap.String("reason", reason))
			} else {
				s.cache.Put(updated)
				return updated, nil
			}
		}
	}

	return s.coalesce.Do(req.ProposalID, func() (pricing.FrozenInput, error) {
		if req.Changes == nil {
			if cached, ok := s.cache.GetLastForProposal(req.ProposalID); ok && cached.Tenant == req.Tenant {
				return cached, nil
			}
		}
		return s.prepareFresh(ctx, req)
	})
}

func (s *Stage) prepareFresh(ctx context.Context, req Request) (pricing.FrozenInput, error) {
	snap, err := s.fetcher.Fetch(ctx, req.ProposalID, req.Tenant)
	if err != nil {
		return pricing.FrozenInput{}, pricingerr.Wrap(pricingerr.DataFetchError, "fetching proposal snapshot", err)
	}

	lineItems, modifiers, dependencies, rules, config, violations := Normalize(snap)
	if len(violations) > 0 {
		return pricing.FrozenInput{}, violationError(violations)
	}

	refViolations := ValidateReferences(lineItems, modifiers, dependencies, rules)
	if len(refViolations) > 0 {
		return pricing.FrozenInput{}, violationError(refViolations)
	}

	version := config.SchemaVersion
	_, compileViolations := s.compiler.CompileAll(snap.Tenant, version, rules)
	if len(compileViolations) > 0 {
		return pricing.FrozenInput{}, violationError(compileViolations)
	}

	frozen, err := Freeze(
		snap.ProposalID, snap.Tenant, config.SchemaVersion,
		lineItems, modifiers, dependencies, rules, config,
		snap.ProposalMeta, snap.CustomerMeta, snap.ProjectMeta,
	)
	if err != nil {
		return pricing.FrozenInput{}, pricingerr.Wrap(pricingerr.Internal, "freezing prepared input", err)
	}

	s.cache.Put(frozen)
	s.log.Debug("prepared frozen input",
		zap.String("proposalId", frozen.ProposalID),
		zap.String("fingerprint", frozen.Fingerprint),
		zap.Int("lineItems", len(frozen.LineItems)),
		zap.Int("modifiers", len(frozen.Modifiers)),
	)
	return frozen, nil
}

func violationError(violations []Violation) error {
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.Field + ": " + v.Reason
	}
	return pricingerr.WithViolations(pricingerr.InvalidInput, "proposal input failed validation", msgs)
}
