package pricingengine

import (
	"time"

	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
)

const (
	frozenInputCacheTTL = 5 * time.Minute
	resultCacheTTL       = 30 * time.Minute
)

func newRuleCache() *ruleeval.Cache { return ruleeval.NewCache() }
