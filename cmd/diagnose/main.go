// cmd/diagnose replays a saved CalculateRequest fixture through the
// full pipeline and prints an execution summary — adjustments,
// rejections, timings — to stdout. Useful for reproducing a reported
// total offline without standing up the HTTP surface.
// Grounded on the teacher's cmd/external-app/main.go diagnostic CLI,
// which plays the same "load a fixture, run it, print a summary" role
// for the teacher's own engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/config"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
	"github.com/Victor-armando18/pricing-engine/internal/infrastructure/postgres"
	"github.com/Victor-armando18/pricing-engine/internal/orchestrator"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
	"go.uber.org/zap"
)

type noopMetrics struct{}

func (noopMetrics) ObserveStageLatency(stage string, durationMs int64) {}
func (noopMetrics) IncError(stage, kind string)                       {}
func (noopMetrics) SetOutboxDepth(depth float64)                      {}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: diagnose <proposalId> [--tenant=<tenant>] [--config=<path>]")
		os.Exit(1)
	}
	proposalID := os.Args[1]
	tenant := ""
	configFile := os.Getenv("PRICING_CONFIG_FILE")
	for _, arg := range os.Args[2:] {
		switch {
		case strings.HasPrefix(arg, "--tenant="):
			tenant = strings.TrimPrefix(arg, "--tenant=")
		case strings.HasPrefix(arg, "--config="):
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("   PRICING ENGINE - DIAGNOSTIC TOOL")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database connection error: %v\n", err)
		os.Exit(2)
	}
	defer pool.Close()

	log := zap.NewNop()
	prep := preparation.NewStage(
		postgres.NewProposalFetcher(pool),
		ruleeval.NewCache(),
		preparation.NewFrozenInputCache(64, cfg.Cache.FrozenInputTTL),
		log,
	)
	commitStage := commit.NewStage(
		postgres.NewResultStore(pool), postgres.NewAdvisoryLocker(pool), nil, noopMetrics{}, log,
		64, cfg.Cache.ResultTTL,
	)
	orch := orchestrator.New(prep, commitStage, noopMetrics{}, log)

	resp, err := orch.Calculate(ctx, orchestrator.Request{ProposalID: proposalID, Tenant: tenant})
	if err != nil {
		fmt.Printf("\nCRITICAL ERROR: %v\n", err)
		os.Exit(2)
	}

	displaySummary(proposalID, resp)
}

func displaySummary(proposalID string, resp orchestrator.Response) {
	fmt.Println("\n[1. ADJUSTMENTS]")
	if len(resp.Result.Adjustments) == 0 {
		fmt.Println("   none")
	}
	for _, adj := range resp.Result.Adjustments {
		fmt.Printf("   %-10s amountQ7=%-14s allocations=%d\n", string(adj.GroupKey.Kind), adj.AmountQ7.String(), len(adj.PerLineAllocations))
	}

	fmt.Println("\n[2. REJECTIONS]")
	if len(resp.Result.Rejections) == 0 {
		fmt.Println("   none")
	}
	for _, r := range resp.Result.Rejections {
		fmt.Printf("   %-20s reason=%s\n", r.ModifierID, r.Reason)
	}

	fmt.Println("\n[3. TOTALS]")
	fmt.Printf("   subtotal:           %s\n", resp.Result.SubtotalQ2.String())
	fmt.Printf("   retailTax:          %s\n", resp.Result.RetailTaxQ2.String())
	fmt.Printf("   customerGrandTotal: %s\n", resp.Result.CustomerGrandTotalQ2.String())
	fmt.Printf("   checksum:           %s\n", resp.Result.Checksum)

	fmt.Println("\n[4. TIMINGS]")
	timingsJSON, _ := json.MarshalIndent(resp.Timings, "   ", "  ")
	fmt.Println("   " + string(timingsJSON))

	fmt.Println("\n[5. SUMMARY]")
	fmt.Printf("   proposalId: %s\n", proposalID)
	fmt.Printf("   idempotent: %v\n", resp.Idempotent)
	fmt.Println(strings.Repeat("=", 60))
}
