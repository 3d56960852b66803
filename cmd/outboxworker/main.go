// cmd/outboxworker is the standalone outbox-publisher CLI: a process
// that only claims and publishes outbox rows, so the publishing loop
// can be scaled or restarted independently of the HTTP surface.
// Grounded on roach88-nysm's cobra-based CLI (internal/cli), adapted
// from a multi-subcommand root into a single long-running root
// command with ops flags, per SPEC_FULL.md's domain-stack assignment
// of cobra to this entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/config"
	"github.com/Victor-armando18/pricing-engine/internal/infrastructure/broker"
	"github.com/Victor-armando18/pricing-engine/internal/infrastructure/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configFile string
	var pollInterval time.Duration
	var batchLimit int
	var maxRetries int

	exitCode := 0

	rootCmd := &cobra.Command{
		Use:           "outboxworker",
		Short:         "Claim and publish outbox_events rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runWorker(cmd.Context(), configFile, pollInterval, batchLimit, maxRetries)
			if exitCode != 0 {
				return fmt.Errorf("outboxworker exited with code %d", exitCode)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVar(&configFile, "config", os.Getenv("PRICING_CONFIG_FILE"), "path to config YAML")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "override outbox poll interval (0 = use config)")
	rootCmd.Flags().IntVar(&batchLimit, "batch-limit", 0, "override outbox claim batch size (0 = use config)")
	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "override outbox max retries before dead-lettering (0 = use config)")

	if err := rootCmd.Execute(); err != nil {
		if exitCode != 0 {
			return exitCode
		}
		return 1
	}
	return 0
}

func runWorker(ctx context.Context, configFile string, pollInterval time.Duration, batchLimit, maxRetries int) int {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Error("config error", zap.Error(err))
		return 1
	}
	if pollInterval > 0 {
		cfg.Outbox.PollInterval = pollInterval
	}
	if batchLimit > 0 {
		cfg.Outbox.BatchLimit = batchLimit
	}
	if maxRetries > 0 {
		cfg.Outbox.MaxRetries = maxRetries
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := postgres.NewPool(runCtx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		log.Error("database connection error", zap.Error(err))
		return 2
	}
	defer pool.Close()

	metrics := commit.NewPrometheusMetrics(prometheus.NewRegistry())

	var publisher commit.EventPublisher
	if cfg.Broker.Endpoint != "" {
		publisher = broker.NewHTTPPublisher(cfg.Broker.Endpoint, nil)
	} else {
		publisher = broker.NewInMemoryPublisher()
	}

	outboxStore := postgres.NewOutboxStore(pool)
	worker := commit.NewOutboxWorker(outboxStore, publisher, metrics, log, cfg.Outbox.PollInterval, cfg.Outbox.BatchLimit, cfg.Outbox.MaxRetries)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("outboxworker shutting down")
		cancel()
	}()

	worker.Run(runCtx)
	return 0
}
