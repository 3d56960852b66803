// cmd/server runs the HTTP surface: it loads configuration, connects to
// Postgres, wires the pricing engine, and serves the Compute RPC.
// Exit codes follow §6: 0 clean shutdown, 1 config error, 2
// unrecoverable runtime error.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/config"
	"github.com/Victor-armando18/pricing-engine/internal/httpapi"
	"github.com/Victor-armando18/pricing-engine/internal/infrastructure/broker"
	"github.com/Victor-armando18/pricing-engine/internal/infrastructure/postgres"
	"github.com/Victor-armando18/pricing-engine/internal/orchestrator"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
)

func main() {
	os.Exit(run())
}

func run() int {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load(os.Getenv("PRICING_CONFIG_FILE"))
	if err != nil {
		log.Error("config error", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		log.Error("database connection error", zap.Error(err))
		return 2
	}
	defer pool.Close()

	metrics := commit.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	var publisher commit.EventPublisher
	if cfg.Broker.Endpoint != "" {
		publisher = broker.NewHTTPPublisher(cfg.Broker.Endpoint, http.DefaultClient)
	} else {
		publisher = broker.NewInMemoryPublisher()
	}

	webhookEndpoints := make([]commit.WebhookEndpoint, 0, len(cfg.Webhooks.Endpoints))
	for _, ep := range cfg.Webhooks.Endpoints {
		webhookEndpoints = append(webhookEndpoints, commit.WebhookEndpoint{
			URL: ep.URL, Secret: ep.Secret, EventTypes: ep.EventTypes,
		})
	}
	webhooks := commit.NewWebhookNotifier(webhookEndpoints, log, cfg.Webhooks.QueueSize)

	fetcher := postgres.NewProposalFetcher(pool)
	locker := postgres.NewAdvisoryLocker(pool)
	resultStore := postgres.NewResultStore(pool)
	outboxStore := postgres.NewOutboxStore(pool)

	prep := preparation.NewStage(
		fetcher,
		ruleeval.NewCache(),
		preparation.NewFrozenInputCache(cfg.Cache.FrozenInputCapacity, cfg.Cache.FrozenInputTTL),
		log,
	)
	commitStage := commit.NewStage(resultStore, locker, webhooks, metrics, log, cfg.Cache.ResultCapacity, cfg.Cache.ResultTTL)
	orch := orchestrator.New(prep, commitStage, metrics, log)

	outboxWorker := commit.NewOutboxWorker(outboxStore, publisher, metrics, log, cfg.Outbox.PollInterval, cfg.Outbox.BatchLimit, cfg.Outbox.MaxRetries)
	go outboxWorker.Run(ctx)

	server := httpapi.NewServer(orch, cfg.HTTP.RequestDeadline)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.HTTP.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			return 2
		}
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.RequestDeadline)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			return 2
		}
	}

	fmt.Fprintln(os.Stdout, "pricing-engine server stopped")
	return 0
}
