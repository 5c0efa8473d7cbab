package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cchttp "github.com/concordat/concord/internal/adapter/http"
	ccnats "github.com/concordat/concord/internal/adapter/nats"
	"github.com/concordat/concord/internal/adapter/otel"
	"github.com/concordat/concord/internal/adapter/postgres"
	_ "github.com/concordat/concord/internal/adapter/remoteeval" // register "remote" provider
	"github.com/concordat/concord/internal/adapter/ristretto"
	_ "github.com/concordat/concord/internal/adapter/slack" // register "slack" notifier
	_ "github.com/concordat/concord/internal/adapter/staticeval" // register "static" provider
	"github.com/concordat/concord/internal/adapter/ws"
	"github.com/concordat/concord/internal/config"
	"github.com/concordat/concord/internal/logger"
	"github.com/concordat/concord/internal/port/evaluator"
	"github.com/concordat/concord/internal/port/notifier"
	"github.com/concordat/concord/internal/resilience"
	"github.com/concordat/concord/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"evaluator", cfg.Evaluator.Provider,
		"default_pattern", cfg.Orchestrator.DefaultPattern,
	)

	ctx := context.Background()

	shutdownTracer := otel.InitTracer(cfg.Logging.Service)
	defer func() { _ = shutdownTracer(ctx) }()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := ccnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	snapshotCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer snapshotCache.Close()

	provider, err := evaluator.New(cfg.Evaluator.Provider, cfg.Evaluator.Config)
	if err != nil {
		return fmt.Errorf("evaluator: %w", err)
	}
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown)

	var notifiers []notifier.Notifier
	if cfg.Notify.Slack.WebhookURL != "" {
		n, err := notifier.New("slack", map[string]string{"webhook_url": cfg.Notify.Slack.WebhookURL})
		if err != nil {
			return fmt.Errorf("slack notifier: %w", err)
		}
		notifiers = append(notifiers, n)
	}

	// --- Services ---

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)

	notifySvc := service.NewNotificationService(notifiers, cfg.Notify.EnabledEvents)
	ledgerSvc := service.NewLedgerService(ledgerStore, cfg.Ledger)
	registrySvc := service.NewRegistryService(store)
	decisionSvc := service.NewDecisionService(store, ledgerSvc, snapshotCache, hub, queue, notifySvc, metrics, cfg.Cache.SnapshotTTL)
	coordinator := service.NewCoordinator(store, ledgerSvc, decisionSvc, provider, breaker, hub, queue, metrics, cfg.Orchestrator)
	proposalSvc := service.NewProposalService(store, decisionSvc, coordinator, metrics)

	// --- HTTP ---

	handlers := cchttp.NewHandlers(registrySvc, proposalSvc, decisionSvc, ledgerSvc)

	r := chi.NewRouter()
	r.Use(cchttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cchttp.RequestID)
	r.Use(cchttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	cchttp.MountRoutes(r, handlers, hub.HandleWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
