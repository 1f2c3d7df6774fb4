package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/apetbrz/budget-app-project/internal/auth"
	"github.com/apetbrz/budget-app-project/internal/config"
	"github.com/apetbrz/budget-app-project/internal/metrics"
	"github.com/apetbrz/budget-app-project/internal/server"
	"github.com/apetbrz/budget-app-project/internal/session"
	"github.com/apetbrz/budget-app-project/internal/staticfiles"
	"github.com/apetbrz/budget-app-project/internal/storage/sqlite"
	"github.com/apetbrz/budget-app-project/internal/telemetry"
	"github.com/apetbrz/budget-app-project/internal/worker"
)

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	slog.Info("starting budgetd", "version", version, "addr", cfg.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing is optional; without an endpoint the tracer stays nil and the
	// dispatcher skips span creation.
	if cfg.OTelEndpoint != "" {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.OTelEndpoint, cfg.OTelSampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." && cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	store, err := sqlite.New(cfg.DatabasePath, cfg.AuthDatabaseInit, cfg.UserDatabaseInit)
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := staticfiles.New(cfg.StaticDir, cfg.DoCaching)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	tm := telemetry.NewMetrics(reg)
	files.CountHits(tm.StaticCacheHits)

	collector := metrics.NewCollector()
	sessions := session.NewManager(store, collector, files, tm, cfg.UserTimeout, cfg.SweepInterval)
	telemetry.RegisterSessionsGauge(reg, func() float64 { return float64(sessions.Sessions()) })

	signer, err := auth.NewSigner(cfg.Secret, auth.TokenTTL)
	if err != nil {
		return err
	}
	authActor := auth.New(store, signer, sessions, collector, tm)

	srv := server.New(cfg.Addr(), server.Deps{
		Auth:      authActor,
		Sessions:  sessions,
		Collector: collector,
		Files:     files,
		Router:    server.NewRouter(files),
		Metrics:   tm,
		Tracer:    tracerIfEnabled(cfg.OTelEndpoint),
	})
	admin := server.NewAdmin(cfg.TelemetryAddr, reg, store.Ping)

	// Signal handling: first signal cancels the group, which closes the
	// listener and stops every actor.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	runner := worker.NewRunner(collector, sessions, authActor, admin, srv)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	slog.Info("budgetd stopped")
	return nil
}

func tracerIfEnabled(endpoint string) trace.Tracer {
	if endpoint == "" {
		return nil
	}
	return telemetry.Tracer("budgetd")
}
