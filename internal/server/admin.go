package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pre-allocated health response bodies.
var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain"}
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Admin is the operational side server: Prometheus scrape endpoint and
// health probes. It lives on its own port so operational traffic never
// competes with the main accept loop.
type Admin struct {
	addr  string
	reg   *prometheus.Registry
	ready ReadyChecker // nil = always ready
}

// NewAdmin returns an Admin server for addr.
func NewAdmin(addr string, reg *prometheus.Registry, ready ReadyChecker) *Admin {
	return &Admin{addr: addr, reg: reg, ready: ready}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *Admin) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Get("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)

	srv := &http.Server{
		Addr:              a.addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", a.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin server: %w", err)
	}
}

func (a *Admin) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

func (a *Admin) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		if err := a.ready(r.Context()); err != nil {
			w.Header()["Content-Type"] = plainCT
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write(notReadyBody)
			return
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}
