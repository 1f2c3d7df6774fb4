package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	a := NewAdmin(":0", prometheus.NewRegistry(), nil)

	w := httptest.NewRecorder()
	a.handleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ready := NewAdmin(":0", prometheus.NewRegistry(), func(context.Context) error { return nil })
	w := httptest.NewRecorder()
	ready.handleReadyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("ready: status = %d", w.Code)
	}

	down := NewAdmin(":0", prometheus.NewRegistry(), func(context.Context) error { return errors.New("db down") })
	w = httptest.NewRecorder()
	down.handleReadyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready: status = %d", w.Code)
	}
}
