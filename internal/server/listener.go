// Package server implements the accept loop and dispatcher: one goroutine
// accepts connections serially, reads one bounded request, consults the
// route tree, and either answers inline or moves the connection to the
// owning actor. After a hand-off the dispatcher never touches the
// connection again.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apetbrz/budget-app-project/internal/auth"
	"github.com/apetbrz/budget-app-project/internal/metrics"
	"github.com/apetbrz/budget-app-project/internal/router"
	"github.com/apetbrz/budget-app-project/internal/session"
	"github.com/apetbrz/budget-app-project/internal/staticfiles"
	"github.com/apetbrz/budget-app-project/internal/telemetry"
	"github.com/apetbrz/budget-app-project/internal/wire"
)

const source = "listener"

// Deps holds the actors and services the dispatcher routes into.
type Deps struct {
	Auth      *auth.Actor
	Sessions  *session.Manager
	Collector *metrics.Collector
	Files     *staticfiles.Service
	Router    *router.Router
	Metrics   *telemetry.Metrics
	Tracer    trace.Tracer // nil = no tracing
}

// Server owns the TCP listener.
type Server struct {
	addr string
	deps Deps
}

// New returns a Server that will listen on addr.
func New(addr string, deps Deps) *Server {
	return &Server{addr: addr, deps: deps}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled. Accepting is
// serial: the dispatcher finishes reading and routing one request before
// accepting the next. Per-connection work beyond the hand-off happens in
// the actors.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.dispatch(ctx, conn)
	}
}

// dispatch reads one request off conn and routes it. On return the
// connection belongs to whoever replied or received it.
func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	id := s.deps.Collector.NextID()
	env := wire.NewEnvelope(id, conn, s.deps.Collector.StreamClose)

	s.deps.Collector.Arrive(source, id)
	defer s.deps.Collector.Leave(source, id)

	start := time.Now()
	req, body, err := wire.ReadRequest(conn)
	if err != nil {
		if errors.Is(err, wire.ErrRequestTooLarge) {
			s.deps.Metrics.RequestsTotal.WithLabelValues("too_large").Inc()
			_ = env.ReplyEmpty(http.StatusRequestEntityTooLarge)
			return
		}
		slog.Warn("unreadable request", "id", id, "error", err)
		s.deps.Metrics.RequestsTotal.WithLabelValues("unreadable").Inc()
		_ = env.ReplyEmpty(http.StatusBadRequest)
		return
	}

	if s.deps.Tracer != nil {
		var span trace.Span
		env.Ctx, span = s.deps.Tracer.Start(ctx, "dispatch",
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.path", req.URL.Path),
				attribute.Int64("request.id", int64(id)),
			))
		defer span.End()
	}

	action, it := s.deps.Router.Route(req.Method, req.URL.Path)
	label := actionLabel(action.Kind)
	s.deps.Metrics.RequestsTotal.WithLabelValues(label).Inc()
	defer func() {
		s.deps.Metrics.DispatchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	switch action.Kind {
	case router.KindStatic:
		status, contentType, page := action.Handler(&it)
		_ = env.Reply(status, contentType, page)

	case router.KindRegister, router.KindLogin:
		if len(body) == 0 || !gjson.ValidBytes(body) {
			_ = env.ReplyError(http.StatusBadRequest, "malformed_json")
			return
		}
		op := auth.OpRegister
		if action.Kind == router.KindLogin {
			op = auth.OpLogin
		}
		s.deps.Auth.Submit(auth.Message{Op: op, Body: body, Env: env})

	case router.KindLogout:
		token, ok := bearer(req)
		if !ok {
			_ = env.ReplyEmpty(http.StatusUnauthorized)
			return
		}
		s.deps.Sessions.Logout(token, env)

	case router.KindUserData:
		token, ok := bearer(req)
		if !ok {
			_ = env.ReplyEmpty(http.StatusUnauthorized)
			return
		}
		s.deps.Sessions.Data(token, env)

	case router.KindUserCommand:
		token, ok := bearer(req)
		if !ok {
			_ = env.ReplyEmpty(http.StatusUnauthorized)
			return
		}
		if len(body) == 0 || !gjson.ValidBytes(body) {
			_ = env.ReplyError(http.StatusBadRequest, "malformed_json")
			return
		}
		s.deps.Sessions.Command(token, body, env)

	case router.KindTelemetry:
		s.deps.Collector.Query(env)

	case router.KindNotFound:
		_ = env.Reply(http.StatusNotFound, "text/html; charset=utf-8", s.deps.Files.NotFoundPage())

	case router.KindBadRequest:
		_ = env.Reply(http.StatusBadRequest, "text/html; charset=utf-8", s.deps.Files.BadRequestPage())

	case router.KindMethodNotAllowed:
		_ = env.ReplyEmpty(http.StatusMethodNotAllowed)

	default:
		slog.Error("unhandled route action", "kind", action.Kind, "path", req.URL.Path)
		_ = env.ReplyEmpty(http.StatusInternalServerError)
	}
}

// bearer extracts the raw session token. The client sends the token bare,
// with no scheme prefix.
func bearer(req *http.Request) (string, bool) {
	token := req.Header.Get("Authorization")
	return token, token != ""
}

func actionLabel(kind router.Kind) string {
	switch kind {
	case router.KindStatic:
		return "static"
	case router.KindRegister:
		return "register"
	case router.KindLogin:
		return "login"
	case router.KindLogout:
		return "logout"
	case router.KindUserCommand:
		return "command"
	case router.KindUserData:
		return "data"
	case router.KindTelemetry:
		return "telemetry"
	case router.KindNotFound:
		return "not_found"
	case router.KindBadRequest:
		return "bad_request"
	case router.KindMethodNotAllowed:
		return "method_not_allowed"
	}
	return "unknown"
}
