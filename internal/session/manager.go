// Package session implements the user-session manager and the per-user
// actors it spawns. The manager owns the only mapping from session token to
// a user actor's inbox; everything that reaches a user's Budget goes
// through here, which is what gives each token its FIFO guarantee.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/apetbrz/budget-app-project/internal/metrics"
	"github.com/apetbrz/budget-app-project/internal/staticfiles"
	"github.com/apetbrz/budget-app-project/internal/storage"
	"github.com/apetbrz/budget-app-project/internal/telemetry"
	"github.com/apetbrz/budget-app-project/internal/wire"
)

const (
	channelSize = 256
	source      = "usermanager"

	// sweepGrace is how long the sweep waits between telling actors to
	// evaluate their inactivity and probing which of them exited.
	sweepGrace = 50 * time.Millisecond
)

type managerKind uint8

const (
	kindCreation managerKind = iota
	kindCommand
	kindData
	kindLogout
	kindSweep
)

// Message is one item on the manager's inbox.
type Message struct {
	kind   managerKind
	reqID  uint64
	userID string
	token  string
	body   []byte
	env    *wire.Envelope
}

// handle pairs a user actor's inbox with its exit signal. A receiver that
// has returned cannot be detected from the channel alone; the probe selects
// on done instead.
type handle struct {
	ch   chan userMessage
	done chan struct{}
}

// send moves msg to the actor unless it has exited.
func (h *handle) send(msg userMessage) bool {
	select {
	case <-h.done:
		return false
	case h.ch <- msg:
		return true
	}
}

// trySend is send without blocking on a full inbox. The sweep uses it so
// one wedged actor cannot stall the whole sweep.
func (h *handle) trySend(msg userMessage) bool {
	select {
	case <-h.done:
		return false
	case h.ch <- msg:
		return true
	default:
		return true // alive but busy
	}
}

// Manager is the user-session actor.
type Manager struct {
	ch        chan Message
	handles   map[string]*handle
	store     storage.Repository
	collector *metrics.Collector
	files     *staticfiles.Service
	tm        *telemetry.Metrics // nil = no counters

	userTimeout time.Duration
	sweepEvery  time.Duration

	// count mirrors len(handles) for readers outside the manager loop.
	count atomic.Int64

	// spawnCtx parents every user actor; cancelling it tears all of them
	// down. Set once in Run.
	spawnCtx context.Context
}

// NewManager returns a Manager ready to Run. userTimeout is the inactivity
// threshold for reaping a user actor; sweepEvery is how often to look.
func NewManager(store storage.Repository, collector *metrics.Collector, files *staticfiles.Service, tm *telemetry.Metrics, userTimeout, sweepEvery time.Duration) *Manager {
	return &Manager{
		ch:          make(chan Message, channelSize),
		handles:     make(map[string]*handle),
		store:       store,
		collector:   collector,
		files:       files,
		tm:          tm,
		userTimeout: userTimeout,
		sweepEvery:  sweepEvery,
	}
}

// Create notifies the manager of a fresh session. Called by the auth actor
// after a successful register or login.
func (m *Manager) Create(reqID uint64, userID, token string) {
	m.ch <- Message{kind: kindCreation, reqID: reqID, userID: userID, token: token}
}

// Command routes a budget command to the token's user actor.
func (m *Manager) Command(token string, body []byte, env *wire.Envelope) {
	m.ch <- Message{kind: kindCommand, reqID: env.ID, token: token, body: body, env: env}
}

// Data routes a budget-read request to the token's user actor.
func (m *Manager) Data(token string, env *wire.Envelope) {
	m.ch <- Message{kind: kindData, reqID: env.ID, token: token, env: env}
}

// Logout tears down the token's session.
func (m *Manager) Logout(token string, env *wire.Envelope) {
	m.ch <- Message{kind: kindLogout, reqID: env.ID, token: token, env: env}
}

// Run processes session messages and runs the timeout sweep until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.spawnCtx = ctx
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	slog.Info("session manager started", "user_timeout", m.userTimeout, "sweep_every", m.sweepEvery)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sweep()
		case msg := <-m.ch:
			m.handleMessage(msg)
		}
	}
}

func (m *Manager) handleMessage(msg Message) {
	if msg.kind == kindSweep {
		m.sweep()
		return
	}

	m.collector.Arrive(source, msg.reqID)
	defer m.collector.Leave(source, msg.reqID)

	switch msg.kind {
	case kindCreation:
		m.spawn(msg.userID, msg.token)

	case kindCommand:
		m.forward(msg.token, userMessage{kind: msgCommand, body: msg.body, env: msg.env})

	case kindData:
		m.forward(msg.token, userMessage{kind: msgData, env: msg.env})

	case kindLogout:
		m.logout(msg.token, msg.env)
	}
}

// spawn starts a user actor and records its inbox under token. A token that
// is already mapped (a client logging in twice with one token cannot happen;
// this guards a duplicated Creation) keeps its existing actor.
func (m *Manager) spawn(userID, token string) {
	if _, ok := m.handles[token]; ok {
		slog.Warn("session already exists for token", "user", userID)
		return
	}
	actor := newUserActor(userID, m.store, m.collector, m.tm, m.userTimeout)
	m.handles[token] = &handle{ch: actor.ch, done: actor.done}
	m.count.Store(int64(len(m.handles)))
	if m.tm != nil {
		m.tm.SessionsCreated.Inc()
	}
	go actor.run(m.spawnCtx)
	slog.Debug("user actor spawned", "user", userID, "sessions", len(m.handles))
}

// forward hands the message to the token's actor. Unknown tokens and dead
// actors both answer 401; the client's session is gone either way.
func (m *Manager) forward(token string, msg userMessage) {
	h, ok := m.handles[token]
	if !ok {
		_ = msg.env.ReplyEmpty(http.StatusUnauthorized)
		return
	}
	if !h.send(msg) {
		delete(m.handles, token)
		m.count.Store(int64(len(m.handles)))
		_ = msg.env.ReplyEmpty(http.StatusUnauthorized)
	}
}

func (m *Manager) logout(token string, env *wire.Envelope) {
	h, ok := m.handles[token]
	if !ok {
		_ = env.Reply(http.StatusNotFound, "text/html; charset=utf-8", m.files.NotFoundPage())
		return
	}
	h.send(userMessage{kind: msgShutdown})
	delete(m.handles, token)
	m.count.Store(int64(len(m.handles)))
	_ = env.ReplyEmpty(http.StatusOK)
}

// sweep is the two-phase reap: tell every actor to evaluate its own
// inactivity, give the timed-out ones a moment to exit, then probe each
// channel and drop the ones whose receiver is gone.
func (m *Manager) sweep() {
	if len(m.handles) == 0 {
		return
	}
	for _, h := range m.handles {
		h.trySend(userMessage{kind: msgTimeoutCheck})
	}

	time.Sleep(sweepGrace)

	reaped := 0
	for token, h := range m.handles {
		if !h.trySend(userMessage{kind: msgCheck}) {
			delete(m.handles, token)
			reaped++
		}
	}
	m.count.Store(int64(len(m.handles)))
	if reaped > 0 {
		if m.tm != nil {
			m.tm.SessionsReaped.Add(float64(reaped))
		}
		slog.Info("reaped inactive sessions", "count", reaped, "remaining", len(m.handles))
	}
}

// Sessions reports the number of live token mappings. Safe to call from
// any goroutine; telemetry reads it for the active-sessions gauge.
func (m *Manager) Sessions() int {
	return int(m.count.Load())
}
