package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	budget "github.com/apetbrz/budget-app-project/internal"
	"github.com/apetbrz/budget-app-project/internal/metrics"
	"github.com/apetbrz/budget-app-project/internal/storage"
	"github.com/apetbrz/budget-app-project/internal/telemetry"
	"github.com/apetbrz/budget-app-project/internal/wire"
)

// userChannelSize bounds a per-user inbox. A single client clicking through
// the app never gets close; the bound only guards against a runaway sender.
const userChannelSize = 64

type msgKind uint8

const (
	msgData msgKind = iota
	msgCommand
	msgShutdown
	msgTimeoutCheck
	msgCheck
)

// userMessage is one item on a per-user actor's inbox.
type userMessage struct {
	kind msgKind
	body []byte
	env  *wire.Envelope // nil for lifecycle messages
}

// userActor owns one user's Budget. It processes its inbox serially, which
// is what makes per-token FIFO hold: this channel is the only path to the
// state.
type userActor struct {
	userID    string
	ch        chan userMessage
	done      chan struct{} // closed when the loop exits; the manager probes it
	store     storage.Repository
	collector *metrics.Collector
	tm        *telemetry.Metrics
	timeout   time.Duration

	b            *budget.Budget
	lastActivity time.Time
}

func newUserActor(userID string, store storage.Repository, collector *metrics.Collector, tm *telemetry.Metrics, timeout time.Duration) *userActor {
	return &userActor{
		userID:    userID,
		ch:        make(chan userMessage, userChannelSize),
		done:      make(chan struct{}),
		store:     store,
		collector: collector,
		tm:        tm,
		timeout:   timeout,
	}
}

// run is the actor loop. Closing done is the exit signal the manager's
// sweep relies on, so it must happen on every return path.
func (a *userActor) run(ctx context.Context) {
	defer close(a.done)

	if err := a.load(ctx); err != nil {
		slog.Error("user actor failed to load state", "user", a.userID, "error", err)
		a.drainPending()
		return
	}
	defer a.persist()

	a.lastActivity = time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.ch:
			if !a.handle(msg) {
				return
			}
		}
	}
}

// drainPending answers anything already queued so no connection is dropped
// silently when the actor dies before its first message.
func (a *userActor) drainPending() {
	for {
		select {
		case msg := <-a.ch:
			if msg.env != nil {
				_ = msg.env.ReplyEmpty(http.StatusInternalServerError)
			}
		default:
			return
		}
	}
}

// load fetches and deserializes the stored Budget. A corrupt row is fatal
// for the actor; holding a session open over garbage state helps nobody.
func (a *userActor) load(ctx context.Context) error {
	data, err := a.store.LoadBudget(ctx, a.userID)
	if err != nil {
		return err
	}
	var b budget.Budget
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return err
	}
	b.Normalize()
	a.b = &b
	return nil
}

// handle processes one message; returning false exits the loop.
func (a *userActor) handle(msg userMessage) bool {
	switch msg.kind {
	case msgData:
		a.collector.Arrive("user", msg.env.ID)
		a.touch()
		a.replyBudget(msg.env)
		a.collector.Leave("user", msg.env.ID)

	case msgCommand:
		a.collector.Arrive("user", msg.env.ID)
		a.touch()
		a.command(msg.env, msg.body)
		a.collector.Leave("user", msg.env.ID)

	case msgShutdown:
		return false

	case msgTimeoutCheck:
		if time.Since(a.lastActivity) > a.timeout {
			slog.Info("user actor timed out", "user", a.userID)
			return false
		}

	case msgCheck:
		// liveness probe only
	}
	return true
}

func (a *userActor) touch() { a.lastActivity = time.Now() }

func (a *userActor) command(env *wire.Envelope, body []byte) {
	cmd, err := budget.DecodeCommand(body)
	if err == nil {
		err = a.b.Apply(cmd)
	}
	if err != nil {
		var ce *budget.CommandError
		if errors.As(err, &ce) {
			_ = env.ReplyError(http.StatusBadRequest, ce.Code)
		} else {
			slog.Error("command failed", "user", a.userID, "error", err)
			_ = env.ReplyEmpty(http.StatusBadRequest)
		}
		return
	}

	a.persist()
	a.replyBudget(env)
}

func (a *userActor) replyBudget(env *wire.Envelope) {
	data, err := json.Marshal(a.b)
	if err != nil {
		slog.Error("budget marshal failed", "user", a.userID, "error", err)
		_ = env.ReplyEmpty(http.StatusInternalServerError)
		return
	}
	_ = env.ReplyJSON(http.StatusOK, data)
}

// persist writes the current Budget back to the store. Uses a fresh context
// so the final save still runs during shutdown.
func (a *userActor) persist() {
	if a.b == nil {
		return
	}
	data, err := json.Marshal(a.b)
	if err != nil {
		slog.Error("budget marshal failed", "user", a.userID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.SaveBudget(ctx, a.userID, string(data)); err != nil {
		slog.Error("budget save failed", "user", a.userID, "error", err)
		return
	}
	if a.tm != nil {
		a.tm.BudgetSaves.Inc()
	}
}
