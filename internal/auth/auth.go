package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	budget "github.com/apetbrz/budget-app-project/internal"
	"github.com/apetbrz/budget-app-project/internal/metrics"
	"github.com/apetbrz/budget-app-project/internal/storage"
	"github.com/apetbrz/budget-app-project/internal/telemetry"
	"github.com/apetbrz/budget-app-project/internal/wire"
)

const (
	channelSize = 64
	bcryptCost  = 10
	source      = "auth"
)

// Op selects the credential operation carried by a Message.
type Op uint8

const (
	// OpRegister creates an account and a session.
	OpRegister Op = iota
	// OpLogin checks credentials and creates a session.
	OpLogin
)

// Message is one credential request. The envelope moves with the send; the
// actor owns the connection and writes the only response.
type Message struct {
	Op   Op
	Body []byte
	Env  *wire.Envelope
}

// Sessions receives new-session notifications after a successful register
// or login, so the session manager can spawn the per-user actor.
type Sessions interface {
	Create(reqID uint64, userID, token string)
}

// Actor is the authentication worker. It processes messages serially, so
// the store sees register/login in arrival order.
type Actor struct {
	ch        chan Message
	store     storage.Repository
	signer    *Signer
	sessions  Sessions
	collector *metrics.Collector
	tm        *telemetry.Metrics // nil = no counters
}

// New returns an Actor ready to Run.
func New(store storage.Repository, signer *Signer, sessions Sessions, collector *metrics.Collector, tm *telemetry.Metrics) *Actor {
	return &Actor{
		ch:        make(chan Message, channelSize),
		store:     store,
		signer:    signer,
		sessions:  sessions,
		collector: collector,
		tm:        tm,
	}
}

func (a *Actor) countAttempt(op, outcome string) {
	if a.tm != nil {
		a.tm.AuthAttempts.WithLabelValues(op, outcome).Inc()
	}
}

// Submit moves a message (and its connection) to the actor. It blocks when
// the channel is full; the actor drains it for as long as it runs.
func (a *Actor) Submit(msg Message) {
	a.ch <- msg
}

// Run processes credential requests until ctx is cancelled.
func (a *Actor) Run(ctx context.Context) error {
	slog.Info("auth actor started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-a.ch:
			a.handle(ctx, msg)
		}
	}
}

func (a *Actor) handle(ctx context.Context, msg Message) {
	a.collector.Arrive(source, msg.Env.ID)
	defer a.collector.Leave(source, msg.Env.ID)

	switch msg.Op {
	case OpRegister:
		a.register(ctx, msg.Env, msg.Body)
	case OpLogin:
		a.login(ctx, msg.Env, msg.Body)
	default:
		slog.Error("unknown auth op", "op", msg.Op, "id", msg.Env.ID)
		_ = msg.Env.ReplyEmpty(http.StatusInternalServerError)
	}
}

func decodeCredentials(body []byte) (budget.Credentials, bool) {
	var creds budget.Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return creds, false
	}
	if creds.Username == "" || creds.Password == "" {
		return creds, false
	}
	return creds, true
}

func (a *Actor) register(ctx context.Context, env *wire.Envelope, body []byte) {
	creds, ok := decodeCredentials(body)
	if !ok {
		a.countAttempt("register", "malformed")
		_ = env.ReplyError(http.StatusBadRequest, "malformed_credentials")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcryptCost)
	if err != nil {
		slog.Error("password hash failed", "id", env.ID, "error", err)
		_ = env.ReplyEmpty(http.StatusInternalServerError)
		return
	}

	userID := uuid.New().String()
	initial, err := json.Marshal(budget.New(creds.Username))
	if err != nil {
		slog.Error("initial budget marshal failed", "id", env.ID, "error", err)
		_ = env.ReplyEmpty(http.StatusInternalServerError)
		return
	}

	row := budget.AuthRow{ID: userID, Username: creds.Username, PasswordHash: string(hash)}
	if err := a.store.CreateUser(ctx, row, string(initial)); err != nil {
		if errors.Is(err, budget.ErrAlreadyExists) {
			a.countAttempt("register", "conflict")
			_ = env.Reply(http.StatusConflict, "text/plain", []byte("Account already exists!"))
			return
		}
		slog.Error("create user failed", "id", env.ID, "username", creds.Username, "error", err)
		a.countAttempt("register", "error")
		_ = env.ReplyEmpty(http.StatusBadRequest)
		return
	}

	a.countAttempt("register", "created")
	slog.Info("user registered", "id", env.ID, "username", creds.Username)
	a.openSession(env, userID, creds.Username)
}

func (a *Actor) login(ctx context.Context, env *wire.Envelope, body []byte) {
	creds, ok := decodeCredentials(body)
	if !ok {
		a.countAttempt("login", "malformed")
		_ = env.ReplyError(http.StatusBadRequest, "malformed_credentials")
		return
	}

	row, err := a.store.FetchAuth(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, budget.ErrNotFound) {
			a.countAttempt("login", "unauthorized")
			_ = env.Reply(http.StatusUnauthorized, "text/plain", []byte("Invalid credentials!"))
			return
		}
		slog.Error("fetch auth failed", "id", env.ID, "username", creds.Username, "error", err)
		a.countAttempt("login", "error")
		_ = env.ReplyEmpty(http.StatusBadRequest)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(creds.Password)) != nil {
		a.countAttempt("login", "unauthorized")
		_ = env.Reply(http.StatusUnauthorized, "text/plain", []byte("Invalid credentials!"))
		return
	}

	a.countAttempt("login", "ok")
	slog.Info("user logged in", "id", env.ID, "username", creds.Username)
	a.openSession(env, row.ID, row.Username)
}

// openSession mints the token, tells the session manager to spawn the user
// actor, and writes the 201. The notification goes first so the actor exists
// by the time the client follows the Location redirect.
func (a *Actor) openSession(env *wire.Envelope, userID, username string) {
	token, err := a.signer.Mint(userID, username)
	if err != nil {
		slog.Error("token mint failed", "id", env.ID, "error", err)
		_ = env.ReplyEmpty(http.StatusInternalServerError)
		return
	}

	a.sessions.Create(env.ID, userID, token)

	payload, _ := json.Marshal(map[string]string{"token": token})
	_ = env.ReplyJSON(http.StatusCreated, payload, wire.Header{Key: "Location", Value: "/home"})
}
