package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/apetbrz/budget-app-project/internal/metrics"
	"github.com/apetbrz/budget-app-project/internal/storage/sqlite"
	"github.com/apetbrz/budget-app-project/internal/wire"
)

type recordedSession struct {
	reqID  uint64
	userID string
	token  string
}

type fakeSessions struct {
	created []recordedSession
}

func (f *fakeSessions) Create(reqID uint64, userID, token string) {
	f.created = append(f.created, recordedSession{reqID, userID, token})
}

func newTestActor(t *testing.T) (*Actor, *fakeSessions) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	signer, err := NewSigner("test-secret", TokenTTL)
	if err != nil {
		t.Fatal(err)
	}
	sessions := &fakeSessions{}
	return New(store, signer, sessions, metrics.NewCollector(), nil), sessions
}

// exchange runs one message through the actor and returns the response.
func exchange(t *testing.T, a *Actor, op Op, body string) (*http.Response, string) {
	t.Helper()
	client, server := net.Pipe()

	type result struct {
		resp *http.Response
		body string
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := http.ReadResponse(bufio.NewReader(client), nil)
		if err != nil {
			ch <- result{}
			return
		}
		b, _ := io.ReadAll(resp.Body)
		ch <- result{resp, string(b)}
	}()

	a.handle(context.Background(), Message{
		Op:   op,
		Body: []byte(body),
		Env:  wire.NewEnvelope(1, server, nil),
	})

	r := <-ch
	if r.resp == nil {
		t.Fatal("no response written")
	}
	return r.resp, r.body
}

func token(t *testing.T, body string) string {
	t.Helper()
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("bad token payload %q: %v", body, err)
	}
	if payload.Token == "" {
		t.Fatal("empty token")
	}
	return payload.Token
}

func TestRegisterCreatesSession(t *testing.T) {
	t.Parallel()
	a, sessions := newTestActor(t)

	resp, body := exchange(t, a, OpRegister, `{"username":"alice","password":"pw"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %q", resp.StatusCode, body)
	}
	if loc := resp.Header.Get("Location"); loc != "/home" {
		t.Errorf("Location = %q", loc)
	}
	tok := token(t, body)

	if len(sessions.created) != 1 {
		t.Fatalf("session notifications = %d, want 1", len(sessions.created))
	}
	if sessions.created[0].token != tok {
		t.Error("notified token differs from replied token")
	}

	claims, err := a.signer.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Username != "alice" {
		t.Errorf("claims.Username = %q", claims.Username)
	}
	if claims.Subject != sessions.created[0].userID {
		t.Error("token subject differs from notified user id")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()
	a, sessions := newTestActor(t)

	exchange(t, a, OpRegister, `{"username":"bob","password":"pw"}`)
	resp, body := exchange(t, a, OpRegister, `{"username":"bob","password":"other"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body != "Account already exists!" {
		t.Errorf("body = %q", body)
	}
	if len(sessions.created) != 1 {
		t.Errorf("duplicate registration created a session")
	}
}

func TestRegisterMalformed(t *testing.T) {
	t.Parallel()
	a, _ := newTestActor(t)

	for _, body := range []string{
		`not json`,
		`{"username":"","password":"pw"}`,
		`{"username":"a","password":""}`,
		`{}`,
	} {
		resp, _ := exchange(t, a, OpRegister, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()
	a, sessions := newTestActor(t)

	exchange(t, a, OpRegister, `{"username":"carol","password":"secret"}`)
	resp, body := exchange(t, a, OpLogin, `{"username":"carol","password":"secret"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %q", resp.StatusCode, body)
	}
	tok := token(t, body)

	if len(sessions.created) != 2 {
		t.Fatalf("session notifications = %d, want 2", len(sessions.created))
	}
	// Login and register mint distinct tokens for the same account.
	if sessions.created[0].userID != sessions.created[1].userID {
		t.Error("login resolved a different user id")
	}
	if sessions.created[0].token == tok {
		t.Error("login reused the registration token")
	}
}

func TestLoginBadCredentials(t *testing.T) {
	t.Parallel()
	a, sessions := newTestActor(t)

	exchange(t, a, OpRegister, `{"username":"dave","password":"right"}`)

	for _, body := range []string{
		`{"username":"dave","password":"wrong"}`,
		`{"username":"nobody","password":"right"}`,
	} {
		resp, _ := exchange(t, a, OpLogin, body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("body %q: status = %d, want 401", body, resp.StatusCode)
		}
	}
	if len(sessions.created) != 1 {
		t.Errorf("failed logins created sessions")
	}
}
