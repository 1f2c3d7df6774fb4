package router

import "testing"

// buildTestRouter mirrors the production route layout.
func buildTestRouter() *Router {
	get := NewTree()
	get.AddAndSelectChild("/").
		AddChild("/", Static(nil)).
		AddChild("home", Static(nil)).
		AddChild("file", Static(nil)).
		AddChild("favicon.ico", Static(nil)).
		AddChild("user", Action{Kind: KindUserData}).
		AddChild("probe_telemetry", Action{Kind: KindTelemetry})

	post := NewTree()
	post.AddAndSelectChild("/").
		AddAndSelectChild("users").
		AddChild("register", Action{Kind: KindRegister}).
		AddChild("login", Action{Kind: KindLogin}).
		AddChild("logout", Action{Kind: KindLogout}).
		AddChild("user", Action{Kind: KindUserCommand})

	return New(get, post)
}

func TestRoute(t *testing.T) {
	t.Parallel()
	r := buildTestRouter()

	tests := []struct {
		method string
		path   string
		want   Kind
	}{
		{"GET", "/", KindStatic},
		{"GET", "/home", KindStatic},
		{"GET", "/file/styles.css", KindStatic},
		{"GET", "/favicon.ico", KindStatic},
		{"GET", "/user", KindUserData},
		{"GET", "/probe_telemetry", KindTelemetry},
		{"POST", "/users/register", KindRegister},
		{"POST", "/users/login", KindLogin},
		{"POST", "/users/logout", KindLogout},
		{"POST", "/users/user", KindUserCommand},
		{"GET", "/nope", KindNotFound},
		{"GET", "/users/register", KindNotFound},
		{"POST", "/user", KindNotFound},
		{"POST", "/users", KindNotFound},
		{"DELETE", "/user", KindMethodNotAllowed},
		{"PUT", "/", KindMethodNotAllowed},
		{"get", "/home", KindStatic}, // method match is case-insensitive
	}
	for _, tt := range tests {
		action, _ := r.Route(tt.method, tt.path)
		if action.Kind != tt.want {
			t.Errorf("Route(%s %s) = %v, want %v", tt.method, tt.path, action.Kind, tt.want)
		}
	}
}

// Identical inputs must yield identical outputs: the tree is immutable after
// construction.
func TestRouteDeterministic(t *testing.T) {
	t.Parallel()
	r := buildTestRouter()
	for range 3 {
		action, _ := r.Route("POST", "/users/login")
		if action.Kind != KindLogin {
			t.Fatalf("lookup drifted: %v", action.Kind)
		}
	}
}

func TestRouteRestSegments(t *testing.T) {
	t.Parallel()
	r := buildTestRouter()
	_, it := r.Route("GET", "/file/css/site.css")
	if rest := it.Rest(); rest != "css/site.css" {
		t.Errorf("Rest() = %q, want %q", rest, "css/site.css")
	}
}

func TestPathIter(t *testing.T) {
	t.Parallel()
	it := NewPathIter("/users/register")
	var got []string
	for {
		seg, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, seg)
	}
	want := []string{"/", "users", "register"}
	if len(got) != len(want) {
		t.Fatalf("segments = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("segments = %v, want %v", got, want)
		}
	}

	root := NewPathIter("/")
	if seg, ok := root.Next(); !ok || seg != "/" {
		t.Errorf("first segment of / = %q,%v", seg, ok)
	}
	if _, ok := root.Next(); ok {
		t.Error("iterator over / must be exhausted after one segment")
	}
}
