package server

import (
	"net/http"
	"os"

	"github.com/apetbrz/budget-app-project/internal/router"
	"github.com/apetbrz/budget-app-project/internal/staticfiles"
)

const helloWorldPage = `<!DOCTYPE html>
<html>
<head><title>hello</title></head>
<body><h1>Hello, world!</h1></body>
</html>
`

// NewRouter builds the immutable route trees. Called once at startup; the
// result is shared read-only by every dispatch.
func NewRouter(files *staticfiles.Service) *router.Router {
	get := router.NewTree()
	get.AddAndSelectChild("/").
		AddChild("/", router.Static(file(files, "index.html"))).
		AddChild("home", router.Static(file(files, "home.html"))).
		AddChild("hello_world", router.Static(inline(helloWorldPage))).
		AddChild("favicon.ico", router.Static(file(files, "favicon.ico"))).
		AddChild("file", router.Static(anyFile(files))).
		AddChild("user", router.Action{Kind: router.KindUserData}).
		AddChild("probe_telemetry", router.Action{Kind: router.KindTelemetry})

	post := router.NewTree()
	post.AddAndSelectChild("/").
		AddAndSelectChild("users").
		AddChild("register", router.Action{Kind: router.KindRegister}).
		AddChild("login", router.Action{Kind: router.KindLogin}).
		AddChild("logout", router.Action{Kind: router.KindLogout}).
		AddChild("user", router.Action{Kind: router.KindUserCommand})

	return router.New(get, post)
}

// inline serves a fixed HTML page.
func inline(page string) router.Handler {
	return func(*router.PathIter) (int, string, []byte) {
		return http.StatusOK, "text/html; charset=utf-8", []byte(page)
	}
}

// file serves one named file from the static directory.
func file(files *staticfiles.Service, name string) router.Handler {
	return func(*router.PathIter) (int, string, []byte) {
		return serve(files, name)
	}
}

// anyFile serves whatever path remains after /file/.
func anyFile(files *staticfiles.Service) router.Handler {
	return func(rest *router.PathIter) (int, string, []byte) {
		return serve(files, rest.Rest())
	}
}

func serve(files *staticfiles.Service, name string) (int, string, []byte) {
	data, contentType, err := files.Get(name)
	switch {
	case err == nil:
		return http.StatusOK, contentType, data
	case os.IsNotExist(err):
		return http.StatusNotFound, "text/html; charset=utf-8", files.NotFoundPage()
	default:
		// Unknown extension or unreadable file.
		return http.StatusInternalServerError, "", nil
	}
}
