// Package router implements the immutable request routing tree. Trees are
// built once at startup with the fluent AddChild/AddAndSelectChild API and
// are thereafter shared read-only; Route never allocates.
package router

import "strings"

// Kind identifies what the dispatcher should do with a routed request.
type Kind uint8

const (
	// KindStatic runs the leaf's handler inline on the dispatcher.
	KindStatic Kind = iota
	// KindRegister and the rest are actor destinations.
	KindRegister
	KindLogin
	KindLogout
	KindUserCommand
	KindUserData
	KindTelemetry
	// Error descriptors.
	KindNotFound
	KindBadRequest
	KindMethodNotAllowed
)

// Handler produces an inline response for a static leaf. rest iterates the
// path segments remaining after the leaf (used by the file endpoint).
type Handler func(rest *PathIter) (status int, contentType string, body []byte)

// Action is the descriptor a route leaf yields.
type Action struct {
	Kind    Kind
	Handler Handler
}

// Static wraps a handler in an inline action.
func Static(h Handler) Action { return Action{Kind: KindStatic, Handler: h} }

// PathIter walks a URL path segment by segment. The leading slash is its own
// first segment ("/"), so a lookup of "/" resolves to the root child named
// "/" and an exhausted iterator matches the same child.
type PathIter struct {
	path string
	pos  int
}

// NewPathIter returns an iterator over path.
func NewPathIter(path string) PathIter {
	return PathIter{path: path}
}

// Next returns the next segment, or false when the path is exhausted.
func (it *PathIter) Next() (string, bool) {
	if it.pos == 0 && strings.HasPrefix(it.path, "/") {
		it.pos = 1
		return "/", true
	}
	for it.pos < len(it.path) && it.path[it.pos] == '/' {
		it.pos++
	}
	if it.pos >= len(it.path) {
		return "", false
	}
	start := it.pos
	for it.pos < len(it.path) && it.path[it.pos] != '/' {
		it.pos++
	}
	return it.path[start:it.pos], true
}

// Rest returns the not-yet-consumed remainder of the path, without leading
// slashes. Used by file handlers to recover the requested name.
func (it *PathIter) Rest() string {
	rest := it.path[min(it.pos, len(it.path)):]
	return strings.TrimLeft(rest, "/")
}

// Node is one level of a routing tree: a branch holds children keyed by path
// segment, a leaf holds an action.
type Node struct {
	children map[string]*Node
	action   *Action
}

// NewTree returns an empty branch node.
func NewTree() *Node {
	return &Node{children: make(map[string]*Node)}
}

// AddChild registers a leaf under segment and returns the current node so
// calls chain.
func (n *Node) AddChild(segment string, action Action) *Node {
	n.children[segment] = &Node{action: &action}
	return n
}

// AddAndSelectChild registers a branch under segment and returns the new
// child so further children can be chained onto it.
func (n *Node) AddAndSelectChild(segment string) *Node {
	child := NewTree()
	n.children[segment] = child
	return child
}

// lookup descends the tree following it. Reaching a leaf stops the walk even
// if segments remain; the remainder stays in it for the handler. An
// exhausted iterator looks for the child named "/".
func (n *Node) lookup(it *PathIter) (Action, bool) {
	cur := n
	for {
		if cur.action != nil {
			return *cur.action, true
		}
		segment, ok := it.Next()
		if !ok {
			segment = "/"
		}
		child := cur.children[segment]
		if child == nil {
			return Action{}, false
		}
		cur = child
	}
}

// Router pairs the per-method trees.
type Router struct {
	get  *Node
	post *Node
}

// New returns a Router over the given trees.
func New(get, post *Node) *Router {
	return &Router{get: get, post: post}
}

// Route is a total function over (method, path): it always yields an action,
// using the error descriptors for unroutable input. The remaining path
// iterator is returned for handlers that consume trailing segments.
func (r *Router) Route(method, path string) (Action, PathIter) {
	var tree *Node
	switch {
	case strings.EqualFold(method, "GET"):
		tree = r.get
	case strings.EqualFold(method, "POST"):
		tree = r.post
	default:
		return Action{Kind: KindMethodNotAllowed}, NewPathIter(path)
	}

	it := NewPathIter(path)
	action, ok := tree.lookup(&it)
	if !ok {
		return Action{Kind: KindNotFound}, it
	}
	return action, it
}
