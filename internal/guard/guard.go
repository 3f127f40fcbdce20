// Package guard gates route navigation against the current session. The
// checks are synchronous reads of already-decoded token claims and are a
// UX convenience only; the server stays the authority on every request.
package guard

import (
	"strings"
	"sync"

	"mediport.org/internal/rbac"
	"mediport.org/internal/session"
)

// Route declares one protected route. An empty Roles list means any
// authenticated user may enter.
type Route struct {
	Path  string
	Roles []string
}

// Decision is the outcome of a guard check: either the navigation
// proceeds, or the shell must redirect.
type Decision struct {
	RedirectTo string
}

// Allowed reports whether navigation may proceed.
func (d Decision) Allowed() bool { return d.RedirectTo == "" }

var allow = Decision{}

func redirect(path string) Decision { return Decision{RedirectTo: path} }

// Guard evaluates navigation against the declarative route table.
type Guard struct {
	session *session.Context

	mu     sync.RWMutex
	routes map[string]Route
}

// New builds a guard over the given route table.
func New(sess *session.Context, routes []Route) *Guard {
	g := &Guard{session: sess, routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		g.routes[normalizePath(r.Path)] = r
	}
	return g
}

// Register adds or replaces a route declaration. Adding a route never
// touches guard logic; the table is the only thing that grows.
func (g *Guard) Register(r Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[normalizePath(r.Path)] = r
}

// CheckLogin keeps authenticated users away from the login screen.
func (g *Guard) CheckLogin() Decision {
	if g.session.IsAuthenticated() {
		return redirect(g.session.ResolveLandingPath())
	}
	return allow
}

// Check gates navigation into path. Unauthenticated sessions go to the
// login screen; authenticated sessions whose roles miss the route's
// declared set go to the 403 page.
func (g *Guard) Check(path string) Decision {
	if !g.session.IsAuthenticated() {
		return redirect(session.LoginPath)
	}

	g.mu.RLock()
	route, declared := g.routes[normalizePath(path)]
	g.mu.RUnlock()

	if !declared || len(route.Roles) == 0 {
		return allow
	}
	if rbac.HasAny(g.session.Roles(), route.Roles) {
		return allow
	}
	return redirect(session.ForbiddenPath)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
