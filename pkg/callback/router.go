// Package callback routes external OAuth redirect URIs back to whichever
// flow is currently awaiting one.
//
// The router is an explicit registry owned by the application's composition
// root, not a package-level singleton: whoever receives the OS-delivered
// redirect (URL scheme handler, deep-link listener) holds a reference and
// calls Route.
package callback

import "sync"

// Handler consumes a delivered callback URL. It reports whether the URL was
// accepted by a pending flow.
type Handler interface {
	HandleCallback(rawURL string) bool
}

// Router holds at most one registered handler. Registration is
// last-wins: a second Register silently supersedes the first, which will
// then receive no callbacks. Safe for concurrent use.
type Router struct {
	mu      sync.Mutex
	current Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Register makes h the callback target, replacing any prior registration.
func (r *Router) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = h
}

// Unregister clears the registration, but only if h is still the registered
// handler. A handler that was superseded by a later Register is a no-op
// here, so it cannot evict its successor.
func (r *Router) Unregister(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == h {
		r.current = nil
	}
}

// Route forwards rawURL to the registered handler. It returns false when
// nothing is registered or the handler did not consume the URL.
func (r *Router) Route(rawURL string) bool {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	if current == nil {
		return false
	}
	return current.HandleCallback(rawURL)
}
