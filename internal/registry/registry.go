// Package registry implements the EndpointRegistry described in spec
// §4.D: an immutable-after-startup map from (path, method) to a user
// handler.
package registry

import (
	"fmt"
	"sync"

	"github.com/yourusername/reactord/internal/message"
)

// Handler processes one request and fills in resp. A handler that
// panics is recovered by the Session, which turns it into a 500 —
// Handler itself never returns an error.
type Handler func(req *message.Request, resp *message.Response)

// Registry is a map from the literal identifier string "{path}:{METHOD}"
// to a Handler. Registration happens only during startup via Register;
// once Start is called the registry is read-only and safe for
// unsynchronized concurrent Lookup calls from every worker.
type Registry struct {
	mu      sync.Mutex
	started bool
	routes  map[string]Handler
}

// New returns an empty, still-mutable Registry.
func New() *Registry {
	return &Registry{routes: make(map[string]Handler)}
}

func key(path string, method message.Method) string {
	return fmt.Sprintf("%s:%s", path, method.String())
}

// Register adds a (path, method) -> handler entry. It returns a
// DuplicateRouteError if the identifier was already registered, or a
// RegistryClosedError if called after Start.
func (r *Registry) Register(path string, method message.Method, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return &RegistryClosedError{Path: path, Method: method}
	}

	id := key(path, method)
	if _, exists := r.routes[id]; exists {
		return &DuplicateRouteError{Path: path, Method: method}
	}
	r.routes[id] = h
	return nil
}

// Start freezes the registry. Every worker calls Lookup after this
// point with no further synchronization: the underlying map is never
// written to again, so concurrent reads are race-free.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
}

// Lookup returns the handler registered for (path, method), or
// (nil, false) if none matches. Safe to call concurrently from every
// worker once Start has been called; Lookup does not itself take the
// mutex on the hot path once started, matching the registry's
// read-only-after-start contract.
func (r *Registry) Lookup(path string, method message.Method) (Handler, bool) {
	h, ok := r.routes[key(path, method)]
	return h, ok
}

// DuplicateRouteError reports a Register collision.
type DuplicateRouteError struct {
	Path   string
	Method message.Method
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("registry: duplicate route %s:%s", e.Path, e.Method)
}

// RegistryClosedError reports a Register call after Start.
type RegistryClosedError struct {
	Path   string
	Method message.Method
}

func (e *RegistryClosedError) Error() string {
	return fmt.Sprintf("registry: cannot register %s:%s after start", e.Path, e.Method)
}
