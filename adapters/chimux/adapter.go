// Package chimux provides a Chi-based HTTP adapter for the hotmod kernel.
//
// Chi routers cannot remove routes once mounted, so the adapter keeps its own
// route table keyed by route id and rebuilds a chi.Mux whenever the table
// changes. The new mux is swapped in atomically: requests already in flight
// finish on the mux they started on, new requests see the updated routes.
//
// Usage:
//
//	adapter := chimux.NewAdapter()
//	kernel, _ := hotmod.NewKernel(adapter)
//	http.ListenAndServe(":8080", adapter)
package chimux

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/GoCodeAlone/hotmod"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Error definitions for the chimux adapter.
var (
	ErrDuplicateRouteID = errors.New("route id already registered")
	ErrRouteConflict    = errors.New("method and path already registered by another route")
	ErrRouteNotFound    = errors.New("route not found")
	ErrInvalidRoute     = errors.New("invalid route definition")
)

// Middleware is an alias for the chi middleware handler function
type Middleware func(http.Handler) http.Handler

// Adapter implements hotmod.HTTPAdapter and http.Handler.
type Adapter struct {
	mu         sync.Mutex
	routes     map[string]entry
	seq        uint64
	middleware []Middleware
	notFound   http.HandlerFunc
	mux        atomic.Pointer[chi.Mux]
}

type entry struct {
	def hotmod.RouteDefinition
	seq uint64
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMiddleware replaces the default middleware stack
// (RequestID, RealIP, Recoverer).
func WithMiddleware(mw ...Middleware) Option {
	return func(a *Adapter) {
		a.middleware = mw
	}
}

// WithNotFound sets the handler for requests matching no route.
func WithNotFound(h http.HandlerFunc) Option {
	return func(a *Adapter) {
		a.notFound = h
	}
}

// NewAdapter creates an adapter with no routes.
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{
		routes: make(map[string]entry),
		middleware: []Middleware{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.mux.Store(a.build())
	return a
}

// RegisterRoute implements hotmod.HTTPAdapter.
func (a *Adapter) RegisterRoute(def hotmod.RouteDefinition) error {
	if def.ID == "" || def.Path == "" || def.Handler == nil || !hotmod.SupportedMethod(def.Method) {
		return fmt.Errorf("%w: id=%q method=%q path=%q", ErrInvalidRoute, def.ID, def.Method, def.Path)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.routes[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRouteID, def.ID)
	}
	for id, e := range a.routes {
		if e.def.Method == def.Method && e.def.Path == def.Path {
			return fmt.Errorf("%w: %s %s (owned by %s)", ErrRouteConflict, def.Method, def.Path, id)
		}
	}
	a.seq++
	a.routes[def.ID] = entry{def: def, seq: a.seq}
	mux, err := a.tryBuild()
	if err != nil {
		delete(a.routes, def.ID)
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidRoute, def.Method, def.Path, err)
	}
	a.mux.Store(mux)
	return nil
}

// UnregisterRoute implements hotmod.HTTPAdapter.
func (a *Adapter) UnregisterRoute(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.routes[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, id)
	}
	delete(a.routes, id)
	a.mux.Store(a.build())
	return nil
}

// Routes returns the live route definitions in registration order.
func (a *Adapter) Routes() []hotmod.RouteDefinition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ordered()
}

// HasRoute reports whether id is live.
func (a *Adapter) HasRoute(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.routes[id]
	return ok
}

// ServeHTTP dispatches to the current route set.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.Load().ServeHTTP(w, r)
}

// ChiRouter returns the router serving the current route set. It is
// replaced on every route change and must not be mutated.
func (a *Adapter) ChiRouter() chi.Router {
	return a.mux.Load()
}

// URLParam returns a path parameter of the route matched for r, so module
// handlers can read "{id}" style parameters without importing chi.
func URLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ordered must be called with a.mu held.
func (a *Adapter) ordered() []hotmod.RouteDefinition {
	entries := make([]entry, 0, len(a.routes))
	for _, e := range a.routes {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	defs := make([]hotmod.RouteDefinition, len(entries))
	for i, e := range entries {
		defs[i] = e.def
	}
	return defs
}

// tryBuild converts chi's registration panics (malformed or conflicting
// patterns) into errors. It must be called with a.mu held.
func (a *Adapter) tryBuild() (mux *chi.Mux, err error) {
	defer func() {
		if r := recover(); r != nil {
			mux, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return a.build(), nil
}

// build must be called with a.mu held.
func (a *Adapter) build() *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range a.middleware {
		r.Use(mw)
	}
	if a.notFound != nil {
		r.NotFound(a.notFound)
	}
	for _, def := range a.ordered() {
		r.Method(def.Method, def.Path, def.Handler)
	}
	return r
}
