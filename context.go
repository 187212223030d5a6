package hotmod

import (
	"context"
	"sync"
)

// RuntimeContext is handed to a module's Register call. It is created fresh
// for every call and records the route identifiers the module installs, so
// route ownership is known without touching any shared adapter state.
// Concurrent loads of different modules each see their own context.
type RuntimeContext struct {
	ctx       context.Context
	http      HTTPAdapter
	container Container
	logger    Logger

	mu       sync.Mutex
	routeIDs []string
}

func newRuntimeContext(ctx context.Context, adapter HTTPAdapter, container Container, logger Logger) *RuntimeContext {
	return &RuntimeContext{
		ctx:       ctx,
		http:      adapter,
		container: container,
		logger:    logger,
	}
}

// RegisterRoute installs a route through the kernel's HTTP adapter and
// records its id as owned by the module being registered. Adapter errors
// are returned unmodified; a route the adapter rejected is not recorded.
func (rc *RuntimeContext) RegisterRoute(def RouteDefinition) error {
	if err := rc.http.RegisterRoute(def); err != nil {
		return err
	}
	rc.mu.Lock()
	rc.routeIDs = append(rc.routeIDs, def.ID)
	rc.mu.Unlock()
	return nil
}

// Context returns the context of the load that triggered registration.
func (rc *RuntimeContext) Context() context.Context {
	return rc.ctx
}

// Container returns the kernel-wide dependency container.
func (rc *RuntimeContext) Container() Container {
	return rc.container
}

// Logger returns the kernel logger.
func (rc *RuntimeContext) Logger() Logger {
	return rc.logger
}

// RouteIDs returns a copy of the route identifiers recorded so far.
func (rc *RuntimeContext) RouteIDs() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]string(nil), rc.routeIDs...)
}
