// Package hotmod provides Observer pattern interfaces for kernel events.
// These interfaces use the CloudEvents specification for a standardized
// event format and interoperability with external systems.
package hotmod

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// kernel events. Observers should handle events quickly; each notification
// runs on its own goroutine.
type Observer interface {
	// OnEvent is called when an event occurs that the observer is interested in.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject defines the interface for objects that can be observed.
type Subject interface {
	// RegisterObserver adds an observer to receive notifications.
	// If eventTypes is empty, the observer receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. It is idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all interested observers without
	// blocking on them.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about currently registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventType constants for kernel events, in reverse domain notation.
const (
	// Build events
	EventTypeBuildStarted   = "com.hotmod.build.started"
	EventTypeBuildCompleted = "com.hotmod.build.completed"
	EventTypeBuildFailed    = "com.hotmod.build.failed"

	// Module lifecycle events
	EventTypeModuleLoaded         = "com.hotmod.module.loaded"
	EventTypeModuleUnloaded       = "com.hotmod.module.unloaded"
	EventTypeModuleDisposeFailed  = "com.hotmod.module.dispose_failed"
	EventTypeModuleTeardownFailed = "com.hotmod.module.teardown_failed"
)

// EventSource is the CloudEvents source attribute of kernel events.
const EventSource = "hotmod.kernel"

// BuildEventData is the payload of build events.
type BuildEventData struct {
	BuildID  string        `json:"buildId"`
	Module   string        `json:"module"`
	Path     string        `json:"path"`
	Phase    string        `json:"phase"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// ModuleEventData is the payload of module lifecycle events.
type ModuleEventData struct {
	Module  string   `json:"module"`
	Version string   `json:"version,omitempty"`
	Path    string   `json:"path,omitempty"`
	Routes  []string `json:"routes,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
