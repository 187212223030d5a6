package hotmod

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Kernel is observable.
var _ Subject = (*Kernel)(nil)

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// observers is the Subject implementation embedded in Kernel.
type observers struct {
	mu     sync.RWMutex
	byID   map[string]*observerRegistration
	logger Logger

	// inFlight counts undelivered notifications. It may rise while wait is
	// blocked, which a sync.WaitGroup does not allow.
	flightMu sync.Mutex
	idle     *sync.Cond
	inFlight int
}

func newObservers(logger Logger) *observers {
	o := &observers{
		byID:   make(map[string]*observerRegistration),
		logger: logger,
	}
	o.idle = sync.NewCond(&o.flightMu)
	return o
}

// RegisterObserver adds an observer to receive kernel events.
func (o *observers) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	o.mu.Lock()
	o.byID[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}
	o.mu.Unlock()

	o.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Unknown observers are ignored.
func (o *observers) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.byID[observer.ObserverID()]; exists {
		delete(o.byID, observer.ObserverID())
		o.logger.Debug("Observer unregistered", "observerID", observer.ObserverID())
	}
	return nil
}

// NotifyObservers validates event and delivers it to interested observers,
// each on its own goroutine.
func (o *observers) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		o.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, registration := range o.byID {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		o.begin()
		go func(registration *observerRegistration) {
			defer o.end()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("Observer panicked", "observerID", registration.observer.ObserverID(), "event", event.Type(), "panic", r)
				}
			}()
			if err := registration.observer.OnEvent(ctx, event); err != nil {
				o.logger.Error("Observer error", "observerID", registration.observer.ObserverID(), "event", event.Type(), "error", err)
			}
		}(registration)
	}
	return nil
}

// GetObservers returns information about currently registered observers.
func (o *observers) GetObservers() []ObserverInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	info := make([]ObserverInfo, 0, len(o.byID))
	for _, registration := range o.byID {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		info = append(info, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return info
}

// emit builds a kernel CloudEvent and notifies observers. Events are
// detached from the caller's context so a finished request does not cancel
// delivery.
func (o *observers) emit(eventType string, data KernelEventData) {
	event, err := NewKernelEvent(eventType, data)
	if err != nil {
		o.logger.Error("Failed to build kernel event", "event", eventType, "error", err)
		return
	}
	if err := o.NotifyObservers(context.Background(), event); err != nil {
		o.logger.Debug("Failed to notify observers", "event", eventType, "error", err)
	}
}

func (o *observers) begin() {
	o.flightMu.Lock()
	o.inFlight++
	o.flightMu.Unlock()
}

func (o *observers) end() {
	o.flightMu.Lock()
	o.inFlight--
	if o.inFlight == 0 {
		o.idle.Broadcast()
	}
	o.flightMu.Unlock()
}

// wait blocks until no notification is in flight. Notifications started
// concurrently with wait are waited for if they begin before it returns.
func (o *observers) wait() {
	o.flightMu.Lock()
	for o.inFlight > 0 {
		o.idle.Wait()
	}
	o.flightMu.Unlock()
}
