package hotmod

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/hotmod/monitoring"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// ExtensionBuildPhase carries the build phase on build events.
const ExtensionBuildPhase = "hotmodphase"

// KernelEventData is implemented by kernel event payloads. Subject names the
// module the event is about, or "" when it is not known yet.
type KernelEventData interface {
	Subject() string
}

// Subject implements KernelEventData.
func (d BuildEventData) Subject() string {
	if d.Module == "" || d.Module == monitoring.UnknownModule {
		return ""
	}
	return d.Module
}

// Subject implements KernelEventData.
func (d ModuleEventData) Subject() string { return d.Module }

// NewKernelEvent builds a kernel event with EventSource as its source and
// the payload's module as its subject. data is encoded as JSON.
func NewKernelEvent(eventType string, data KernelEventData) (CloudEvent, error) {
	event := cloudevents.NewEvent(cloudevents.VersionV1)
	event.SetID(newEventID())
	event.SetSource(EventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	if data == nil {
		return event, nil
	}
	if subject := data.Subject(); subject != "" {
		event.SetSubject(subject)
	}
	if b, ok := data.(BuildEventData); ok && b.Phase != "" {
		event.SetExtension(ExtensionBuildPhase, b.Phase)
	}
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return event, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return event, nil
}

// newEventID returns a time-ordered UUIDv7, so event ids sort by emission.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent checks the required CloudEvents attributes of event.
func ValidateCloudEvent(event CloudEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event %q: %w", event.Type(), err)
	}
	return nil
}
