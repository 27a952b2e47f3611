package signup

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSessionStateChanged ActivityEventType = "session.state.changed"
	ActivityEventSignUpSuccess       ActivityEventType = "session.sign_up.success"
	ActivityEventSignUpFailure       ActivityEventType = "session.sign_up.failure"
	ActivityEventLogOut              ActivityEventType = "session.log_out"
	ActivityEventScenarioCompleted   ActivityEventType = "scenario.completed"
	ActivityEventAvailabilityChecked ActivityEventType = "availability.checked"
	ActivityEventAccessRedirected    ActivityEventType = "access.redirected"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	ID         string
	EventType  ActivityEventType
	UserID     string
	FromState  SessionState
	ToState    SessionState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity fills the event ID and timestamp and publishes it. Sink
// failures are logged and never surface to the caller.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Error("failed to record activity", "event", event.EventType, "error", err)
	}
}
