package authflow

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAuthenticated   ActivityEventType = "authflow.user.authenticated"
	ActivityEventSignedOut       ActivityEventType = "authflow.user.signed_out"
	ActivityEventFlowCompleted   ActivityEventType = "authflow.flow.completed"
	ActivityEventOperationFailed ActivityEventType = "authflow.operation.failed"
)

// ActivityEvent captures audit-friendly information about a flow change.
type ActivityEvent struct {
	EventType  ActivityEventType
	Flow       FlowName
	UserID     string
	Username   string
	Step       Step
	Operation  string
	ErrorName  string
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

// MultiActivitySink fans an event out to every sink, returning the first error.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
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

func (r activityRecord) event(now time.Time) ActivityEvent {
	ev := ActivityEvent{
		EventType:  r.eventType,
		Flow:       r.flow,
		Step:       r.step,
		OccurredAt: now,
	}
	if r.user != nil {
		ev.UserID = r.user.UserID
		ev.Username = r.user.Username
	}
	if r.rejected {
		ev.Metadata = map[string]any{"rejected": true}
	}
	return ev
}
