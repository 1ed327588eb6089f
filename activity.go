package auth

import (
	"context"
	"time"
)

// ActivityEventType names an audited action. The segment before the first
// dot is the channel: "auth" for session events, "user" for account changes.
type ActivityEventType string

const (
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventLogout          ActivityEventType = "auth.logout"
	ActivityEventUserRegistered  ActivityEventType = "user.registered"
	ActivityEventSessionReissued ActivityEventType = "auth.session.reissued"
	ActivityEventSurveyCompleted ActivityEventType = "user.survey.completed"
	ActivityEventCarePlanCreated ActivityEventType = "user.care_plan.created"
	ActivityEventProfileUpdated  ActivityEventType = "user.profile.updated"
	ActivityEventAccessForbidden ActivityEventType = "auth.access.forbidden"
)

// ActivityEvent describes one audited action. UserID is empty for
// anonymous events such as a failed login.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	UserType   UserRole
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives activity events. Implementations should not block
// for long, they run inline with the request.
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

func userActivity(eventType ActivityEventType, user *User, md map[string]any) ActivityEvent {
	event := ActivityEvent{
		EventType: eventType,
		Metadata:  md,
	}
	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
		event.UserType = user.Role
	}
	return event
}

// emitActivity stamps the event time and hands it to sink. Sink failures
// are logged and never reach the caller.
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("failed to record activity", "event", event.EventType, "error", err)
	}
}
