// Package activitymap turns auth activity events into flat audit records.
//
// Records never carry a full email address unless WithRawEmail is used:
// audit logs of a patient platform are shipped to places that should not
// hold contact details.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-careauth"
)

const (
	// MetadataKeyUserType stores the user type of the subject.
	MetadataKeyUserType = "user_type"
	// MetadataKeySurveyID is set by survey submissions.
	MetadataKeySurveyID = "survey_id"
	// MetadataKeyCarePlanID is set when a care plan is created.
	MetadataKeyCarePlanID = "care_plan_id"
)

// Object types
const (
	ObjectUser     = "user"
	ObjectSurvey   = "survey"
	ObjectCarePlan = "care_plan"
)

const anonymousActor = "anonymous"

// Record is the audit shape written for every activity event
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	Channel    string         `json:"channel"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Email      string         `json:"email,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes Normalize
type Option func(*options)

type options struct {
	actorFallback string
	rawEmail      bool
	now           func() time.Time
}

// WithActorFallback sets the actor id used for anonymous events, such as failed logins.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			o.actorFallback = actorID
		}
	}
}

// WithRawEmail keeps the full email address in the record
func WithRawEmail() Option {
	return func(o *options) {
		o.rawEmail = true
	}
}

// WithClock sets the time used for events without OccurredAt
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Normalize maps event to a Record. The channel is the first segment of the
// event type ("auth" or "user"), the object is the survey or care plan the
// event refers to and the user otherwise.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		actorFallback: anonymousActor,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	userID := strings.TrimSpace(event.UserID)
	actor := userID
	if actor == "" {
		actor = o.actorFallback
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	objectType, objectID := resolveObject(event, userID)

	email := strings.TrimSpace(event.Email)
	if !o.rawEmail {
		email = MaskEmail(email)
	}

	return Record{
		ActorID:    actor,
		Verb:       string(event.EventType),
		Channel:    channelOf(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Email:      email,
		Metadata:   metadataOf(event, objectType),
		OccurredAt: occurredAt.UTC(),
	}
}

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

func channelOf(t auth.ActivityEventType) string {
	channel, _, _ := strings.Cut(string(t), ".")
	return channel
}

func resolveObject(event auth.ActivityEvent, userID string) (string, string) {
	switch event.EventType {
	case auth.ActivityEventSurveyCompleted:
		if id := stringValue(event.Metadata, MetadataKeySurveyID); id != "" {
			return ObjectSurvey, id
		}
	case auth.ActivityEventCarePlanCreated:
		if id := stringValue(event.Metadata, MetadataKeyCarePlanID); id != "" {
			return ObjectCarePlan, id
		}
	}
	return ObjectUser, userID
}

// metadataOf copies the event metadata without the key already promoted to ObjectID
func metadataOf(event auth.ActivityEvent, objectType string) map[string]any {
	out := map[string]any{}
	for k, v := range event.Metadata {
		switch {
		case objectType == ObjectSurvey && k == MetadataKeySurveyID:
		case objectType == ObjectCarePlan && k == MetadataKeyCarePlanID:
		default:
			out[k] = v
		}
	}

	if event.UserType != "" {
		out[MetadataKeyUserType] = event.UserType
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func stringValue(md map[string]any, key string) string {
	v, _ := md[key].(string)
	return strings.TrimSpace(v)
}
