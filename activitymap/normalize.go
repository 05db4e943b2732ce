package activitymap

import (
	"strings"
	"time"

	"github.com/goliatone/go-authflow"
)

const (
	// MetadataKeyFlow stores the child flow the event came from.
	MetadataKeyFlow = "flow"
	// MetadataKeyStep stores the flow step at the time of the event.
	MetadataKeyStep = "step"
	// MetadataKeyOperation stores the handler operation that failed.
	MetadataKeyOperation = "operation"
	// MetadataKeyErrorName stores the provider error name of a failure.
	MetadataKeyErrorName = "error_name"
	// MetadataKeyUsername stores the username when it differs from the actor id.
	MetadataKeyUsername = "username"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(authflow.ActivityEvent) string
}

// Normalize converts an authflow.ActivityEvent into a generic normalized shape.
func Normalize(event authflow.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(event.Username),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event, actorID),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(authflow.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the final actor-id fallback when user id and username are empty.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

// resolveObjectID defaults to the flow name; parent level events use the user.
func resolveObjectID(event authflow.ActivityEvent, resolver func(authflow.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if event.Flow != "" {
		return string(event.Flow)
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event authflow.ActivityEvent, actorID string) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyFlow, string(event.Flow))
	set(MetadataKeyStep, string(event.Step))
	set(MetadataKeyOperation, event.Operation)
	set(MetadataKeyErrorName, event.ErrorName)
	if event.Username != actorID {
		set(MetadataKeyUsername, event.Username)
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
