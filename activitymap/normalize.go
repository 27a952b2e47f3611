// Package activitymap flattens signup activity events into a transport
// agnostic record for logs and downstream collectors.
package activitymap

import (
	"context"
	"sort"
	"strings"
	"time"

	signup "github.com/goliatone/go-signup"
)

const (
	// MetadataKeyEventID stores the source event id.
	MetadataKeyEventID = "event_id"
	// MetadataKeyFromState stores the session state before a transition.
	MetadataKeyFromState = "from_state"
	// MetadataKeyToState stores the session state after a transition.
	MetadataKeyToState = "to_state"
)

const (
	defaultChannel = "signup"
	defaultActorID = "anonymous"
)

// Normalized is the flattened event.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// Normalize converts a signup.ActivityEvent into a Normalized record. The
// object type is the verb prefix: session, scenario, availability or access.
func Normalize(event signup.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	verb := string(event.EventType)

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       verb,
		ObjectType: objectType(verb),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the channel of normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithClock sets the time source for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// LogSink returns a signup.ActivitySink that writes every event as a single
// normalized log line.
func LogSink(logger signup.Logger, opts ...Option) signup.ActivitySink {
	if logger == nil {
		logger = signup.NopLogger()
	}
	return signup.ActivitySinkFunc(func(_ context.Context, event signup.ActivityEvent) error {
		n := Normalize(event, opts...)
		args := []any{
			"actor", n.ActorID,
			"object", n.ObjectType,
			"channel", n.Channel,
		}
		for _, key := range sortedKeys(n.Metadata) {
			args = append(args, key, n.Metadata[key])
		}
		logger.Debug(n.Verb, args...)
		return nil
	})
}

// Fanout records each event on every sink and returns the first error.
func Fanout(sinks ...signup.ActivitySink) signup.ActivitySink {
	return signup.ActivitySinkFunc(func(ctx context.Context, event signup.ActivityEvent) error {
		var first error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

func objectType(verb string) string {
	if i := strings.IndexByte(verb, '.'); i > 0 {
		return verb[:i]
	}
	return verb
}

func normalizeMetadata(event signup.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key string, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}

	set(MetadataKeyEventID, event.ID)
	set(MetadataKeyFromState, string(event.FromState))
	set(MetadataKeyToState, string(event.ToState))

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

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
