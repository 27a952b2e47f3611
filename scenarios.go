package signup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Scenario names a tracked UX path.
type Scenario string

const (
	ScenarioSignUpCompleted        Scenario = "signUpCompleted"
	ScenarioSignUpPageInaccessible Scenario = "signUpPageInaccessible"
	ScenarioSigningUpWithSameEmail Scenario = "signingUpWithSameEmail"
)

// Scenarios lists every tracked scenario.
var Scenarios = []Scenario{
	ScenarioSignUpCompleted,
	ScenarioSignUpPageInaccessible,
	ScenarioSigningUpWithSameEmail,
}

// ScenarioFlags is the persisted record. Flags only ever go from false to true.
type ScenarioFlags struct {
	SignUpCompleted        bool `json:"signUpCompleted"`
	SignUpPageInaccessible bool `json:"signUpPageInaccessible"`
	SigningUpWithSameEmail bool `json:"signingUpWithSameEmail"`
}

// Done reports whether s is marked.
func (f ScenarioFlags) Done(s Scenario) bool {
	switch s {
	case ScenarioSignUpCompleted:
		return f.SignUpCompleted
	case ScenarioSignUpPageInaccessible:
		return f.SignUpPageInaccessible
	case ScenarioSigningUpWithSameEmail:
		return f.SigningUpWithSameEmail
	}
	return false
}

func (f *ScenarioFlags) mark(s Scenario) bool {
	switch s {
	case ScenarioSignUpCompleted:
		f.SignUpCompleted = true
	case ScenarioSignUpPageInaccessible:
		f.SignUpPageInaccessible = true
	case ScenarioSigningUpWithSameEmail:
		f.SigningUpWithSameEmail = true
	default:
		return false
	}
	return true
}

// ScenarioTrackerOption customizes a ScenarioTracker.
type ScenarioTrackerOption func(*ScenarioTracker)

// WithScenarioLogger overrides the logger.
func WithScenarioLogger(logger Logger) ScenarioTrackerOption {
	return func(t *ScenarioTracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithScenarioActivitySink records an event when a scenario is first completed.
func WithScenarioActivitySink(sink ActivitySink) ScenarioTrackerOption {
	return func(t *ScenarioTracker) {
		t.activitySink = normalizeActivitySink(sink)
	}
}

// ScenarioTracker owns the testing scenario record in storage.
type ScenarioTracker struct {
	mu           sync.Mutex
	storage      *ObservedStorage
	key          string
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
}

// NewScenarioTracker returns a tracker over storage.
func NewScenarioTracker(storage Storage, opts ...ScenarioTrackerOption) *ScenarioTracker {
	t := &ScenarioTracker{
		storage:      Observe(storage),
		key:          StorageKeyScenarios,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Flags reads the record, falling back to all false when it is absent or
// unreadable.
func (t *ScenarioTracker) Flags(ctx context.Context) (ScenarioFlags, error) {
	raw, ok, err := t.storage.Get(ctx, t.key)
	if err != nil {
		return ScenarioFlags{}, err
	}
	if !ok || raw == "" {
		return ScenarioFlags{}, nil
	}

	var flags ScenarioFlags
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		t.logger.Warn("ignoring unreadable scenario record", "error", err)
		return ScenarioFlags{}, nil
	}
	return flags, nil
}

// SignUpCompleted reports the signUpCompleted flag.
func (t *ScenarioTracker) SignUpCompleted(ctx context.Context) bool {
	return t.done(ctx, ScenarioSignUpCompleted)
}

// SignUpPageInaccessible reports the signUpPageInaccessible flag.
func (t *ScenarioTracker) SignUpPageInaccessible(ctx context.Context) bool {
	return t.done(ctx, ScenarioSignUpPageInaccessible)
}

// SigningUpWithSameEmail reports the signingUpWithSameEmail flag.
func (t *ScenarioTracker) SigningUpWithSameEmail(ctx context.Context) bool {
	return t.done(ctx, ScenarioSigningUpWithSameEmail)
}

func (t *ScenarioTracker) done(ctx context.Context, s Scenario) bool {
	flags, err := t.Flags(ctx)
	if err != nil {
		t.logger.Error("failed to read scenario record", "scenario", s, "error", err)
		return false
	}
	return flags.Done(s)
}

// MarkScenarioAsDone merges s=true into the stored record and writes it back
// whole. Watchers run after the record lock is released, so a Subscribe
// callback may mark further scenarios.
func (t *ScenarioTracker) MarkScenarioAsDone(ctx context.Context, s Scenario) error {
	already, err := t.merge(ctx, s)
	if err != nil {
		return err
	}

	t.storage.notify(t.key)

	if !already {
		t.logger.Info("testing scenario completed", "scenario", s)
		recordActivity(ctx, t.activitySink, t.logger, t.now, ActivityEvent{
			EventType: ActivityEventScenarioCompleted,
			Metadata:  map[string]any{"scenario": string(s)},
		})
	}
	return nil
}

// merge does the read-modify-write under t.mu and skips watcher notification.
func (t *ScenarioTracker) merge(ctx context.Context, s Scenario) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	flags, err := t.Flags(ctx)
	if err != nil {
		return false, err
	}

	already := flags.Done(s)
	if !flags.mark(s) {
		return false, WithErrorMetadata(ErrUnknownScenario, map[string]any{"scenario": s})
	}

	raw, err := json.Marshal(flags)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize scenario record")
	}

	if err := t.storage.Storage.Set(ctx, t.key, string(raw)); err != nil {
		return false, err
	}
	return already, nil
}

// Subscribe calls fn with the fresh record after every write.
func (t *ScenarioTracker) Subscribe(fn func(ScenarioFlags)) func() {
	if fn == nil {
		return func() {}
	}
	return t.storage.Watch(t.key, func(string) {
		flags, err := t.Flags(context.Background())
		if err != nil {
			t.logger.Error("failed to read scenario record", "error", err)
			return
		}
		fn(flags)
	})
}
