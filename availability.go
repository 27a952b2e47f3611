package signup

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultAvailabilityTimeout bounds a single remote availability check.
const DefaultAvailabilityTimeout = 10 * time.Second

// AvailabilityOption customizes an AvailabilityValidator.
type AvailabilityOption func(*AvailabilityValidator)

// WithAvailabilityClock injects the clock used by the cache.
func WithAvailabilityClock(clock Clock) AvailabilityOption {
	return func(v *AvailabilityValidator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithAvailabilityTTL overrides how long answers are cached.
func WithAvailabilityTTL(ttl time.Duration) AvailabilityOption {
	return func(v *AvailabilityValidator) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithAvailabilityTimeout bounds each remote call. Zero disables the bound.
func WithAvailabilityTimeout(timeout time.Duration) AvailabilityOption {
	return func(v *AvailabilityValidator) {
		if timeout >= 0 {
			v.timeout = timeout
		}
	}
}

// WithAvailabilityLogger overrides the logger.
func WithAvailabilityLogger(logger Logger) AvailabilityOption {
	return func(v *AvailabilityValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithAvailabilityActivitySink records an event per remote check.
func WithAvailabilityActivitySink(sink ActivitySink) AvailabilityOption {
	return func(v *AvailabilityValidator) {
		v.activitySink = normalizeActivitySink(sink)
	}
}

// AvailabilityValidator answers "can this email be used" through a
// UniquenessCache. Only an explicit 422 answer marks an email as taken; any
// other failure is treated as available so transient errors never block
// sign-up.
type AvailabilityValidator struct {
	checker      AvailabilityChecker
	cache        *UniquenessCache
	inflight     singleflight.Group
	clock        Clock
	ttl          time.Duration
	timeout      time.Duration
	logger       Logger
	activitySink ActivitySink
}

// NewAvailabilityValidator builds a validator with its own cache.
func NewAvailabilityValidator(checker AvailabilityChecker, opts ...AvailabilityOption) *AvailabilityValidator {
	v := &AvailabilityValidator{
		checker:      checker,
		clock:        realClock{},
		ttl:          DefaultAvailabilityTTL,
		timeout:      DefaultAvailabilityTimeout,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	v.cache = NewUniquenessCache(v.ttl, v.clock)
	return v
}

// Cache exposes the underlying cache.
func (v *AvailabilityValidator) Cache() *UniquenessCache {
	return v.cache
}

// CheckAvailable reports whether email can be used. Cache hits return
// immediately without touching inProgress. Otherwise inProgress is set to
// true for the duration of the remote call and back to false before
// returning, whatever the outcome. Concurrent checks for the same email
// share one remote call.
//
// The shared call does not inherit the caller's cancellation, only the
// validator timeout. A caller whose ctx ends first gets true and nothing is
// cached on its behalf; the shared call keeps running for everyone else.
func (v *AvailabilityValidator) CheckAvailable(ctx context.Context, email string, inProgress Flag) bool {
	if available, ok := v.cache.Get(email); ok {
		return available
	}

	if err := ctx.Err(); err != nil {
		v.logger.Debug("availability check skipped, caller done", "email", email, "error", err)
		return true
	}

	setFlag(inProgress, true)
	defer setFlag(inProgress, false)

	shared := context.WithoutCancel(ctx)
	ch := v.inflight.DoChan(email, func() (any, error) {
		if available, ok := v.cache.Get(email); ok {
			return available, nil
		}
		available := v.check(shared, email)
		v.cache.Set(email, available)
		return available, nil
	})

	select {
	case res := <-ch:
		available, _ := res.Val.(bool)
		return available
	case <-ctx.Done():
		v.logger.Debug("availability check abandoned by caller", "email", email, "error", ctx.Err())
		return true
	}
}

func (v *AvailabilityValidator) check(ctx context.Context, email string) bool {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	err := v.checker.CheckEmailAvailable(ctx, email)

	available := true
	switch {
	case err == nil:
	case IsUnprocessable(err):
		available = false
	default:
		v.logger.Warn("availability check failed, assuming available", "email", email, "error", err)
	}

	recordActivity(ctx, v.activitySink, v.logger, v.clock.Now, ActivityEvent{
		EventType: ActivityEventAvailabilityChecked,
		Metadata: map[string]any{
			"email":     email,
			"available": available,
			"failed":    err != nil && available,
		},
	})

	return available
}

func setFlag(f Flag, value bool) {
	if f != nil {
		f.Set(value)
	}
}
