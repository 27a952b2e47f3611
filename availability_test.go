package signup_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signup "github.com/goliatone/go-signup"
)

type countingChecker struct {
	calls atomic.Int32
	fn    func(ctx context.Context, email string) error
}

func (c *countingChecker) CheckEmailAvailable(ctx context.Context, email string) error {
	c.calls.Add(1)
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, email)
}

func newValidator(checker signup.AvailabilityChecker, clock signup.Clock, opts ...signup.AvailabilityOption) *signup.AvailabilityValidator {
	opts = append([]signup.AvailabilityOption{
		signup.WithAvailabilityClock(clock),
		signup.WithAvailabilityLogger(signup.NopLogger()),
	}, opts...)
	return signup.NewAvailabilityValidator(checker, opts...)
}

func TestCheckAvailableCachesForTTL(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	checker := &countingChecker{}
	v := newValidator(checker, clock)

	assert.True(t, v.CheckAvailable(ctx, "new@example.com", signup.NewFlag()))
	assert.EqualValues(t, 1, checker.calls.Load())

	clock.Advance(59 * time.Second)
	assert.True(t, v.CheckAvailable(ctx, "new@example.com", signup.NewFlag()))
	assert.EqualValues(t, 1, checker.calls.Load())

	clock.Advance(2 * time.Second)
	assert.True(t, v.CheckAvailable(ctx, "new@example.com", signup.NewFlag()))
	assert.EqualValues(t, 2, checker.calls.Load())
}

func TestCheckAvailableFlagLifecycle(t *testing.T) {
	ctx := context.Background()
	flag := signup.NewFlag()

	var seen []bool
	flag.Subscribe(func(v bool) { seen = append(seen, v) })

	checker := &countingChecker{fn: func(context.Context, string) error {
		assert.True(t, flag.Get(), "flag should be set during the remote call")
		return nil
	}}
	v := newValidator(checker, newManualClock())

	assert.True(t, v.CheckAvailable(ctx, "a@b.com", flag))
	assert.False(t, flag.Get())
	assert.Equal(t, []bool{true, false}, seen)

	// cache hit leaves the flag untouched
	assert.True(t, v.CheckAvailable(ctx, "a@b.com", flag))
	assert.Equal(t, []bool{true, false}, seen)
}

func TestCheckAvailableTakenEmail(t *testing.T) {
	ctx := context.Background()
	checker := &countingChecker{fn: func(_ context.Context, email string) error {
		if email == "already@taken.com" {
			return signup.WithErrorMetadata(signup.ErrEmailTaken, map[string]any{"email": email})
		}
		return nil
	}}
	v := newValidator(checker, newManualClock())
	flag := signup.NewFlag()

	assert.False(t, v.CheckAvailable(ctx, "already@taken.com", flag))
	assert.False(t, flag.Get())

	available, ok := v.Cache().Get("already@taken.com")
	assert.True(t, ok)
	assert.False(t, available)
}

func TestCheckAvailableUnprocessableVariants(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{name: "validation error 422", err: signup.NewValidationError(signup.FieldError{Field: "email", Message: "Email is already in use"}), expect: false},
		{name: "rich error with 422 code", err: goerrors.New("taken", goerrors.CategoryConflict).WithCode(422), expect: false},
		{name: "server error", err: goerrors.New("boom", goerrors.CategoryInternal).WithCode(500), expect: true},
		{name: "transport error", err: errors.New("connection refused"), expect: true},
		{name: "timeout", err: context.DeadlineExceeded, expect: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checker := &countingChecker{fn: func(context.Context, string) error { return tc.err }}
			v := newValidator(checker, newManualClock())
			flag := signup.NewFlag()

			assert.Equal(t, tc.expect, v.CheckAvailable(ctx, "x@example.com", flag))
			assert.False(t, flag.Get())
		})
	}
}

func TestCheckAvailableCoalescesConcurrentCalls(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	checker := &countingChecker{fn: func(context.Context, string) error {
		<-release
		return nil
	}}
	v := newValidator(checker, newManualClock())

	const callers = 5
	var started sync.WaitGroup
	started.Add(callers)

	var done sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		done.Add(1)
		flag := &onceFlag{started: &started}
		go func(i int) {
			defer done.Done()
			results[i] = v.CheckAvailable(ctx, "same@example.com", flag)
		}(i)
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.EqualValues(t, 1, checker.calls.Load())
	for _, r := range results {
		assert.True(t, r)
	}
}

func TestCheckAvailableRecordsActivity(t *testing.T) {
	sink := &eventRecorder{}
	checker := &countingChecker{fn: func(context.Context, string) error { return signup.ErrEmailTaken }}
	v := newValidator(checker, newManualClock(), signup.WithAvailabilityActivitySink(sink))

	v.CheckAvailable(context.Background(), "already@taken.com", nil)

	event, ok := sink.Find(signup.ActivityEventAvailabilityChecked)
	require.True(t, ok)
	assert.Equal(t, "already@taken.com", event.Metadata["email"])
	assert.Equal(t, false, event.Metadata["available"])
	assert.NotEmpty(t, event.ID)
}

func TestCheckAvailableAppliesTimeout(t *testing.T) {
	checker := &countingChecker{fn: func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	v := newValidator(checker, newManualClock(), signup.WithAvailabilityTimeout(10*time.Millisecond))

	assert.True(t, v.CheckAvailable(context.Background(), "slow@example.com", signup.NewFlag()))
}

func TestCheckAvailableCancelledCallerIsNotCached(t *testing.T) {
	checker := &countingChecker{fn: func(_ context.Context, email string) error {
		if email == "already@taken.com" {
			return signup.ErrEmailTaken
		}
		return nil
	}}
	v := newValidator(checker, newManualClock())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	flag := signup.NewFlag()
	assert.True(t, v.CheckAvailable(cancelled, "already@taken.com", flag))
	assert.False(t, flag.Get())

	_, ok := v.Cache().Get("already@taken.com")
	assert.False(t, ok)

	assert.False(t, v.CheckAvailable(context.Background(), "already@taken.com", signup.NewFlag()))
	assert.EqualValues(t, 1, checker.calls.Load())
}

func TestCheckAvailableSharedCallSurvivesCallerCancel(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce sync.Once
	var remoteErrs []error
	var mu sync.Mutex

	checker := &countingChecker{fn: func(ctx context.Context, _ string) error {
		enterOnce.Do(func() { close(entered) })
		<-release
		mu.Lock()
		remoteErrs = append(remoteErrs, ctx.Err())
		mu.Unlock()
		return signup.ErrEmailTaken
	}}
	v := newValidator(checker, newManualClock())

	ctxA, cancelA := context.WithCancel(context.Background())
	resultA := make(chan bool, 1)
	go func() {
		resultA <- v.CheckAvailable(ctxA, "already@taken.com", signup.NewFlag())
	}()

	<-entered

	resultB := make(chan bool, 1)
	go func() {
		resultB <- v.CheckAvailable(context.Background(), "already@taken.com", signup.NewFlag())
	}()

	cancelA()
	assert.True(t, <-resultA)

	close(release)
	assert.False(t, <-resultB)

	available, ok := v.Cache().Get("already@taken.com")
	assert.True(t, ok)
	assert.False(t, available)

	mu.Lock()
	defer mu.Unlock()
	for _, err := range remoteErrs {
		assert.NoError(t, err)
	}
}

// onceFlag signals started on its first Set(true).
type onceFlag struct {
	once    sync.Once
	started *sync.WaitGroup
}

func (f *onceFlag) Set(v bool) {
	if v {
		f.once.Do(f.started.Done)
	}
}
