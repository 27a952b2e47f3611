package signup_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	signup "github.com/goliatone/go-signup"
)

// MockAccountCreator implements signup.AccountCreator
type MockAccountCreator struct {
	mock.Mock
}

func (m *MockAccountCreator) CreateAccount(ctx context.Context, req signup.SignUpRequest) (*signup.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*signup.User)
	return user, args.Error(1)
}

// captureLogger keeps every log call.
type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

type logCall struct {
	level   string
	message string
	args    []any
}

func (l *captureLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *captureLogger) Level(level string) []logCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logCall
	for _, c := range l.calls {
		if c.level == level {
			out = append(out, c)
		}
	}
	return out
}

// MockScenarioMarker implements signup.ScenarioMarker
type MockScenarioMarker struct {
	mock.Mock
}

func (m *MockScenarioMarker) MarkScenarioAsDone(ctx context.Context, s signup.Scenario) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockSignUpper implements signup.SignUpper
type MockSignUpper struct {
	mock.Mock
}

func (m *MockSignUpper) SignUp(ctx context.Context, req signup.SignUpRequest) (*signup.User, error) {
	args := m.Called(ctx, req)
	user, _ := args.Get(0).(*signup.User)
	return user, args.Error(1)
}

type sessionStub bool

func (s sessionStub) IsLoggedIn() bool { return bool(s) }

// navRecorder collects NavigateTo calls.
type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navRecorder) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// eventRecorder is an ActivitySink that keeps every event.
type eventRecorder struct {
	mu     sync.Mutex
	events []signup.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event signup.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []signup.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]signup.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *eventRecorder) Find(t signup.ActivityEventType) (signup.ActivityEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.EventType == t {
			return e, true
		}
	}
	return signup.ActivityEvent{}, false
}

// flakyStorage fails the operations named in failOn.
type flakyStorage struct {
	signup.Storage
	failOn map[string]bool
}

var errStorageDown = errors.New("storage unavailable")

func newFlakyStorage(ops ...string) *flakyStorage {
	f := &flakyStorage{Storage: signup.NewMemoryStorage(), failOn: map[string]bool{}}
	for _, op := range ops {
		f.failOn[op] = true
	}
	return f
}

func (f *flakyStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failOn["get"] {
		return "", false, errStorageDown
	}
	return f.Storage.Get(ctx, key)
}

func (f *flakyStorage) Set(ctx context.Context, key, value string) error {
	if f.failOn["set"] {
		return errStorageDown
	}
	return f.Storage.Set(ctx, key, value)
}

func (f *flakyStorage) Delete(ctx context.Context, key string) error {
	if f.failOn["delete"] {
		return errStorageDown
	}
	return f.Storage.Delete(ctx, key)
}

// manualClock is a signup.Clock driven by Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) signup.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// Jump moves the clock forward without firing timers.
func (c *manualClock) Jump(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
