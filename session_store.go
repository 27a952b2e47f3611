package signup

import (
	"context"
	"strconv"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SessionState is the authentication state of the client.
type SessionState string

const (
	SessionLoading   SessionState = "loading"
	SessionLoggedIn  SessionState = "loggedIn"
	SessionLoggedOut SessionState = "loggedOut"
)

// Session pairs the state with the user snapshot. User is non-nil exactly
// when State is SessionLoggedIn.
type Session struct {
	State SessionState
	User  *User
}

// IsLoggedIn reports whether the session is authenticated.
func (s Session) IsLoggedIn() bool {
	return s.State == SessionLoggedIn && s.User != nil
}

// SessionStoreOption customizes store construction.
type SessionStoreOption func(*SessionStore)

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used to publish session events.
func WithSessionActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionStorageKey overrides the storage key of the user snapshot.
func WithSessionStorageKey(key string) SessionStoreOption {
	return func(s *SessionStore) {
		if key != "" {
			s.key = key
		}
	}
}

// SessionStore is the client authentication state machine. The persisted
// snapshot is the source of truth for the user; the store keeps only the
// state in memory.
type SessionStore struct {
	mu           sync.Mutex
	state        SessionState
	storage      *ObservedStorage
	accounts     AccountCreator
	key          string
	transitions  map[SessionState]map[SessionState]struct{}
	session      *Observable[Session]
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
	stopWatch    func()
}

// NewSessionStore reads the persisted snapshot to pick the initial state and
// starts watching storage for changes.
func NewSessionStore(ctx context.Context, storage Storage, accounts AccountCreator, opts ...SessionStoreOption) (*SessionStore, error) {
	s := &SessionStore{
		storage:  Observe(storage),
		accounts: accounts,
		key:      StorageKeyUser,
		transitions: map[SessionState]map[SessionState]struct{}{
			SessionLoggedOut: {
				SessionLoading: {},
			},
			SessionLoading: {
				SessionLoggedIn:  {},
				SessionLoggedOut: {},
			},
			SessionLoggedIn: {
				SessionLoggedOut: {},
			},
		},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	user, err := s.readUser(ctx)
	if err != nil {
		return nil, err
	}

	s.state = SessionLoggedOut
	if user != nil {
		s.state = SessionLoggedIn
	}
	s.session = NewObservable(Session{State: s.state, User: user})
	s.stopWatch = s.storage.Watch(s.key, func(string) {
		s.reconcile(context.Background())
	})

	return s, nil
}

// State returns the current state.
func (s *SessionStore) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsLoggedIn reports whether the state is LoggedIn.
func (s *SessionStore) IsLoggedIn() bool {
	return s.State() == SessionLoggedIn
}

// IsLoggedOut reports whether the state is LoggedOut.
func (s *SessionStore) IsLoggedOut() bool {
	return s.State() == SessionLoggedOut
}

// User reads the snapshot from storage. It returns nil outside LoggedIn.
func (s *SessionStore) User(ctx context.Context) (*User, error) {
	if !s.IsLoggedIn() {
		return nil, nil
	}
	return s.readUser(ctx)
}

// Session returns the current state paired with the stored user.
func (s *SessionStore) Session(ctx context.Context) (Session, error) {
	state := s.State()
	if state != SessionLoggedIn {
		return Session{State: state}, nil
	}

	user, err := s.readUser(ctx)
	if err != nil {
		return Session{}, err
	}
	return Session{State: state, User: user}, nil
}

// Subscribe registers fn to receive every session change.
func (s *SessionStore) Subscribe(fn func(Session)) func() {
	return s.session.Subscribe(fn)
}

// Close stops watching storage.
func (s *SessionStore) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
}

// SignUp creates the account and logs the user in. It is only offered while
// logged out; the state is Loading for the duration of the remote call. On
// failure the state returns to LoggedOut, nothing is persisted and the
// collaborator error is returned unchanged.
func (s *SessionStore) SignUp(ctx context.Context, req SignUpRequest) (*User, error) {
	if err := s.transition(ctx, "sign_up", SessionLoggedOut, SessionLoading); err != nil {
		return nil, err
	}

	user, err := s.accounts.CreateAccount(ctx, req)
	if err == nil && user == nil {
		err = WithErrorMetadata(ErrCreateAccountFailed, map[string]any{
			"reason": "empty response",
		})
	}
	if err != nil {
		s.failSignUp(ctx, req, err)
		return nil, err
	}

	raw, err := MarshalSnapshot(user)
	if err != nil {
		err = goerrors.Wrap(err, goerrors.CategoryInternal, "failed to serialize user snapshot")
		s.failSignUp(ctx, req, err)
		return nil, err
	}

	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		s.failSignUp(ctx, req, err)
		return nil, err
	}

	if err := s.transition(ctx, "sign_up", SessionLoading, SessionLoggedIn); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventSignUpSuccess,
		UserID:    strconv.FormatInt(user.ID, 10),
		FromState: SessionLoading,
		ToState:   SessionLoggedIn,
	})

	return user.Clone(), nil
}

// LogOut clears the persisted snapshot. It is only offered while logged in.
func (s *SessionStore) LogOut(ctx context.Context) error {
	user, err := s.User(ctx)
	if err != nil {
		s.logger.Warn("failed to read user snapshot before log out", "error", err)
	}

	if err := s.transition(ctx, "log_out", SessionLoggedIn, SessionLoggedOut); err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.force(SessionLoggedIn)
		s.logger.Error("failed to clear user snapshot", "error", err)
		return err
	}

	event := ActivityEvent{
		EventType: ActivityEventLogOut,
		FromState: SessionLoggedIn,
		ToState:   SessionLoggedOut,
	}
	if user != nil {
		event.UserID = strconv.FormatInt(user.ID, 10)
	}
	recordActivity(ctx, s.activitySink, s.logger, s.now, event)

	return nil
}

func (s *SessionStore) failSignUp(ctx context.Context, req SignUpRequest, cause error) {
	if err := s.transition(ctx, "sign_up", SessionLoading, SessionLoggedOut); err != nil {
		s.logger.Error("failed to restore logged out state", "error", err)
	}

	s.logger.Warn("sign up failed", "email", req.Email, "error", cause)
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventSignUpFailure,
		FromState: SessionLoading,
		ToState:   SessionLoggedOut,
		Metadata: map[string]any{
			"email": req.Email,
			"error": cause.Error(),
		},
	})
}

// transition moves from -> to when the current state is from and the edge
// exists, then publishes the new session.
func (s *SessionStore) transition(ctx context.Context, op string, from, to SessionState) error {
	s.mu.Lock()
	current := s.state
	if current != from || !s.canTransition(from, to) {
		s.mu.Unlock()
		return WithErrorMetadata(ErrInvalidTransition, map[string]any{
			"operation": op,
			"state":     current,
			"from":      from,
			"to":        to,
		})
	}
	s.state = to
	s.mu.Unlock()

	s.logger.Debug("session state changed", "operation", op, "from", from, "to", to)
	recordActivity(ctx, s.activitySink, s.logger, s.now, ActivityEvent{
		EventType: ActivityEventSessionStateChanged,
		FromState: from,
		ToState:   to,
		Metadata:  map[string]any{"operation": op},
	})

	s.publish(ctx)
	return nil
}

// force sets the state without consulting the transition table.
func (s *SessionStore) force(to SessionState) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
	s.publish(context.Background())
}

func (s *SessionStore) canTransition(from, to SessionState) bool {
	if allowed, ok := s.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// reconcile aligns the state with storage after an external change. Loading
// is left alone since a sign-up owns the state until it settles.
func (s *SessionStore) reconcile(ctx context.Context) {
	user, err := s.readUser(ctx)
	if err != nil {
		s.logger.Error("failed to read user snapshot", "error", err)
		return
	}

	s.mu.Lock()
	from := s.state
	switch {
	case from == SessionLoggedIn && user == nil:
		s.state = SessionLoggedOut
	case from == SessionLoggedOut && user != nil:
		s.state = SessionLoggedIn
	}
	to := s.state
	s.mu.Unlock()

	if from == to {
		return
	}

	s.logger.Debug("session reconciled with storage", "from", from, "to", to)
	s.publish(ctx)
}

func (s *SessionStore) publish(ctx context.Context) {
	if s.session == nil {
		return
	}
	session, err := s.Session(ctx)
	if err != nil {
		s.logger.Error("failed to read session", "error", err)
		session = Session{State: s.State()}
	}
	s.session.Set(session)
}

// readUser returns the stored snapshot, or nil when absent or unusable.
func (s *SessionStore) readUser(ctx context.Context) (*User, error) {
	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	user, err := UnmarshalSnapshot(raw)
	if err != nil {
		s.logger.Warn("ignoring unreadable user snapshot", "error", err)
		return nil, nil
	}
	return user, nil
}
