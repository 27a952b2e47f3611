package signup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	signup "github.com/goliatone/go-signup"
)

type availabilityStub map[string]bool

func (a availabilityStub) CheckAvailable(_ context.Context, email string, _ signup.Flag) bool {
	available, ok := a[email]
	return !ok || available
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		expect   string
	}{
		{name: "empty", password: "", expect: signup.MsgPasswordRequired},
		{name: "no lowercase", password: "ABCDEFG1", expect: signup.MsgPasswordLowercase},
		{name: "no uppercase", password: "abcdefg1", expect: signup.MsgPasswordUppercase},
		{name: "no number", password: "Abcdefgh", expect: signup.MsgPasswordNumber},
		{name: "too short", password: "Abc1", expect: signup.MsgPasswordLength},
		{name: "lowercase checked before length", password: "A1", expect: signup.MsgPasswordLowercase},
		{name: "valid", password: "Secret123", expect: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verr := signup.ValidatePassword(tc.password)
			if tc.expect == "" {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			require.Len(t, verr.ValidationErrors, 1)
			assert.Equal(t, "password", verr.ValidationErrors[0].Field)
			assert.Equal(t, tc.expect, verr.ValidationErrors[0].Message)
		})
	}
}

func TestSignUpFormValidateEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("required", func(t *testing.T) {
		form := signup.NewSignUpForm(&MockSignUpper{}, availabilityStub{}, &MockScenarioMarker{}, &navRecorder{}, signup.NopLogger())
		verr := form.ValidateEmail(ctx, "")
		require.NotNil(t, verr)
		msg, ok := verr.Message("email")
		assert.True(t, ok)
		assert.Equal(t, signup.MsgEmailRequired, msg)
	})

	t.Run("format", func(t *testing.T) {
		form := signup.NewSignUpForm(&MockSignUpper{}, availabilityStub{}, &MockScenarioMarker{}, &navRecorder{}, signup.NopLogger())
		verr := form.ValidateEmail(ctx, "not-an-email")
		require.NotNil(t, verr)
		msg, _ := verr.Message("email")
		assert.Equal(t, signup.MsgEmailInvalid, msg)
	})

	t.Run("available", func(t *testing.T) {
		scenarios := &MockScenarioMarker{}
		form := signup.NewSignUpForm(&MockSignUpper{}, availabilityStub{}, scenarios, &navRecorder{}, signup.NopLogger())
		assert.Nil(t, form.ValidateEmail(ctx, "new@example.com"))
		scenarios.AssertNotCalled(t, "MarkScenarioAsDone", mock.Anything, mock.Anything)
	})

	t.Run("taken marks scenario", func(t *testing.T) {
		scenarios := &MockScenarioMarker{}
		scenarios.On("MarkScenarioAsDone", mock.Anything, signup.ScenarioSigningUpWithSameEmail).Return(nil).Once()
		form := signup.NewSignUpForm(&MockSignUpper{}, availabilityStub{"already@taken.com": false}, scenarios, &navRecorder{}, signup.NopLogger())

		verr := form.ValidateEmail(ctx, "already@taken.com")
		require.NotNil(t, verr)
		msg, _ := verr.Message("email")
		assert.Equal(t, signup.MsgEmailTaken, msg)
		scenarios.AssertExpectations(t)
	})
}

func TestSignUpFormSubmitInvalid(t *testing.T) {
	sessions := &MockSignUpper{}
	nav := &navRecorder{}
	form := signup.NewSignUpForm(sessions, availabilityStub{}, &MockScenarioMarker{}, nav, signup.NopLogger())

	user, err := form.Submit(context.Background(), signup.SignUpRequest{Email: "bad", Password: "short"})
	assert.Nil(t, user)

	verr, ok := signup.AsValidationError(err)
	require.True(t, ok)
	fields := verr.Fields()
	assert.Equal(t, signup.MsgEmailInvalid, fields["email"])
	assert.Equal(t, signup.MsgPasswordUppercase, fields["password"])

	sessions.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
	assert.Empty(t, nav.Paths())
}

func TestSignUpFormSubmitSuccess(t *testing.T) {
	ctx := context.Background()
	req := signup.SignUpRequest{Email: "new@example.com", Password: "Secret123", Announcements: true}

	sessions := &MockSignUpper{}
	sessions.On("SignUp", mock.Anything, req).Return(testUser.Clone(), nil).Once()
	scenarios := &MockScenarioMarker{}
	scenarios.On("MarkScenarioAsDone", mock.Anything, signup.ScenarioSignUpCompleted).Return(nil).Once()
	nav := &navRecorder{}

	form := signup.NewSignUpForm(sessions, availabilityStub{}, scenarios, nav, signup.NopLogger())

	user, err := form.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, testUser.Email, user.Email)
	assert.Equal(t, []string{signup.WelcomePath}, nav.Paths())

	sessions.AssertExpectations(t)
	scenarios.AssertExpectations(t)
}

func TestSignUpFormSubmitFailure(t *testing.T) {
	remote := errors.New("service unavailable")
	sessions := &MockSignUpper{}
	sessions.On("SignUp", mock.Anything, mock.Anything).Return(nil, remote).Once()
	scenarios := &MockScenarioMarker{}
	nav := &navRecorder{}

	form := signup.NewSignUpForm(sessions, availabilityStub{}, scenarios, nav, signup.NopLogger())

	user, err := form.Submit(context.Background(), signup.SignUpRequest{Email: "new@example.com", Password: "Secret123"})
	assert.Nil(t, user)
	assert.Same(t, remote, err)
	assert.Empty(t, nav.Paths())
	scenarios.AssertNotCalled(t, "MarkScenarioAsDone", mock.Anything, mock.Anything)
}

func TestSignUpFormWithAvailabilityValidator(t *testing.T) {
	ctx := context.Background()
	checker := &countingChecker{fn: func(_ context.Context, email string) error {
		if email == "already@taken.com" {
			return signup.ErrEmailTaken
		}
		return nil
	}}
	validator := newValidator(checker, newManualClock())
	tracker := newTracker(signup.NewMemoryStorage())

	form := signup.NewSignUpForm(&MockSignUpper{}, validator, tracker, &navRecorder{}, signup.NopLogger())

	var seen []bool
	form.EmailValidationInProgress.Subscribe(func(v bool) { seen = append(seen, v) })

	assert.NotNil(t, form.ValidateEmail(ctx, "already@taken.com"))
	assert.Equal(t, []bool{true, false}, seen)
	assert.True(t, tracker.SigningUpWithSameEmail(ctx))
}
