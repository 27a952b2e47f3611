package signup

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// WelcomePath is where a successful sign-up lands.
const WelcomePath = "/welcome"

// Form field messages.
const (
	MsgEmailRequired     = "Email is required"
	MsgEmailInvalid      = "Enter a valid email"
	MsgEmailTaken        = "Email is already taken"
	MsgPasswordRequired  = "Password is required"
	MsgPasswordLowercase = "Password must contain at least one lowercase letter"
	MsgPasswordUppercase = "Password must contain at least one uppercase letter"
	MsgPasswordNumber    = "Password must contain at least one number"
	MsgPasswordLength    = "Password must be at least 8 characters"
)

var (
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	numberRe    = regexp.MustCompile(`[0-9]`)
)

// SignUpper is the sign-up operation of the session store.
type SignUpper interface {
	SignUp(ctx context.Context, req SignUpRequest) (*User, error)
}

// EmailAvailability answers whether an email can be used.
type EmailAvailability interface {
	CheckAvailable(ctx context.Context, email string, inProgress Flag) bool
}

// SignUpForm holds the client side rules and submission flow of the sign-up
// page.
type SignUpForm struct {
	sessions     SignUpper
	availability EmailAvailability
	scenarios    ScenarioMarker
	nav          Navigator
	logger       Logger

	// EmailValidationInProgress is true while a remote availability check runs.
	EmailValidationInProgress *Observable[bool]
}

// NewSignUpForm wires the form to its collaborators.
func NewSignUpForm(sessions SignUpper, availability EmailAvailability, scenarios ScenarioMarker, nav Navigator, logger Logger) *SignUpForm {
	return &SignUpForm{
		sessions:                  sessions,
		availability:              availability,
		scenarios:                 scenarios,
		nav:                       nav,
		logger:                    normalizeLogger(logger),
		EmailValidationInProgress: NewFlag(),
	}
}

// ValidateEmail checks presence, format and availability. A taken email
// marks the signingUpWithSameEmail scenario.
func (f *SignUpForm) ValidateEmail(ctx context.Context, email string) *ValidationError {
	err := validation.Validate(email,
		validation.Required.Error(MsgEmailRequired),
		is.Email.Error(MsgEmailInvalid),
	)
	if err != nil {
		return NewValidationError(FieldError{Field: "email", Message: err.Error()})
	}

	if f.availability.CheckAvailable(ctx, email, f.EmailValidationInProgress) {
		return nil
	}

	if f.scenarios != nil {
		if err := f.scenarios.MarkScenarioAsDone(ctx, ScenarioSigningUpWithSameEmail); err != nil {
			f.logger.Error("failed to mark scenario", "scenario", ScenarioSigningUpWithSameEmail, "error", err)
		}
	}
	return NewValidationError(FieldError{Field: "email", Message: MsgEmailTaken})
}

// ValidatePassword applies the password strength rules in order and reports
// the first failure.
func ValidatePassword(password string) *ValidationError {
	err := validation.Validate(password,
		validation.Required.Error(MsgPasswordRequired),
		validation.Match(lowercaseRe).Error(MsgPasswordLowercase),
		validation.Match(uppercaseRe).Error(MsgPasswordUppercase),
		validation.Match(numberRe).Error(MsgPasswordNumber),
		validation.Length(8, 0).Error(MsgPasswordLength),
	)
	if err != nil {
		return NewValidationError(FieldError{Field: "password", Message: err.Error()})
	}
	return nil
}

// Validate runs every field rule and returns nil when the form is valid.
func (f *SignUpForm) Validate(ctx context.Context, req SignUpRequest) *ValidationError {
	var out *ValidationError
	if verr := f.ValidateEmail(ctx, req.Email); verr != nil {
		out = verr
	}
	if verr := ValidatePassword(req.Password); verr != nil {
		if out == nil {
			out = verr
		} else {
			out.Merge(verr)
		}
	}
	return out
}

// Submit validates the form and signs the user up. An invalid form never
// reaches the session store. On success the signUpCompleted scenario is
// marked and the user is sent to the welcome page; on failure the error is
// returned for display and nothing else happens.
func (f *SignUpForm) Submit(ctx context.Context, req SignUpRequest) (*User, error) {
	if verr := f.Validate(ctx, req); verr != nil {
		return nil, verr
	}

	user, err := f.sessions.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}

	if f.scenarios != nil {
		if err := f.scenarios.MarkScenarioAsDone(ctx, ScenarioSignUpCompleted); err != nil {
			f.logger.Error("failed to mark scenario", "scenario", ScenarioSignUpCompleted, "error", err)
		}
	}

	if f.nav != nil {
		f.nav.NavigateTo(WelcomePath)
	}
	return user, nil
}
