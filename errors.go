package signup

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_SESSION_STATE_TRANSITION"
	textCodeCreateAccount     = "CREATE_ACCOUNT_FAILED"
	textCodeEmailTaken        = "EMAIL_TAKEN"
	textCodeUnknownScenario   = "UNKNOWN_SCENARIO"
	textCodeInvalidTheme      = "INVALID_THEME"
	textCodeRouteNotFound     = "ROUTE_NOT_FOUND"
	textCodeTooManyRedirects  = "TOO_MANY_REDIRECTS"
	textCodeCorruptSnapshot   = "CORRUPT_SESSION_SNAPSHOT"
)

// ErrInvalidTransition is returned when an operation is requested in a
// session state that does not offer it.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrCreateAccountFailed is the generic create account failure.
var ErrCreateAccountFailed = goerrors.New("failed to create user", goerrors.CategoryInternal).
	WithTextCode(textCodeCreateAccount).
	WithCode(http.StatusInternalServerError)

// ErrEmailTaken signals the explicit "email already in use" answer.
var ErrEmailTaken = goerrors.New("email is already in use", goerrors.CategoryConflict).
	WithTextCode(textCodeEmailTaken).
	WithCode(http.StatusUnprocessableEntity)

// ErrUnknownScenario is returned for scenario names outside the flag set.
var ErrUnknownScenario = goerrors.New("unknown testing scenario", goerrors.CategoryBadInput).
	WithTextCode(textCodeUnknownScenario).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTheme is returned for unsupported theme values.
var ErrInvalidTheme = goerrors.New("invalid theme", goerrors.CategoryBadInput).
	WithTextCode(textCodeInvalidTheme).
	WithCode(goerrors.CodeBadRequest)

// ErrRouteNotFound is returned when navigating to an unregistered path.
var ErrRouteNotFound = goerrors.New("route not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRouteNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTooManyRedirects is returned when guards keep redirecting.
var ErrTooManyRedirects = goerrors.New("too many redirects", goerrors.CategoryOperation).
	WithTextCode(textCodeTooManyRedirects).
	WithCode(http.StatusInternalServerError)

// ErrCorruptSnapshot is returned for persisted users that can not be used.
var ErrCorruptSnapshot = goerrors.New("corrupt session snapshot", goerrors.CategoryValidation).
	WithTextCode(textCodeCorruptSnapshot).
	WithCode(goerrors.CodeBadRequest)

// FieldError is a single field message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field messages. Its JSON shape is the one the
// account service returns with status 422.
type ValidationError struct {
	StatusCode       int          `json:"statusCode"`
	ValidationErrors []FieldError `json:"validationErrors"`
}

// NewValidationError builds a 422 ValidationError.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{
		StatusCode:       http.StatusUnprocessableEntity,
		ValidationErrors: fields,
	}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.ValidationErrors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.ValidationErrors))
	for _, f := range e.ValidationErrors {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the messages keyed by field. The first message wins.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.ValidationErrors))
	for _, f := range e.ValidationErrors {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

// Message returns the message for field, if any.
func (e *ValidationError) Message(field string) (string, bool) {
	msg, ok := e.Fields()[field]
	return msg, ok
}

// Merge appends the fields of other.
func (e *ValidationError) Merge(other *ValidationError) *ValidationError {
	if other == nil {
		return e
	}
	e.ValidationErrors = append(e.ValidationErrors, other.ValidationErrors...)
	return e
}

// AsValidationError unwraps a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) && verr != nil {
		return verr, true
	}
	return nil, false
}

// ValidationErrorFromOzzo converts ozzo-validation field errors into a
// ValidationError with fields sorted by name. Other errors are wrapped.
func ValidationErrorFromOzzo(err error) error {
	if err == nil {
		return nil
	}

	verrs, ok := err.(validation.Errors)
	if !ok {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "validation rules failed to run")
	}

	names := make([]string, 0, len(verrs))
	for name, fieldErr := range verrs {
		if fieldErr != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fields := make([]FieldError, 0, len(names))
	for _, name := range names {
		fields = append(fields, FieldError{Field: name, Message: verrs[name].Error()})
	}
	return NewValidationError(fields...)
}

// IsUnprocessable reports whether err is the explicit 422 answer.
func IsUnprocessable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmailTaken) {
		return true
	}
	if verr, ok := AsValidationError(err); ok {
		return verr.StatusCode == http.StatusUnprocessableEntity
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Code == http.StatusUnprocessableEntity
	}
	return false
}

// WithErrorMetadata returns a copy of sentinel carrying meta. The copy
// unwraps to sentinel so errors.Is keeps matching.
func WithErrorMetadata(sentinel *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(meta)
}
