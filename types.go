package signup

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AccountCreator is the remote "create account" operation.
type AccountCreator interface {
	CreateAccount(ctx context.Context, req SignUpRequest) (*User, error)
}

// AvailabilityChecker is the remote "check email availability" operation.
// A nil error means the email can be used. An error matching ErrEmailTaken
// (or carrying a 422 code) means it is taken.
type AvailabilityChecker interface {
	CheckEmailAvailable(ctx context.Context, email string) error
}

// AccountCreatorFunc adapts a function to AccountCreator.
type AccountCreatorFunc func(ctx context.Context, req SignUpRequest) (*User, error)

// CreateAccount implements AccountCreator.
func (f AccountCreatorFunc) CreateAccount(ctx context.Context, req SignUpRequest) (*User, error) {
	return f(ctx, req)
}

// AvailabilityCheckerFunc adapts a function to AvailabilityChecker.
type AvailabilityCheckerFunc func(ctx context.Context, email string) error

// CheckEmailAvailable implements AvailabilityChecker.
func (f AvailabilityCheckerFunc) CheckEmailAvailable(ctx context.Context, email string) error {
	return f(ctx, email)
}

// Navigator performs the "navigate to path" effect.
type Navigator interface {
	NavigateTo(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// NavigateTo implements Navigator.
func (f NavigatorFunc) NavigateTo(path string) {
	f(path)
}

// Flag receives in-progress notifications.
type Flag interface {
	Set(bool)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] SIGNUP " + formatArgs(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] SIGNUP " + formatArgs(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] SIGNUP " + formatArgs(msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] SIGNUP " + formatArgs(msg, args))
}

func formatArgs(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}
