package server

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmailInUse         = "EMAIL_IN_USE"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeMismatchedPassword = "MISMATCHED_PASSWORD"
)

// ErrEmailInUse is returned when an account with the same email exists.
var ErrEmailInUse = goerrors.New("Email is already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(http.StatusUnprocessableEntity)

// ErrUserNotFound is returned by lookups that match no account.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodeMismatchedPassword).
	WithCode(http.StatusUnauthorized)
