package server

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	signup "github.com/goliatone/go-signup"
)

// DefaultCreateAccountTimeout bounds the create account transaction.
const DefaultCreateAccountTimeout = 10 * time.Second

type CreateAccountMessage struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Announcements bool   `json:"announcements"`
}

func (e CreateAccountMessage) Type() string { return "account.create" }

// Validate applies the required field rules.
func (e CreateAccountMessage) Validate() error {
	return signup.SignUpRequest{
		Email:         e.Email,
		Password:      e.Password,
		Announcements: e.Announcements,
	}.Validate()
}

// CreateAccountHandler hashes the password and stores the account.
type CreateAccountHandler struct {
	repo    RepositoryManager
	hash    Hasher
	timeout time.Duration
}

// NewCreateAccountHandler returns a handler that hashes with hash. A nil
// hash uses HashPassword.
func NewCreateAccountHandler(repo RepositoryManager, hash Hasher) *CreateAccountHandler {
	if hash == nil {
		hash = HashPassword
	}
	return &CreateAccountHandler{
		repo:    repo,
		hash:    hash,
		timeout: DefaultCreateAccountTimeout,
	}
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) (*signup.User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAccountHandler) execute(ctx context.Context, event CreateAccountMessage) (*signup.User, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	user := &signup.User{}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := h.repo.Users().ExistsByEmailTx(ctx, tx, event.Email)
		if err != nil {
			return err
		}
		if exists {
			return signup.WithErrorMetadata(ErrEmailInUse, map[string]any{"email": event.Email})
		}

		hash, err := h.hash(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Email = event.Email
		user.PasswordHash = hash
		user.Announcements = event.Announcements

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, ErrEmailInUse) {
			return nil, err
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account creation transaction failed")
	}

	return user, nil
}
