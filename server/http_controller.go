package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	signup "github.com/goliatone/go-signup"
)

// Route paths served by the controller.
const (
	CheckEmailPath = "/api/auth/check-email"
	SignUpPath     = "/api/auth/sign-up"
	HealthPath     = "/healthz"
)

// Response messages.
const (
	MsgOk                 = "Ok"
	MsgEmailRequired      = "Email is required"
	MsgEmailInUse         = "Email is already in use"
	MsgFailedCreateUser   = "Failed to create user"
	MsgFailedCheckEmail   = "Failed to check email"
	MsgInvalidRequestBody = "Invalid request body"
)

// StatusResponse is the generic response body.
type StatusResponse struct {
	StatusCode    int    `json:"statusCode,omitempty"`
	StatusMessage string `json:"statusMessage"`
}

// Controller serves the account endpoints.
type Controller struct {
	Debug      bool
	Logger     signup.Logger
	Repo       RepositoryManager
	Accounts   *CreateAccountHandler
	MaxLatency time.Duration
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller) *Controller

// WithControllerLogger overrides the logger.
func WithControllerLogger(logger signup.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug enables debug dumps of responses.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// WithSimulatedLatency delays every API response by a random duration up to max.
func WithSimulatedLatency(max time.Duration) ControllerOption {
	return func(c *Controller) *Controller {
		if max > 0 {
			c.MaxLatency = max
		}
		return c
	}
}

// WithPasswordHasher overrides how passwords are hashed.
func WithPasswordHasher(hash Hasher) ControllerOption {
	return func(c *Controller) *Controller {
		c.Accounts = NewCreateAccountHandler(c.Repo, hash)
		return c
	}
}

// NewController returns a Controller over repo.
func NewController(repo RepositoryManager, opts ...ControllerOption) *Controller {
	if repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	c := &Controller{
		Logger:   signup.NopLogger(),
		Repo:     repo,
		Accounts: NewCreateAccountHandler(repo, nil),
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// RegisterAccountRoutes mounts the controller routes on app.
func RegisterAccountRoutes[T any](app router.Router[T], controller *Controller) {
	app.Get(HealthPath, controller.Health).
		SetName("healthz")

	app.Get(CheckEmailPath, controller.CheckEmail).
		SetName("check-email.get")

	app.Post(SignUpPath, controller.SignUp).
		SetName("sign-up.post")
}

// Health reports liveness.
func (c *Controller) Health(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, StatusResponse{StatusMessage: MsgOk})
}

// CheckEmail answers 200 when the email is free and 422 when it is missing
// or already registered.
func (c *Controller) CheckEmail(ctx router.Context) error {
	c.simulateLatency(ctx.Context())

	email := strings.TrimSpace(ctx.Query("email"))
	if email == "" {
		return c.status(ctx, http.StatusUnprocessableEntity, MsgEmailRequired)
	}

	exists, err := c.Repo.Users().ExistsByEmail(ctx.Context(), email)
	if err != nil {
		c.Logger.Error("check email failed", "email", email, "error", err)
		return c.status(ctx, http.StatusInternalServerError, MsgFailedCheckEmail)
	}

	if exists {
		return c.status(ctx, http.StatusUnprocessableEntity, MsgEmailInUse)
	}

	return ctx.JSON(router.StatusOK, StatusResponse{StatusMessage: MsgOk})
}

// SignUp creates the account and returns the user without its password hash.
func (c *Controller) SignUp(ctx router.Context) error {
	c.simulateLatency(ctx.Context())

	payload := new(signup.SignUpRequest)
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Warn("invalid sign up payload", "error", err)
		return c.status(ctx, http.StatusBadRequest, MsgInvalidRequestBody)
	}

	user, err := c.Accounts.Execute(ctx.Context(), CreateAccountMessage{
		Email:         payload.Email,
		Password:      payload.Password,
		Announcements: payload.Announcements,
	})

	if err != nil {
		if verr, ok := signup.AsValidationError(err); ok {
			return ctx.JSON(http.StatusUnprocessableEntity, verr)
		}

		if errors.Is(err, ErrEmailInUse) {
			return ctx.JSON(http.StatusUnprocessableEntity, signup.NewValidationError(
				signup.FieldError{Field: "email", Message: MsgEmailInUse},
			))
		}

		c.Logger.Error("create account failed", "email", payload.Email, "error", err)
		return c.status(ctx, http.StatusInternalServerError, MsgFailedCreateUser)
	}

	c.Logger.Info("account created", "user_id", user.ID)
	if c.Debug {
		c.Logger.Debug("created user", "user", print.MaybePrettyJSON(user))
	}

	return ctx.JSON(router.StatusOK, user)
}

func (c *Controller) status(ctx router.Context, code int, msg string) error {
	return ctx.JSON(code, StatusResponse{
		StatusCode:    code,
		StatusMessage: msg,
	})
}

func (c *Controller) simulateLatency(ctx context.Context) {
	if c.MaxLatency <= 0 {
		return
	}

	t := time.NewTimer(rand.N(c.MaxLatency))
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
