// Package client talks to the account service over HTTP. It implements the
// two remote operations the session store and the availability validator
// depend on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	signup "github.com/goliatone/go-signup"
)

const (
	SignUpPath     = "/api/auth/sign-up"
	CheckEmailPath = "/api/auth/check-email"

	// HeaderRequestID correlates client calls with server logs.
	HeaderRequestID = "X-Request-ID"

	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

var (
	_ signup.AccountCreator      = (*Client)(nil)
	_ signup.AvailabilityChecker = (*Client)(nil)
)

// StatusResponse is the generic error body of the account service.
type StatusResponse struct {
	StatusCode    int    `json:"statusCode,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per request timeout of the default http client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger signup.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is the account service HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     signup.Logger
}

// New returns a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     signup.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateAccount posts the sign-up payload. A 422 answer is returned as a
// *signup.ValidationError; any other failure maps to
// signup.ErrCreateAccountFailed.
func (c *Client) CreateAccount(ctx context.Context, req signup.SignUpRequest) (*signup.User, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode sign up request")
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, SignUpPath, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("create account request failed", "error", err)
		return nil, ErrUnreachable(err, SignUpPath)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, decodeValidationError(resp)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		status := readStatus(resp)
		c.logger.Warn("create account rejected", "status", resp.StatusCode, "message", status.StatusMessage)
		return nil, signup.WithErrorMetadata(signup.ErrCreateAccountFailed, map[string]any{
			"status":  resp.StatusCode,
			"message": status.StatusMessage,
		})
	}

	user := &signup.User{}
	if err := json.NewDecoder(resp.Body).Decode(user); err != nil {
		return nil, signup.WithErrorMetadata(signup.ErrCreateAccountFailed, map[string]any{
			"reason": "invalid response body",
			"error":  err.Error(),
		})
	}
	if user.Email == "" {
		return nil, signup.WithErrorMetadata(signup.ErrCreateAccountFailed, map[string]any{
			"reason": "empty response",
		})
	}
	return user, nil
}

// CheckEmailAvailable asks whether email can be used. A 2xx answer returns
// nil; 422 returns an error matching signup.ErrEmailTaken; anything else is
// a transport or service failure.
func (c *Client) CheckEmailAvailable(ctx context.Context, email string) error {
	query := url.Values{}
	query.Set("email", email)

	httpReq, err := c.newRequest(ctx, http.MethodGet, CheckEmailPath, query, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ErrUnreachable(err, CheckEmailPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	status := readStatus(resp)
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return signup.WithErrorMetadata(signup.ErrEmailTaken, map[string]any{
			"email":   email,
			"message": status.StatusMessage,
		})
	}

	return goerrors.New("availability check failed", goerrors.CategoryOperation).
		WithCode(resp.StatusCode).
		WithTextCode("AVAILABILITY_CHECK_FAILED").
		WithMetadata(map[string]any{
			"email":   email,
			"status":  resp.StatusCode,
			"message": status.StatusMessage,
		})
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request").
			WithMetadata(map[string]any{"path": path})
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	return req, nil
}

// ErrUnreachable wraps a transport error.
func ErrUnreachable(err error, path string) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, "account service unreachable").
		WithTextCode("SERVICE_UNREACHABLE").
		WithMetadata(map[string]any{"path": path})
}

func decodeValidationError(resp *http.Response) error {
	verr := &signup.ValidationError{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(verr); err != nil || len(verr.ValidationErrors) == 0 {
		return signup.NewValidationError()
	}
	verr.StatusCode = http.StatusUnprocessableEntity
	return verr
}

func readStatus(resp *http.Response) StatusResponse {
	var status StatusResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return status
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		status.StatusMessage = strings.TrimSpace(string(raw))
	}
	return status
}
