// Package api is the HTTP client for the user-management backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/pkg/model"
)

// DefaultTimeout is the per-request deadline when none is configured.
const DefaultTimeout = 10 * time.Second

// Header names used on the wire.
const (
	RequestIDHeader = "X-Request-ID"
	SessionHeader   = "X-Session-ID"
)

// TokenSource supplies the bearer token and is told when the server rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ClearToken(ctx context.Context)
}

// Client is an HTTP client for the user-management API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Tokens     TokenSource
}

// NewClient creates an API client. A non-positive timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logging.Component(logger, "api"),
	}
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithHeader sets a header on the request. Empty values are skipped.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		if value != "" {
			r.Header.Set(key, value)
		}
	}
}

// errorBody is the shape of non-2xx payloads.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Do performs an HTTP request. body is JSON-encoded when non-nil; a 2xx
// response body is decoded into out when out is non-nil. Every failure is
// returned as *model.APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	url := c.BaseURL + path
	requestID := uuid.NewString()
	logger := c.Logger.With("method", method, "path", path, "request_id", requestID)

	fail := func(kind model.ErrorKind, status int, err error) *model.APIError {
		return &model.APIError{Kind: kind, Method: method, Path: path, Status: status, Err: err}
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(model.KindUnexpected, 0, fmt.Errorf("marshal request: %w", err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fail(model.KindUnexpected, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if c.Tokens != nil {
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			logger.Warn("read token", "error", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for _, opt := range opts {
		opt(req)
	}

	logger.Debug("HTTP request", "url", url)
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		kind := model.KindTransport
		if isTimeout(err) {
			kind = model.KindTimeout
		}
		logger.Error("request failed", "kind", kind, "duration", time.Since(start), "error", err)
		return fail(kind, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		kind := model.KindTransport
		if isTimeout(err) {
			kind = model.KindTimeout
		}
		return fail(kind, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	logger.Debug("HTTP response", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := fail(model.KindDomain, resp.StatusCode, fmt.Errorf("request failed with status code %d", resp.StatusCode))
		var eb errorBody
		if len(respBody) > 0 && json.Unmarshal(respBody, &eb) == nil {
			apiErr.ServerMessage = eb.Message
			apiErr.ServerError = eb.Error
		}
		if resp.StatusCode == http.StatusUnauthorized {
			apiErr.Kind = model.KindUnauthorized
			if c.Tokens != nil {
				c.Tokens.ClearToken(context.WithoutCancel(ctx))
			}
		}
		logger.Error("request rejected", "status", resp.StatusCode, "kind", apiErr.Kind, "duration", time.Since(start))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fail(model.KindUnexpected, resp.StatusCode, fmt.Errorf("parse response: %w", err))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
