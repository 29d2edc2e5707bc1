package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/pkg/model"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	err     error
	cleared int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.err
}

func (f *fakeTokens) ClearToken(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.token = ""
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second, logging.Discard())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("http://localhost:8080/api/", 0, nil)
	if c.BaseURL != "http://localhost:8080/api" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", c.BaseURL)
	}
	if c.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %s, want %s", c.HTTPClient.Timeout, DefaultTimeout)
	}
}

func TestDo_Headers(t *testing.T) {
	var got http.Header
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	})
	c.Tokens = &fakeTokens{token: "sess-1"}

	if err := c.Do(context.Background(), http.MethodPost, "/x", map[string]string{"a": "b"}, nil, WithHeader(SessionHeader, "sess-1")); err != nil {
		t.Fatalf("Do: %v", err)
	}

	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", got.Get("Content-Type"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", got.Get("Accept"))
	}
	if got.Get("Authorization") != "Bearer sess-1" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get(SessionHeader) != "sess-1" {
		t.Errorf("%s = %q", SessionHeader, got.Get(SessionHeader))
	}
	if len(got.Get(RequestIDHeader)) != 36 {
		t.Errorf("%s = %q, want a uuid", RequestIDHeader, got.Get(RequestIDHeader))
	}
}

func TestDo_NoTokenNoAuthorization(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	})
	c.Tokens = &fakeTokens{err: errors.New("store closed")}

	if err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want none", auth)
	}
}

func TestDo_DomainError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"Invalid email or password"}`))
	})

	err := c.Do(context.Background(), http.MethodPost, "/auth/login", nil, nil)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Kind != model.KindDomain || apiErr.Status != http.StatusBadRequest {
		t.Errorf("kind=%s status=%d", apiErr.Kind, apiErr.Status)
	}
	if apiErr.ServerMessage != "Invalid email or password" {
		t.Errorf("ServerMessage = %q", apiErr.ServerMessage)
	}
}

func TestDo_UnauthorizedClearsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokens := &fakeTokens{token: "stale"}
	c.Tokens = tokens

	err := c.Do(context.Background(), http.MethodGet, "/test/users", nil, nil)
	if model.KindOf(err) != model.KindUnauthorized {
		t.Fatalf("kind = %s, want unauthorized", model.KindOf(err))
	}
	if tokens.cleared != 1 {
		t.Errorf("ClearToken called %d times, want 1", tokens.cleared)
	}
}

func TestDo_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	c := NewClient(srv.URL, 50*time.Millisecond, logging.Discard())
	err := c.Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	if model.KindOf(err) != model.KindTimeout {
		t.Fatalf("kind = %s (%v), want timeout", model.KindOf(err), err)
	}
}

func TestDo_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, logging.Discard())
	err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	if model.KindOf(err) != model.KindTransport {
		t.Fatalf("kind = %s (%v), want transport", model.KindOf(err), err)
	}
	if ErrorMessage(err) == "" || ErrorMessage(err) == FallbackMessage {
		t.Errorf("transport errors should surface their own message, got %q", ErrorMessage(err))
	}
}

func TestDo_DecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	var out map[string]any
	err := c.Do(context.Background(), http.MethodGet, "/x", nil, &out)
	if model.KindOf(err) != model.KindUnexpected {
		t.Fatalf("kind = %s, want unexpected", model.KindOf(err))
	}
}

func TestDo_EncodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	err := c.Do(context.Background(), http.MethodPost, "/x", map[string]any{"f": func() {}}, nil)
	if model.KindOf(err) != model.KindUnexpected {
		t.Fatalf("kind = %s, want unexpected", model.KindOf(err))
	}
}

func TestDo_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, http.MethodGet, "/x", nil, nil)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"server message wins", &model.APIError{ServerMessage: "m", ServerError: "e", Err: errors.New("t")}, "m"},
		{"server error next", &model.APIError{ServerError: "e", Err: errors.New("t")}, "e"},
		{"transport message", &model.APIError{Err: errors.New("connection refused")}, "connection refused"},
		{"fallback", &model.APIError{}, FallbackMessage},
		{"plain error", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.want {
				t.Errorf("ErrorMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDo_StatusCodeInMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.Do(context.Background(), http.MethodGet, "/test/users/9", nil, nil)
	if !strings.Contains(ErrorMessage(err), "404") {
		t.Errorf("ErrorMessage = %q, want status code", ErrorMessage(err))
	}
}

func TestAuthService_LogoutSendsEmptyObject(t *testing.T) {
	var body, session, contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		session = r.Header.Get(SessionHeader)
		contentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"success":true,"message":"Logged out successfully"}`))
	})

	resp, err := c.Auth().Logout(context.Background(), "sess-9")
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if strings.TrimSpace(body) != "{}" {
		t.Errorf("body = %q, want {}", body)
	}
	if session != "sess-9" {
		t.Errorf("%s = %q", SessionHeader, session)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
}
