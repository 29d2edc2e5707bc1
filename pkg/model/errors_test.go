package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Kind: KindDomain, Method: "POST", Path: "/auth/login", Status: 400, ServerMessage: "Invalid email or password"}
	want := "POST /auth/login: domain (status 400): Invalid email or password"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_ErrorFallsBackToCause(t *testing.T) {
	err := &APIError{Kind: KindTransport, Method: "GET", Path: "/test/health", Err: errors.New("connection refused")}
	want := "GET /test/health: transport: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("list users: %w", &APIError{Kind: KindUnexpected, Err: cause})
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through APIError")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&APIError{Kind: KindTimeout}, KindTimeout},
		{fmt.Errorf("wrapped: %w", &APIError{Kind: KindUnauthorized}), KindUnauthorized},
		{errors.New("plain"), KindUnexpected},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestUser_HasRole(t *testing.T) {
	u := &User{Roles: []Role{RoleUser, RoleAdmin}}
	if !u.IsAdmin() {
		t.Error("expected admin")
	}
	var nilUser *User
	if nilUser.HasRole(RoleUser) {
		t.Error("nil user must not have roles")
	}
	if (&User{Roles: []Role{RoleUser}}).IsAdmin() {
		t.Error("plain user must not be admin")
	}
}

func TestUserRecord_IsEnabled(t *testing.T) {
	disabled := false
	if !(&UserRecord{}).IsEnabled() {
		t.Error("missing flag should read as enabled")
	}
	if (&UserRecord{Enabled: &disabled}).IsEnabled() {
		t.Error("explicit false should read as disabled")
	}
}
