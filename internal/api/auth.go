package api

import (
	"context"
	"net/http"

	"github.com/me/authapp/pkg/model"
)

// AuthService wraps the /auth endpoints.
type AuthService struct {
	c *Client
}

// Auth returns the authentication endpoints.
func (c *Client) Auth() *AuthService { return &AuthService{c: c} }

// Login posts credentials. A rejected login (HTTP 400 with success=false)
// is returned as a *model.APIError of kind domain.
func (s *AuthService) Login(ctx context.Context, creds model.Credentials) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	if err := s.c.Do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the server to end sessionID.
func (s *AuthService) Logout(ctx context.Context, sessionID string) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := s.c.Do(ctx, http.MethodPost, "/auth/logout", struct{}{}, &resp, WithHeader(SessionHeader, sessionID)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChangePassword updates the password for data.Email.
func (s *AuthService) ChangePassword(ctx context.Context, data model.PasswordChange) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := s.c.Do(ctx, http.MethodPost, "/auth/change-password", data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateSession asks the server whether sessionID is still live.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*model.ValidateResponse, error) {
	var resp model.ValidateResponse
	if err := s.c.Do(ctx, http.MethodGet, "/auth/validate", nil, &resp, WithHeader(SessionHeader, sessionID)); err != nil {
		return nil, err
	}
	return &resp, nil
}
