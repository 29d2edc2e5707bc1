package model

import "time"

// Session is a server-issued token plus its expiry.
type Session struct {
	ID     string    `json:"id"`
	Expiry time.Time `json:"expiry"`
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return s == nil || s.Expiry.IsZero() || !now.Before(s.Expiry)
}

// Credentials are the login form values. Never persisted.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// PasswordChange is the body of a change-password request.
type PasswordChange struct {
	Email           string `json:"email" validate:"required,email"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// LoginResponse is the payload of POST /auth/login.
type LoginResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Roles         []Role `json:"roles"`
	Enabled       bool   `json:"enabled"`
	LastLogin     *Time  `json:"lastLogin,omitempty"`
	SessionID     string `json:"sessionId"`
	SessionExpiry *Time  `json:"sessionExpiry,omitempty"`
}

// User extracts the authenticated identity from the response.
func (r *LoginResponse) User() *User {
	return &User{
		ID:        r.ID,
		Email:     r.Email,
		Roles:     append([]Role(nil), r.Roles...),
		Enabled:   r.Enabled,
		LastLogin: r.LastLogin,
	}
}

// ActionResponse is the generic {success, message} reply.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ValidateResponse is the payload of GET /auth/validate.
type ValidateResponse struct {
	Valid     bool   `json:"valid"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
}
