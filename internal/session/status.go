package session

import (
	"time"

	"github.com/me/authapp/pkg/model"
)

// State is the authentication lifecycle state.
type State string

const (
	Anonymous      State = "anonymous"
	Authenticating State = "authenticating"
	Authenticated  State = "authenticated"
	Expired        State = "expired"
)

// Status is an immutable copy of the manager's state handed to observers.
type Status struct {
	State   State
	User    *model.User
	Session *model.Session

	LoggingIn        bool
	LoggingOut       bool
	ChangingPassword bool

	Error          string
	SuccessMessage string
}

// Loading reports whether any operation is in flight.
func (s Status) Loading() bool {
	return s.LoggingIn || s.LoggingOut || s.ChangingPassword
}

// IsAuthenticated holds when both a user and a session are set.
func (s Status) IsAuthenticated() bool {
	return s.User != nil && s.Session != nil
}

// IsAdmin holds when the authenticated user carries the administrator role.
func (s Status) IsAdmin() bool {
	return s.IsAuthenticated() && s.User.IsAdmin()
}

// IsSessionValid holds when the session expiry is set and strictly after now.
func (s Status) IsSessionValid(now time.Time) bool {
	return s.Session != nil && !s.Session.Expiry.IsZero() && now.Before(s.Session.Expiry)
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = append([]model.Role(nil), u.Roles...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func cloneSession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
