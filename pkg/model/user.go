package model

import "slices"

// Role is a server-side authority string such as "ROLE_ADMIN".
type Role string

const (
	// RoleUser is granted to every regular account.
	RoleUser Role = "ROLE_USER"
	// RoleAdmin marks an administrator.
	RoleAdmin Role = "ROLE_ADMIN"
)

// User is the authenticated identity returned by a successful login.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Roles     []Role `json:"roles"`
	Enabled   bool   `json:"enabled"`
	LastLogin *Time  `json:"lastLogin,omitempty"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(r Role) bool {
	return u != nil && slices.Contains(u.Roles, r)
}

// IsAdmin returns true if the user has the administrator role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// UserRecord is a user as returned by the user-management endpoints.
type UserRecord struct {
	ID                    int64  `json:"id"`
	Email                 string `json:"email"`
	Roles                 []Role `json:"roles"`
	Enabled               *bool  `json:"enabled,omitempty"`
	AccountNonExpired     *bool  `json:"accountNonExpired,omitempty"`
	AccountNonLocked      *bool  `json:"accountNonLocked,omitempty"`
	CredentialsNonExpired *bool  `json:"credentialsNonExpired,omitempty"`
	CreatedAt             *Time  `json:"createdAt,omitempty"`
	UpdatedAt             *Time  `json:"updatedAt,omitempty"`
}

// HasRole reports whether the record carries the given role.
func (r *UserRecord) HasRole(role Role) bool {
	return r != nil && slices.Contains(r.Roles, role)
}

// IsEnabled treats a missing flag as enabled, matching the server default.
func (r *UserRecord) IsEnabled() bool {
	return r != nil && (r.Enabled == nil || *r.Enabled)
}

// UserInput is the request body for creating or updating a user.
type UserInput struct {
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=3"`
	Roles    []Role `json:"roles,omitempty" validate:"dive,oneof=ROLE_USER ROLE_ADMIN"`
	Enabled  *bool  `json:"enabled,omitempty"`
}
