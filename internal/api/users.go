package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/me/authapp/pkg/model"
)

// UserService wraps the user-management endpoints.
type UserService struct {
	c *Client
}

// Users returns the user-management endpoints.
func (c *Client) Users() *UserService { return &UserService{c: c} }

func userPath(id int64) string {
	return "/test/users/" + strconv.FormatInt(id, 10)
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]model.UserRecord, error) {
	var users []model.UserRecord
	if err := s.c.Do(ctx, http.MethodGet, "/test/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListByRole returns the users holding role.
func (s *UserService) ListByRole(ctx context.Context, role model.Role) ([]model.UserRecord, error) {
	var users []model.UserRecord
	path := "/test/users/role/" + url.PathEscape(string(role))
	if err := s.c.Do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, id int64) (*model.UserRecord, error) {
	var u model.UserRecord
	if err := s.c.Do(ctx, http.MethodGet, userPath(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns one user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.UserRecord, error) {
	var u model.UserRecord
	path := "/test/users/email/" + url.PathEscape(email)
	if err := s.c.Do(ctx, http.MethodGet, path, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create adds a user and returns the stored record.
func (s *UserService) Create(ctx context.Context, in model.UserInput) (*model.UserRecord, error) {
	var u model.UserRecord
	if err := s.c.Do(ctx, http.MethodPost, "/test/users", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update replaces the fields set in in and returns the stored record.
func (s *UserService) Update(ctx context.Context, id int64, in model.UserInput) (*model.UserRecord, error) {
	var u model.UserRecord
	if err := s.c.Do(ctx, http.MethodPut, userPath(id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id int64) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := s.c.Do(ctx, http.MethodDelete, userPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitSampleData asks the server to seed its demo accounts.
func (s *UserService) InitSampleData(ctx context.Context) (*model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := s.c.Do(ctx, http.MethodPost, "/test/init-data", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
