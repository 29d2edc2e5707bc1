package stores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/me/authapp/internal/api"
	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/observe"
	"github.com/me/authapp/internal/validate"
	"github.com/me/authapp/pkg/model"
)

// Messages surfaced through UserState.
const (
	MsgUserDeleted = "User deleted successfully"
	MsgSampleData  = "Sample data initialized successfully"
)

// UserAPI is the slice of the API client the user store needs.
type UserAPI interface {
	List(ctx context.Context) ([]model.UserRecord, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.UserRecord, error)
	Get(ctx context.Context, id int64) (*model.UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*model.UserRecord, error)
	Create(ctx context.Context, in model.UserInput) (*model.UserRecord, error)
	Update(ctx context.Context, id int64, in model.UserInput) (*model.UserRecord, error)
	Delete(ctx context.Context, id int64) (*model.ActionResponse, error)
	InitSampleData(ctx context.Context) (*model.ActionResponse, error)
}

// UserState is an immutable copy of the user store.
type UserState struct {
	Users        []model.UserRecord
	UsersLoading bool
	UsersError   string

	Selected        *model.UserRecord
	SelectedLoading bool
	SelectedError   string

	OperationLoading bool
	OperationError   string
	OperationSuccess string
}

// Count returns the number of cached users.
func (s UserState) Count() int { return len(s.Users) }

// ByRole returns the users holding role.
func (s UserState) ByRole(role model.Role) []model.UserRecord {
	return filter(s.Users, func(u *model.UserRecord) bool { return u.HasRole(role) })
}

// Admins returns the administrators.
func (s UserState) Admins() []model.UserRecord {
	return s.ByRole(model.RoleAdmin)
}

// Regular returns users with the user role and without the admin role.
func (s UserState) Regular() []model.UserRecord {
	return filter(s.Users, func(u *model.UserRecord) bool {
		return u.HasRole(model.RoleUser) && !u.HasRole(model.RoleAdmin)
	})
}

func filter(users []model.UserRecord, keep func(*model.UserRecord) bool) []model.UserRecord {
	out := make([]model.UserRecord, 0, len(users))
	for i := range users {
		if keep(&users[i]) {
			out = append(out, users[i])
		}
	}
	return out
}

// createFields are required when creating a user.
type createFields struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=3"`
}

// UserStore caches the user collection and the selected user.
type UserStore struct {
	api    UserAPI
	logger *slog.Logger
	hub    observe.Hub[UserState]

	guarded
	state UserState
}

// NewUserStore creates an empty user store.
func NewUserStore(users UserAPI, logger *slog.Logger) *UserStore {
	return &UserStore{
		api:     users,
		logger:  logging.Component(logger, "users"),
		guarded: guarded{lifecycle: newLifecycle()},
	}
}

// Close cancels in-flight requests; later responses are dropped.
func (s *UserStore) Close() { s.cancel() }

// Subscribe registers fn for every state change.
func (s *UserStore) Subscribe(fn func(UserState)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// State returns a copy of the current state.
func (s *UserStore) State() UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *UserStore) stateLocked() UserState {
	st := s.state
	st.Users = cloneRecords(s.state.Users)
	st.Selected = cloneRecord(s.state.Selected)
	return st
}

func (s *UserStore) update(fn func(st *UserState)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.stateLocked()
	seq := s.hub.Stamp()
	s.mu.Unlock()
	s.hub.PublishAt(seq, st)
}

// begin runs fn under the lock and returns the epoch results must match.
func (s *UserStore) begin(fn func(st *UserState)) uint64 {
	var epoch uint64
	s.update(func(st *UserState) {
		fn(st)
		epoch = s.epoch
	})
	return epoch
}

// settle applies fn only if no Reset or Close happened since epoch.
func (s *UserStore) settle(epoch uint64, fn func(st *UserState)) bool {
	applied := false
	s.update(func(st *UserState) {
		if !s.currentLocked(epoch) {
			return
		}
		fn(st)
		applied = true
	})
	if !applied {
		s.logger.Debug("discarding stale result")
	}
	return applied
}

// Count returns the number of cached users.
func (s *UserStore) Count() int { return s.State().Count() }

// ByRole returns cached users holding role.
func (s *UserStore) ByRole(role model.Role) []model.UserRecord { return s.State().ByRole(role) }

// Admins returns cached administrators.
func (s *UserStore) Admins() []model.UserRecord { return s.State().Admins() }

// Regular returns cached non-admin users.
func (s *UserStore) Regular() []model.UserRecord { return s.State().Regular() }

// FetchUsers replaces the collection with the server's list.
func (s *UserStore) FetchUsers(ctx context.Context) error {
	return s.fetchList(ctx, "", func(ctx context.Context) ([]model.UserRecord, error) {
		return s.api.List(ctx)
	})
}

// FetchUsersByRole replaces the collection with the users holding role.
func (s *UserStore) FetchUsersByRole(ctx context.Context, role model.Role) error {
	return s.fetchList(ctx, role, func(ctx context.Context) ([]model.UserRecord, error) {
		return s.api.ListByRole(ctx, role)
	})
}

func (s *UserStore) fetchList(ctx context.Context, role model.Role, fetch func(context.Context) ([]model.UserRecord, error)) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	epoch := s.begin(func(st *UserState) {
		st.UsersLoading = true
		st.UsersError = ""
	})

	users, err := fetch(ctx)
	s.settle(epoch, func(st *UserState) {
		st.UsersLoading = false
		if err != nil {
			st.UsersError = api.ErrorMessage(err)
			return
		}
		if users == nil {
			users = []model.UserRecord{}
		}
		st.Users = users
	})
	if err != nil {
		s.logger.Error("fetch users failed", "role", role, "error", err)
		return err
	}
	s.logger.Debug("users loaded", "role", role, "count", len(users))
	return nil
}

// FetchUser loads one user into the selection.
func (s *UserStore) FetchUser(ctx context.Context, id int64) error {
	return s.fetchOne(ctx, func(ctx context.Context) (*model.UserRecord, error) {
		return s.api.Get(ctx, id)
	})
}

// FetchUserByEmail loads one user into the selection.
func (s *UserStore) FetchUserByEmail(ctx context.Context, email string) error {
	return s.fetchOne(ctx, func(ctx context.Context) (*model.UserRecord, error) {
		return s.api.GetByEmail(ctx, email)
	})
}

func (s *UserStore) fetchOne(ctx context.Context, fetch func(context.Context) (*model.UserRecord, error)) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	epoch := s.begin(func(st *UserState) {
		st.SelectedLoading = true
		st.SelectedError = ""
	})

	u, err := fetch(ctx)
	s.settle(epoch, func(st *UserState) {
		st.SelectedLoading = false
		if err != nil {
			st.SelectedError = api.ErrorMessage(err)
			return
		}
		st.Selected = u
	})
	if err != nil {
		s.logger.Error("fetch user failed", "error", err)
		return err
	}
	return nil
}

// operation runs a mutating call in the operation slot. apply runs under the
// lock on success; the returned message becomes OperationSuccess.
func (s *UserStore) operation(ctx context.Context, name string, call func(context.Context) error, apply func(st *UserState) string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	epoch := s.begin(func(st *UserState) {
		st.OperationLoading = true
		st.OperationError = ""
		st.OperationSuccess = ""
	})

	err := call(ctx)
	s.settle(epoch, func(st *UserState) {
		st.OperationLoading = false
		if err != nil {
			if errors.Is(err, model.ErrValidation) {
				st.OperationError = validate.Message(err)
			} else {
				st.OperationError = api.ErrorMessage(err)
			}
			return
		}
		st.OperationSuccess = apply(st)
	})
	if err != nil {
		s.logger.Error(name+" failed", "error", err)
		return err
	}
	return nil
}

// CreateUser creates a user and appends the server's record.
func (s *UserStore) CreateUser(ctx context.Context, in model.UserInput) (*model.UserRecord, error) {
	var created *model.UserRecord
	err := s.operation(ctx, "create user",
		func(ctx context.Context) error {
			if err := validate.Struct(createFields{Email: in.Email, Password: in.Password}); err != nil {
				return err
			}
			if err := validate.Struct(in); err != nil {
				return err
			}
			u, err := s.api.Create(ctx, in)
			created = u
			return err
		},
		func(st *UserState) string {
			st.Users = append(st.Users, *created)
			s.logger.Info("user created", "id", created.ID, "email", created.Email)
			return fmt.Sprintf("User %s created successfully", created.Email)
		})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateUser updates a user and replaces the first cached record with the
// same id. An id that is not cached leaves the collection unchanged.
func (s *UserStore) UpdateUser(ctx context.Context, id int64, in model.UserInput) (*model.UserRecord, error) {
	var updated *model.UserRecord
	err := s.operation(ctx, "update user",
		func(ctx context.Context) error {
			if err := validate.Struct(in); err != nil {
				return err
			}
			u, err := s.api.Update(ctx, id, in)
			updated = u
			return err
		},
		func(st *UserState) string {
			if i := slices.IndexFunc(st.Users, func(u model.UserRecord) bool { return u.ID == id }); i >= 0 {
				st.Users[i] = *updated
			}
			if st.Selected != nil && st.Selected.ID == id {
				u := *updated
				st.Selected = &u
			}
			s.logger.Info("user updated", "id", id, "email", updated.Email)
			return fmt.Sprintf("User %s updated successfully", updated.Email)
		})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUser deletes a user, removes every cached record with that id, and
// clears a matching selection.
func (s *UserStore) DeleteUser(ctx context.Context, id int64) error {
	return s.operation(ctx, "delete user",
		func(ctx context.Context) error {
			_, err := s.api.Delete(ctx, id)
			return err
		},
		func(st *UserState) string {
			st.Users = slices.DeleteFunc(st.Users, func(u model.UserRecord) bool { return u.ID == id })
			if st.Selected != nil && st.Selected.ID == id {
				st.Selected = nil
			}
			s.logger.Info("user deleted", "id", id)
			return MsgUserDeleted
		})
}

// SeedSampleData asks the server to create its demo accounts.
func (s *UserStore) SeedSampleData(ctx context.Context) error {
	var msg string
	return s.operation(ctx, "seed sample data",
		func(ctx context.Context) error {
			resp, err := s.api.InitSampleData(ctx)
			if resp != nil {
				msg = resp.Message
			}
			return err
		},
		func(*UserState) string {
			if msg == "" {
				msg = MsgSampleData
			}
			return msg
		})
}

// ClearMessages clears the operation error and success message.
func (s *UserStore) ClearMessages() {
	s.update(func(st *UserState) {
		st.OperationError = ""
		st.OperationSuccess = ""
	})
}

// ClearSelectedUser drops the selection and its error.
func (s *UserStore) ClearSelectedUser() {
	s.update(func(st *UserState) {
		st.Selected = nil
		st.SelectedError = ""
	})
}

// Reset returns the store to its initial state. Results of requests
// started before the reset are discarded.
func (s *UserStore) Reset() {
	s.update(func(st *UserState) {
		*st = UserState{}
		s.epoch++
	})
}

func cloneRecord(u *model.UserRecord) *model.UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

func cloneRecords(users []model.UserRecord) []model.UserRecord {
	if users == nil {
		return nil
	}
	out := make([]model.UserRecord, len(users))
	for i := range users {
		out[i] = *cloneRecord(&users[i])
	}
	return out
}
