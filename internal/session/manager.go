// Package session owns the client's authentication lifecycle: login,
// persistence of the session snapshot, restore at start-up, expiry, and logout.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/me/authapp/internal/api"
	"github.com/me/authapp/internal/kv"
	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/observe"
	"github.com/me/authapp/internal/validate"
	"github.com/me/authapp/pkg/model"
)

// Messages surfaced through Status.
const (
	MsgLoginSuccess         = "Login successful! Welcome back."
	MsgLoginFailed          = "Login failed"
	MsgLogoutSuccess        = "Logged out successfully"
	MsgPasswordChanged      = "Password changed successfully!"
	MsgPasswordChangeFailed = "Password change failed"
	MsgSessionExpired       = "Your session has expired. Please sign in again."
	MsgSessionSaveFailed    = "Could not save your session. Please try again."
	MsgSessionClearFailed   = "Signed out, but the saved session could not be removed."
	MsgNotSignedIn          = "You are not signed in"
)

// AuthAPI is the slice of the API client the manager needs.
type AuthAPI interface {
	Login(ctx context.Context, creds model.Credentials) (*model.LoginResponse, error)
	Logout(ctx context.Context, sessionID string) (*model.ActionResponse, error)
	ChangePassword(ctx context.Context, data model.PasswordChange) (*model.ActionResponse, error)
	ValidateSession(ctx context.Context, sessionID string) (*model.ValidateResponse, error)
}

// Manager is the session lifecycle state machine. It is safe for concurrent
// use. The lock is held only around state reads and writes, never across a
// network call.
type Manager struct {
	auth   AuthAPI
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
	hub    observe.Hub[Status]

	ctx    context.Context
	cancel context.CancelFunc

	// persistMu serializes snapshot writes with the in-memory transition
	// they belong to.
	persistMu sync.Mutex

	mu               sync.Mutex
	state            State
	user             *model.User
	session          *model.Session
	loggingIn        bool
	loggingOut       bool
	changingPassword bool
	errMsg           string
	successMsg       string
	epoch            uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager in the Anonymous state. Call RestoreSession to pick
// up a snapshot from a previous run.
func New(auth AuthAPI, store kv.Store, logger *slog.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		auth:   auth,
		store:  store,
		logger: logging.Component(logger, "session"),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		state:  Anonymous,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close cancels every request the manager has in flight. Responses that
// arrive afterwards are dropped.
func (m *Manager) Close() {
	m.cancel()
}

// Subscribe registers fn for every state change.
func (m *Manager) Subscribe(fn func(Status)) (unsubscribe func()) {
	return m.hub.Subscribe(fn)
}

// Status returns a copy of the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:            m.state,
		User:             cloneUser(m.user),
		Session:          cloneSession(m.session),
		LoggingIn:        m.loggingIn,
		LoggingOut:       m.loggingOut,
		ChangingPassword: m.changingPassword,
		Error:            m.errMsg,
		SuccessMessage:   m.successMsg,
	}
}

// update applies fn under the lock and publishes the resulting state.
func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	st := m.statusLocked()
	seq := m.hub.Stamp()
	m.mu.Unlock()
	m.hub.PublishAt(seq, st)
}

// IsAuthenticated holds when both a user and a session are set.
func (m *Manager) IsAuthenticated() bool { return m.Status().IsAuthenticated() }

// IsAdmin holds when the authenticated user is an administrator.
func (m *Manager) IsAdmin() bool { return m.Status().IsAdmin() }

// IsSessionValid holds when the session expiry is in the future.
func (m *Manager) IsSessionValid() bool { return m.Status().IsSessionValid(m.now()) }

// ClearMessages resets the error and success messages without touching
// the authentication state.
func (m *Manager) ClearMessages() {
	m.update(func() {
		m.errMsg = ""
		m.successMsg = ""
	})
}

// opContext derives a request context that also ends when the manager closes.
func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// current reports whether results from an operation started at epoch may
// still be applied.
func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch && m.ctx.Err() == nil
}

// Login submits credentials. It never returns an error: failures are
// reported through Status.Error and a false result.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) bool {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var epoch uint64
	var prev State
	m.update(func() {
		m.loggingIn = true
		m.errMsg = ""
		m.successMsg = ""
		prev = m.state
		m.state = Authenticating
		epoch = m.epoch
	})
	defer m.update(func() { m.loggingIn = false })

	fail := func(msg string) bool {
		m.update(func() {
			if m.epoch != epoch {
				return
			}
			m.state = Anonymous
			if prev == Authenticated && m.user != nil && m.session != nil {
				m.state = Authenticated
			}
			m.errMsg = msg
		})
		return false
	}

	if err := validate.Struct(creds); err != nil {
		return fail(validate.Message(err))
	}

	m.logger.Info("login attempt", "email", creds.Email)
	resp, err := m.auth.Login(ctx, creds)
	if err != nil {
		if !m.current(epoch) {
			m.logger.Debug("discarding stale login failure", "error", err)
			return false
		}
		m.logger.Warn("login failed", "email", creds.Email, "kind", model.KindOf(err), "error", err)
		return fail(api.ErrorMessage(err))
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = MsgLoginFailed
		}
		m.logger.Warn("login rejected", "email", creds.Email, "message", msg)
		return fail(msg)
	}
	if resp.SessionID == "" || resp.SessionExpiry == nil || resp.SessionExpiry.IsZero() {
		m.logger.Error("login response without session", "email", creds.Email)
		return fail(MsgLoginFailed)
	}

	user := resp.User()
	sess := &model.Session{ID: resp.SessionID, Expiry: resp.SessionExpiry.Time}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if !m.current(epoch) {
		m.logger.Info("discarding login response that arrived after logout", "email", creds.Email)
		return false
	}

	storeCtx := context.WithoutCancel(ctx)
	if err := m.writeSnapshot(storeCtx, user, sess); err != nil {
		m.logger.Error("write session snapshot", "error", err)
		if derr := m.deleteSnapshot(storeCtx); derr != nil {
			m.logger.Error("remove partial session snapshot", "error", derr)
		}
		m.update(func() {
			m.user = nil
			m.session = nil
		})
		return fail(MsgSessionSaveFailed)
	}

	m.update(func() {
		m.user = user
		m.session = sess
		m.state = Authenticated
		m.successMsg = MsgLoginSuccess
	})
	m.logger.Info("login successful", "email", user.Email, "expires", sess.Expiry)
	return true
}

// Logout ends the session. The server is notified only when a session
// exists; a failed notification is logged and does not prevent the local
// clear. Any login still in flight is discarded.
func (m *Manager) Logout(ctx context.Context) bool {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var sessionID, email string
	m.update(func() {
		m.loggingOut = true
		m.errMsg = ""
		m.epoch++
		if m.session != nil {
			sessionID = m.session.ID
		}
		if m.user != nil {
			email = m.user.Email
		}
	})
	defer m.update(func() { m.loggingOut = false })

	if sessionID != "" {
		m.logger.Info("logging out", "email", email)
		if _, err := m.auth.Logout(ctx, sessionID); err != nil {
			m.logger.Warn("server logout failed", "kind", model.KindOf(err), "error", err)
		}
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	err := m.deleteSnapshot(context.WithoutCancel(ctx))
	m.update(func() {
		m.user = nil
		m.session = nil
		m.state = Anonymous
		m.successMsg = MsgLogoutSuccess
		m.errMsg = ""
		if err != nil {
			m.errMsg = MsgSessionClearFailed
		}
	})
	if err != nil {
		m.logger.Error("delete session snapshot", "error", err)
		return false
	}
	return true
}

// ChangePassword updates the signed-in user's password. An empty Email is
// filled from the current user. Failure never invalidates the session.
func (m *Manager) ChangePassword(ctx context.Context, data model.PasswordChange) bool {
	ctx, cancel := m.opContext(ctx)
	defer cancel()

	var epoch uint64
	m.update(func() {
		m.changingPassword = true
		m.errMsg = ""
		m.successMsg = ""
		epoch = m.epoch
		if data.Email == "" && m.user != nil {
			data.Email = m.user.Email
		}
	})
	defer m.update(func() { m.changingPassword = false })

	setErr := func(msg string) bool {
		m.update(func() { m.errMsg = msg })
		return false
	}

	if err := validate.Struct(data); err != nil {
		return setErr(validate.Message(err))
	}

	resp, err := m.auth.ChangePassword(ctx, data)
	if !m.current(epoch) {
		m.logger.Debug("discarding stale password change result")
		return false
	}
	if err != nil {
		m.logger.Warn("password change failed", "email", data.Email, "kind", model.KindOf(err), "error", err)
		return setErr(api.ErrorMessage(err))
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = MsgPasswordChangeFailed
		}
		return setErr(msg)
	}

	m.update(func() { m.successMsg = MsgPasswordChanged })
	m.logger.Info("password changed", "email", data.Email)
	return true
}

// ValidateSession asks the server whether the current session is still
// live. It never changes state; failures count as invalid.
func (m *Manager) ValidateSession(ctx context.Context) bool {
	m.mu.Lock()
	var sessionID string
	if m.session != nil {
		sessionID = m.session.ID
	}
	m.mu.Unlock()
	if sessionID == "" {
		return false
	}

	ctx, cancel := m.opContext(ctx)
	defer cancel()

	resp, err := m.auth.ValidateSession(ctx, sessionID)
	if err != nil {
		m.logger.Warn("session validation failed", "kind", model.KindOf(err), "error", err)
		return false
	}
	return resp.Valid
}

// RestoreSession reads the snapshot left by a previous run. A complete,
// unexpired snapshot is promoted to Authenticated without contacting the
// server; anything else is deleted.
func (m *Manager) RestoreSession(ctx context.Context) bool {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	snap, present, err := m.readSnapshot(ctx)
	if err != nil {
		m.logger.Error("read session snapshot", "error", err)
		return false
	}
	if !present {
		return false
	}
	if snap == nil || snap.session.IsExpired(m.now()) {
		if snap != nil {
			m.logger.Info("stored session expired", "email", snap.user.Email, "expired", snap.session.Expiry)
		}
		if err := m.deleteSnapshot(ctx); err != nil {
			m.logger.Error("delete session snapshot", "error", err)
		}
		return false
	}

	m.update(func() {
		m.user = snap.user
		m.session = snap.session
		m.state = Authenticated
	})
	m.logger.Info("session restored", "email", snap.user.Email, "expires", snap.session.Expiry)
	return true
}

// ExpireIfStale moves an Authenticated manager whose session expiry has
// passed to Expired, clearing the user, session and snapshot. It reports
// whether an expiry happened.
func (m *Manager) ExpireIfStale(ctx context.Context) bool {
	m.mu.Lock()
	stale := m.state == Authenticated && m.session.IsExpired(m.now())
	m.mu.Unlock()
	if !stale {
		return false
	}
	return m.expire(ctx, "expired locally")
}

func (m *Manager) expire(ctx context.Context, reason string) bool {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	var expired bool
	var email string
	m.update(func() {
		if m.user == nil && m.session == nil {
			return
		}
		if m.user != nil {
			email = m.user.Email
		}
		m.user = nil
		m.session = nil
		m.state = Expired
		m.errMsg = MsgSessionExpired
		m.successMsg = ""
		m.epoch++
		expired = true
	})
	if err := m.deleteSnapshot(context.WithoutCancel(ctx)); err != nil {
		m.logger.Error("delete session snapshot", "error", err)
	}
	if expired {
		m.logger.Info("session expired", "email", email, "reason", reason)
	}
	return expired
}

// Token returns the bearer token, which is the stored session id.
func (m *Manager) Token(ctx context.Context) (string, error) {
	v, ok, err := m.store.Get(ctx, KeySessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// ClearToken is called by the transport when the server answers 401. The
// session is expired in memory and in storage.
func (m *Manager) ClearToken(ctx context.Context) {
	m.expire(ctx, "rejected by server")
}

// ErrNotSignedIn is returned by helpers that require a session.
var ErrNotSignedIn = errors.New(MsgNotSignedIn)

// RequireUser returns the signed-in user or ErrNotSignedIn.
func (m *Manager) RequireUser() (*model.User, error) {
	st := m.Status()
	if !st.IsAuthenticated() {
		return nil, ErrNotSignedIn
	}
	return st.User, nil
}

var _ api.TokenSource = (*Manager)(nil)
