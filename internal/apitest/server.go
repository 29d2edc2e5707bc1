// Package apitest is an in-memory fake of the user-management API for tests.
//
// It serves the same routes as the real backend under /api, keeps users and
// sessions in memory, and lets tests inject failures or hold requests open.
package apitest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/pkg/model"
)

// Seeded accounts created by POST /test/init-data.
const (
	AdminEmail    = "admin@authapp.com"
	AdminPassword = "admin123"
	UserEmail     = "user@authapp.com"
	UserPassword  = "user123"
)

// DefaultSessionTTL matches the backend's 24 hour sessions.
const DefaultSessionTTL = 24 * time.Hour

type account struct {
	record   model.UserRecord
	password string
}

// Request is a recorded inbound call.
type Request struct {
	Method string
	Path   string
	Header http.Header
}

type failure struct {
	status int
	body   any
}

// Server is the fake backend. Routes are relative to /api.
type Server struct {
	router chi.Router
	logger *slog.Logger

	mu          sync.Mutex
	nextID      int64
	accounts    []*account
	sessions    map[string]time.Time
	failures    map[string]failure
	holds       map[string]chan struct{}
	requests    []Request
	requireAuth bool

	// SessionTTL is the lifetime of sessions issued by login.
	SessionTTL time.Duration
	// Now is the fake's clock.
	Now func() time.Time
}

// New creates an empty fake backend.
func New(logger *slog.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logging.Component(logger, "apitest"),
		nextID:     1,
		sessions:   make(map[string]time.Time),
		failures:   make(map[string]failure),
		holds:      make(map[string]chan struct{}),
		SessionTTL: DefaultSessionTTL,
		Now:        time.Now,
	}
	s.routes()
	return s
}

// Start serves s on a local httptest server closed at the end of the test
// and returns the API base URL.
func Start(tb testing.TB) (*Server, string) {
	tb.Helper()
	s := New(nil)
	ts := httptest.NewServer(s)
	tb.Cleanup(ts.Close)
	return s, ts.URL + "/api"
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.inject)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/change-password", s.handleChangePassword)
			r.Get("/validate", s.handleValidate)
		})
		r.Route("/test", func(r chi.Router) {
			r.Use(s.authorize)
			r.Get("/health", s.handleHealth)
			r.Get("/stats", s.handleStats)
			r.Post("/init-data", s.handleInitData)
			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Get("/users/role/{role}", s.handleUsersByRole)
			r.Get("/users/email/{email}", s.handleGetUserByEmail)
			r.Get("/users/{id}", s.handleGetUser)
			r.Put("/users/{id}", s.handleUpdateUser)
			r.Delete("/users/{id}", s.handleDeleteUser)
		})
	})
}

func key(method, path string) string {
	return method + " " + path
}

// Fail makes every request to method and path (relative to /api) answer
// with status and the JSON body until Recover is called.
func (s *Server) Fail(method, path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key(method, path)] = failure{status: status, body: body}
}

// Recover removes an injected failure.
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, key(method, path))
}

// Hold parks requests to method and path until release is called or the
// client gives up.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[key(method, path)] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, key(method, path))
			s.mu.Unlock()
			close(ch)
		})
	}
}

// RequireAuth makes the /test endpoints answer 401 unless the request
// carries a bearer token naming a live session.
func (s *Server) RequireAuth(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAuth = on
}

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls counts recorded requests to method and path (relative to /api).
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// AddUser stores an account directly and returns its record.
func (s *Server) AddUser(email, password string, roles ...model.Role) model.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(email, password, roles)
}

// SetEnabled flips the enabled flag of the account with email.
func (s *Server) SetEnabled(email string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.byEmailLocked(email); a != nil {
		a.record.Enabled = &enabled
	}
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ExpireSessions invalidates every issued session.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

func (s *Server) addLocked(email, password string, roles []model.Role) model.UserRecord {
	if len(roles) == 0 {
		roles = []model.Role{model.RoleUser}
	}
	now := model.NewTime(s.Now())
	yes := true
	a := &account{
		password: password,
		record: model.UserRecord{
			ID:                    s.nextID,
			Email:                 email,
			Roles:                 append([]model.Role(nil), roles...),
			Enabled:               &yes,
			AccountNonExpired:     &yes,
			AccountNonLocked:      &yes,
			CredentialsNonExpired: &yes,
			CreatedAt:             now,
			UpdatedAt:             now,
		},
	}
	s.nextID++
	s.accounts = append(s.accounts, a)
	return a.record
}

func (s *Server) byEmailLocked(email string) *account {
	for _, a := range s.accounts {
		if strings.EqualFold(a.record.Email, email) {
			return a
		}
	}
	return nil
}

func (s *Server) byIDLocked(id int64) *account {
	for _, a := range s.accounts {
		if a.record.ID == id {
			return a
		}
	}
	return nil
}
