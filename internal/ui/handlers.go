package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unrolled/secure"

	"github.com/me/authapp/internal/app"
	"github.com/me/authapp/internal/logging"
	"github.com/me/authapp/internal/session"
	"github.com/me/authapp/pkg/model"
)

const (
	defaultLoginLimit = 10
	defaultHeartbeat  = 15 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Form error messages.
const (
	MsgPasswordMismatch = "Passwords do not match"
	MsgTooManyLogins    = "Too many sign-in attempts. Please wait a minute and try again."
	MsgInvalidUserID    = "Invalid user id"
	MsgBadForm          = "Invalid request"
	MsgForbidden        = "This form has expired or came from another site. Reload the page and try again."
)

// UI handles the web user interface.
type UI struct {
	app        *app.App
	logger     *slog.Logger
	secure     *secure.Secure
	csrfToken  string
	loginLimit int
	heartbeat  time.Duration
	startTime  time.Time
	now        func() time.Time
}

// Config holds UI configuration.
type Config struct {
	Secure         bool          // Redirect to HTTPS and send HSTS
	LoginRateLimit int           // POST /login attempts per IP per minute
	Heartbeat      time.Duration // Interval of event stream keep-alives
}

// New creates a new UI handler over the process state in a.
func New(a *app.App, logger *slog.Logger, cfg Config) *UI {
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = defaultLoginLimit
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	opts := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline' https://cdn.tailwindcss.com; style-src 'self' 'unsafe-inline'",
		SSLRedirect:           cfg.Secure,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}
	if cfg.Secure {
		opts.STSSeconds = 31536000
	}
	return &UI{
		app:        a,
		logger:     logging.Component(logger, "ui"),
		secure:     secure.New(opts),
		csrfToken:  newCSRFToken(),
		loginLimit: cfg.LoginRateLimit,
		heartbeat:  cfg.Heartbeat,
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (ui *UI) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ui.serve(ctx, ln)
}

func (ui *UI) serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		ui.logger.Info("web ui starting", "addr", ln.Addr().String())
		errc <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve web ui: %w", err)
	case <-ctx.Done():
	}

	ui.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web ui: %w", err)
	}
	ui.logger.Info("web ui stopped")
	return nil
}

// HandleHome renders the landing page with the backend health.
func (ui *UI) HandleHome(w http.ResponseWriter, r *http.Request) {
	if err := ui.app.System.FetchHealth(r.Context()); err != nil {
		ui.logger.Debug("home health check failed", "error", err)
	}
	data := ui.pageData(r, "Home")
	data["System"] = ui.app.System.State()
	ui.renderPage(w, http.StatusOK, "home", data)
}

// HandleLogin renders the login page.
func (ui *UI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	data := ui.pageData(r, "Sign in")
	data["Email"] = r.URL.Query().Get("email")
	ui.renderPage(w, http.StatusOK, "login", data)
}

// HandleLoginPost processes the login form.
func (ui *UI) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.renderFormError(w, r, "login", "Sign in", MsgBadForm)
		return
	}
	creds := model.Credentials{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	if !ui.app.Session.Login(r.Context(), creds) {
		http.Redirect(w, r, "/login?email="+url.QueryEscape(creds.Email), http.StatusSeeOther)
		return
	}
	if ui.app.Session.IsAdmin() {
		http.Redirect(w, r, "/admin-dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/user-dashboard", http.StatusSeeOther)
}

func (ui *UI) handleLoginLimited(w http.ResponseWriter, r *http.Request) {
	ui.logger.Warn("login rate limited", "remote", r.RemoteAddr)
	data := ui.pageData(r, "Sign in")
	data["FormError"] = MsgTooManyLogins
	ui.renderPage(w, http.StatusTooManyRequests, "login", data)
}

// HandleLogoutPost ends the session.
func (ui *UI) HandleLogoutPost(w http.ResponseWriter, r *http.Request) {
	ui.app.Logout(r.Context())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleRegister renders the registration form.
func (ui *UI) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ui.renderPage(w, http.StatusOK, "register", ui.pageData(r, "Register"))
}

// HandleRegisterPost creates a regular account and sends the visitor to
// the login page.
func (ui *UI) HandleRegisterPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.renderFormError(w, r, "register", "Register", MsgBadForm)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if password != r.FormValue("confirmPassword") {
		data := ui.pageData(r, "Register")
		data["FormError"] = MsgPasswordMismatch
		data["Email"] = email
		ui.renderPage(w, http.StatusBadRequest, "register", data)
		return
	}

	in := model.UserInput{Email: email, Password: password, Roles: []model.Role{model.RoleUser}}
	if _, err := ui.app.Users.CreateUser(r.Context(), in); err != nil {
		data := ui.pageData(r, "Register")
		data["Email"] = email
		ui.renderPage(w, http.StatusBadRequest, "register", data)
		return
	}
	http.Redirect(w, r, "/login?email="+url.QueryEscape(email), http.StatusSeeOther)
}

// HandleUserDashboard renders the signed-in user's profile.
func (ui *UI) HandleUserDashboard(w http.ResponseWriter, r *http.Request) {
	data := ui.pageData(r, "My Account")
	switch r.URL.Query().Get("valid") {
	case "true":
		data["Validation"] = "The server confirmed your session is active."
	case "false":
		data["Validation"] = "The server did not accept your session."
	}
	ui.renderPage(w, http.StatusOK, "user-dashboard", data)
}

// HandlePasswordPost changes the signed-in user's password.
func (ui *UI) HandlePasswordPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.renderFormError(w, r, "user-dashboard", "My Account", MsgBadForm)
		return
	}
	if r.FormValue("newPassword") != r.FormValue("confirmPassword") {
		ui.renderFormError(w, r, "user-dashboard", "My Account", MsgPasswordMismatch)
		return
	}
	ui.app.Session.ChangePassword(r.Context(), model.PasswordChange{
		CurrentPassword: r.FormValue("currentPassword"),
		NewPassword:     r.FormValue("newPassword"),
	})
	http.Redirect(w, r, "/user-dashboard", http.StatusSeeOther)
}

// HandleValidatePost asks the server whether the session is still live.
func (ui *UI) HandleValidatePost(w http.ResponseWriter, r *http.Request) {
	valid := ui.app.Session.ValidateSession(r.Context())
	http.Redirect(w, r, "/user-dashboard?valid="+strconv.FormatBool(valid), http.StatusSeeOther)
}

// HandleAdminDashboard renders backend health, statistics, and the user list.
func (ui *UI) HandleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	if err := ui.app.System.Initialize(r.Context()); err != nil {
		ui.logger.Debug("system refresh failed", "error", err)
	}
	if err := ui.app.Users.FetchUsers(r.Context()); err != nil {
		ui.logger.Debug("user list refresh failed", "error", err)
	}
	data := ui.pageData(r, "Administration")
	data["System"] = ui.app.System.State()
	data["Users"] = ui.app.Users.State()
	ui.renderPage(w, http.StatusOK, "admin-dashboard", data)
}

// HandleUserCreate creates a user from the admin form.
func (ui *UI) HandleUserCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.redirectAdmin(w, r)
		return
	}
	enabled := r.FormValue("enabled") != "false"
	in := model.UserInput{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Roles:    rolesFor(r.FormValue("role")),
		Enabled:  &enabled,
	}
	// The outcome is reported through the store's operation messages.
	_, _ = ui.app.Users.CreateUser(r.Context(), in)
	ui.redirectAdmin(w, r)
}

// HandleUserUpdate applies role, enabled, and optional password changes.
func (ui *UI) HandleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := ui.userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		ui.redirectAdmin(w, r)
		return
	}
	enabled := r.FormValue("enabled") != "false"
	in := model.UserInput{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Roles:    rolesFor(r.FormValue("role")),
		Enabled:  &enabled,
	}
	_, _ = ui.app.Users.UpdateUser(r.Context(), id, in)
	ui.redirectAdmin(w, r)
}

// HandleUserDelete deletes a user.
func (ui *UI) HandleUserDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := ui.userID(w, r)
	if !ok {
		return
	}
	_ = ui.app.Users.DeleteUser(r.Context(), id)
	ui.redirectAdmin(w, r)
}

// HandleSeed asks the server to create its sample accounts.
func (ui *UI) HandleSeed(w http.ResponseWriter, r *http.Request) {
	_ = ui.app.Users.SeedSampleData(r.Context())
	ui.redirectAdmin(w, r)
}

// HandleHealthz reports the UI's own liveness with the cached backend label.
func (ui *UI) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	st := ui.app.Session.Status()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"session": st.State,
		"backend": ui.app.System.HealthStatus(),
		"uptime":  time.Since(ui.startTime).Round(time.Second).String(),
		"request": RequestIDFromContext(r.Context()),
	})
}

func (ui *UI) redirectAdmin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/admin-dashboard", http.StatusSeeOther)
}

func (ui *UI) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		ui.renderFormError(w, r, "error", "Error", MsgInvalidUserID)
		return 0, false
	}
	return id, true
}

// rolesFor maps the role select to the role set the server expects.
// Administrators also hold the user role.
func rolesFor(choice string) []model.Role {
	if strings.EqualFold(choice, "admin") || choice == string(model.RoleAdmin) {
		return []model.Role{model.RoleAdmin, model.RoleUser}
	}
	return []model.Role{model.RoleUser}
}

// pageData collects the values every page template uses.
func (ui *UI) pageData(r *http.Request, title string) map[string]any {
	st := ui.app.Session.Status()
	users := ui.app.Users.State()
	rt, ok := RouteFromContext(r.Context())
	if !ok {
		rt, _ = Lookup(r.URL.Path)
	}

	return map[string]any{
		"Title":   title + " - AuthApp",
		"Route":   rt,
		"Status":  st,
		"Nav":     navFor(st),
		"Notice":  rt.Notice(st),
		"Error":   joinMessages(st.Error, users.OperationError),
		"Success": joinMessages(st.SuccessMessage, users.OperationSuccess),
		"Now":     ui.now(),
		"CSRF":    ui.csrfToken,

		"FormError":  "",
		"Email":      "",
		"Message":    "",
		"Validation": "",
	}
}

func joinMessages(msgs ...string) string {
	var out []string
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return strings.Join(out, " ")
}

// renderPage renders a page and then clears the messages it displayed, so
// each message is shown once.
func (ui *UI) renderPage(w http.ResponseWriter, status int, name string, data map[string]any) {
	ui.render(w, status, name, data)
	if data["Error"] != "" || data["Success"] != "" {
		ui.app.Session.ClearMessages()
		ui.app.Users.ClearMessages()
	}
}

func (ui *UI) renderFormError(w http.ResponseWriter, r *http.Request, name, title, msg string) {
	data := ui.pageData(r, title)
	data["FormError"] = msg
	data["Message"] = msg
	ui.renderPage(w, http.StatusBadRequest, name, data)
}

func (ui *UI) render(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderNotFound(w http.ResponseWriter, r *http.Request, message string) {
	data := ui.pageData(r, "Not Found")
	data["Message"] = message
	ui.render(w, http.StatusNotFound, "error", data)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// statusView is the JSON form of a session status sent to the browser.
type statusView struct {
	State     session.State `json:"state"`
	Email     string        `json:"email,omitempty"`
	Admin     bool          `json:"admin"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
	Loading   bool          `json:"loading"`
	Error     string        `json:"error,omitempty"`
	Success   string        `json:"success,omitempty"`
}

func newStatusView(st session.Status) statusView {
	v := statusView{
		State:   st.State,
		Admin:   st.IsAdmin(),
		Loading: st.Loading(),
		Error:   st.Error,
		Success: st.SuccessMessage,
	}
	if st.User != nil {
		v.Email = st.User.Email
	}
	if st.Session != nil {
		exp := st.Session.Expiry
		v.ExpiresAt = &exp
	}
	return v
}
