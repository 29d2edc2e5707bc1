package ui

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/me/authapp/internal/session"
)

// Route is one page of the web client. RequiresAuth and RequiresAdmin only
// decide navigation and the sign-in notice; nothing is enforced.
type Route struct {
	Path          string
	Name          string
	Title         string
	RequiresAuth  bool
	RequiresAdmin bool
}

// Routes is the page table in navigation order.
var Routes = []Route{
	{Path: "/", Name: "Home", Title: "Home"},
	{Path: "/login", Name: "Login", Title: "Sign in"},
	{Path: "/register", Name: "Register", Title: "Register"},
	{Path: "/user-dashboard", Name: "UserDashboard", Title: "My Account", RequiresAuth: true},
	{Path: "/admin-dashboard", Name: "AdminDashboard", Title: "Administration", RequiresAuth: true, RequiresAdmin: true},
}

// Lookup finds the route registered for path.
func Lookup(path string) (Route, bool) {
	for _, rt := range Routes {
		if rt.Path == path {
			return rt, true
		}
	}
	return Route{}, false
}

// Allowed reports whether st satisfies the route's metadata.
func (rt Route) Allowed(st session.Status) bool {
	if rt.RequiresAdmin && !st.IsAdmin() {
		return false
	}
	if rt.RequiresAuth && !st.IsAuthenticated() {
		return false
	}
	return true
}

// Notice is the banner shown on a page whose metadata st does not satisfy.
func (rt Route) Notice(st session.Status) string {
	switch {
	case rt.RequiresAuth && !st.IsAuthenticated():
		return "Please sign in to view this page."
	case rt.RequiresAdmin && !st.IsAdmin():
		return "Administrator access is required to use this page."
	default:
		return ""
	}
}

// navFor lists the links shown to st: guests see the sign-in pages, signed-in
// users see the pages their roles allow.
func navFor(st session.Status) []Route {
	var nav []Route
	for _, rt := range Routes {
		switch rt.Name {
		case "Login", "Register":
			if st.IsAuthenticated() {
				continue
			}
		default:
			if !rt.Allowed(st) {
				continue
			}
		}
		nav = append(nav, rt)
	}
	return nav
}

// Handler returns the complete web UI with its middleware chain.
func (ui *UI) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(ui.logger))
	r.Use(middleware.Recoverer)
	r.Use(ui.secure.Handler)
	r.Use(ui.csrfMiddleware)

	ui.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	page := func(path string, h http.HandlerFunc) {
		rt, _ := Lookup(path)
		r.With(ui.routeMiddleware(rt)).Get(path, h)
	}
	page("/", ui.HandleHome)
	page("/login", ui.HandleLogin)
	page("/register", ui.HandleRegister)
	page("/user-dashboard", ui.HandleUserDashboard)
	page("/admin-dashboard", ui.HandleAdminDashboard)

	limiter := httprate.Limit(ui.loginLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(ui.handleLoginLimited),
	)
	r.With(limiter).Post("/login", ui.HandleLoginPost)
	r.Post("/logout", ui.HandleLogoutPost)
	r.Post("/register", ui.HandleRegisterPost)

	r.Post("/user-dashboard/password", ui.HandlePasswordPost)
	r.Post("/user-dashboard/validate", ui.HandleValidatePost)

	r.Post("/admin-dashboard/users", ui.HandleUserCreate)
	r.Post("/admin-dashboard/users/{id}/update", ui.HandleUserUpdate)
	r.Post("/admin-dashboard/users/{id}/delete", ui.HandleUserDelete)
	r.Post("/admin-dashboard/seed", ui.HandleSeed)

	r.Get("/events", ui.HandleEvents)
	r.Get("/healthz", ui.HandleHealthz)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ui.renderNotFound(w, r, "The page you requested does not exist.")
	})
}
