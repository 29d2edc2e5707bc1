package ui

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
)

const (
	// CSRFFormField is the hidden form field carrying the token.
	CSRFFormField = "csrf_token"
	// CSRFHeader carries the token for script-issued requests.
	CSRFHeader = "X-CSRF-Token"
)

var (
	ErrCrossSite         = errors.New("cross-site request")
	ErrCSRFTokenMissing  = errors.New("csrf token missing")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// newCSRFToken returns a random token. The UI serves one signed-in user per
// process, so one token per process is enough.
func newCSRFToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("csrf: read random: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// verifyCSRF rejects requests a browser marks as coming from another site
// and requests without the process token.
func (ui *UI) verifyCSRF(r *http.Request) error {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return ErrCrossSite
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || u.Host != r.Host {
			return ErrCrossSite
		}
	}

	token := r.PostFormValue(CSRFFormField)
	if token == "" {
		token = r.Header.Get(CSRFHeader)
	}
	if token == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(token), []byte(ui.csrfToken)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

// csrfMiddleware guards every state-changing request.
func (ui *UI) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if err := ui.verifyCSRF(r); err != nil {
			ui.logger.Warn("csrf validation failed",
				"path", r.URL.Path,
				"origin", r.Header.Get("Origin"),
				"error", err,
				"request_id", RequestIDFromContext(r.Context()),
			)
			data := ui.pageData(r, "Forbidden")
			data["Message"] = MsgForbidden
			ui.render(w, http.StatusForbidden, "error", data)
			return
		}
		next.ServeHTTP(w, r)
	})
}
