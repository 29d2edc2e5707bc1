package apitest

import (
	"net/http"
	"strings"
)

func relPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api")
}

// record appends every request to the call log.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: relPath(r), Header: r.Header.Clone()})
		s.mu.Unlock()
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// inject applies holds and failures registered by the test.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k := key(r.Method, relPath(r))
		s.mu.Lock()
		hold := s.holds[k]
		s.mu.Unlock()
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		f, failing := s.failures[k]
		s.mu.Unlock()
		if failing {
			respondJSON(w, f.status, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize rejects requests without a live bearer session when RequireAuth is on.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		required := s.requireAuth
		s.mu.Unlock()
		if required {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !s.sessionLive(token) {
				respondJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionLive(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[id]
	return ok && s.Now().Before(exp)
}
