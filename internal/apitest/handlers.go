package apitest

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/me/authapp/pkg/model"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decode(r, &creds); err != nil {
		respondMessage(w, http.StatusBadRequest, false, "Malformed login request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.byEmailLocked(creds.Email)
	switch {
	case a == nil, a.password != creds.Password:
		respondMessage(w, http.StatusBadRequest, false, "Invalid email or password")
		return
	case !a.record.IsEnabled():
		respondMessage(w, http.StatusBadRequest, false, "Account is disabled")
		return
	}

	now := s.Now()
	sessionID := uuid.NewString()
	expiry := now.Add(s.SessionTTL)
	s.sessions[sessionID] = expiry

	var lastLogin any
	if a.record.UpdatedAt != nil {
		lastLogin = a.record.UpdatedAt.Local().Format(localDateTime)
	}
	a.record.UpdatedAt = model.NewTime(now)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Login successful",
		"id":            a.record.ID,
		"email":         a.record.Email,
		"roles":         a.record.Roles,
		"enabled":       a.record.IsEnabled(),
		"lastLogin":     lastLogin,
		"sessionId":     sessionID,
		"sessionExpiry": expiry.Local().Format(localDateTime),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-Session-ID")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	respondMessage(w, http.StatusOK, ok, "Logged out successfully")
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordChange
	if err := decode(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, false, "Malformed password change request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byEmailLocked(req.Email)
	if a == nil || !a.record.IsEnabled() || a.password != req.CurrentPassword || req.NewPassword == "" {
		respondMessage(w, http.StatusBadRequest, false, "Password change failed. Please check your current password.")
		return
	}
	a.password = req.NewPassword
	respondMessage(w, http.StatusOK, true, "Password changed successfully")
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get("X-Session-ID")
	respondJSON(w, http.StatusOK, map[string]any{
		"valid":     s.sessionLive(id),
		"sessionId": id,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total := len(s.accounts)
	now := s.Now()
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "UP",
		"message":    "Auth Backend is running",
		"timestamp":  now.UnixMilli(),
		"database":   "H2 Connected",
		"totalUsers": total,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.Stats
	st.TotalUsers = int64(len(s.accounts))
	for _, a := range s.accounts {
		if a.record.HasRole(model.RoleAdmin) {
			st.AdminUsers++
		}
		if a.record.HasRole(model.RoleUser) {
			st.RegularUsers++
		}
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleInitData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmailLocked(AdminEmail) == nil {
		s.addLocked(AdminEmail, AdminPassword, []model.Role{model.RoleAdmin, model.RoleUser})
	}
	if s.byEmailLocked(UserEmail) == nil {
		s.addLocked(UserEmail, UserPassword, []model.Role{model.RoleUser})
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Sample data initialized successfully"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserRecord, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.record)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleUsersByRole(w http.ResponseWriter, r *http.Request) {
	role := model.Role(chi.URLParam(r, "role"))
	if role != model.RoleUser && role != model.RoleAdmin {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Unknown role: %s", role)})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UserRecord, 0)
	for _, a := range s.accounts {
		if a.record.HasRole(role) {
			out = append(out, a.record)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byIDLocked(id)
	if a == nil {
		respondJSON(w, http.StatusNotFound, nil)
		return
	}
	respondJSON(w, http.StatusOK, a.record)
}

func (s *Server) handleGetUserByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byEmailLocked(email)
	if a == nil {
		respondJSON(w, http.StatusNotFound, nil)
		return
	}
	respondJSON(w, http.StatusOK, a.record)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in model.UserInput
	if err := decode(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed user"})
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "Email and password are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmailLocked(in.Email) != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "User with email " + in.Email + " already exists"})
		return
	}
	rec := s.addLocked(in.Email, in.Password, in.Roles)
	if in.Enabled != nil {
		a := s.byIDLocked(rec.ID)
		a.record.Enabled = in.Enabled
		rec = a.record
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in model.UserInput
	if err := decode(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed user"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.byIDLocked(id)
	if a == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("User not found with id: %d", id)})
		return
	}
	if in.Email != "" {
		a.record.Email = in.Email
	}
	if in.Password != "" {
		a.password = in.Password
	}
	if len(in.Roles) > 0 {
		a.record.Roles = append([]model.Role(nil), in.Roles...)
	}
	if in.Enabled != nil {
		a.record.Enabled = in.Enabled
	}
	a.record.UpdatedAt = model.NewTime(s.Now())
	respondJSON(w, http.StatusOK, a.record)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		if a.record.ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
			return
		}
	}
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("User not found with id: %d", id)})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid user id"})
		return 0, false
	}
	return id, true
}
