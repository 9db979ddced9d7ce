package http

import (
	"net/http"

	"spendhelm/internal/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Auth.ChangePassword(r.Context(), session(r), in.CurrentPassword, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

// handleValidate only runs once the bearer middleware accepted the token.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:   true,
		UserID:  sess.UserID,
		Email:   sess.Email,
		IsAdmin: sess.IsAdmin,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Auth.Me(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	s.handleMe(w, r)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var in services.PreferencesUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess := session(r)
	if _, err := s.svc.Preferences.Update(r.Context(), sess.UserID, in); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.svc.Auth.Me(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
