package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"project-helpdesk/internal/auth"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerReq struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role,omitempty"`
}

type updateProfileReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type changePasswordReq struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

type userPayload struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

func payloadFor(u *auth.User) userPayload {
	return userPayload{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if !isValidEmail(req.Email) || validatePassword(req.Password) != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	user, err := s.users.FindByEmail(r.Context(), req.Email)
	if errors.Is(err, auth.ErrUserNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Printf("login: find user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PassHash)
	if err != nil || !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	ident := auth.Identity{SubjectID: user.ID, Role: user.Role, Email: user.Email}
	accessToken, _, err := s.codec.IssueAccessToken(ident)
	if err != nil {
		s.logger.Printf("login: issue access token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	refreshToken, _, err := s.codec.IssueRefreshToken(ident)
	if err != nil {
		s.logger.Printf("login: issue refresh token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if err := s.users.RecordLogin(r.Context(), user.ID, accessToken); err != nil {
		s.logger.Printf("login: record session: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	s.setAuthCookie(w, accessCookieName, accessToken, int(s.cfg.AccessTTL.Seconds()))
	s.setAuthCookie(w, refreshCookieName, refreshToken, int(s.cfg.RefreshTTL.Seconds()))

	writeJSON(w, struct {
		Message string      `json:"message"`
		User    userPayload `json:"user"`
	}{Message: "Login successful", User: payloadFor(user)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	// IP-only budget on top of the gate's: registration is the cheapest
	// endpoint to abuse.
	if ok, retry := s.rlRegister.check(clientIP(r)); !ok {
		tooMany(w, retryAfterSeconds(retry))
		return
	}

	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "Name required")
		return
	}
	if !isValidEmail(req.Email) {
		writeMessage(w, http.StatusBadRequest, "Valid email required")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	role := req.Role
	if role == "" {
		role = auth.RoleCustomer
	}
	if !auth.ValidRole(role) {
		writeMessage(w, http.StatusBadRequest, "Invalid role")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Printf("register: hash password: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	_, err = s.users.Add(r.Context(), &auth.User{
		Name:     req.Name,
		Email:    req.Email,
		PassHash: hash,
		Role:     role,
	})
	if errors.Is(err, auth.ErrEmailExists) {
		writeMessage(w, http.StatusBadRequest, "Email already exists")
		return
	}
	if err != nil {
		s.logger.Printf("register: add user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	if role == auth.RoleAgent {
		s.cache.invalidate(agentsCacheKey)
	}

	writeJSONStatus(w, http.StatusCreated, messageResp{Message: "User registered successfully"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookieValue(r, refreshCookieName)
	if refreshToken == "" {
		writeMessage(w, http.StatusUnauthorized, "No refresh token")
		return
	}

	ident, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	// Mint a new access token only; the refresh cookie stays as issued.
	accessToken, _, err := s.codec.IssueAccessToken(auth.Identity{
		SubjectID: ident.SubjectID,
		Role:      ident.Role,
		Email:     ident.Email,
	})
	if err != nil {
		s.logger.Printf("refresh: issue access token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	s.setAuthCookie(w, accessCookieName, accessToken, int(s.cfg.AccessTTL.Seconds()))
	writeJSON(w, messageResp{Message: "Token refreshed"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.cfg.SessionMode == SessionModeStrict {
		if tok := cookieValue(r, accessCookieName); tok != "" {
			if ident, err := s.codec.VerifyAccessToken(tok); err == nil {
				if err := s.users.RevokeByToken(r.Context(), ident.SubjectID, tok); err != nil {
					s.logger.Printf("logout: revoke session: %v", err)
				}
			}
		}
	}

	s.clearAuthCookie(w, accessCookieName)
	s.clearAuthCookie(w, refreshCookieName)
	writeJSON(w, messageResp{Message: "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	nobody := struct {
		User *userPayload `json:"user"`
	}{}

	tok := cookieValue(r, accessCookieName)
	if tok == "" {
		writeJSON(w, nobody)
		return
	}
	ident, err := s.codec.VerifyAccessToken(tok)
	if err != nil {
		writeJSON(w, nobody)
		return
	}

	user, err := s.users.FindByID(r.Context(), ident.SubjectID)
	if errors.Is(err, auth.ErrUserNotFound) {
		writeJSON(w, nobody)
		return
	}
	if err != nil {
		s.logger.Printf("me: find user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	p := payloadFor(user)
	writeJSON(w, struct {
		User *userPayload `json:"user"`
	}{User: &p})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sessions, err := s.users.ListSessions(r.Context(), ident.SubjectID)
	if err != nil {
		s.logger.Printf("sessions: list: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if sessions == nil {
		sessions = []auth.SessionRecord{}
	}
	writeJSON(w, struct {
		Sessions []auth.SessionRecord `json:"sessions"`
	}{Sessions: sessions})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := s.users.RevokeAll(r.Context(), ident.SubjectID); err != nil {
		s.logger.Printf("logout-all: revoke: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	// Already-issued access tokens stay valid until natural expiry; there is
	// no access-token blacklist.
	s.clearAuthCookie(w, accessCookieName)
	s.clearAuthCookie(w, refreshCookieName)
	writeJSON(w, messageResp{Message: "Logged out from all devices"})
}

// handleUpdateProfile edits name and email on the caller's own record.
// Omitted fields stay untouched; email changes do not reissue tokens, so the
// email claim in outstanding tokens goes stale until the next login.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateProfileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" && req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Nothing to update")
		return
	}
	if req.Email != "" && !isValidEmail(req.Email) {
		writeMessage(w, http.StatusBadRequest, "Valid email required")
		return
	}

	err := s.users.UpdateProfile(r.Context(), ident.SubjectID, req.Name, req.Email)
	if errors.Is(err, auth.ErrEmailExists) {
		writeMessage(w, http.StatusBadRequest, "Email already exists")
		return
	}
	if errors.Is(err, auth.ErrUserNotFound) {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		s.logger.Printf("profile update: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, messageResp{Message: "Profile updated successfully"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req changePasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Current == "" || req.Next == "" {
		writeMessage(w, http.StatusBadRequest, "Current and new passwords required")
		return
	}
	if req.Current == req.Next {
		writeMessage(w, http.StatusBadRequest, "New password must differ from current password")
		return
	}
	if err := validatePassword(req.Next); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.FindByID(r.Context(), ident.SubjectID)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	passOK, err := auth.VerifyPassword(req.Current, user.PassHash)
	if err != nil || !passOK {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	newHash, err := auth.HashPassword(req.Next)
	if err != nil {
		s.logger.Printf("change password: hash: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	if err := s.users.UpdatePassword(r.Context(), user.ID, newHash); err != nil {
		s.logger.Printf("change password: update: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, messageResp{Message: "Password updated"})
}
