package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(s.authGate)

	r.Get("/health", s.handleHealth)
	r.Get("/api/health", s.handleHealth)

	r.Post("/api/login", s.handleLogin)
	r.Post("/api/register", s.handleRegister)
	r.Post("/api/refresh", s.handleRefresh)
	r.Post("/api/logout", s.handleLogout)
	r.Get("/api/me", s.handleMe)

	r.Get("/api/profile/sessions", s.handleSessions)
	r.Post("/api/profile/logout-all", s.handleLogoutAll)
	r.Put("/api/profile/password", s.handleChangePassword)
	r.Patch("/api/profile/update", s.handleUpdateProfile)

	r.Get("/api/users/agents", s.handleAgents)
	r.Get("/api/admin/stats", s.handleStats)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
