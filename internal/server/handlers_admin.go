package server

import (
	"fmt"
	"net/http"
	"time"

	"project-helpdesk/internal/auth"
	"project-helpdesk/internal/tickets"
)

const agentsCacheKey = "users:agents"

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.get(agentsCacheKey); ok {
		writeJSON(w, cached)
		return
	}

	agents, err := s.users.ListByRole(r.Context(), auth.RoleAgent)
	if err != nil {
		s.logger.Printf("agents: list: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	out := make([]userPayload, 0, len(agents))
	for _, a := range agents {
		out = append(out, payloadFor(a))
	}
	resp := struct {
		Agents []userPayload `json:"agents"`
	}{Agents: out}

	s.cache.set(agentsCacheKey, resp, s.cfg.CacheTTL)
	writeJSON(w, resp)
}

type statsResp struct {
	*tickets.Stats
	DateFilterUsed bool `json:"dateFilterUsed"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("from") // YYYY-MM-DD
	to := q.Get("to")

	filter, err := parseStatsFilter(from, to)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid date filter")
		return
	}

	key := fmt.Sprintf("admin:stats:%s:%s", from, to)
	if cached, ok := s.cache.get(key); ok {
		writeJSON(w, cached)
		return
	}

	stats, err := s.stats.Stats(r.Context(), filter)
	if err != nil {
		s.logger.Printf("stats: aggregate: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	resp := statsResp{Stats: stats, DateFilterUsed: !filter.Empty()}
	s.cache.set(key, resp, s.cfg.CacheTTL)
	writeJSON(w, resp)
}

func parseStatsFilter(from, to string) (tickets.StatsFilter, error) {
	var f tickets.StatsFilter
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return f, err
		}
		// inclusive upper bound: end of that day
		f.To = t.Add(24*time.Hour - time.Second)
	}
	return f, nil
}
