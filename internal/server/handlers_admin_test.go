package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"project-helpdesk/internal/auth"
	"project-helpdesk/internal/tickets"
)

func getWithCookie(t *testing.T, s *Server, path string, c *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestAgentsListIsCached(t *testing.T) {
	s, users, _ := newTestServer(t, testConfig())
	addUser(t, users, "Agent One", "a1@example.com", "secret1", auth.RoleAgent)
	custID := addUser(t, users, "Cust", "cust@example.com", "secret1", auth.RoleCustomer)
	cookie := accessCookieFor(t, s, custID, auth.RoleCustomer)

	rec := getWithCookie(t, s, "/api/users/agents", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var first struct {
		Agents []userPayload `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(first.Agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(first.Agents))
	}

	// a second agent appears, but the cached payload is still served
	addUser(t, users, "Agent Two", "a2@example.com", "secret1", auth.RoleAgent)
	rec = getWithCookie(t, s, "/api/users/agents", cookie)
	var second struct {
		Agents []userPayload `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(second.Agents) != 1 {
		t.Fatalf("agents = %d, want 1 (cached)", len(second.Agents))
	}
}

func TestRegisteringAgentInvalidatesAgentsCache(t *testing.T) {
	s, users, _ := newTestServer(t, testConfig())
	addUser(t, users, "Agent One", "a1@example.com", "secret1", auth.RoleAgent)
	custID := addUser(t, users, "Cust", "cust@example.com", "secret1", auth.RoleCustomer)
	cookie := accessCookieFor(t, s, custID, auth.RoleCustomer)

	getWithCookie(t, s, "/api/users/agents", cookie) // warm the cache

	rec := postJSON(t, s, "/api/register", registerReq{
		Name:     "Agent Two",
		Email:    "a2@example.com",
		Password: "secret1",
		Role:     auth.RoleAgent,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", rec.Code)
	}

	var resp struct {
		Agents []userPayload `json:"agents"`
	}
	out := getWithCookie(t, s, "/api/users/agents", cookie)
	if err := json.Unmarshal(out.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Agents) != 2 {
		t.Fatalf("agents = %d, want 2 after invalidation", len(resp.Agents))
	}
}

func TestStatsCachedPerFilter(t *testing.T) {
	s, users, stats := newTestServer(t, testConfig())
	stats.stats = tickets.Stats{
		Total:      3,
		ByStatus:   map[tickets.Status]int64{tickets.StatusOpen: 3},
		ByPriority: map[tickets.Priority]int64{tickets.PriorityHigh: 3},
	}
	adminID := addUser(t, users, "Admin", "admin@example.com", "secret1", auth.RoleAdmin)
	cookie := accessCookieFor(t, s, adminID, auth.RoleAdmin)

	rec := getWithCookie(t, s, "/api/admin/stats", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Total          int64 `json:"total"`
		DateFilterUsed bool  `json:"dateFilterUsed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || resp.DateFilterUsed {
		t.Fatalf("unexpected stats payload: %+v", resp)
	}
	if stats.calls != 1 {
		t.Fatalf("source calls = %d, want 1", stats.calls)
	}

	// same filter hits the cache
	getWithCookie(t, s, "/api/admin/stats", cookie)
	if stats.calls != 1 {
		t.Fatalf("source calls = %d, want 1 (cached)", stats.calls)
	}

	// a different filter is a different key
	rec = getWithCookie(t, s, "/api/admin/stats?from=2026-01-01&to=2026-01-31", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered status = %d, want 200", rec.Code)
	}
	if stats.calls != 2 {
		t.Fatalf("source calls = %d, want 2", stats.calls)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.DateFilterUsed {
		t.Fatal("dateFilterUsed = false for a filtered query")
	}
}

func TestStatsRejectsBadDates(t *testing.T) {
	s, users, _ := newTestServer(t, testConfig())
	adminID := addUser(t, users, "Admin", "admin@example.com", "secret1", auth.RoleAdmin)
	cookie := accessCookieFor(t, s, adminID, auth.RoleAdmin)

	rec := getWithCookie(t, s, "/api/admin/stats?from=january", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
