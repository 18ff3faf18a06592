package server

import (
	"math"
	"net/http"
	"strings"
	"time"

	"project-helpdesk/internal/auth"
)

// authGate is the single enforcement point in front of every route: rate
// limit first, then authentication, then the role check for the matched
// route rule. It never issues tokens or touches session records.
func (s *Server) authGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		// A valid access token widens the limiter key to ip:subject so one
		// user's throttling does not starve others behind the same NAT.
		var ident *auth.Identity
		if tok := cookieValue(r, accessCookieName); tok != "" {
			ident, _ = s.codec.VerifyAccessToken(tok)
		}
		key := ip
		if ident != nil {
			key = ip + ":" + ident.SubjectID
		}

		if ok, retry := s.limiter.check(key); !ok {
			tooMany(w, retryAfterSeconds(retry))
			return
		}

		path := r.URL.Path
		if s.isPublic(path) {
			next.ServeHTTP(w, r)
			return
		}

		if ident == nil {
			s.unauthenticated(w, r)
			return
		}

		if rule, ok := s.matchRoute(path); ok && rule.Role != "" && ident.Role != rule.Role {
			s.forbidden(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), ident)))
	})
}

func (s *Server) isPublic(path string) bool {
	for _, p := range s.cfg.PublicPaths {
		if pathHasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (s *Server) matchRoute(path string) (RouteRule, bool) {
	for _, rule := range s.cfg.Routes {
		if pathHasPrefix(path, rule.Prefix) {
			return rule, true
		}
	}
	return RouteRule{}, false
}

// pathHasPrefix matches on path segment boundaries: "/login" covers "/login"
// and "/login/cb" but not "/loginX". "/" covers only itself.
func pathHasPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if prefix == "/" {
		return false
	}
	return strings.HasPrefix(path, prefix+"/")
}

// Browser navigations bounce to the login page; API calls get a 401 body.
// Expired and malformed tokens are indistinguishable here on purpose.
func (s *Server) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// forbidden is a known user on the wrong subtree: send them to their own
// landing page rather than back through login.
func (s *Server) forbidden(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		writeMessage(w, http.StatusForbidden, "Forbidden")
		return
	}
	http.Redirect(w, r, s.cfg.LandingPath, http.StatusFound)
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
