package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"project-helpdesk/internal/auth"
)

// SessionMode decides what a single-device logout does to the stored session
// record. Audit mode keeps the record (sessions double as a login log);
// strict mode removes the record matching the presented token.
type SessionMode string

const (
	SessionModeAudit  SessionMode = "audit"
	SessionModeStrict SessionMode = "strict"
)

// RouteRule scopes a path prefix to a role. An empty Role means any
// authenticated user.
type RouteRule struct {
	Prefix string    `yaml:"prefix"`
	Role   auth.Role `yaml:"role,omitempty"`
}

type Config struct {
	Addr string

	MongoURI          string
	MongoDB           string
	UsersCollection   string
	TicketsCollection string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
	CacheTTL        time.Duration

	SessionMode   SessionMode
	SecureCookies bool

	// LandingPath is where a known-but-unpermitted user is sent instead of
	// the login page.
	LandingPath string

	// PublicPaths pass the gate unauthenticated: "/" matches exactly, every
	// other entry matches as a prefix.
	PublicPaths []string
	Routes      []RouteRule
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MongoDB == "" {
		c.MongoDB = "ticket_system"
	}
	if c.UsersCollection == "" {
		c.UsersCollection = "users"
	}
	if c.TicketsCollection == "" {
		c.TicketsCollection = "tickets"
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = auth.DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = auth.DefaultRefreshTTL
	}
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = 60
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = time.Minute
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
	if c.SessionMode == "" {
		c.SessionMode = SessionModeAudit
	}
	if c.LandingPath == "" {
		c.LandingPath = "/tickets"
	}
	if len(c.PublicPaths) == 0 {
		c.PublicPaths = []string{
			"/",
			"/login",
			"/register",
			"/health",
			"/api/health",
			"/api/login",
			"/api/register",
			"/api/refresh",
			"/api/logout",
			"/api/me",
		}
	}
	if len(c.Routes) == 0 {
		c.Routes = []RouteRule{
			{Prefix: "/admin", Role: auth.RoleAdmin},
			{Prefix: "/agent", Role: auth.RoleAgent},
			{Prefix: "/tickets"},
			{Prefix: "/api/admin", Role: auth.RoleAdmin},
			{Prefix: "/api/agent", Role: auth.RoleAgent},
			{Prefix: "/api"},
		}
	}
}

type routesFile struct {
	Public []string    `yaml:"public"`
	Routes []RouteRule `yaml:"routes"`
}

// LoadRouteRules reads the deployment's route classifier table. Both lists
// replace the built-in defaults wholesale.
func LoadRouteRules(path string) ([]string, []RouteRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read routes file: %w", err)
	}
	var rf routesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, nil, fmt.Errorf("parse routes file: %w", err)
	}
	for _, r := range rf.Routes {
		if r.Role != "" && !auth.ValidRole(r.Role) {
			return nil, nil, fmt.Errorf("routes file: unknown role %q for prefix %q", r.Role, r.Prefix)
		}
	}
	return rf.Public, rf.Routes, nil
}
