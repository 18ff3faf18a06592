package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"project-helpdesk/internal/auth"
	"project-helpdesk/internal/tickets"
)

type Server struct {
	cfg    Config
	router *chi.Mux
	logger *log.Logger

	codec *auth.TokenCodec
	users auth.UserStore
	stats tickets.StatsSource

	limiter    *windowLimiter // gate limiter, keyed ip or ip:subject
	rlRegister *windowLimiter // extra IP-only budget on registration
	cache      *responseCache

	mongoClient *mongo.Client
}

// New connects the durable stores and assembles the server. The returned
// Server is itself an http.Handler.
func New(ctx context.Context, cfg Config) (*Server, error) {
	cfg.setDefaults()
	if cfg.MongoURI == "" {
		return nil, errors.New("server: MongoURI required")
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("server: access and refresh secrets required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("server: access and refresh secrets must differ")
	}

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}

	users, err := auth.NewMongoUserStore(ctx, cli, cfg.MongoDB, cfg.UsersCollection)
	if err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	stats := tickets.NewMongoStatsStore(cli, cfg.MongoDB, cfg.TicketsCollection)

	s := newServer(cfg, users, stats)
	s.mongoClient = cli
	return s, nil
}

// newServer wires everything that does not need a database connection;
// tests use it with a MemoryUserStore and a fake stats source.
func newServer(cfg Config, users auth.UserStore, stats tickets.StatsSource) *Server {
	cfg.setDefaults()

	s := &Server{
		cfg:        cfg,
		logger:     log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile),
		codec:      auth.NewTokenCodec([]byte(cfg.AccessSecret), []byte(cfg.RefreshSecret), cfg.AccessTTL, cfg.RefreshTTL),
		users:      users,
		stats:      stats,
		limiter:    newWindowLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		rlRegister: newWindowLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		cache:      newResponseCache(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			writeMessage(w, http.StatusInternalServerError, "Server error")
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler { return s }

func (s *Server) Close(ctx context.Context) error {
	if s.mongoClient == nil {
		return nil
	}
	return s.mongoClient.Disconnect(ctx)
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}
