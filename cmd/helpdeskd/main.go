package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"project-helpdesk/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg := configFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatalf("server setup: %v", err)
	}
	defer srv.Close(context.Background())

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}
	run(ctx, httpServer)
}

func run(ctx context.Context, srv *http.Server) {
	errs := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-signals:
		log.Printf("received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func configFromEnv() server.Config {
	cfg := server.Config{
		Addr:              os.Getenv("SERVER_ADDRESS"),
		MongoURI:          os.Getenv("MONGODB_URI"),
		MongoDB:           os.Getenv("MONGODB_DB"),
		UsersCollection:   os.Getenv("USERS_COLLECTION"),
		TicketsCollection: os.Getenv("TICKETS_COLLECTION"),
		AccessSecret:      os.Getenv("JWT_SECRET"),
		RefreshSecret:     os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:         envDuration("ACCESS_TOKEN_TTL"),
		RefreshTTL:        envDuration("REFRESH_TOKEN_TTL"),
		RateLimitMax:      envInt("RATE_LIMIT_MAX"),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW"),
		CacheTTL:          envDuration("CACHE_TTL"),
		SessionMode:       server.SessionMode(os.Getenv("SESSION_MODE")),
		SecureCookies:     os.Getenv("ENV") == "production",
	}

	if path := os.Getenv("ROUTES_FILE"); path != "" {
		public, routes, err := server.LoadRouteRules(path)
		if err != nil {
			log.Fatalf("routes file: %v", err)
		}
		cfg.PublicPaths = public
		cfg.Routes = routes
	}
	return cfg
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}
