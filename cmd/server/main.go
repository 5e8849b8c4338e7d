package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/newsletter/internal/api"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/email"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/repository/postgres"
	"github.com/ignite/newsletter/internal/service/subscription"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout())
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	// Redis backs the per-email subscribe lock. Optional: without it the
	// lock falls back to Postgres advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		redisCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = redisClient.Ping(redisCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, using advisory locks",
				"addr", cfg.Redis.Addr, "error", err.Error())
			redisClient = nil
		} else {
			log.Printf("Connected to redis at %s", cfg.Redis.Addr)
		}
	}

	emailClient, err := email.NewClient(cfg.Email)
	if err != nil {
		log.Fatalf("Failed to build email client: %v", err)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to build email templates: %v", err)
	}

	store := postgres.NewSubscriptionStore(db)
	lockFactory := func(key string) distlock.DistLock {
		return distlock.New(redisClient, db, key, 10*time.Second)
	}

	svc := subscription.NewService(store, emailClient, renderer,
		cfg.Application.BaseURL, lockFactory)
	health := api.NewHealthChecker(db, redisClient, cfg.Email.BaseURL)
	server := api.NewServer(svc, health)

	addr := fmt.Sprintf("%s:%d", host, port)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s (public base URL %s)", addr, cfg.Application.BaseURL)
		errCh <- server.ListenAndServe(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-stop:
		log.Printf("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	db.Close()
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Shutdown complete")
}
