package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/XavierBriggs/Apollo/adapters/theoddsapi"
	"github.com/XavierBriggs/Apollo/internal/activity"
	"github.com/XavierBriggs/Apollo/internal/assemble"
	"github.com/XavierBriggs/Apollo/internal/auth"
	"github.com/XavierBriggs/Apollo/internal/broadcast"
	"github.com/XavierBriggs/Apollo/internal/cache"
	"github.com/XavierBriggs/Apollo/internal/config"
	"github.com/XavierBriggs/Apollo/internal/persist"
	"github.com/XavierBriggs/Apollo/internal/pipeline"
	"github.com/XavierBriggs/Apollo/internal/refresh"
	"github.com/XavierBriggs/Apollo/internal/server"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const tokenExpiry = 24 * time.Hour

func main() {
	fmt.Println("=== Apollo ===")

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("✗ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	db, err := sql.Open("postgres", cfg.DBURL)
	if err != nil {
		fmt.Printf("✗ Failed to open Postgres connection: %v\n", err)
		os.Exit(2)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fmt.Printf("✗ Failed to ping Postgres: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("✓ Connected to Postgres")

	if err := persist.Migrate(db); err != nil {
		fmt.Printf("✗ Failed to run migrations: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("✓ Schema up to date")

	// Redis
	redisOpts, err := redis.ParseURL(cfg.CacheURL)
	if err != nil {
		fmt.Printf("✗ Failed to parse CACHE_URL: %v\n", err)
		os.Exit(2)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Printf("✗ Failed to connect to Redis: %v\n", err)
		os.Exit(2)
	}
	fmt.Println("✓ Connected to Redis")

	// Upstream odds provider
	source := theoddsapi.NewClient(cfg.UpstreamAPIKey, cfg.UpstreamTimeout)
	fmt.Println("✓ Initialized The Odds API adapter")

	// Core components
	store := cache.NewStore(redisClient)
	tracker := activity.NewTracker(redisClient, store, cfg.SessionHeartbeatTTL)
	assembler := assemble.NewAssembler(cfg.ExchangeBookSet(), cfg.ExchangeFeeRate())

	writer := persist.NewWriter(db, cfg.PersistBatchSize, cfg.PersistWorkers)
	writer.Start(ctx)

	pipe := pipeline.New(source, assembler, store, writer, cfg.SportKeys, cfg.PolledMarkets())

	scheduler := refresh.NewScheduler(pipe, tracker, cfg.RefreshInterval, cfg.StaleThreshold)
	scheduler.Start(ctx)

	hub := broadcast.NewHub(store)
	hub.Start(ctx)

	// HTTP surface
	authMgr := auth.NewManager(cfg.JWTSecret, tokenExpiry)
	handler := server.NewHandler(store, tracker, scheduler, writer, source.RateLimits, cfg.StaleThreshold)
	streamHandler := server.NewStreamHandler(hub)
	router := server.NewRouter(handler, streamHandler, authMgr, cfg.CORSOrigins)

	httpServer := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
	}

	go func() {
		fmt.Printf("✓ Apollo listening on %s\n", cfg.Port)
		fmt.Printf("  Refresh interval: %v\n", cfg.RefreshInterval)
		fmt.Printf("  Stale threshold:  %v\n", cfg.StaleThreshold)
		fmt.Printf("  Sports:           %v\n", cfg.SportKeys)
		fmt.Println()

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("✗ HTTP server failed: %v\n", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	fmt.Println("\n✓ Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("⚠ HTTP shutdown: %v\n", err)
	}

	scheduler.Stop()
	hub.Stop()
	writer.Stop()

	fmt.Println("✓ Apollo stopped")
}
