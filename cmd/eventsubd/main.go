// eventsubd ingests Twitch EventSub webhooks, normalizes and evaluates them
// against tenant policy, applies the resulting commands transactionally, and
// serves the derived state over REST and SSE.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/broadcastqueue/eventsubd/pkg/api"
	"github.com/broadcastqueue/eventsubd/pkg/clock"
	"github.com/broadcastqueue/eventsubd/pkg/commandlog"
	"github.com/broadcastqueue/eventsubd/pkg/config"
	"github.com/broadcastqueue/eventsubd/pkg/database"
	"github.com/broadcastqueue/eventsubd/pkg/eventstore"
	"github.com/broadcastqueue/eventsubd/pkg/executor"
	"github.com/broadcastqueue/eventsubd/pkg/idgen"
	"github.com/broadcastqueue/eventsubd/pkg/retention"
	"github.com/broadcastqueue/eventsubd/pkg/sse"
	"github.com/broadcastqueue/eventsubd/pkg/statestore"
	"github.com/broadcastqueue/eventsubd/pkg/tap"
	"github.com/broadcastqueue/eventsubd/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// tapCapacity bounds how many in-flight StageEvents the Tap holds before it
// starts dropping the oldest to admit the newest (pkg/tap.New).
const tapCapacity = 4096

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	log.Printf("Starting %s", version.Full())

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load service configuration: %v", err)
	}

	rewardRegistryPath := filepath.Join(*configDir, "rewards.yaml")
	rewardRegistry, err := config.LoadRewardRegistry(rewardRegistryPath)
	if err != nil {
		log.Fatalf("Failed to load reward registry: %v", err)
	}

	if overridePath := getEnv("REWARD_REGISTRY_OVERRIDE", ""); overridePath != "" {
		override, err := config.LoadRewardRegistry(overridePath)
		if err != nil {
			log.Fatalf("Failed to load reward registry override %s: %v", overridePath, err)
		}
		rewardRegistry, err = config.MergeOverride(rewardRegistry, override)
		if err != nil {
			log.Fatalf("Failed to merge reward registry override: %v", err)
		}
		log.Printf("Merged reward registry override from %s", overridePath)
	}
	log.Printf("Loaded reward registry with %d entries", len(rewardRegistry.Rewards))

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL and applied pending migrations")

	clk := clock.Real{}
	ids := idgen.Real{}

	events := eventstore.New(dbClient.DB())
	states := statestore.New(dbClient.DB())
	tp := tap.New(tapCapacity)

	hub := sse.NewHub(states, cfg.SSERingMaxEntries, cfg.SSERingTTL)

	listener := sse.NewPgListener(dbConfig.DSN(), hub)
	if err := listener.Start(ctx); err != nil {
		log.Fatalf("Failed to start SSE LISTEN connection: %v", err)
	}
	defer listener.Stop()

	// The real Twitch Helix redemption-update capability is an external
	// collaborator out of this service's scope: commands that would call it
	// are recorded with result=skipped rather than blocking on a nil
	// RedemptionUpdater.
	exec := executor.New(dbClient.DB(), nil, hub, clk, ids)

	retentionSvc := retention.NewService(retention.Config{
		EventRetention:      cfg.EventRetention,
		CommandLogRetention: cfg.CommandLogRetention,
		Interval:            cfg.RetentionInterval,
	}, events, commandlog.New(dbClient.DB()), clk.Now)
	retentionSvc.Start(ctx)
	defer retentionSvc.Stop()

	server := api.NewServer(cfg, events, states, exec, hub, listener, tp, clk, ids)

	go func() {
		log.Printf("HTTP server listening on %s", cfg.BindAddress)
		if err := server.Start(cfg.BindAddress); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}
}
