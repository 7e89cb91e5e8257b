package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/gravitas-games/sortshift/internal/config"
	"github.com/gravitas-games/sortshift/internal/game"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/gravitas-games/sortshift/internal/persist/redisstore"
	"github.com/gravitas-games/sortshift/internal/persist/sqlitestore"
	"github.com/gravitas-games/sortshift/internal/relay"
	"github.com/gravitas-games/sortshift/internal/server"
)

func main() {
	log.Println("Starting SortShift server...")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/server.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded from %s", configPath)
	log.Printf("Server will run on %s", cfg.Addr())

	logger := logging.New("sortshift", cfg.Log.Level)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the redis store and the token blacklist
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redisstore.Dial(ctx, redisstore.Options{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	store, closeStore, err := openStore(cfg, redisClient, logger)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Storage.Driver, err)
	}
	log.Printf("Save data stored in %s", cfg.Storage.Driver)

	var publisher relay.Publisher
	if cfg.Relay.Enabled {
		nc, err := relay.Dial(relay.Config{URL: cfg.Relay.URL})
		if err != nil {
			log.Fatalf("Failed to connect event relay: %v", err)
		}
		defer nc.Drain()
		publisher = nc
		log.Printf("Relaying events to %s", cfg.Relay.URL)
	}

	session := server.NewSession("main", cfg, logger.With("subsystem", "session"))

	g, err := game.New(game.Options{
		Config:  cfg,
		Store:   store,
		Output:  session,
		Relay:   publisher,
		ShiftID: uuid.NewString(),
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create game: %v", err)
	}

	var blacklist server.Blacklist
	if redisClient != nil {
		blacklist = redisClient
	}
	validator, err := server.NewJWTValidator(ctx, cfg.JWT, cfg.Redis.BlacklistPrefix, blacklist, logger.With("subsystem", "auth"))
	if err != nil {
		log.Fatalf("Failed to initialize JWT validator: %v", err)
	}

	srv := server.New(cfg, session, g, validator, logger.With("subsystem", "server"))

	gameDone := make(chan struct{})
	go func() {
		defer close(gameDone)
		g.Run(ctx, cfg.Server.TickRate)
	}()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(cfg.Addr()); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	// Graceful shutdown: stop accepting players, then let the game flush
	if err := srv.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	cancel()
	<-gameDone

	if err := closeStore(); err != nil {
		log.Printf("Error closing store: %v", err)
	}

	log.Println("Server stopped")
}

// openStore builds the configured save data backend.
func openStore(cfg *config.Config, client *redis.Client, logger *slog.Logger) (persist.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case config.DriverRedis:
		if client == nil {
			return nil, nil, fmt.Errorf("redis.address is required for the redis driver")
		}
		store := redisstore.New(client, redisstore.Options{KeyPrefix: cfg.Redis.KeyPrefix}, logger.With("subsystem", "redisstore"))
		return store, store.Close, nil

	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlitestore.Open(cfg.Storage.SQLitePath, logger.With("subsystem", "sqlitestore"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return persist.NewMemoryStore(nil), noop, nil
	}
}
