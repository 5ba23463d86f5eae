// Command skyfi-proxy serves the SkyFi gateway over HTTP: upstream health,
// Prometheus metrics and conversation-scoped order-history browsing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/skyfi-gateway/internal/config"
	"github.com/Sternrassler/skyfi-gateway/pkg/cache"
	"github.com/Sternrassler/skyfi-gateway/pkg/client"
	"github.com/Sternrassler/skyfi-gateway/pkg/logging"
	"github.com/Sternrassler/skyfi-gateway/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("SKYFI_CONFIG"), "path to a YAML config file (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// A missing .env file is fine
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger(logging.ComponentProxy)

	clientCfg := cfg.ClientConfig()
	var store pagination.Store

	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		clientCfg.Cache = cache.NewRedisBackend(redisClient)
		store = pagination.NewRedisStore(redisClient, cfg.History.SessionTTL)
	} else {
		logger.Info().Msg("Redis not configured, using in-memory cache and sessions")
		store = pagination.NewMemoryStore(cfg.History.SessionTTL)
	}

	skyfi, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("creating SkyFi client: %w", err)
	}
	defer skyfi.Close()

	history := pagination.NewManager(skyfi, store, cfg.HistoryManagerConfig())

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newRouter(skyfi, history),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("base_url", cfg.SkyFi.BaseURL).
			Msg("Starting SkyFi proxy server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
