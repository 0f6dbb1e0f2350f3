package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/carpool/internal/cache"
	"github.com/example/carpool/internal/carpool"
	"github.com/example/carpool/internal/clock"
	"github.com/example/carpool/internal/config"
	"github.com/example/carpool/internal/events"
	httpapi "github.com/example/carpool/internal/http"
	"github.com/example/carpool/internal/ledger"
	"github.com/example/carpool/internal/logging"
	"github.com/example/carpool/internal/matcher"
	"github.com/example/carpool/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pub, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	suggestCache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	clk := clock.NewSystem()
	m := &matcher.Service{
		Store:          store,
		Clock:          clk,
		CandidateLimit: cfg.SuggestCandidateLimit,
		TopN:           cfg.SuggestResultLimit,
		Cache:          suggestCache,
		Logger:         logger,
	}
	api := httpapi.NewServer(
		carpool.NewService(store, clk),
		ledger.NewService(store, pub, clk, logger),
		m,
		store,
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("carpool api listening", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "events", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		ps, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			script, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
			if err != nil {
				_ = ps.Close()
				return nil, fmt.Errorf("read migration: %w", err)
			}
			if err := ps.Migrate(ctx, string(script)); err != nil {
				_ = ps.Close()
				return nil, err
			}
			logger.Info("migration applied", "file", "001_init.sql")
		}
		return ps, nil
	case config.StorageMongo:
		ms, err := storage.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return ms, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func openPublisher(cfg config.ServerConfig) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.EventsAMQP:
		ap, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		return ap, nil
	default:
		return events.Nop{}, nil
	}
}

// openCache returns nil when suggestion caching is disabled. Redis is used
// when REDIS_ADDR is set, otherwise an in-process cache.
func openCache(ctx context.Context, cfg config.ServerConfig) (matcher.Cache, func(), error) {
	if cfg.SuggestCacheTTL <= 0 {
		return nil, func() {}, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.SuggestCacheTTL), func() {}, nil
	}
	rc, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedis(rc, "carpool:", cfg.SuggestCacheTTL), func() { _ = rc.Close() }, nil
}
