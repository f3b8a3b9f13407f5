package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/grocery-ordering/internal/api"
	"github.com/example/grocery-ordering/internal/auth"
	"github.com/example/grocery-ordering/internal/config"
	"github.com/example/grocery-ordering/internal/domain/cart"
	"github.com/example/grocery-ordering/internal/infrastructure/cache"
	"github.com/example/grocery-ordering/internal/infrastructure/remote"
	"github.com/example/grocery-ordering/internal/infrastructure/store"
	"github.com/example/grocery-ordering/internal/logging"
	"github.com/example/grocery-ordering/internal/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[CartService] invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[CartService] invalid configuration: %v", err)
	}

	logger, err := logging.New("cart-service", cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("[CartService] failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("cart service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("catalog_url", cfg.CatalogURL),
		zap.Duration("catalog_timeout", cfg.CatalogTimeout),
		zap.Bool("cache", cfg.RedisAddr != ""),
	)

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.RunMigrations(db, store.CartSchema); err != nil {
		return err
	}
	logger.Info("cart schema migrated")

	var opts []cart.Option
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// the service works without the cache, only slower
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		opts = append(opts, cart.WithCache(cache.NewRedisCartCache(client, cfg.CartCacheTTL)))
	}

	carts := cart.NewService(
		store.NewPostgresCartRepository(db),
		remote.NewCatalogClient(cfg.CatalogURL, cfg.CatalogTimeout),
		logger,
		opts...,
	)

	handler := api.NewCartRouter(api.NewCartHandlers(carts, logger), api.RouterConfig{
		Service:        "cart-service",
		Verifier:       auth.NewJWTService(cfg.JWTSecret, time.Hour),
		Logger:         logger.Named("http"),
		RequestTimeout: cfg.RequestTimeout,
	})

	return server.Run(ctx, server.Config{
		Addr:            cfg.HTTPAddr,
		RequestTimeout:  cfg.RequestTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, handler, logger)
}
