package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/grocery-ordering/internal/api"
	"github.com/example/grocery-ordering/internal/auth"
	"github.com/example/grocery-ordering/internal/config"
	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/example/grocery-ordering/internal/infrastructure/kafka"
	"github.com/example/grocery-ordering/internal/infrastructure/remote"
	"github.com/example/grocery-ordering/internal/infrastructure/store"
	"github.com/example/grocery-ordering/internal/logging"
	"github.com/example/grocery-ordering/internal/server"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[OrderService] invalid configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[OrderService] invalid configuration: %v", err)
	}

	logger, err := logging.New("order-service", cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("[OrderService] failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("order service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store", cfg.OrderStore),
		zap.String("cart_service_url", cfg.CartServiceURL),
		zap.Duration("cart_service_timeout", cfg.CartServiceTimeout),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.Bool("strict_transitions", cfg.StrictTransitions),
	)

	repo, closeRepo, err := openOrderRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var opts []order.Option
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		opts = append(opts, order.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}
	if cfg.StrictTransitions {
		opts = append(opts, order.WithTransitionPolicy(order.StrictTransitions{}))
	}

	orders := order.NewService(repo, remote.NewCartClient(cfg.CartServiceURL, cfg.CartServiceTimeout), logger, opts...)

	handler := api.NewOrderRouter(api.NewOrderHandlers(orders, logger), api.RouterConfig{
		Service:        "order-service",
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

func openOrderRepository(ctx context.Context, cfg *config.Config) (order.Repository, func(), error) {
	switch cfg.OrderStore {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo := store.NewDynamoOrderRepository(dynamodb.NewFromConfig(awsCfg), cfg.DynamoOrdersTable)
		return repo, func() {}, nil
	default:
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunMigrations(db, store.OrderSchema); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store.NewPostgresOrderRepository(db), func() { db.Close() }, nil
	}
}
