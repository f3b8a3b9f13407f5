package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/example/grocery-ordering/internal/config"
	"github.com/example/grocery-ordering/internal/email"
	"github.com/example/grocery-ordering/internal/infrastructure/kafka"
	"github.com/example/grocery-ordering/internal/logging"
	"github.com/example/grocery-ordering/internal/notification"
	"go.uber.org/zap"
)

// Dedicated consumer group for order confirmation mails.
const consumerGroup = "order-notifier"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Notifier] invalid configuration: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("[Notifier] KAFKA_BROKERS environment variable is required")
	}

	logger, err := logging.New("notifier", cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("[Notifier] failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", consumerGroup),
		zap.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
		zap.String("from", cfg.SMTPFrom),
	)

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(mailer, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logger)
	defer consumer.Close()

	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
		return
	}
	logger.Info("shut down")
}
