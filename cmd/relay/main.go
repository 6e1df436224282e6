// The relay consumes the notification topic and surfaces each rendered admin
// message. In production the chat gateway does the actual channel posting;
// the relay stands in for it during development and doubles as a worked
// consumer example.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ordermat/go-order-bot/internal/config"
	"github.com/ordermat/go-order-bot/internal/events"
	kafkax "github.com/ordermat/go-order-bot/internal/kafka"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the relay")
	}

	group := getenv("RELAY_GROUP", "orderbot-relay")
	workers, err := strconv.Atoi(getenv("RELAY_WORKERS", "1"))
	if err != nil {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, cfg.NotifyTopic, workers, logger)

	handle := func(ctx context.Context, m kafkago.Message) error {
		var env events.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			return err
		}
		payload, err := kafkax.UnwrapPayload[events.NotificationPayload](env.Payload)
		if err != nil {
			return err
		}
		logger.Info("admin notification",
			zap.String("event", env.EventType),
			zap.String("user", env.UserID),
			zap.String("message", payload.Message))
		return nil
	}

	go func() {
		logger.Info("relay started", zap.String("group", group), zap.String("topic", cfg.NotifyTopic))
		if err := cons.Start(ctx, handle); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("relay shutting down")
	cancel()
}
