package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ordermat/go-order-bot/internal/catalog"
	"github.com/ordermat/go-order-bot/internal/config"
	"github.com/ordermat/go-order-bot/internal/httpx"
	kafkax "github.com/ordermat/go-order-bot/internal/kafka"
	"github.com/ordermat/go-order-bot/internal/ledger"
	"github.com/ordermat/go-order-bot/internal/postgres"
	"github.com/ordermat/go-order-bot/internal/redisx"
	"github.com/ordermat/go-order-bot/internal/storage"
)

func newStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	switch cfg.StoreBackend {
	case "file":
		return storage.NewFileStore(cfg.DataFile), func() {}, nil
	case "redis":
		rdb := redisx.New(cfg.RedisAddr)
		if err := redisx.Ping(ctx, rdb); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return storage.NewRedisStore(rdb, cfg.RedisKey), func() { rdb.Close() }, nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := storage.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return store, func() { pool.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init", zap.Error(err))
	}
	defer closeStore()

	repo := storage.NewRepository(store, logger)

	// Notifications are optional: no brokers, no producer.
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, 1024, logger)
		prod.Start(ctx)
	}

	router := httpx.NewRouter()
	h := &httpx.BotHandler{
		Catalog:    catalog.NewService(repo),
		Ledger:     ledger.NewService(repo),
		Repo:       repo,
		Producer:   prod,
		Service:    cfg.ServiceName,
		Currency:   cfg.Currency,
		AdminToken: cfg.AdminToken,
		Log:        logger,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	if prod != nil {
		prod.Close() // flush remaining notifications
		prod.WaitClosed()
	}
}
