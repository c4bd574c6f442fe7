package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Domenick1991/flightmanager/config"
	"github.com/Domenick1991/flightmanager/internal/bootstrap"
	"github.com/Domenick1991/flightmanager/internal/kafka"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/service/reconcile"
	"github.com/Domenick1991/flightmanager/internal/service/sweeper"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log, "flightmanager-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.RequireSharedStorage(cfg.Database); err != nil {
		logger.Error("worker storage", "error", err)
		os.Exit(1)
	}
	storage, err := bootstrap.OpenStorage(ctx, cfg.Database)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	reconciler := reconcile.New(storage.Passengers, storage.Reservations)

	var sweeperOpts []sweeper.Option
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		sweeperOpts = append(sweeperOpts, sweeper.WithProducer(producer, cfg.Kafka.ReservationEventsTopic))
	}
	expiry := sweeper.New(sweeper.ConfigFrom(cfg.Cleanup), storage.Reservations, storage.Passengers, reconciler, sweeperOpts...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		expiry.Run(ctx)
	}()

	if cfg.Kafka.Enabled() {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		handler := kafka.NotificationHandler(bootstrap.DirectSender(cfg.Email))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, handler); err != nil {
				logger.Error("notification consumer stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	wg.Wait()
}
