package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightmanager/api"
	"github.com/Domenick1991/flightmanager/config"
	"github.com/Domenick1991/flightmanager/internal/bootstrap"
	"github.com/Domenick1991/flightmanager/internal/kafka"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/service/accounts"
	"github.com/Domenick1991/flightmanager/internal/service/flights"
	"github.com/Domenick1991/flightmanager/internal/service/passengers"
	"github.com/Domenick1991/flightmanager/internal/service/reconcile"
	"github.com/Domenick1991/flightmanager/internal/service/reservation"
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
		fatal("load config", err)
	}
	logger.Init(cfg.Log, "flightmanager-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg.Database)
	if err != nil {
		fatal("open storage", err)
	}
	defer storage.Close()

	redisCache, err := bootstrap.OpenCache(ctx, cfg)
	if err != nil {
		fatal("open cache", err)
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logger.Warn("kafka is not reachable, events will be dropped", "error", err)
		}
	}

	reconciler := reconcile.New(storage.Passengers, storage.Reservations)

	var flightCache flights.FlightCache
	if redisCache != nil {
		defer redisCache.Close()
		flightCache = redisCache
	}
	flightService := flights.NewFlightService(storage.Flights, storage.Reservations, flightCache)

	reservationOpts := []reservation.ReservationServiceOption{
		reservation.WithSender(bootstrap.ConfirmationSender(cfg, producer), cfg.Reservation.ConfirmationEndpoint),
	}
	passengerOpts := []passengers.PassengerServiceOption{}
	if producer != nil {
		reservationOpts = append(reservationOpts, reservation.WithProducer(producer, cfg.Kafka.ReservationEventsTopic))
		passengerOpts = append(passengerOpts, passengers.WithProducer(producer, cfg.Kafka.ReservationEventsTopic))
	}
	if cfg.Reservation.SerializeAdmissions {
		if redisCache == nil {
			fatal("serialize_admissions", errNoRedis)
		}
		reservationOpts = append(reservationOpts, reservation.WithLocker(
			reservation.NewRedisLocker(redisCache, cfg.Reservation.AdmissionLockTTL())))
	}
	reservationService := reservation.NewReservationService(
		storage.Flights, storage.Passengers, storage.Reservations, reconciler, reservationOpts...)

	passengerService := passengers.NewPassengerService(
		storage.Passengers, storage.Reservations, storage.Accounts, reconciler, passengerOpts...)

	accountService := accounts.NewAccountService(storage.Accounts, storage.Passengers, reconciler, accounts.Settings{
		JWTSecret:  cfg.Auth.JWTSecret,
		AccessTTL:  cfg.Auth.AccessTTL(),
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if cfg.Auth.OwnerEmail != "" {
		if _, err := accountService.SeedOwner(ctx, accounts.RegisterInput{
			Email:    cfg.Auth.OwnerEmail,
			UserName: cfg.Auth.OwnerUserName,
			Password: cfg.Auth.OwnerPassword,
		}); err != nil {
			fatal("seed owner account", err)
		}
	}

	router := api.NewRouter(accountService,
		api.NewFlightHandler(flightService),
		api.NewReservationHandler(reservationService),
		api.NewPassengerHandler(passengerService),
		api.NewAccountHandler(accountService),
	)

	if err := bootstrap.Run(ctx, bootstrap.NewHTTPServer(cfg.HTTP, router)); err != nil {
		fatal("server error", err)
	}
}
