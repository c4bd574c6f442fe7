package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightmanager/config"
	"github.com/Domenick1991/flightmanager/internal/cache"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	Flights      repository.FlightRepository
	Passengers   repository.PassengerRepository
	Reservations repository.ReservationRepository
	Accounts     repository.AccountRepository
	close        func()
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStorage connects to postgres, or builds an in-memory store for the memory driver.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return NewMemoryStorage(repository.NewMemoryStore()), nil
	}

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Storage{
		Flights:      repository.NewFlightRepository(pool),
		Passengers:   repository.NewPassengerRepository(pool),
		Reservations: repository.NewReservationRepository(pool),
		Accounts:     repository.NewAccountRepository(pool),
		close:        pool.Close,
	}, nil
}

// RequireSharedStorage rejects the memory driver for processes that must see the api's data.
func RequireSharedStorage(cfg config.DatabaseConfig) error {
	if cfg.Driver == config.DriverMemory {
		return fmt.Errorf("database.driver %q is private to one process, use %q", config.DriverMemory, config.DriverPostgres)
	}
	return nil
}

func NewMemoryStorage(store *repository.MemoryStore) *Storage {
	return &Storage{
		Flights:      store.Flights(),
		Passengers:   store.Passengers(),
		Reservations: store.Reservations(),
		Accounts:     store.Accounts(),
	}
}

// OpenCache returns nil when redis is not configured.
func OpenCache(ctx context.Context, cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	c := cache.NewRedisCache(cfg.Redis, cfg.Reservation.FlightsCacheTTL())
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}
