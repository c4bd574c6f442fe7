package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightmanager/config"
	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/kafka"
	"github.com/Domenick1991/flightmanager/internal/logger"
)

type Config struct {
	Interval        time.Duration
	ExpiryThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 10 * time.Minute, ExpiryThreshold: 48 * time.Hour}
}

func ConfigFrom(c config.CleanupConfig) Config {
	cfg := DefaultConfig()
	if c.CheckInterval() > 0 {
		cfg.Interval = c.CheckInterval()
	}
	if c.Expiry() > 0 {
		cfg.ExpiryThreshold = c.Expiry()
	}
	return cfg
}

type ReservationStore interface {
	FindExpiredUnconfirmed(ctx context.Context, createdBefore time.Time) ([]domain.Reservation, error)
	DeleteUnconfirmed(ctx context.Context, ids []int64) ([]int64, error)
}

type PassengerStore interface {
	DeleteUnreferenced(ctx context.Context, ids []int64) (int64, error)
}

type OrphanFinder interface {
	Orphaned(ctx context.Context, batch []domain.Reservation) ([]int64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

// SweepError marks a tick that failed; Run logs it and keeps going.
type SweepError struct {
	Stage string
	Err   error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep failed at %s: %v", e.Stage, e.Err)
}

func (e *SweepError) Unwrap() error {
	return e.Err
}

// Result counts one tick. Selected may exceed Expired when a reservation is confirmed mid-sweep.
type Result struct {
	Selected         int
	Expired          int
	PassengersPruned int64
}

type Sweeper struct {
	cfg          Config
	reservations ReservationStore
	passengers   PassengerStore
	orphans      OrphanFinder
	producer     Producer
	topic        string
	now          func() time.Time
}

type Option func(*Sweeper)

func WithProducer(p Producer, topic string) Option {
	return func(s *Sweeper) {
		s.producer = p
		s.topic = topic
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// New falls back to DefaultConfig for non-positive durations.
func New(cfg Config, reservations ReservationStore, passengers PassengerStore, orphans OrphanFinder, opts ...Option) *Sweeper {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.ExpiryThreshold <= 0 {
		cfg.ExpiryThreshold = def.ExpiryThreshold
	}
	s := &Sweeper{
		cfg:          cfg,
		reservations: reservations,
		passengers:   passengers,
		orphans:      orphans,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks every Interval until ctx is cancelled. Ticks never overlap.
func (s *Sweeper) Run(ctx context.Context) {
	logger.InfoContext(ctx, "expiry sweeper started", "interval", s.cfg.Interval.String(), "expiry", s.cfg.ExpiryThreshold.String())
	defer logger.InfoContext(ctx, "expiry sweeper stopped")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.Tick(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
		return
	}
	if res.Expired > 0 {
		logger.InfoContext(ctx, "expired reservations removed",
			"selected", res.Selected,
			"expired", res.Expired,
			"passengers_deleted", res.PassengersPruned,
		)
	}
}

// Tick removes pending reservations older than the threshold and then the passengers
// they leave without any reservation.
func (s *Sweeper) Tick(ctx context.Context) (Result, error) {
	now := s.now()
	expired, err := s.reservations.FindExpiredUnconfirmed(ctx, now.Add(-s.cfg.ExpiryThreshold))
	if err != nil {
		return Result{}, &SweepError{Stage: "select", Err: err}
	}
	if len(expired) == 0 {
		return Result{}, nil
	}

	orphaned, err := s.orphans.Orphaned(ctx, expired)
	if err != nil {
		return Result{}, &SweepError{Stage: "orphans", Err: err}
	}

	ids := make([]int64, len(expired))
	for i, r := range expired {
		ids[i] = r.ID
	}

	res := Result{Selected: len(expired)}
	// A reservation confirmed since the select is skipped by the store.
	deleted, err := s.reservations.DeleteUnconfirmed(ctx, ids)
	if err != nil {
		return res, &SweepError{Stage: "delete reservations", Err: err}
	}
	res.Expired = len(deleted)
	if len(orphaned) > 0 {
		if res.PassengersPruned, err = s.passengers.DeleteUnreferenced(ctx, orphaned); err != nil {
			return res, &SweepError{Stage: "delete passengers", Err: err}
		}
	}

	s.publishExpired(ctx, expired, deleted, now)
	return res, nil
}

func (s *Sweeper) publishExpired(ctx context.Context, selected []domain.Reservation, deleted []int64, at time.Time) {
	if s.producer == nil || s.topic == "" {
		return
	}
	gone := make(map[int64]bool, len(deleted))
	for _, id := range deleted {
		gone[id] = true
	}
	for _, r := range selected {
		if !gone[r.ID] {
			continue
		}
		event := kafka.NewReservationEvent(kafka.EventReservationExpired, r, at)
		if err := s.producer.Publish(ctx, s.topic, event.Key(), event); err != nil {
			logger.WarnContext(ctx, "failed to publish expiry event", "reservation_id", r.ID, "error", err)
		}
	}
}
