package sweeper

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/flightmanager/config"
	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/Domenick1991/flightmanager/internal/service/reconcile"
	"github.com/Domenick1991/flightmanager/internal/service/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// flakyStore fails the first select and then reports nothing expired.
type flakyStore struct {
	calls atomic.Int32
}

func (f *flakyStore) FindExpiredUnconfirmed(ctx context.Context, createdBefore time.Time) ([]domain.Reservation, error) {
	if f.calls.Add(1) == 1 {
		return nil, errors.New("connection refused")
	}
	return nil, nil
}

func (f *flakyStore) DeleteUnconfirmed(ctx context.Context, ids []int64) ([]int64, error) {
	return nil, nil
}

// confirmingStore redeems the first selected reservation before the sweeper deletes the batch.
type confirmingStore struct {
	repository.ReservationRepository
	token string
	at    time.Time
}

func (c confirmingStore) FindExpiredUnconfirmed(ctx context.Context, createdBefore time.Time) ([]domain.Reservation, error) {
	expired, err := c.ReservationRepository.FindExpiredUnconfirmed(ctx, createdBefore)
	if err != nil || len(expired) == 0 {
		return expired, err
	}
	if _, err := c.ConfirmMany(ctx, []int64{expired[0].ID}, c.token, c.at); err != nil {
		return nil, err
	}
	return expired, nil
}

type noOrphans struct{}

func (noOrphans) Orphaned(ctx context.Context, batch []domain.Reservation) ([]int64, error) {
	return nil, nil
}

func TestConfigFrom(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFrom(config.CleanupConfig{}))
	assert.Equal(t, Config{Interval: time.Minute, ExpiryThreshold: 2 * time.Hour},
		ConfigFrom(config.CleanupConfig{CheckIntervalMinutes: 1, ExpiryHours: 2}))
}

func TestTick_RemovesOnlyExpired(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f := domain.Flight{PassengerCapacity: 10}
	require.NoError(t, store.Flights().Create(ctx, &f))
	oldP := domain.Passenger{FirstName: "O", LastName: "O", IdentityNumber: "0000000001"}
	newP := domain.Passenger{FirstName: "N", LastName: "N", IdentityNumber: "0000000002"}
	require.NoError(t, store.Passengers().Create(ctx, &oldP))
	require.NoError(t, store.Passengers().Create(ctx, &newP))

	token := "t"
	old := domain.Reservation{PassengerID: oldP.ID, FlightID: f.ID, Nationality: "BG", TicketClass: domain.TicketClassEconomy, ConfirmationToken: &token, CreatedAt: now.Add(-49 * time.Hour)}
	fresh := domain.Reservation{PassengerID: newP.ID, FlightID: f.ID, Nationality: "BG", TicketClass: domain.TicketClassEconomy, ConfirmationToken: &token, CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, store.Reservations().Create(ctx, &old))
	require.NoError(t, store.Reservations().Create(ctx, &fresh))

	producer := &MockProducer{}
	producer.On("Publish", ctx, "reservation-events", "flight-1", mock.Anything).Return(errors.New("kafka down")).Once()

	s := New(Config{Interval: time.Minute, ExpiryThreshold: 48 * time.Hour},
		store.Reservations(), store.Passengers(), reconcile.New(store.Passengers(), store.Reservations()),
		WithClock(func() time.Time { return now }),
		WithProducer(producer, "reservation-events"),
	)

	res, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Selected: 1, Expired: 1, PassengersPruned: 1}, res)

	_, err = store.Reservations().GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Passengers().GetByID(ctx, oldP.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Reservations().GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = store.Passengers().GetByID(ctx, newP.ID)
	assert.NoError(t, err)
	producer.AssertExpectations(t)

	// Nothing left to do on the next tick.
	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
}

func TestTick_KeepsClaimedPassenger(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	a := domain.Account{Email: "c@d.e", UserName: "c"}
	require.NoError(t, store.Accounts().Create(ctx, &a))
	f := domain.Flight{PassengerCapacity: 10}
	require.NoError(t, store.Flights().Create(ctx, &f))
	p := domain.Passenger{FirstName: "C", LastName: "C", IdentityNumber: "0000000003", AccountID: &a.ID}
	require.NoError(t, store.Passengers().Create(ctx, &p))
	r := domain.Reservation{PassengerID: p.ID, FlightID: f.ID, Nationality: "BG", TicketClass: domain.TicketClassEconomy, CreatedAt: now.Add(-72 * time.Hour)}
	require.NoError(t, store.Reservations().Create(ctx, &r))

	s := New(DefaultConfig(), store.Reservations(), store.Passengers(), reconcile.New(store.Passengers(), store.Reservations()))
	res, err := s.Tick(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Zero(t, res.PassengersPruned)
	_, err = store.Passengers().GetByID(ctx, p.ID)
	assert.NoError(t, err)
}

func TestTick_WrapsFailure(t *testing.T) {
	s := New(DefaultConfig(), &flakyStore{}, nil, noOrphans{})

	_, err := s.Tick(context.Background())

	var sweepErr *SweepError
	require.ErrorAs(t, err, &sweepErr)
	assert.Equal(t, "select", sweepErr.Stage)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_ContinuesAfterFailureAndStops(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Default()
	logger.SetDefault(logger.New(&buf, "info"))
	t.Cleanup(func() { logger.SetDefault(prev) })

	store := &flakyStore{}
	s := New(Config{Interval: 5 * time.Millisecond, ExpiryThreshold: time.Hour}, store, nil, noOrphans{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "expiry sweeper started"))
	assert.Equal(t, 1, strings.Count(out, "expiry sweeper stopped"))
	assert.Equal(t, 1, strings.Count(out, "expiry sweep failed"))
}

func seedExpired(t *testing.T, store *repository.MemoryStore, now time.Time, token string) (domain.Passenger, domain.Reservation) {
	t.Helper()
	ctx := context.Background()
	f := domain.Flight{PassengerCapacity: 10}
	require.NoError(t, store.Flights().Create(ctx, &f))
	p := domain.Passenger{FirstName: "L", LastName: "L", IdentityNumber: "0000000004"}
	require.NoError(t, store.Passengers().Create(ctx, &p))
	r := domain.Reservation{PassengerID: p.ID, FlightID: f.ID, Nationality: "BG", TicketClass: domain.TicketClassEconomy, ConfirmationToken: &token, CreatedAt: now.Add(-49 * time.Hour)}
	require.NoError(t, store.Reservations().Create(ctx, &r))
	return p, r
}

func TestTick_ConfirmedDuringSweepSurvives(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, r := seedExpired(t, store, now, "late")

	producer := &MockProducer{}
	reservations := confirmingStore{ReservationRepository: store.Reservations(), token: "late", at: now}
	s := New(DefaultConfig(), reservations, store.Passengers(), reconcile.New(store.Passengers(), store.Reservations()),
		WithClock(func() time.Time { return now }),
		WithProducer(producer, "reservation-events"),
	)

	res, err := s.Tick(ctx)

	require.NoError(t, err)
	assert.Equal(t, Result{Selected: 1}, res)
	got, err := store.Reservations().GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsConfirmed)
	_, err = store.Passengers().GetByID(ctx, p.ID)
	assert.NoError(t, err)
	producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_ConfirmAfterSweepNotFound(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, r := seedExpired(t, store, now, "expired-token")

	s := New(DefaultConfig(), store.Reservations(), store.Passengers(), reconcile.New(store.Passengers(), store.Reservations()),
		WithClock(func() time.Time { return now }))
	res, err := s.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Expired)

	svc := reservation.NewReservationService(store.Flights(), store.Passengers(), store.Reservations(),
		reconcile.New(store.Passengers(), store.Reservations()))
	_, err = svc.Confirm(ctx, r.ID, "expired-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNew_ZeroConfigUsesDefaults(t *testing.T) {
	s := New(Config{}, &flakyStore{}, nil, noOrphans{})
	assert.Equal(t, DefaultConfig(), s.cfg)

	s = New(Config{Interval: -time.Second, ExpiryThreshold: time.Hour}, &flakyStore{}, nil, noOrphans{})
	assert.Equal(t, Config{Interval: DefaultConfig().Interval, ExpiryThreshold: time.Hour}, s.cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { New(Config{}, &flakyStore{}, nil, noOrphans{}).Run(ctx) })
}
