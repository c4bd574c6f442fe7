package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/email"
	"github.com/Domenick1991/flightmanager/internal/kafka"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/Domenick1991/flightmanager/internal/service/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg email.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockLockCache struct {
	mock.Mock
}

func (m *MockLockCache) AcquireAdmissionLock(ctx context.Context, flightID int64, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, flightID, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLockCache) ReleaseAdmissionLock(ctx context.Context, flightID int64, owner string) error {
	args := m.Called(ctx, flightID, owner)
	return args.Error(0)
}

type fixture struct {
	store   *repository.MemoryStore
	service *ReservationService
	flight  domain.Flight
	now     time.Time
}

func newFixture(t *testing.T, opts ...ReservationServiceOption) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	dep := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	f := domain.Flight{
		FromLocation: "SOF", ToLocation: "LHR",
		DepartureTime: dep, ArrivalTime: dep.Add(3 * time.Hour),
		AircraftType: "A320", AircraftNumber: "LZ-FBA", PilotName: "Pilot",
		PassengerCapacity: 10, BusinessClassCapacity: 2,
	}
	require.NoError(t, store.Flights().Create(context.Background(), &f))

	fx := &fixture{store: store, flight: f, now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]ReservationServiceOption{WithClock(func() time.Time { return fx.now })}, opts...)
	fx.service = NewReservationService(store.Flights(), store.Passengers(), store.Reservations(),
		reconcile.New(store.Passengers(), store.Reservations()), opts...)
	return fx
}

func passenger(n int) PassengerInput {
	return PassengerInput{
		UserName:       fmt.Sprintf("user%d", n),
		FirstName:      "Ivan",
		MiddleName:     "Ivanov",
		LastName:       fmt.Sprintf("Petrov%d", n),
		IdentityNumber: fmt.Sprintf("%010d", n),
		Address:        "Sofia",
		PhoneNumber:    "+359000000",
		Email:          fmt.Sprintf("p%d@example.com", n),
	}
}

func (fx *fixture) book(t *testing.T, n int, class domain.TicketClass) (*Created, error) {
	t.Helper()
	return fx.service.Create(context.Background(), CreateInput{
		FlightID:    fx.flight.ID,
		Passenger:   passenger(n),
		TicketClass: string(class),
		Nationality: "Bulgarian",
	})
}

func TestReservationService_Create_Success(t *testing.T) {
	sender := &MockSender{}
	producer := &MockProducer{}
	fx := newFixture(t,
		WithSender(sender, "https://flights.example/reservations/confirm"),
		WithProducer(producer, "reservation-events"),
	)

	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return msg.To == "p1@example.com" && strings.Contains(msg.Text, "reservations/confirm?id=")
	})).Return("msg-1", nil).Once()
	producer.On("Publish", mock.Anything, "reservation-events", "flight-1", mock.MatchedBy(func(e kafka.ReservationEvent) bool {
		return e.Type == kafka.EventReservationCreated
	})).Return(nil).Once()

	created, err := fx.book(t, 1, domain.TicketClassBusiness)

	require.NoError(t, err)
	require.Len(t, created.Reservations, 1)
	r := created.Reservations[0]
	assert.Equal(t, domain.ReservationStatePending, r.State())
	assert.Equal(t, fx.now, r.CreatedAt)
	assert.Equal(t, "msg-1", created.NotificationID)
	assert.GreaterOrEqual(t, len(created.Token), 43, "256 bits base64url")
	assert.True(t, r.TokenMatches(created.Token))

	p, err := fx.store.Passengers().GetByIdentityNumber(context.Background(), "0000000001")
	require.NoError(t, err)
	assert.Equal(t, p.ID, r.PassengerID)

	sender.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestReservationService_Create_TokensDiffer(t *testing.T) {
	fx := newFixture(t)
	a, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)
	b, err := fx.book(t, 2, domain.TicketClassEconomy)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestReservationService_Create_SendFailureKeepsReservation(t *testing.T) {
	sender := &MockSender{}
	producer := &MockProducer{}
	fx := newFixture(t, WithSender(sender, "https://x/confirm"), WithProducer(producer, "events"))
	sender.On("Send", mock.Anything, mock.Anything).Return("", errors.New("smtp down"))
	producer.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("kafka down"))

	created, err := fx.book(t, 1, domain.TicketClassEconomy)

	require.NoError(t, err)
	assert.Empty(t, created.NotificationID)
	_, err = fx.store.Reservations().GetByID(context.Background(), created.Reservations[0].ID)
	assert.NoError(t, err)
}

func TestReservationService_Create_Duplicate(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)

	_, err = fx.book(t, 1, domain.TicketClassBusiness)
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)
}

func TestReservationService_Create_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{name: "bad class", input: CreateInput{FlightID: fx.flight.ID, Passenger: passenger(1), TicketClass: "First", Nationality: "BG"}, want: domain.ErrValidation},
		{name: "no nationality", input: CreateInput{FlightID: fx.flight.ID, Passenger: passenger(1), TicketClass: "Economy"}, want: domain.ErrValidation},
		{name: "short identity", input: CreateInput{FlightID: fx.flight.ID, Passenger: func() PassengerInput { p := passenger(1); p.IdentityNumber = "12345"; return p }(), TicketClass: "Economy", Nationality: "BG"}, want: domain.ErrValidation},
		{name: "unknown flight", input: CreateInput{FlightID: 999, Passenger: passenger(1), TicketClass: "Economy", Nationality: "BG"}, want: domain.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.service.Create(ctx, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestReservationService_CapacityScenario(t *testing.T) {
	fx := newFixture(t)

	for i := 1; i <= 2; i++ {
		_, err := fx.book(t, i, domain.TicketClassBusiness)
		require.NoError(t, err)
	}
	_, err := fx.book(t, 3, domain.TicketClassBusiness)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	for i := 10; i < 18; i++ {
		_, err := fx.book(t, i, domain.TicketClassEconomy)
		require.NoError(t, err)
	}
	_, err = fx.book(t, 18, domain.TicketClassEconomy)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	// Rejected bookings leave no passenger behind.
	_, err = fx.store.Passengers().GetByIdentityNumber(context.Background(), "0000000003")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReservationService_GroupCreateAndConfirm(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	created, err := fx.service.CreateGroup(ctx, GroupInput{
		FlightID:    fx.flight.ID,
		Passengers:  []PassengerInput{passenger(1), passenger(2), passenger(3)},
		TicketClass: "Economy",
		Nationality: "Bulgarian",
	})
	require.NoError(t, err)
	require.Len(t, created.Reservations, 3)

	ids := []int64{created.Reservations[0].ID, created.Reservations[1].ID, created.Reservations[2].ID}

	_, err = fx.service.ConfirmGroup(ctx, ids[:2], created.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "subset of the group")
	_, err = fx.service.Confirm(ctx, ids[0], created.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	fx.now = fx.now.Add(time.Hour)
	confirmed, err := fx.service.ConfirmGroup(ctx, ids, created.Token)
	require.NoError(t, err)
	require.Len(t, confirmed, 3)
	for _, r := range confirmed {
		assert.True(t, r.IsConfirmed)
		assert.Nil(t, r.ConfirmationToken)
		require.NotNil(t, r.ConfirmedAt)
		assert.Equal(t, fx.now, *r.ConfirmedAt)
	}

	_, err = fx.service.ConfirmGroup(ctx, ids, created.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestReservationService_GroupConfirmAfterMemberDeleted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	created, err := fx.service.CreateGroup(ctx, GroupInput{
		FlightID:    fx.flight.ID,
		Passengers:  []PassengerInput{passenger(1), passenger(2), passenger(3)},
		TicketClass: "Economy",
		Nationality: "Bulgarian",
	})
	require.NoError(t, err)
	ids := []int64{created.Reservations[0].ID, created.Reservations[1].ID, created.Reservations[2].ID}

	require.NoError(t, fx.service.Delete(ctx, ids[2]))

	// The original group link still names the deleted reservation.
	_, err = fx.service.ConfirmGroup(ctx, ids, created.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	confirmed, err := fx.service.ConfirmGroup(ctx, ids[:2], created.Token)
	require.NoError(t, err)
	assert.Len(t, confirmed, 2)
}

func TestReservationService_GroupCreate_AllOrNothing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.book(t, 2, domain.TicketClassBusiness)
	require.NoError(t, err)

	_, err = fx.service.CreateGroup(ctx, GroupInput{
		FlightID:    fx.flight.ID,
		Passengers:  []PassengerInput{passenger(1), passenger(2)},
		TicketClass: "Economy",
		Nationality: "BG",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)

	_, err = fx.service.CreateGroup(ctx, GroupInput{
		FlightID:    fx.flight.ID,
		Passengers:  []PassengerInput{passenger(5), passenger(6)},
		TicketClass: "Business",
		Nationality: "BG",
	})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = fx.service.CreateGroup(ctx, GroupInput{
		FlightID:    fx.flight.ID,
		Passengers:  []PassengerInput{passenger(7), passenger(7)},
		TicketClass: "Economy",
		Nationality: "BG",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReservation)

	counts, err := fx.store.Reservations().CountByClass(ctx, fx.flight.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatCounts{Business: 1}, counts)
}

func TestReservationService_Confirm(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	created, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)
	id := created.Reservations[0].ID

	_, err = fx.service.Confirm(ctx, 999, created.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = fx.service.Confirm(ctx, id, "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, err = fx.service.Confirm(ctx, id, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	r, err := fx.service.Confirm(ctx, id, created.Token)
	require.NoError(t, err)
	assert.True(t, r.IsConfirmed)

	_, err = fx.service.Confirm(ctx, id, created.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestReservationService_Delete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	pending, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)
	confirmed, err := fx.book(t, 2, domain.TicketClassEconomy)
	require.NoError(t, err)
	_, err = fx.service.Confirm(ctx, confirmed.Reservations[0].ID, confirmed.Token)
	require.NoError(t, err)

	err = fx.service.Delete(ctx, confirmed.Reservations[0].ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	still, err := fx.store.Reservations().GetByID(ctx, confirmed.Reservations[0].ID)
	require.NoError(t, err)
	assert.True(t, still.IsConfirmed)

	require.NoError(t, fx.service.Delete(ctx, pending.Reservations[0].ID))
	_, err = fx.store.Passengers().GetByID(ctx, pending.Reservations[0].PassengerID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "orphaned passenger removed")

	assert.ErrorIs(t, fx.service.Delete(ctx, pending.Reservations[0].ID), domain.ErrNotFound)
}

func TestReservationService_Delete_KeepsReferencedPassenger(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	other := domain.Flight{FromLocation: "SOF", ToLocation: "BER", PassengerCapacity: 5}
	require.NoError(t, fx.store.Flights().Create(ctx, &other))

	first, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)
	_, err = fx.service.Create(ctx, CreateInput{FlightID: other.ID, Passenger: passenger(1), TicketClass: "Economy", Nationality: "BG"})
	require.NoError(t, err)

	require.NoError(t, fx.service.Delete(ctx, first.Reservations[0].ID))
	_, err = fx.store.Passengers().GetByID(ctx, first.Reservations[0].PassengerID)
	assert.NoError(t, err)
}

func TestReservationService_Update(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := fx.book(t, i, domain.TicketClassBusiness)
		require.NoError(t, err)
	}
	eco, err := fx.book(t, 3, domain.TicketClassEconomy)
	require.NoError(t, err)
	id := eco.Reservations[0].ID

	_, err = fx.service.Update(ctx, id, UpdateInput{Nationality: "BG", TicketClass: "Business"})
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	updated, err := fx.service.Update(ctx, id, UpdateInput{Nationality: "Greek", TicketClass: "Economy"})
	require.NoError(t, err)
	assert.Equal(t, "Greek", updated.Nationality)

	_, err = fx.service.Confirm(ctx, id, eco.Token)
	require.NoError(t, err)
	_, err = fx.service.Update(ctx, id, UpdateInput{Nationality: "BG", TicketClass: "Economy"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestReservationService_ExistsAndList(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)

	ok, err := fx.service.Exists(ctx, "0000000001", fx.flight.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = fx.service.Exists(ctx, "0000000009", fx.flight.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fx.service.Exists(ctx, "abc", fx.flight.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	page, err := fx.service.List(ctx, repository.ReservationFilter{FlightID: fx.flight.ID}, domain.Page{Number: 1, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "0000000001", page.Items[0].Passenger.IdentityNumber)
}

func TestReservationService_LockerSerializesAdmissions(t *testing.T) {
	cache := &MockLockCache{}
	fx := newFixture(t, WithLocker(NewRedisLocker(cache, time.Second)))

	cache.On("AcquireAdmissionLock", mock.Anything, fx.flight.ID, mock.Anything, time.Second).Return(true, nil)
	cache.On("ReleaseAdmissionLock", mock.Anything, fx.flight.ID, mock.Anything).Return(nil)

	_, err := fx.book(t, 1, domain.TicketClassEconomy)
	require.NoError(t, err)
	cache.AssertNumberOfCalls(t, "AcquireAdmissionLock", 1)
	cache.AssertNumberOfCalls(t, "ReleaseAdmissionLock", 1)
}

func TestRedisLocker_Busy(t *testing.T) {
	cache := &MockLockCache{}
	cache.On("AcquireAdmissionLock", mock.Anything, int64(1), mock.Anything, 50*time.Millisecond).Return(false, nil)
	l := NewRedisLocker(cache, 50*time.Millisecond)

	_, err := l.Lock(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// With serialized admissions concurrent bookings never exceed the pool.
func TestReservationService_ConcurrentBookings_Serialized(t *testing.T) {
	fx := newFixture(t, WithLocker(&mutexLocker{}))
	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 1; i <= 6; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := fx.book(t, n, domain.TicketClassBusiness)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
		}
	}
	assert.Equal(t, 2, succeeded)
}

type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) Lock(ctx context.Context, flightID int64) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}
