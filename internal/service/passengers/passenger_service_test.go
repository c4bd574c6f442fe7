package passengers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/Domenick1991/flightmanager/internal/service/reconcile"
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

type fixture struct {
	store   *repository.MemoryStore
	service *PassengerService
	flights []domain.Flight
}

func newFixture(t *testing.T, opts ...PassengerServiceOption) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	fx := &fixture{store: store}
	for i := 0; i < 2; i++ {
		f := domain.Flight{FromLocation: "SOF", ToLocation: fmt.Sprintf("X%d", i), PassengerCapacity: 10}
		require.NoError(t, store.Flights().Create(ctx, &f))
		fx.flights = append(fx.flights, f)
	}
	fx.service = NewPassengerService(store.Passengers(), store.Reservations(), store.Accounts(),
		reconcile.New(store.Passengers(), store.Reservations()), opts...)
	return fx
}

func (fx *fixture) passenger(t *testing.T, n int) domain.Passenger {
	t.Helper()
	p := domain.Passenger{UserName: "u", FirstName: "F", MiddleName: "M", LastName: fmt.Sprintf("L%d", n),
		IdentityNumber: fmt.Sprintf("%010d", n), Address: "A", PhoneNumber: "1"}
	require.NoError(t, fx.store.Passengers().Create(context.Background(), &p))
	return p
}

func (fx *fixture) reserve(t *testing.T, passengerID, flightID int64) domain.Reservation {
	t.Helper()
	token := fmt.Sprintf("tok-%d-%d", passengerID, flightID)
	r := domain.Reservation{PassengerID: passengerID, FlightID: flightID, Nationality: "BG",
		TicketClass: domain.TicketClassEconomy, ConfirmationToken: &token, CreatedAt: time.Now()}
	require.NoError(t, fx.store.Reservations().Create(context.Background(), &r))
	return r
}

func TestPassengerService_Delete_CascadesPending(t *testing.T) {
	producer := &MockProducer{}
	fx := newFixture(t, WithProducer(producer, "reservation-events"))
	ctx := context.Background()
	p := fx.passenger(t, 1)
	fx.reserve(t, p.ID, fx.flights[0].ID)
	fx.reserve(t, p.ID, fx.flights[1].ID)
	producer.On("Publish", ctx, "reservation-events", mock.Anything, mock.Anything).Return(nil).Twice()

	require.NoError(t, fx.service.Delete(ctx, p.ID))

	_, err := fx.store.Passengers().GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	left, err := fx.store.Reservations().List(ctx, repository.ReservationFilter{PassengerID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, left)
	producer.AssertExpectations(t)
}

func TestPassengerService_Delete_BlockedByConfirmed(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	p := fx.passenger(t, 1)
	r := fx.reserve(t, p.ID, fx.flights[0].ID)
	_, err := fx.store.Reservations().ConfirmMany(ctx, []int64{r.ID}, *r.ConfirmationToken, time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, fx.service.Delete(ctx, p.ID), domain.ErrConflict)
	_, err = fx.store.Passengers().GetByID(ctx, p.ID)
	assert.NoError(t, err)
}

func TestPassengerService_Update(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.passenger(t, 1)
	fx.passenger(t, 2)

	in := UpdateInput{UserName: "u", FirstName: "New", MiddleName: "M", LastName: "L", IdentityNumber: "0000000001", Address: "A", PhoneNumber: "1"}
	updated, err := fx.service.Update(ctx, a.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "New", updated.FirstName)

	in.IdentityNumber = "0000000002"
	_, err = fx.service.Update(ctx, a.ID, in)
	assert.ErrorIs(t, err, domain.ErrConflict)

	in.IdentityNumber = "12"
	_, err = fx.service.Update(ctx, a.ID, in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPassengerService_ClaimAndRelease(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	acc := domain.Account{Email: "a@b.c", UserName: "a"}
	require.NoError(t, fx.store.Accounts().Create(ctx, &acc))
	p := fx.passenger(t, 1)

	_, err := fx.service.Claim(ctx, p.ID, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	claimed, err := fx.service.Claim(ctx, p.ID, acc.ID)
	require.NoError(t, err)
	assert.True(t, claimed.Claimed())

	// Claimed with no reservations: kept.
	deleted, err := reconcile.New(fx.store.Passengers(), fx.store.Reservations()).Reconcile(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, fx.service.Release(ctx, p.ID))
	_, err = fx.store.Passengers().GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPassengerService_ListAndFind(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		fx.passenger(t, i)
	}

	page, err := fx.service.List(ctx, domain.Page{Number: 2, Size: 5})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)

	p, err := fx.service.FindByIdentityNumber(ctx, "0000000003")
	require.NoError(t, err)
	assert.Equal(t, "L3", p.LastName)

	_, err = fx.service.FindByIdentityNumber(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
