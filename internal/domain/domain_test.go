package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFlight() Flight {
	dep := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return Flight{
		FromLocation:          "SOF",
		ToLocation:            "LHR",
		DepartureTime:         dep,
		ArrivalTime:           dep.Add(3 * time.Hour),
		AircraftType:          "A320",
		AircraftNumber:        "FB421",
		PilotName:             "Ivan Petrov",
		PassengerCapacity:     10,
		BusinessClassCapacity: 2,
	}
}

func TestFlight_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(f *Flight)
		wantErr bool
	}{
		{name: "valid", mutate: func(f *Flight) {}},
		{name: "arrival equals departure", mutate: func(f *Flight) { f.ArrivalTime = f.DepartureTime }, wantErr: true},
		{name: "arrival before departure", mutate: func(f *Flight) { f.ArrivalTime = f.DepartureTime.Add(-time.Minute) }, wantErr: true},
		{name: "zero capacity", mutate: func(f *Flight) { f.PassengerCapacity = 0; f.BusinessClassCapacity = 0 }, wantErr: true},
		{name: "negative business", mutate: func(f *Flight) { f.BusinessClassCapacity = -1 }, wantErr: true},
		{name: "business above total", mutate: func(f *Flight) { f.BusinessClassCapacity = 11 }, wantErr: true},
		{name: "business equals total", mutate: func(f *Flight) { f.BusinessClassCapacity = 10 }},
		{name: "missing pilot", mutate: func(f *Flight) { f.PilotName = " " }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFlight()
			tc.mutate(&f)
			err := f.Validate()
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFlight_StandardCapacity(t *testing.T) {
	f := validFlight()
	assert.Equal(t, 8, f.StandardCapacity())
	assert.Equal(t, 3*time.Hour, f.Duration())
}

func TestValidateIdentityNumber(t *testing.T) {
	assert.NoError(t, ValidateIdentityNumber("8001011234"))
	for _, bad := range []string{"", "123", "12345678901", "80010112a4", " 8001011234"} {
		assert.ErrorIs(t, ValidateIdentityNumber(bad), ErrValidation, bad)
	}
}

func TestPassenger_ValidateAndClaimed(t *testing.T) {
	p := Passenger{
		UserName:       "ivan",
		FirstName:      "Ivan",
		MiddleName:     "Ivanov",
		LastName:       "Petrov",
		IdentityNumber: "8001011234",
		Address:        "Sofia",
		PhoneNumber:    "+359888000000",
	}
	require.NoError(t, p.Validate())
	assert.False(t, p.Claimed())
	assert.Equal(t, "Ivan Ivanov Petrov", p.FullName())

	id := int64(7)
	p.AccountID = &id
	assert.True(t, p.Claimed())

	p.PhoneNumber = ""
	assert.ErrorIs(t, p.Validate(), ErrValidation)
}

func TestReservation_TokenLifecycle(t *testing.T) {
	token := "abc"
	r := Reservation{ConfirmationToken: &token}
	assert.Equal(t, ReservationStatePending, r.State())
	assert.True(t, r.TokenMatches("abc"))
	assert.False(t, r.TokenMatches("abd"))
	assert.False(t, r.TokenMatches(""))

	at := time.Now()
	r.MarkConfirmed(at)
	assert.Equal(t, ReservationStateConfirmed, r.State())
	assert.Nil(t, r.ConfirmationToken)
	require.NotNil(t, r.ConfirmedAt)
	assert.True(t, r.ConfirmedAt.Equal(at))
	assert.False(t, r.TokenMatches("abc"))
}

func TestParseTicketClass(t *testing.T) {
	c, err := ParseTicketClass("business")
	require.NoError(t, err)
	assert.Equal(t, TicketClassBusiness, c)

	c, err = ParseTicketClass("Economy")
	require.NoError(t, err)
	assert.Equal(t, TicketClassEconomy, c)

	_, err = ParseTicketClass("first")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseRoles(t *testing.T) {
	roles, err := ParseRoles([]string{"Admin", "Employee", "Admin"})
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleAdmin, RoleEmployee}, roles)

	a := Account{Roles: roles}
	assert.True(t, a.HasRole(RoleOwner, RoleAdmin))
	assert.False(t, a.HasRole(RoleOwner))

	_, err = ParseRoles([]string{"Pilot"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5, 6, 7}

	p := Paginate(all, Page{Number: 2, Size: 5})
	assert.Equal(t, []int{6, 7}, p.Items)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 7, p.TotalCount)
	assert.True(t, p.HasPrevious())
	assert.False(t, p.HasNext())

	p = Paginate(all, Page{Number: 0, Size: 3})
	assert.Equal(t, 1, p.PageIndex)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Len(t, p.Items, 7)

	p = Paginate(all, Page{Number: 9, Size: 5})
	assert.Empty(t, p.Items)
}
