package domain

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

type TicketClass string

const (
	TicketClassBusiness TicketClass = "Business"
	TicketClassEconomy  TicketClass = "Economy"
)

func ParseTicketClass(s string) (TicketClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "business":
		return TicketClassBusiness, nil
	case "economy":
		return TicketClassEconomy, nil
	default:
		return "", fmt.Errorf("%w: unknown ticket class %q", ErrValidation, s)
	}
}

type ReservationState string

const (
	ReservationStatePending   ReservationState = "PENDING"
	ReservationStateConfirmed ReservationState = "CONFIRMED"
)

type Reservation struct {
	ID                int64       `json:"id"`
	PassengerID       int64       `json:"passenger_id"`
	FlightID          int64       `json:"flight_id"`
	Nationality       string      `json:"nationality"`
	TicketClass       TicketClass `json:"ticket_class"`
	IsConfirmed       bool        `json:"is_confirmed"`
	ConfirmationToken *string     `json:"-"`
	ConfirmedAt       *time.Time  `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

func (r Reservation) State() ReservationState {
	if r.IsConfirmed {
		return ReservationStateConfirmed
	}
	return ReservationStatePending
}

// TokenMatches is true only for a pending reservation holding exactly this token.
func (r Reservation) TokenMatches(token string) bool {
	if r.IsConfirmed || r.ConfirmationToken == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*r.ConfirmationToken), []byte(token)) == 1
}

// MarkConfirmed redeems the token.
func (r *Reservation) MarkConfirmed(at time.Time) {
	r.IsConfirmed = true
	r.ConfirmationToken = nil
	confirmedAt := at
	r.ConfirmedAt = &confirmedAt
}

func ValidateNationality(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%w: nationality is required", ErrValidation)
	}
	if len(s) > 50 {
		return fmt.Errorf("%w: nationality must be at most 50 characters", ErrValidation)
	}
	return nil
}

// ReservationDetails is a reservation joined with its passenger and flight.
type ReservationDetails struct {
	Reservation Reservation `json:"reservation"`
	Passenger   Passenger   `json:"passenger"`
	Flight      Flight      `json:"flight"`
}
