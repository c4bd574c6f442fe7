package kafka

import (
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/google/uuid"
)

const (
	EventReservationCreated   = "reservation.created"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationDeleted   = "reservation.deleted"
	EventReservationExpired   = "reservation.expired"
)

type ReservationEvent struct {
	ID            string             `json:"id"`
	Type          string             `json:"type"`
	ReservationID int64              `json:"reservation_id"`
	PassengerID   int64              `json:"passenger_id"`
	FlightID      int64              `json:"flight_id"`
	TicketClass   domain.TicketClass `json:"ticket_class"`
	State         string             `json:"state"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

func NewReservationEvent(eventType string, r domain.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		ReservationID: r.ID,
		PassengerID:   r.PassengerID,
		FlightID:      r.FlightID,
		TicketClass:   r.TicketClass,
		State:         string(r.State()),
		OccurredAt:    at.UTC(),
	}
}

// Key keeps every event of one flight on the same partition.
func (e ReservationEvent) Key() string {
	return flightKey(e.FlightID)
}

// NotificationRequest is an email queued for the worker.
type NotificationRequest struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}
