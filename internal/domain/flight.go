package domain

import (
	"fmt"
	"strings"
	"time"
)

type Flight struct {
	ID                    int64     `json:"id"`
	FromLocation          string    `json:"from_location"`
	ToLocation            string    `json:"to_location"`
	DepartureTime         time.Time `json:"departure_time"`
	ArrivalTime           time.Time `json:"arrival_time"`
	AircraftType          string    `json:"aircraft_type"`
	AircraftNumber        string    `json:"aircraft_number"`
	PilotName             string    `json:"pilot_name"`
	PassengerCapacity     int       `json:"passenger_capacity"`
	BusinessClassCapacity int       `json:"business_class_capacity"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// StandardCapacity is the economy pool: everything that is not business class.
func (f Flight) StandardCapacity() int {
	return f.PassengerCapacity - f.BusinessClassCapacity
}

func (f Flight) Duration() time.Duration {
	return f.ArrivalTime.Sub(f.DepartureTime)
}

func (f *Flight) Validate() error {
	required := map[string]string{
		"from_location":   f.FromLocation,
		"to_location":     f.ToLocation,
		"aircraft_type":   f.AircraftType,
		"aircraft_number": f.AircraftNumber,
		"pilot_name":      f.PilotName,
	}
	for _, field := range []string{"from_location", "to_location", "aircraft_type", "aircraft_number", "pilot_name"} {
		if strings.TrimSpace(required[field]) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}
	if f.DepartureTime.IsZero() || f.ArrivalTime.IsZero() {
		return fmt.Errorf("%w: departure and arrival times are required", ErrValidation)
	}
	if !f.ArrivalTime.After(f.DepartureTime) {
		return fmt.Errorf("%w: arrival time must be after departure time", ErrValidation)
	}
	if f.PassengerCapacity < 1 {
		return fmt.Errorf("%w: passenger capacity must be at least 1", ErrValidation)
	}
	if f.BusinessClassCapacity < 0 {
		return fmt.Errorf("%w: business class capacity must not be negative", ErrValidation)
	}
	if f.BusinessClassCapacity > f.PassengerCapacity {
		return fmt.Errorf("%w: business class capacity cannot exceed total passenger capacity", ErrValidation)
	}
	return nil
}

// SeatCounts is the number of reservations currently held in each pool of a flight.
type SeatCounts struct {
	Business int `json:"business"`
	Standard int `json:"standard"`
}

func (s SeatCounts) Total() int {
	return s.Business + s.Standard
}

type Availability struct {
	FlightID         int64 `json:"flight_id"`
	BusinessCapacity int   `json:"business_capacity"`
	StandardCapacity int   `json:"standard_capacity"`
	BusinessReserved int   `json:"business_reserved"`
	StandardReserved int   `json:"standard_reserved"`
	BusinessFree     int   `json:"business_free"`
	StandardFree     int   `json:"standard_free"`
}

func (a Availability) HasFreeSeats() bool {
	return a.BusinessFree > 0 || a.StandardFree > 0
}

type FlightAvailability struct {
	Flight       Flight       `json:"flight"`
	Availability Availability `json:"availability"`
}
