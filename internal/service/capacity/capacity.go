package capacity

import (
	"context"

	"github.com/Domenick1991/flightmanager/internal/domain"
)

// SeatCounter reports how many reservations a flight holds per pool.
type SeatCounter interface {
	CountByClass(ctx context.Context, flightID int64) (domain.SeatCounts, error)
}

// Admits reports whether seats more reservations of class fit next to the reserved counts.
// Anything that is not Business draws from the standard pool.
func Admits(f domain.Flight, reserved domain.SeatCounts, class domain.TicketClass, seats int) bool {
	if seats <= 0 {
		return true
	}
	if class == domain.TicketClassBusiness {
		return reserved.Business+seats <= f.BusinessClassCapacity
	}
	return reserved.Standard+seats <= f.StandardCapacity()
}

func Available(f domain.Flight, reserved domain.SeatCounts) domain.Availability {
	return domain.Availability{
		FlightID:         f.ID,
		BusinessCapacity: f.BusinessClassCapacity,
		StandardCapacity: f.StandardCapacity(),
		BusinessReserved: reserved.Business,
		StandardReserved: reserved.Standard,
		BusinessFree:     max(f.BusinessClassCapacity-reserved.Business, 0),
		StandardFree:     max(f.StandardCapacity()-reserved.Standard, 0),
	}
}

// Checker evaluates admissions against the reservations currently stored.
// It takes no locks: two callers may both pass before either inserts.
type Checker struct {
	counter SeatCounter
}

func NewChecker(counter SeatCounter) *Checker {
	return &Checker{counter: counter}
}

func (c *Checker) CanAdmit(ctx context.Context, f domain.Flight, class domain.TicketClass) (bool, error) {
	return c.CanAdmitN(ctx, f, class, 1)
}

func (c *Checker) CanAdmitN(ctx context.Context, f domain.Flight, class domain.TicketClass, seats int) (bool, error) {
	reserved, err := c.counter.CountByClass(ctx, f.ID)
	if err != nil {
		return false, err
	}
	return Admits(f, reserved, class, seats), nil
}

func (c *Checker) Availability(ctx context.Context, f domain.Flight) (domain.Availability, error) {
	reserved, err := c.counter.CountByClass(ctx, f.ID)
	if err != nil {
		return domain.Availability{}, err
	}
	return Available(f, reserved), nil
}
