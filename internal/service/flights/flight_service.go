package flights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/Domenick1991/flightmanager/internal/service/capacity"
)

type FlightUseCase interface {
	List(ctx context.Context, page domain.Page) (domain.Paginated[domain.Flight], error)
	ListAvailable(ctx context.Context, page domain.Page) (domain.Paginated[domain.FlightAvailability], error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Availability(ctx context.Context, id int64) (domain.Availability, error)
	Passengers(ctx context.Context, id int64) ([]domain.ReservationDetails, error)
	Create(ctx context.Context, input FlightInput) (*domain.Flight, error)
	Update(ctx context.Context, id int64, input FlightInput) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

// ReservationReader is the part of the reservation store flights need.
type ReservationReader interface {
	CountByClass(ctx context.Context, flightID int64) (domain.SeatCounts, error)
	SeatCountsByFlight(ctx context.Context) (map[int64]domain.SeatCounts, error)
	ListDetails(ctx context.Context, filter repository.ReservationFilter) ([]domain.ReservationDetails, error)
}

type FlightInput struct {
	FromLocation          string    `json:"from_location"`
	ToLocation            string    `json:"to_location"`
	DepartureTime         time.Time `json:"departure_time"`
	ArrivalTime           time.Time `json:"arrival_time"`
	AircraftType          string    `json:"aircraft_type"`
	AircraftNumber        string    `json:"aircraft_number"`
	PilotName             string    `json:"pilot_name"`
	PassengerCapacity     int       `json:"passenger_capacity"`
	BusinessClassCapacity int       `json:"business_class_capacity"`
}

func (in FlightInput) apply(f *domain.Flight) {
	f.FromLocation = strings.TrimSpace(in.FromLocation)
	f.ToLocation = strings.TrimSpace(in.ToLocation)
	f.DepartureTime = in.DepartureTime
	f.ArrivalTime = in.ArrivalTime
	f.AircraftType = strings.TrimSpace(in.AircraftType)
	f.AircraftNumber = strings.TrimSpace(in.AircraftNumber)
	f.PilotName = strings.TrimSpace(in.PilotName)
	f.PassengerCapacity = in.PassengerCapacity
	f.BusinessClassCapacity = in.BusinessClassCapacity
}

type FlightService struct {
	repo         repository.FlightRepository
	reservations ReservationReader
	cache        FlightCache
}

func NewFlightService(repo repository.FlightRepository, reservations ReservationReader, cache FlightCache) *FlightService {
	return &FlightService{repo: repo, reservations: reservations, cache: cache}
}

func (s *FlightService) all(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		logger.WarnContext(ctx, "failed to invalidate flights cache", "error", err)
	}
}

func (s *FlightService) List(ctx context.Context, page domain.Page) (domain.Paginated[domain.Flight], error) {
	flights, err := s.all(ctx)
	if err != nil {
		return domain.Paginated[domain.Flight]{}, err
	}
	return domain.Paginate(flights, page), nil
}

// ListAvailable returns the flights with at least one free seat in either class.
func (s *FlightService) ListAvailable(ctx context.Context, page domain.Page) (domain.Paginated[domain.FlightAvailability], error) {
	flights, err := s.all(ctx)
	if err != nil {
		return domain.Paginated[domain.FlightAvailability]{}, err
	}
	counts, err := s.reservations.SeatCountsByFlight(ctx)
	if err != nil {
		return domain.Paginated[domain.FlightAvailability]{}, err
	}

	available := make([]domain.FlightAvailability, 0, len(flights))
	for _, f := range flights {
		a := capacity.Available(f, counts[f.ID])
		if a.HasFreeSeats() {
			available = append(available, domain.FlightAvailability{Flight: f, Availability: a})
		}
	}
	return domain.Paginate(available, page), nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) Availability(ctx context.Context, id int64) (domain.Availability, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Availability{}, err
	}
	return capacity.NewChecker(s.reservations).Availability(ctx, *f)
}

func (s *FlightService) Passengers(ctx context.Context, id int64) ([]domain.ReservationDetails, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.reservations.ListDetails(ctx, repository.ReservationFilter{FlightID: id})
}

func (s *FlightService) Create(ctx context.Context, input FlightInput) (*domain.Flight, error) {
	var f domain.Flight
	input.apply(&f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &f); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	logger.InfoContext(ctx, "flight created", "flight_id", f.ID)
	return &f, nil
}

// Update rejects capacities below what is already reserved.
func (s *FlightService) Update(ctx context.Context, id int64, input FlightInput) (*domain.Flight, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	input.apply(f)
	if err := f.Validate(); err != nil {
		return nil, err
	}

	reserved, err := s.reservations.CountByClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if reserved.Business > f.BusinessClassCapacity || reserved.Standard > f.StandardCapacity() {
		return nil, fmt.Errorf("flight %d already holds %d business and %d standard reservations: %w",
			id, reserved.Business, reserved.Standard, domain.ErrConflict)
	}

	if err := s.repo.Update(ctx, f); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return f, nil
}

// Delete is refused while any reservation references the flight.
func (s *FlightService) Delete(ctx context.Context, id int64) error {
	reserved, err := s.reservations.CountByClass(ctx, id)
	if err != nil {
		return err
	}
	if reserved.Total() > 0 {
		return fmt.Errorf("flight %d has %d reservations: %w", id, reserved.Total(), domain.ErrConflict)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	logger.InfoContext(ctx, "flight deleted", "flight_id", id)
	return nil
}

var _ FlightUseCase = (*FlightService)(nil)
