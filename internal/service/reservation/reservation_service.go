package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/email"
	"github.com/Domenick1991/flightmanager/internal/kafka"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/repository"
	"github.com/Domenick1991/flightmanager/internal/service/capacity"
)

type ReservationUseCase interface {
	Create(ctx context.Context, input CreateInput) (*Created, error)
	CreateGroup(ctx context.Context, input GroupInput) (*Created, error)
	Confirm(ctx context.Context, id int64, token string) (*domain.Reservation, error)
	ConfirmGroup(ctx context.Context, ids []int64, token string) ([]domain.Reservation, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*domain.Reservation, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.ReservationDetails, error)
	List(ctx context.Context, filter repository.ReservationFilter, page domain.Page) (domain.Paginated[domain.ReservationDetails], error)
	Exists(ctx context.Context, identityNumber string, flightID int64) (bool, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, passengerID int64) (bool, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type PassengerInput struct {
	UserName       string `json:"username"`
	FirstName      string `json:"first_name"`
	MiddleName     string `json:"middle_name"`
	LastName       string `json:"last_name"`
	IdentityNumber string `json:"identity_number"`
	Address        string `json:"address"`
	PhoneNumber    string `json:"phone_number"`
	Email          string `json:"email"`
}

func (in PassengerInput) toDomain() domain.Passenger {
	return domain.Passenger{
		UserName:       strings.TrimSpace(in.UserName),
		FirstName:      strings.TrimSpace(in.FirstName),
		MiddleName:     strings.TrimSpace(in.MiddleName),
		LastName:       strings.TrimSpace(in.LastName),
		IdentityNumber: strings.TrimSpace(in.IdentityNumber),
		Address:        strings.TrimSpace(in.Address),
		PhoneNumber:    strings.TrimSpace(in.PhoneNumber),
		Email:          strings.TrimSpace(in.Email),
	}
}

type CreateInput struct {
	FlightID    int64          `json:"flight_id"`
	Passenger   PassengerInput `json:"passenger"`
	TicketClass string         `json:"ticket_class"`
	Nationality string         `json:"nationality"`
}

type GroupInput struct {
	FlightID     int64            `json:"flight_id"`
	Passengers   []PassengerInput `json:"passengers"`
	TicketClass  string           `json:"ticket_class"`
	Nationality  string           `json:"nationality"`
	ContactEmail string           `json:"contact_email"`
}

type UpdateInput struct {
	Nationality string `json:"nationality"`
	TicketClass string `json:"ticket_class"`
}

// Created is the result of a booking: pending reservations sharing one token.
type Created struct {
	Reservations   []domain.Reservation `json:"reservations"`
	NotificationID string               `json:"notification_id,omitempty"`
	Token          string               `json:"-"`
}

type ReservationService struct {
	flights      repository.FlightRepository
	passengers   repository.PassengerRepository
	reservations repository.ReservationRepository
	capacity     *capacity.Checker
	reconciler   Reconciler
	locker       Locker
	sender       email.Sender
	endpoint     string
	producer     Producer
	topic        string
	now          func() time.Time
}

type ReservationServiceOption func(*ReservationService)

func WithSender(sender email.Sender, confirmationEndpoint string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.sender = sender
		s.endpoint = confirmationEndpoint
	}
}

func WithProducer(p Producer, topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.producer = p
		s.topic = topic
	}
}

// WithLocker closes the check-then-insert window by serializing admissions per flight.
func WithLocker(l Locker) ReservationServiceOption {
	return func(s *ReservationService) {
		s.locker = l
	}
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		s.now = now
	}
}

func NewReservationService(
	flights repository.FlightRepository,
	passengers repository.PassengerRepository,
	reservations repository.ReservationRepository,
	reconciler Reconciler,
	opts ...ReservationServiceOption,
) *ReservationService {
	service := &ReservationService{
		flights:      flights,
		passengers:   passengers,
		reservations: reservations,
		capacity:     capacity.NewChecker(reservations),
		reconciler:   reconciler,
		locker:       noLock{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *ReservationService) Create(ctx context.Context, input CreateInput) (*Created, error) {
	return s.CreateGroup(ctx, GroupInput{
		FlightID:     input.FlightID,
		Passengers:   []PassengerInput{input.Passenger},
		TicketClass:  input.TicketClass,
		Nationality:  input.Nationality,
		ContactEmail: input.Passenger.Email,
	})
}

// CreateGroup books every passenger on the flight or none of them.
func (s *ReservationService) CreateGroup(ctx context.Context, input GroupInput) (*Created, error) {
	class, err := domain.ParseTicketClass(input.TicketClass)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateNationality(input.Nationality); err != nil {
		return nil, err
	}
	profiles, err := validatePassengers(input.Passengers)
	if err != nil {
		return nil, err
	}

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.resolvePassengers(ctx, flight.ID, profiles)
	if err != nil {
		return nil, err
	}

	ok, err := s.capacity.CanAdmitN(ctx, *flight, class, len(profiles))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("flight %d, %s x%d: %w", flight.ID, class, len(profiles), domain.ErrCapacityExceeded)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	var fresh []int64
	passengers := make([]domain.Passenger, len(profiles))
	for i, p := range profiles {
		if found, ok := existing[p.IdentityNumber]; ok {
			passengers[i] = found
			continue
		}
		if err := s.passengers.Create(ctx, &p); err != nil {
			s.reconcileAll(ctx, fresh)
			return nil, err
		}
		fresh = append(fresh, p.ID)
		passengers[i] = p
	}

	now := s.now()
	batch := make([]*domain.Reservation, len(passengers))
	for i, p := range passengers {
		t := token
		batch[i] = &domain.Reservation{
			PassengerID:       p.ID,
			FlightID:          flight.ID,
			Nationality:       strings.TrimSpace(input.Nationality),
			TicketClass:       class,
			ConfirmationToken: &t,
			CreatedAt:         now,
		}
	}
	if err := s.reservations.CreateMany(ctx, batch); err != nil {
		s.reconcileAll(ctx, fresh)
		return nil, err
	}

	created := &Created{Token: token, Reservations: make([]domain.Reservation, len(batch))}
	for i, r := range batch {
		created.Reservations[i] = *r
		s.publish(ctx, kafka.EventReservationCreated, *r)
	}
	logger.InfoContext(ctx, "reservations created", "flight_id", flight.ID, "count", len(batch), "class", class)

	created.NotificationID = s.notify(ctx, input, *flight, class, passengers, created)
	return created, nil
}

func validatePassengers(inputs []PassengerInput) ([]domain.Passenger, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one passenger is required", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(inputs))
	profiles := make([]domain.Passenger, len(inputs))
	for i, in := range inputs {
		p := in.toDomain()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("passenger %d: %w", i+1, err)
		}
		if seen[p.IdentityNumber] {
			return nil, fmt.Errorf("passenger %d: %w", i+1, domain.ErrDuplicateReservation)
		}
		seen[p.IdentityNumber] = true
		profiles[i] = p
	}
	return profiles, nil
}

// resolvePassengers finds the profiles that already exist and rejects any that already fly on flightID.
func (s *ReservationService) resolvePassengers(ctx context.Context, flightID int64, profiles []domain.Passenger) (map[string]domain.Passenger, error) {
	existing := make(map[string]domain.Passenger)
	for _, p := range profiles {
		found, err := s.passengers.GetByIdentityNumber(ctx, p.IdentityNumber)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		dup, err := s.reservations.ExistsForPassengerAndFlight(ctx, found.ID, flightID)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, fmt.Errorf("passenger %s on flight %d: %w", p.IdentityNumber, flightID, domain.ErrDuplicateReservation)
		}
		existing[p.IdentityNumber] = *found
	}
	return existing, nil
}

func (s *ReservationService) Confirm(ctx context.Context, id int64, token string) (*domain.Reservation, error) {
	confirmed, err := s.ConfirmGroup(ctx, []int64{id}, token)
	if err != nil {
		return nil, err
	}
	return &confirmed[0], nil
}

// ConfirmGroup redeems token for all ids at once; any missing id or foreign token fails the whole call.
func (s *ReservationService) ConfirmGroup(ctx context.Context, ids []int64, token string) ([]domain.Reservation, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: reservation id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrInvalidToken
	}

	confirmed, err := s.reservations.ConfirmMany(ctx, ids, token, s.now())
	if err != nil {
		return nil, err
	}
	for _, r := range confirmed {
		s.publish(ctx, kafka.EventReservationConfirmed, r)
	}
	logger.InfoContext(ctx, "reservations confirmed", "ids", ids)
	return confirmed, nil
}

func (s *ReservationService) Update(ctx context.Context, id int64, input UpdateInput) (*domain.Reservation, error) {
	class, err := domain.ParseTicketClass(input.TicketClass)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateNationality(input.Nationality); err != nil {
		return nil, err
	}

	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsConfirmed {
		return nil, fmt.Errorf("reservation %d is confirmed: %w", id, domain.ErrConflict)
	}

	unlock, err := s.locker.Lock(ctx, current.FlightID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// The reservation sits in the other pool, so it never counts against the new one.
	if class != current.TicketClass {
		flight, err := s.flights.GetByID(ctx, current.FlightID)
		if err != nil {
			return nil, err
		}
		ok, err := s.capacity.CanAdmit(ctx, *flight, class)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("flight %d, %s: %w", flight.ID, class, domain.ErrCapacityExceeded)
		}
	}

	current.TicketClass = class
	current.Nationality = strings.TrimSpace(input.Nationality)
	if err := s.reservations.UpdatePending(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Delete removes a pending reservation and drops its passenger if nothing else holds it.
func (s *ReservationService) Delete(ctx context.Context, id int64) error {
	removed, err := s.reservations.DeletePending(ctx, id)
	if err != nil {
		return err
	}
	s.publish(ctx, kafka.EventReservationDeleted, *removed)

	if _, err := s.reconciler.Reconcile(ctx, removed.PassengerID); err != nil {
		return fmt.Errorf("reconcile passenger %d: %w", removed.PassengerID, err)
	}
	return nil
}

func (s *ReservationService) Get(ctx context.Context, id int64) (*domain.ReservationDetails, error) {
	return s.reservations.GetDetails(ctx, id)
}

func (s *ReservationService) List(ctx context.Context, filter repository.ReservationFilter, page domain.Page) (domain.Paginated[domain.ReservationDetails], error) {
	all, err := s.reservations.ListDetails(ctx, filter)
	if err != nil {
		return domain.Paginated[domain.ReservationDetails]{}, err
	}
	return domain.Paginate(all, page), nil
}

// Exists tells whether the person with this identity number already holds a seat on the flight.
func (s *ReservationService) Exists(ctx context.Context, identityNumber string, flightID int64) (bool, error) {
	if err := domain.ValidateIdentityNumber(identityNumber); err != nil {
		return false, err
	}
	p, err := s.passengers.GetByIdentityNumber(ctx, identityNumber)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.reservations.ExistsForPassengerAndFlight(ctx, p.ID, flightID)
}

func (s *ReservationService) reconcileAll(ctx context.Context, passengerIDs []int64) {
	for _, id := range passengerIDs {
		if _, err := s.reconciler.Reconcile(ctx, id); err != nil {
			logger.WarnContext(ctx, "failed to reconcile passenger", "passenger_id", id, "error", err)
		}
	}
}

func (s *ReservationService) publish(ctx context.Context, eventType string, r domain.Reservation) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.NewReservationEvent(eventType, r, s.now())
	if err := s.producer.Publish(ctx, s.topic, event.Key(), event); err != nil {
		logger.WarnContext(ctx, "failed to publish reservation event", "type", eventType, "reservation_id", r.ID, "error", err)
	}
}

// notify sends the confirmation link. A failure is logged, the reservations stay.
func (s *ReservationService) notify(ctx context.Context, input GroupInput, flight domain.Flight, class domain.TicketClass, passengers []domain.Passenger, created *Created) string {
	if s.sender == nil {
		return ""
	}
	to := strings.TrimSpace(input.ContactEmail)
	toName := ""
	for _, p := range passengers {
		if to == "" && p.Email != "" {
			to = p.Email
		}
		if toName == "" && strings.EqualFold(p.Email, to) {
			toName = p.FullName()
		}
	}
	if to == "" {
		logger.WarnContext(ctx, "no recipient for confirmation email", "flight_id", flight.ID)
		return ""
	}

	ids := make([]int64, len(created.Reservations))
	for i, r := range created.Reservations {
		ids[i] = r.ID
	}
	link, err := email.ConfirmationLink(s.endpoint, ids, created.Token)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build confirmation link", "error", err)
		return ""
	}
	msg, err := email.ConfirmationMessage(to, toName, email.ConfirmationData{
		Passengers:  passengers,
		Flight:      flight,
		TicketClass: class,
		Nationality: input.Nationality,
		Link:        link,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to render confirmation email", "error", err)
		return ""
	}

	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to send confirmation email", "to", to, "reservation_ids", ids, "error", err)
		return ""
	}
	return id
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var _ ReservationUseCase = (*ReservationService)(nil)
