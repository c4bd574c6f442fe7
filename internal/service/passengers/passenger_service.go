package passengers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/kafka"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/Domenick1991/flightmanager/internal/repository"
)

type PassengerUseCase interface {
	List(ctx context.Context, page domain.Page) (domain.Paginated[domain.Passenger], error)
	Get(ctx context.Context, id int64) (*domain.Passenger, error)
	FindByIdentityNumber(ctx context.Context, identityNumber string) (*domain.Passenger, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*domain.Passenger, error)
	Delete(ctx context.Context, id int64) error
	Claim(ctx context.Context, id, accountID int64) (*domain.Passenger, error)
	Release(ctx context.Context, id int64) error
}

type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, passengerID int64) (bool, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value any) error
}

type UpdateInput struct {
	UserName       string `json:"username"`
	FirstName      string `json:"first_name"`
	MiddleName     string `json:"middle_name"`
	LastName       string `json:"last_name"`
	IdentityNumber string `json:"identity_number"`
	Address        string `json:"address"`
	PhoneNumber    string `json:"phone_number"`
	Email          string `json:"email"`
}

type PassengerService struct {
	passengers   repository.PassengerRepository
	reservations repository.ReservationRepository
	accounts     AccountReader
	reconciler   Reconciler
	producer     Producer
	topic        string
}

type PassengerServiceOption func(*PassengerService)

func WithProducer(p Producer, topic string) PassengerServiceOption {
	return func(s *PassengerService) {
		s.producer = p
		s.topic = topic
	}
}

func NewPassengerService(
	passengers repository.PassengerRepository,
	reservations repository.ReservationRepository,
	accounts AccountReader,
	reconciler Reconciler,
	opts ...PassengerServiceOption,
) *PassengerService {
	s := &PassengerService{
		passengers:   passengers,
		reservations: reservations,
		accounts:     accounts,
		reconciler:   reconciler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PassengerService) List(ctx context.Context, page domain.Page) (domain.Paginated[domain.Passenger], error) {
	all, err := s.passengers.List(ctx)
	if err != nil {
		return domain.Paginated[domain.Passenger]{}, err
	}
	return domain.Paginate(all, page), nil
}

func (s *PassengerService) Get(ctx context.Context, id int64) (*domain.Passenger, error) {
	return s.passengers.GetByID(ctx, id)
}

func (s *PassengerService) FindByIdentityNumber(ctx context.Context, identityNumber string) (*domain.Passenger, error) {
	if err := domain.ValidateIdentityNumber(identityNumber); err != nil {
		return nil, err
	}
	return s.passengers.GetByIdentityNumber(ctx, identityNumber)
}

func (s *PassengerService) Update(ctx context.Context, id int64, input UpdateInput) (*domain.Passenger, error) {
	p, err := s.passengers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.UserName = strings.TrimSpace(input.UserName)
	p.FirstName = strings.TrimSpace(input.FirstName)
	p.MiddleName = strings.TrimSpace(input.MiddleName)
	p.LastName = strings.TrimSpace(input.LastName)
	p.IdentityNumber = strings.TrimSpace(input.IdentityNumber)
	p.Address = strings.TrimSpace(input.Address)
	p.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	p.Email = strings.TrimSpace(input.Email)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.passengers.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a profile with its pending reservations. Confirmed reservations block it.
func (s *PassengerService) Delete(ctx context.Context, id int64) error {
	if _, err := s.passengers.GetByID(ctx, id); err != nil {
		return err
	}
	held, err := s.reservations.List(ctx, repository.ReservationFilter{PassengerID: id})
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(held))
	for _, r := range held {
		if r.IsConfirmed {
			return fmt.Errorf("passenger %d holds confirmed reservation %d: %w", id, r.ID, domain.ErrConflict)
		}
		ids = append(ids, r.ID)
	}

	if len(ids) > 0 {
		deleted, err := s.reservations.DeleteUnconfirmed(ctx, ids)
		if err != nil {
			return err
		}
		if len(deleted) != len(ids) {
			return fmt.Errorf("passenger %d: reservations changed during delete: %w", id, domain.ErrConflict)
		}
		for _, r := range held {
			s.publish(ctx, kafka.EventReservationDeleted, r)
		}
	}

	if err := s.passengers.Delete(ctx, id); err != nil {
		return err
	}
	logger.InfoContext(ctx, "passenger deleted", "passenger_id", id, "reservations_deleted", len(ids))
	return nil
}

// Claim links the profile to an account so it survives without reservations.
func (s *PassengerService) Claim(ctx context.Context, id, accountID int64) (*domain.Passenger, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if err := s.passengers.SetAccount(ctx, id, &accountID); err != nil {
		return nil, err
	}
	return s.passengers.GetByID(ctx, id)
}

// Release unlinks the account; the profile goes away if nothing references it anymore.
func (s *PassengerService) Release(ctx context.Context, id int64) error {
	if err := s.passengers.SetAccount(ctx, id, nil); err != nil {
		return err
	}
	_, err := s.reconciler.Reconcile(ctx, id)
	return err
}

func (s *PassengerService) publish(ctx context.Context, eventType string, r domain.Reservation) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := kafka.NewReservationEvent(eventType, r, time.Now())
	if err := s.producer.Publish(ctx, s.topic, event.Key(), event); err != nil {
		logger.WarnContext(ctx, "failed to publish reservation event", "type", eventType, "reservation_id", r.ID, "error", err)
	}
}

var _ PassengerUseCase = (*PassengerService)(nil)
