package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
)

// MemoryStore keeps all tables in process memory behind one mutex. It mirrors the
// constraints of the SQL schema: unique (passenger, flight), unique identity number,
// RESTRICT on flight and passenger deletion, SET NULL on account deletion.
type MemoryStore struct {
	mu sync.Mutex

	nextID       int64
	flights      map[int64]domain.Flight
	passengers   map[int64]domain.Passenger
	reservations map[int64]domain.Reservation
	accounts     map[int64]domain.Account

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flights:      make(map[int64]domain.Flight),
		passengers:   make(map[int64]domain.Passenger),
		reservations: make(map[int64]domain.Reservation),
		accounts:     make(map[int64]domain.Account),
		now:          time.Now,
	}
}

func (s *MemoryStore) Flights() FlightRepository           { return memFlights{s} }
func (s *MemoryStore) Passengers() PassengerRepository     { return memPassengers{s} }
func (s *MemoryStore) Reservations() ReservationRepository { return memReservations{s} }
func (s *MemoryStore) Accounts() AccountRepository         { return memAccounts{s} }

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func cloneReservation(r domain.Reservation) domain.Reservation {
	if r.ConfirmationToken != nil {
		t := *r.ConfirmationToken
		r.ConfirmationToken = &t
	}
	if r.ConfirmedAt != nil {
		at := *r.ConfirmedAt
		r.ConfirmedAt = &at
	}
	return r
}

func clonePassenger(p domain.Passenger) domain.Passenger {
	if p.AccountID != nil {
		id := *p.AccountID
		p.AccountID = &id
	}
	return p
}

// --- flights

type memFlights struct{ s *MemoryStore }

func (m memFlights) List(ctx context.Context) ([]domain.Flight, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	flights := make([]domain.Flight, 0, len(m.s.flights))
	for _, id := range sortedKeys(m.s.flights) {
		flights = append(flights, m.s.flights[id])
	}
	sort.SliceStable(flights, func(i, j int) bool { return flights[i].DepartureTime.Before(flights[j].DepartureTime) })
	return flights, nil
}

func (m memFlights) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	f, ok := m.s.flights[id]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

func (m memFlights) Create(ctx context.Context, f *domain.Flight) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	f.ID = m.s.id()
	f.CreatedAt = m.s.now()
	f.UpdatedAt = f.CreatedAt
	m.s.flights[f.ID] = *f
	return nil
}

func (m memFlights) Update(ctx context.Context, f *domain.Flight) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.flights[f.ID]
	if !ok {
		return fmt.Errorf("update flight %d: %w", f.ID, domain.ErrNotFound)
	}
	f.CreatedAt = current.CreatedAt
	f.UpdatedAt = m.s.now()
	m.s.flights[f.ID] = *f
	return nil
}

func (m memFlights) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.flights[id]; !ok {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	for _, r := range m.s.reservations {
		if r.FlightID == id {
			return fmt.Errorf("delete flight %d: %w: still referenced by reservations", id, domain.ErrConflict)
		}
	}
	delete(m.s.flights, id)
	return nil
}

// --- passengers

type memPassengers struct{ s *MemoryStore }

func (m memPassengers) Create(ctx context.Context, p *domain.Passenger) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if m.s.identityTaken(p.IdentityNumber, 0) {
		return fmt.Errorf("create passenger: %w: identity number already registered", domain.ErrConflict)
	}
	p.ID = m.s.id()
	p.CreatedAt = m.s.now()
	p.UpdatedAt = p.CreatedAt
	m.s.passengers[p.ID] = clonePassenger(*p)
	return nil
}

func (s *MemoryStore) identityTaken(identityNumber string, except int64) bool {
	for id, p := range s.passengers {
		if id != except && p.IdentityNumber == identityNumber {
			return true
		}
	}
	return false
}

func (m memPassengers) GetByID(ctx context.Context, id int64) (*domain.Passenger, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.passengers[id]
	if !ok {
		return nil, fmt.Errorf("passenger %d: %w", id, domain.ErrNotFound)
	}
	p = clonePassenger(p)
	return &p, nil
}

func (m memPassengers) GetByIdentityNumber(ctx context.Context, identityNumber string) (*domain.Passenger, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, p := range m.s.passengers {
		if p.IdentityNumber == identityNumber {
			p = clonePassenger(p)
			return &p, nil
		}
	}
	return nil, fmt.Errorf("passenger by identity number: %w", domain.ErrNotFound)
}

func (m memPassengers) List(ctx context.Context) ([]domain.Passenger, error) {
	return m.filter(func(domain.Passenger) bool { return true }), nil
}

func (m memPassengers) ListByAccount(ctx context.Context, accountID int64) ([]domain.Passenger, error) {
	return m.filter(func(p domain.Passenger) bool { return p.AccountID != nil && *p.AccountID == accountID }), nil
}

func (m memPassengers) filter(keep func(domain.Passenger) bool) []domain.Passenger {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	passengers := make([]domain.Passenger, 0)
	for _, id := range sortedKeys(m.s.passengers) {
		if p := m.s.passengers[id]; keep(p) {
			passengers = append(passengers, clonePassenger(p))
		}
	}
	sort.SliceStable(passengers, func(i, j int) bool {
		a, b := passengers[i], passengers[j]
		if a.LastName != b.LastName {
			return strings.Compare(a.LastName, b.LastName) < 0
		}
		return strings.Compare(a.FirstName, b.FirstName) < 0
	})
	return passengers
}

func (m memPassengers) Update(ctx context.Context, p *domain.Passenger) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.passengers[p.ID]
	if !ok {
		return fmt.Errorf("update passenger %d: %w", p.ID, domain.ErrNotFound)
	}
	if m.s.identityTaken(p.IdentityNumber, p.ID) {
		return fmt.Errorf("update passenger %d: %w: identity number already registered", p.ID, domain.ErrConflict)
	}
	p.AccountID = current.AccountID
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = m.s.now()
	m.s.passengers[p.ID] = clonePassenger(*p)
	return nil
}

func (m memPassengers) SetAccount(ctx context.Context, id int64, accountID *int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.passengers[id]
	if !ok {
		return fmt.Errorf("passenger %d: %w", id, domain.ErrNotFound)
	}
	if accountID != nil {
		if _, ok := m.s.accounts[*accountID]; !ok {
			return fmt.Errorf("link passenger %d: %w: account %d does not exist", id, domain.ErrConflict, *accountID)
		}
	}
	p.AccountID = accountID
	p.UpdatedAt = m.s.now()
	m.s.passengers[id] = clonePassenger(p)
	return nil
}

func (m memPassengers) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.passengers[id]; !ok {
		return fmt.Errorf("passenger %d: %w", id, domain.ErrNotFound)
	}
	if m.s.reservationCount(id, nil) > 0 {
		return fmt.Errorf("delete passenger %d: %w: still referenced by reservations", id, domain.ErrConflict)
	}
	delete(m.s.passengers, id)
	return nil
}

func (m memPassengers) DeleteUnreferenced(ctx context.Context, ids []int64) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		p, ok := m.s.passengers[id]
		if !ok || p.Claimed() || m.s.reservationCount(id, nil) > 0 {
			continue
		}
		delete(m.s.passengers, id)
		deleted++
	}
	return deleted, nil
}

// --- reservations

type memReservations struct{ s *MemoryStore }

func (s *MemoryStore) reservationCount(passengerID int64, excluded map[int64]bool) int {
	n := 0
	for id, r := range s.reservations {
		if r.PassengerID == passengerID && !excluded[id] {
			n++
		}
	}
	return n
}

func (s *MemoryStore) checkInsert(r *domain.Reservation, pending map[[2]int64]bool) error {
	if _, ok := s.flights[r.FlightID]; !ok {
		return fmt.Errorf("create reservation: %w: flight %d", domain.ErrNotFound, r.FlightID)
	}
	if _, ok := s.passengers[r.PassengerID]; !ok {
		return fmt.Errorf("create reservation: %w: passenger %d", domain.ErrNotFound, r.PassengerID)
	}
	key := [2]int64{r.PassengerID, r.FlightID}
	if pending[key] {
		return fmt.Errorf("create reservation: %w", domain.ErrDuplicateReservation)
	}
	for _, existing := range s.reservations {
		if existing.PassengerID == r.PassengerID && existing.FlightID == r.FlightID {
			return fmt.Errorf("create reservation: %w", domain.ErrDuplicateReservation)
		}
	}
	pending[key] = true
	return nil
}

func (m memReservations) Create(ctx context.Context, r *domain.Reservation) error {
	return m.CreateMany(ctx, []*domain.Reservation{r})
}

func (m memReservations) CreateMany(ctx context.Context, reservations []*domain.Reservation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	seen := make(map[[2]int64]bool, len(reservations))
	for _, r := range reservations {
		if err := m.s.checkInsert(r, seen); err != nil {
			return err
		}
	}
	for _, r := range reservations {
		r.ID = m.s.id()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = m.s.now()
		}
		m.s.reservations[r.ID] = cloneReservation(*r)
	}
	return nil
}

func (m memReservations) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	r, ok := m.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	r = cloneReservation(r)
	return &r, nil
}

func (m memReservations) GetDetails(ctx context.Context, id int64) (*domain.ReservationDetails, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	r, ok := m.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	d := m.s.details(r)
	return &d, nil
}

func (s *MemoryStore) details(r domain.Reservation) domain.ReservationDetails {
	return domain.ReservationDetails{
		Reservation: cloneReservation(r),
		Passenger:   clonePassenger(s.passengers[r.PassengerID]),
		Flight:      s.flights[r.FlightID],
	}
}

func matches(r domain.Reservation, f ReservationFilter) bool {
	return (f.PassengerID == 0 || r.PassengerID == f.PassengerID) && (f.FlightID == 0 || r.FlightID == f.FlightID)
}

func (m memReservations) List(ctx context.Context, filter ReservationFilter) ([]domain.Reservation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	reservations := make([]domain.Reservation, 0)
	for _, id := range sortedKeys(m.s.reservations) {
		if r := m.s.reservations[id]; matches(r, filter) {
			reservations = append(reservations, cloneReservation(r))
		}
	}
	return reservations, nil
}

func (m memReservations) ListDetails(ctx context.Context, filter ReservationFilter) ([]domain.ReservationDetails, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	details := make([]domain.ReservationDetails, 0)
	for _, id := range sortedKeys(m.s.reservations) {
		if r := m.s.reservations[id]; matches(r, filter) {
			details = append(details, m.s.details(r))
		}
	}
	return details, nil
}

func (m memReservations) UpdatePending(ctx context.Context, r *domain.Reservation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.reservations[r.ID]
	if !ok {
		return fmt.Errorf("reservation %d: %w", r.ID, domain.ErrNotFound)
	}
	if current.IsConfirmed {
		return fmt.Errorf("reservation %d is confirmed: %w", r.ID, domain.ErrConflict)
	}
	current.Nationality = r.Nationality
	current.TicketClass = r.TicketClass
	m.s.reservations[r.ID] = current
	*r = cloneReservation(current)
	return nil
}

func (m memReservations) ExistsForPassengerAndFlight(ctx context.Context, passengerID, flightID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, r := range m.s.reservations {
		if r.PassengerID == passengerID && r.FlightID == flightID {
			return true, nil
		}
	}
	return false, nil
}

func countInto(c *domain.SeatCounts, class domain.TicketClass) {
	if class == domain.TicketClassBusiness {
		c.Business++
	} else {
		c.Standard++
	}
}

func (m memReservations) CountByClass(ctx context.Context, flightID int64) (domain.SeatCounts, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var counts domain.SeatCounts
	for _, r := range m.s.reservations {
		if r.FlightID == flightID {
			countInto(&counts, r.TicketClass)
		}
	}
	return counts, nil
}

func (m memReservations) SeatCountsByFlight(ctx context.Context) (map[int64]domain.SeatCounts, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	counts := make(map[int64]domain.SeatCounts)
	for _, r := range m.s.reservations {
		c := counts[r.FlightID]
		countInto(&c, r.TicketClass)
		counts[r.FlightID] = c
	}
	return counts, nil
}

func (m memReservations) CountByPassenger(ctx context.Context, passengerID int64, excluding ...int64) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	excluded := make(map[int64]bool, len(excluding))
	for _, id := range excluding {
		excluded[id] = true
	}
	return m.s.reservationCount(passengerID, excluded), nil
}

func (m memReservations) ConfirmMany(ctx context.Context, ids []int64, token string, at time.Time) ([]domain.Reservation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	found := make(map[int64]domain.Reservation, len(ids))
	for _, id := range ids {
		if r, ok := m.s.reservations[id]; ok {
			found[id] = r
		}
	}
	for id, r := range m.s.reservations {
		if r.TokenMatches(token) {
			found[id] = r
		}
	}
	if err := checkRedeemable(ids, found, token); err != nil {
		return nil, err
	}

	confirmed := make([]domain.Reservation, 0, len(ids))
	for _, id := range ids {
		r := found[id]
		r.MarkConfirmed(at)
		m.s.reservations[id] = r
		confirmed = append(confirmed, cloneReservation(r))
	}
	return confirmed, nil
}

func (m memReservations) DeletePending(ctx context.Context, id int64) (*domain.Reservation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	r, ok := m.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	if r.IsConfirmed {
		return nil, fmt.Errorf("reservation %d is confirmed: %w", id, domain.ErrConflict)
	}
	delete(m.s.reservations, id)
	return &r, nil
}

func (m memReservations) DeleteUnconfirmed(ctx context.Context, ids []int64) ([]int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var deleted []int64
	for _, id := range ids {
		if r, ok := m.s.reservations[id]; ok && !r.IsConfirmed {
			delete(m.s.reservations, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (m memReservations) FindExpiredUnconfirmed(ctx context.Context, createdBefore time.Time) ([]domain.Reservation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var expired []domain.Reservation
	for _, id := range sortedKeys(m.s.reservations) {
		r := m.s.reservations[id]
		if !r.IsConfirmed && r.CreatedAt.Before(createdBefore) {
			expired = append(expired, cloneReservation(r))
		}
	}
	return expired, nil
}

// --- accounts

type memAccounts struct{ s *MemoryStore }

func cloneAccount(a domain.Account) domain.Account {
	a.Roles = append([]domain.Role(nil), a.Roles...)
	return a
}

func (m memAccounts) Create(ctx context.Context, a *domain.Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, existing := range m.s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return fmt.Errorf("create account: %w: email already registered", domain.ErrConflict)
		}
	}
	a.ID = m.s.id()
	a.CreatedAt = m.s.now()
	m.s.accounts[a.ID] = cloneAccount(*a)
	return nil
}

func (m memAccounts) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	a, ok := m.s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	a = cloneAccount(a)
	return &a, nil
}

func (m memAccounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, a := range m.s.accounts {
		if strings.EqualFold(a.Email, email) {
			a = cloneAccount(a)
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account by email: %w", domain.ErrNotFound)
}

func (m memAccounts) List(ctx context.Context) ([]domain.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	accounts := make([]domain.Account, 0, len(m.s.accounts))
	for _, id := range sortedKeys(m.s.accounts) {
		accounts = append(accounts, cloneAccount(m.s.accounts[id]))
	}
	return accounts, nil
}

func (m memAccounts) SetRoles(ctx context.Context, id int64, roles []domain.Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	a, ok := m.s.accounts[id]
	if !ok {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	a.Roles = append([]domain.Role(nil), roles...)
	m.s.accounts[id] = a
	return nil
}

func (m memAccounts) Delete(ctx context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.accounts[id]; !ok {
		return fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	delete(m.s.accounts, id)
	for pid, p := range m.s.passengers {
		if p.AccountID != nil && *p.AccountID == id {
			p.AccountID = nil
			m.s.passengers[pid] = p
		}
	}
	return nil
}
