package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationFilter narrows List queries. Zero values match everything.
type ReservationFilter struct {
	PassengerID int64
	FlightID    int64
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	// CreateMany inserts all reservations or none.
	CreateMany(ctx context.Context, reservations []*domain.Reservation) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	GetDetails(ctx context.Context, id int64) (*domain.ReservationDetails, error)
	List(ctx context.Context, filter ReservationFilter) ([]domain.Reservation, error)
	ListDetails(ctx context.Context, filter ReservationFilter) ([]domain.ReservationDetails, error)
	// UpdatePending rewrites nationality and class of a reservation that is still pending.
	UpdatePending(ctx context.Context, reservation *domain.Reservation) error
	ExistsForPassengerAndFlight(ctx context.Context, passengerID, flightID int64) (bool, error)
	CountByClass(ctx context.Context, flightID int64) (domain.SeatCounts, error)
	SeatCountsByFlight(ctx context.Context) (map[int64]domain.SeatCounts, error)
	CountByPassenger(ctx context.Context, passengerID int64, excluding ...int64) (int, error)
	// ConfirmMany redeems token for every id atomically: all ids must exist and be pending with that token.
	ConfirmMany(ctx context.Context, ids []int64, token string, at time.Time) ([]domain.Reservation, error)
	DeletePending(ctx context.Context, id int64) (*domain.Reservation, error)
	// DeleteUnconfirmed removes the given reservations that are still pending and returns the ids it removed.
	DeleteUnconfirmed(ctx context.Context, ids []int64) ([]int64, error)
	FindExpiredUnconfirmed(ctx context.Context, createdBefore time.Time) ([]domain.Reservation, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationCols = `id, passenger_id, flight_id, nationality, ticket_class,
is_confirmed, confirmation_token, confirmed_at, created_at`

func scanReservation(row rowScanner, r *domain.Reservation) error {
	return row.Scan(&r.ID, &r.PassengerID, &r.FlightID, &r.Nationality, &r.TicketClass,
		&r.IsConfirmed, &r.ConfirmationToken, &r.ConfirmedAt, &r.CreatedAt)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertReservation(ctx context.Context, q execQuerier, res *domain.Reservation) error {
	row := q.QueryRow(ctx, `INSERT INTO reservations (passenger_id, flight_id, nationality, ticket_class,
		is_confirmed, confirmation_token, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		res.PassengerID, res.FlightID, res.Nationality, res.TicketClass,
		res.IsConfirmed, res.ConfirmationToken, res.ConfirmedAt, res.CreatedAt)
	return row.Scan(&res.ID)
}

func (r *PGReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	return mapError(insertReservation(ctx, r.db, res), "create reservation")
}

func (r *PGReservationRepository) CreateMany(ctx context.Context, reservations []*domain.Reservation) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, res := range reservations {
		if err := insertReservation(ctx, tx, res); err != nil {
			return mapError(err, fmt.Sprintf("create reservation for passenger %d", res.PassengerID))
		}
	}
	return tx.Commit(ctx)
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := scanReservation(r.db.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id), &res); err != nil {
		return nil, mapError(err, fmt.Sprintf("reservation %d", id))
	}
	return &res, nil
}

func (r *PGReservationRepository) List(ctx context.Context, filter ReservationFilter) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationCols+` FROM reservations
		WHERE ($1::bigint = 0 OR passenger_id = $1) AND ($2::bigint = 0 OR flight_id = $2)
		ORDER BY id`, filter.PassengerID, filter.FlightID)
	if err != nil {
		return nil, mapError(err, "list reservations")
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

const detailsQuery = `SELECT
	r.id, r.passenger_id, r.flight_id, r.nationality, r.ticket_class,
	r.is_confirmed, r.confirmation_token, r.confirmed_at, r.created_at,
	p.id, p.user_name, p.first_name, p.middle_name, p.last_name, p.identity_number,
	p.address, p.phone_number, p.email, p.account_id, p.created_at, p.updated_at,
	f.id, f.from_location, f.to_location, f.departure_time, f.arrival_time,
	f.aircraft_type, f.aircraft_number, f.pilot_name, f.passenger_capacity, f.business_class_capacity,
	f.created_at, f.updated_at
FROM reservations r
JOIN passengers p ON p.id = r.passenger_id
JOIN flights f ON f.id = r.flight_id`

func scanDetails(row rowScanner, d *domain.ReservationDetails) error {
	res, p, f := &d.Reservation, &d.Passenger, &d.Flight
	return row.Scan(
		&res.ID, &res.PassengerID, &res.FlightID, &res.Nationality, &res.TicketClass,
		&res.IsConfirmed, &res.ConfirmationToken, &res.ConfirmedAt, &res.CreatedAt,
		&p.ID, &p.UserName, &p.FirstName, &p.MiddleName, &p.LastName, &p.IdentityNumber,
		&p.Address, &p.PhoneNumber, &p.Email, &p.AccountID, &p.CreatedAt, &p.UpdatedAt,
		&f.ID, &f.FromLocation, &f.ToLocation, &f.DepartureTime, &f.ArrivalTime,
		&f.AircraftType, &f.AircraftNumber, &f.PilotName, &f.PassengerCapacity, &f.BusinessClassCapacity,
		&f.CreatedAt, &f.UpdatedAt,
	)
}

func (r *PGReservationRepository) GetDetails(ctx context.Context, id int64) (*domain.ReservationDetails, error) {
	var d domain.ReservationDetails
	if err := scanDetails(r.db.QueryRow(ctx, detailsQuery+` WHERE r.id=$1`, id), &d); err != nil {
		return nil, mapError(err, fmt.Sprintf("reservation %d", id))
	}
	return &d, nil
}

func (r *PGReservationRepository) ListDetails(ctx context.Context, filter ReservationFilter) ([]domain.ReservationDetails, error) {
	rows, err := r.db.Query(ctx, detailsQuery+`
		WHERE ($1::bigint = 0 OR r.passenger_id = $1) AND ($2::bigint = 0 OR r.flight_id = $2)
		ORDER BY r.id`, filter.PassengerID, filter.FlightID)
	if err != nil {
		return nil, mapError(err, "list reservation details")
	}
	defer rows.Close()

	details := make([]domain.ReservationDetails, 0)
	for rows.Next() {
		var d domain.ReservationDetails
		if err := scanDetails(rows, &d); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func (r *PGReservationRepository) UpdatePending(ctx context.Context, res *domain.Reservation) error {
	row := r.db.QueryRow(ctx, `UPDATE reservations SET nationality=$2, ticket_class=$3
		WHERE id=$1 AND NOT is_confirmed
		RETURNING `+reservationCols, res.ID, res.Nationality, res.TicketClass)
	if err := scanReservation(row, res); err != nil {
		return r.classifyMiss(ctx, res.ID, err)
	}
	return nil
}

// classifyMiss explains why a pending-only statement matched no row.
func (r *PGReservationRepository) classifyMiss(ctx context.Context, id int64, err error) error {
	if mapped := mapError(err, fmt.Sprintf("reservation %d", id)); !isNotFound(mapped) {
		return mapped
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("reservation %d is confirmed: %w", id, domain.ErrConflict)
}

func (r *PGReservationRepository) ExistsForPassengerAndFlight(ctx context.Context, passengerID, flightID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE passenger_id=$1 AND flight_id=$2)`,
		passengerID, flightID).Scan(&exists)
	return exists, mapError(err, "reservation exists")
}

func (r *PGReservationRepository) CountByClass(ctx context.Context, flightID int64) (domain.SeatCounts, error) {
	var counts domain.SeatCounts
	err := r.db.QueryRow(ctx, `SELECT
		COUNT(*) FILTER (WHERE ticket_class = $2),
		COUNT(*) FILTER (WHERE ticket_class <> $2)
		FROM reservations WHERE flight_id=$1`, flightID, string(domain.TicketClassBusiness)).
		Scan(&counts.Business, &counts.Standard)
	return counts, mapError(err, fmt.Sprintf("seat counts for flight %d", flightID))
}

func (r *PGReservationRepository) SeatCountsByFlight(ctx context.Context) (map[int64]domain.SeatCounts, error) {
	rows, err := r.db.Query(ctx, `SELECT flight_id,
		COUNT(*) FILTER (WHERE ticket_class = $1),
		COUNT(*) FILTER (WHERE ticket_class <> $1)
		FROM reservations GROUP BY flight_id`, string(domain.TicketClassBusiness))
	if err != nil {
		return nil, mapError(err, "seat counts")
	}
	defer rows.Close()

	counts := make(map[int64]domain.SeatCounts)
	for rows.Next() {
		var flightID int64
		var c domain.SeatCounts
		if err := rows.Scan(&flightID, &c.Business, &c.Standard); err != nil {
			return nil, err
		}
		counts[flightID] = c
	}
	return counts, rows.Err()
}

func (r *PGReservationRepository) CountByPassenger(ctx context.Context, passengerID int64, excluding ...int64) (int, error) {
	if excluding == nil {
		excluding = []int64{}
	}
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reservations WHERE passenger_id=$1 AND NOT (id = ANY($2))`,
		passengerID, excluding).Scan(&n)
	return n, mapError(err, fmt.Sprintf("count reservations of passenger %d", passengerID))
}

func (r *PGReservationRepository) ConfirmMany(ctx context.Context, ids []int64, token string, at time.Time) ([]domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+reservationCols+` FROM reservations
		WHERE id = ANY($1) OR (confirmation_token = $2 AND NOT is_confirmed)
		FOR UPDATE`, ids, token)
	if err != nil {
		return nil, mapError(err, "lock reservations")
	}
	locked := make(map[int64]domain.Reservation, len(ids))
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			rows.Close()
			return nil, err
		}
		locked[res.ID] = res
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := checkRedeemable(ids, locked, token); err != nil {
		return nil, err
	}

	confirmed := make([]domain.Reservation, 0, len(ids))
	urows, err := tx.Query(ctx, `UPDATE reservations SET is_confirmed=true, confirmation_token=NULL, confirmed_at=$2
		WHERE id = ANY($1)
		RETURNING `+reservationCols, ids, at)
	if err != nil {
		return nil, mapError(err, "confirm reservations")
	}
	for urows.Next() {
		var res domain.Reservation
		if err := scanReservation(urows, &res); err != nil {
			urows.Close()
			return nil, err
		}
		confirmed = append(confirmed, res)
	}
	urows.Close()
	if err := urows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return confirmed, nil
}

// checkRedeemable validates a confirmation against the locked rows: the requested ids
// plus every pending reservation holding token. A token is redeemed for its whole group or not at all.
func checkRedeemable(ids []int64, found map[int64]domain.Reservation, token string) error {
	requested := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
		}
		requested[id] = true
	}
	for _, id := range ids {
		if !found[id].TokenMatches(token) {
			return fmt.Errorf("reservation %d: %w", id, domain.ErrInvalidToken)
		}
	}
	for id, res := range found {
		if !requested[id] && res.TokenMatches(token) {
			return fmt.Errorf("token also covers reservation %d: %w", id, domain.ErrInvalidToken)
		}
	}
	return nil
}

func (r *PGReservationRepository) DeletePending(ctx context.Context, id int64) (*domain.Reservation, error) {
	var res domain.Reservation
	row := r.db.QueryRow(ctx, `DELETE FROM reservations WHERE id=$1 AND NOT is_confirmed RETURNING `+reservationCols, id)
	if err := scanReservation(row, &res); err != nil {
		return nil, r.classifyMiss(ctx, id, err)
	}
	return &res, nil
}

func (r *PGReservationRepository) DeleteUnconfirmed(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `DELETE FROM reservations WHERE id = ANY($1) AND NOT is_confirmed RETURNING id`, ids)
	if err != nil {
		return nil, mapError(err, "delete reservations")
	}
	deleted, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, mapError(err, "delete reservations")
	}
	return deleted, nil
}

func (r *PGReservationRepository) FindExpiredUnconfirmed(ctx context.Context, createdBefore time.Time) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationCols+` FROM reservations
		WHERE NOT is_confirmed AND created_at < $1
		ORDER BY id`, createdBefore)
	if err != nil {
		return nil, mapError(err, "find expired reservations")
	}
	defer rows.Close()

	var expired []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, err
		}
		expired = append(expired, res)
	}
	return expired, rows.Err()
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
