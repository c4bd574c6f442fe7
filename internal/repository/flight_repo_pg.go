package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Update(ctx context.Context, flight *domain.Flight) error
	Delete(ctx context.Context, id int64) error
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightCols = `id, from_location, to_location, departure_time, arrival_time,
aircraft_type, aircraft_number, pilot_name, passenger_capacity, business_class_capacity,
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlight(row rowScanner, f *domain.Flight) error {
	return row.Scan(&f.ID, &f.FromLocation, &f.ToLocation, &f.DepartureTime, &f.ArrivalTime,
		&f.AircraftType, &f.AircraftNumber, &f.PilotName, &f.PassengerCapacity, &f.BusinessClassCapacity,
		&f.CreatedAt, &f.UpdatedAt)
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightCols+` FROM flights ORDER BY departure_time, id`)
	if err != nil {
		return nil, mapError(err, "list flights")
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := scanFlight(rows, &f); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightCols+` FROM flights WHERE id=$1`, id)
	var f domain.Flight
	if err := scanFlight(row, &f); err != nil {
		return nil, mapError(err, fmt.Sprintf("flight %d", id))
	}
	return &f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	row := r.db.QueryRow(ctx, `INSERT INTO flights (from_location, to_location, departure_time, arrival_time,
		aircraft_type, aircraft_number, pilot_name, passenger_capacity, business_class_capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		f.FromLocation, f.ToLocation, f.DepartureTime, f.ArrivalTime,
		f.AircraftType, f.AircraftNumber, f.PilotName, f.PassengerCapacity, f.BusinessClassCapacity)
	return mapError(row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt), "create flight")
}

func (r *PGFlightRepository) Update(ctx context.Context, f *domain.Flight) error {
	row := r.db.QueryRow(ctx, `UPDATE flights SET from_location=$2, to_location=$3, departure_time=$4, arrival_time=$5,
		aircraft_type=$6, aircraft_number=$7, pilot_name=$8, passenger_capacity=$9, business_class_capacity=$10,
		updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		f.ID, f.FromLocation, f.ToLocation, f.DepartureTime, f.ArrivalTime,
		f.AircraftType, f.AircraftNumber, f.PilotName, f.PassengerCapacity, f.BusinessClassCapacity)
	return mapError(row.Scan(&f.CreatedAt, &f.UpdatedAt), fmt.Sprintf("update flight %d", f.ID))
}

// Delete fails with domain.ErrConflict while reservations reference the flight (ON DELETE RESTRICT).
func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete flight %d", id))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ FlightRepository = (*PGFlightRepository)(nil)
