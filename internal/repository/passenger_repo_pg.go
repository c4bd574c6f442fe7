package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PassengerRepository interface {
	Create(ctx context.Context, passenger *domain.Passenger) error
	GetByID(ctx context.Context, id int64) (*domain.Passenger, error)
	GetByIdentityNumber(ctx context.Context, identityNumber string) (*domain.Passenger, error)
	List(ctx context.Context) ([]domain.Passenger, error)
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Passenger, error)
	Update(ctx context.Context, passenger *domain.Passenger) error
	SetAccount(ctx context.Context, id int64, accountID *int64) error
	Delete(ctx context.Context, id int64) error
	// DeleteUnreferenced removes the given profiles that have no reservations and no linked account.
	DeleteUnreferenced(ctx context.Context, ids []int64) (int64, error)
}

type PGPassengerRepository struct {
	db *pgxpool.Pool
}

func NewPassengerRepository(db *pgxpool.Pool) PassengerRepository {
	return &PGPassengerRepository{db: db}
}

const passengerCols = `id, user_name, first_name, middle_name, last_name, identity_number,
address, phone_number, email, account_id, created_at, updated_at`

func scanPassenger(row rowScanner, p *domain.Passenger) error {
	return row.Scan(&p.ID, &p.UserName, &p.FirstName, &p.MiddleName, &p.LastName, &p.IdentityNumber,
		&p.Address, &p.PhoneNumber, &p.Email, &p.AccountID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PGPassengerRepository) Create(ctx context.Context, p *domain.Passenger) error {
	row := r.db.QueryRow(ctx, `INSERT INTO passengers (user_name, first_name, middle_name, last_name, identity_number,
		address, phone_number, email, account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.UserName, p.FirstName, p.MiddleName, p.LastName, p.IdentityNumber,
		p.Address, p.PhoneNumber, p.Email, p.AccountID)
	return mapError(row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt), "create passenger")
}

func (r *PGPassengerRepository) GetByID(ctx context.Context, id int64) (*domain.Passenger, error) {
	var p domain.Passenger
	if err := scanPassenger(r.db.QueryRow(ctx, `SELECT `+passengerCols+` FROM passengers WHERE id=$1`, id), &p); err != nil {
		return nil, mapError(err, fmt.Sprintf("passenger %d", id))
	}
	return &p, nil
}

func (r *PGPassengerRepository) GetByIdentityNumber(ctx context.Context, identityNumber string) (*domain.Passenger, error) {
	var p domain.Passenger
	if err := scanPassenger(r.db.QueryRow(ctx, `SELECT `+passengerCols+` FROM passengers WHERE identity_number=$1`, identityNumber), &p); err != nil {
		return nil, mapError(err, "passenger by identity number")
	}
	return &p, nil
}

func (r *PGPassengerRepository) List(ctx context.Context) ([]domain.Passenger, error) {
	return r.query(ctx, `SELECT `+passengerCols+` FROM passengers ORDER BY last_name, first_name, id`)
}

func (r *PGPassengerRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Passenger, error) {
	return r.query(ctx, `SELECT `+passengerCols+` FROM passengers WHERE account_id=$1 ORDER BY id`, accountID)
}

func (r *PGPassengerRepository) query(ctx context.Context, q string, args ...any) ([]domain.Passenger, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, mapError(err, "list passengers")
	}
	defer rows.Close()

	passengers := make([]domain.Passenger, 0)
	for rows.Next() {
		var p domain.Passenger
		if err := scanPassenger(rows, &p); err != nil {
			return nil, err
		}
		passengers = append(passengers, p)
	}
	return passengers, rows.Err()
}

func (r *PGPassengerRepository) Update(ctx context.Context, p *domain.Passenger) error {
	row := r.db.QueryRow(ctx, `UPDATE passengers SET user_name=$2, first_name=$3, middle_name=$4, last_name=$5,
		identity_number=$6, address=$7, phone_number=$8, email=$9, updated_at=now()
		WHERE id=$1
		RETURNING account_id, created_at, updated_at`,
		p.ID, p.UserName, p.FirstName, p.MiddleName, p.LastName,
		p.IdentityNumber, p.Address, p.PhoneNumber, p.Email)
	return mapError(row.Scan(&p.AccountID, &p.CreatedAt, &p.UpdatedAt), fmt.Sprintf("update passenger %d", p.ID))
}

func (r *PGPassengerRepository) SetAccount(ctx context.Context, id int64, accountID *int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE passengers SET account_id=$2, updated_at=now() WHERE id=$1`, id, accountID)
	if err != nil {
		return mapError(err, fmt.Sprintf("link passenger %d", id))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("passenger %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PGPassengerRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM passengers WHERE id=$1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete passenger %d", id))
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("passenger %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PGPassengerRepository) DeleteUnreferenced(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM passengers p
		WHERE p.id = ANY($1)
		AND p.account_id IS NULL
		AND NOT EXISTS (SELECT 1 FROM reservations r WHERE r.passenger_id = p.id)`, ids)
	if err != nil {
		return 0, mapError(err, "delete orphaned passengers")
	}
	return cmd.RowsAffected(), nil
}

var _ PassengerRepository = (*PGPassengerRepository)(nil)
