package repository

import (
	"errors"
	"fmt"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	reservationPassengerFlightKey = "reservations_passenger_flight_key"
)

// mapError translates driver errors into domain sentinels.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == reservationPassengerFlightKey {
				return fmt.Errorf("%s: %w", what, domain.ErrDuplicateReservation)
			}
			return fmt.Errorf("%s: %w: %s", what, domain.ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: still referenced (%s)", what, domain.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
