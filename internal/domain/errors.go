package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateReservation = errors.New("passenger already has a reservation for this flight")
	ErrCapacityExceeded     = errors.New("no available seats in the requested class")
	ErrInvalidToken         = errors.New("invalid or already used confirmation token")
	ErrConflict             = errors.New("conflict")
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
)
