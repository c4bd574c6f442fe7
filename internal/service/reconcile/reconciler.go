package reconcile

import (
	"context"
	"errors"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
)

type PassengerStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Passenger, error)
	DeleteUnreferenced(ctx context.Context, ids []int64) (int64, error)
}

type ReservationCounter interface {
	CountByPassenger(ctx context.Context, passengerID int64, excluding ...int64) (int, error)
}

// Reconciler removes passenger profiles that no reservation references and no account has claimed.
type Reconciler struct {
	passengers   PassengerStore
	reservations ReservationCounter
}

func New(passengers PassengerStore, reservations ReservationCounter) *Reconciler {
	return &Reconciler{passengers: passengers, reservations: reservations}
}

// Reconcile deletes the profile if it became an orphan. A missing, claimed or still
// referenced profile is left alone and reported as not deleted.
func (r *Reconciler) Reconcile(ctx context.Context, passengerID int64) (bool, error) {
	eligible, err := r.eligible(ctx, passengerID)
	if err != nil || !eligible {
		return false, err
	}

	n, err := r.passengers.DeleteUnreferenced(ctx, []int64{passengerID})
	if err != nil {
		return false, err
	}
	if n > 0 {
		logger.InfoContext(ctx, "orphaned passenger removed", "passenger_id", passengerID)
	}
	return n > 0, nil
}

// ReconcileAll runs Reconcile for every id and returns how many profiles went.
func (r *Reconciler) ReconcileAll(ctx context.Context, passengerIDs []int64) (int, error) {
	deleted := 0
	for _, id := range unique(passengerIDs) {
		ok, err := r.Reconcile(ctx, id)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// Orphaned lists the passengers that end up unreferenced once every reservation in
// the batch is gone. Reservations inside the batch do not keep each other's owner alive.
func (r *Reconciler) Orphaned(ctx context.Context, batch []domain.Reservation) ([]int64, error) {
	batchIDs := make([]int64, 0, len(batch))
	passengerIDs := make([]int64, 0, len(batch))
	for _, res := range batch {
		batchIDs = append(batchIDs, res.ID)
		passengerIDs = append(passengerIDs, res.PassengerID)
	}

	var orphaned []int64
	for _, pid := range unique(passengerIDs) {
		ok, err := r.eligible(ctx, pid, batchIDs...)
		if err != nil {
			return nil, err
		}
		if ok {
			orphaned = append(orphaned, pid)
		}
	}
	return orphaned, nil
}

func (r *Reconciler) eligible(ctx context.Context, passengerID int64, excluding ...int64) (bool, error) {
	p, err := r.passengers.GetByID(ctx, passengerID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.Claimed() {
		return false, nil
	}

	remaining, err := r.reservations.CountByPassenger(ctx, passengerID, excluding...)
	if err != nil {
		return false, err
	}
	return remaining == 0, nil
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
