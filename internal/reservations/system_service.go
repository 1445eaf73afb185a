package reservations

import (
	"context"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExpireResult reports what one expiration attempt changed
type ExpireResult struct {
	Expired       bool
	SeatsReleased int64
}

// SystemService is used by the expiration sweeper and the payment finalizer.
// It acts without a holder.
type SystemService interface {
	FindExpired(ctx context.Context, limit int) ([]SeatReservation, error)
	Expire(ctx context.Context, reservation *SeatReservation) (ExpireResult, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*SeatReservation, error)

	// CompleteCheckout deactivates the reservation as checked out. It joins the
	// caller's transaction; false means the reservation was no longer active.
	CompleteCheckout(ctx context.Context, id uuid.UUID, actor string) (bool, error)
}

type systemService struct {
	db        *gorm.DB
	repo      SystemRepository
	guard     *inventory.Guard
	listeners *Listeners
	clock     clock.Clock
	sink      audit.Sink
}

func NewSystemService(
	db *gorm.DB,
	repo SystemRepository,
	guard *inventory.Guard,
	listeners *Listeners,
	clk clock.Clock,
	sink audit.Sink,
) SystemService {
	return &systemService{
		db:        db,
		repo:      repo,
		guard:     guard,
		listeners: listeners,
		clock:     clk,
		sink:      sink,
	}
}

func (s *systemService) FindExpired(ctx context.Context, limit int) ([]SeatReservation, error) {
	return s.repo.FindExpired(ctx, s.clock.Now(), limit)
}

func (s *systemService) GetReservation(ctx context.Context, id uuid.UUID) (*SeatReservation, error) {
	return s.repo.GetByID(ctx, id)
}

// Expire deactivates the reservation if it is still active and past its
// deadline, then frees its seats. Safe to call repeatedly and concurrently:
// only the caller whose conditional update changes the row does any work.
func (s *systemService) Expire(ctx context.Context, reservation *SeatReservation) (ExpireResult, error) {
	var result ExpireResult
	err := transaction.Run(ctx, s.db, func(ctx context.Context) error {
		expired, err := s.repo.ExpireIfDue(ctx, reservation.ID, s.clock.Now())
		if err != nil || !expired {
			return err
		}

		released, err := freeSeats(ctx, s.guard, s.listeners, s.sink, reservation, ReasonExpired, audit.ActorSweeper)
		if err != nil {
			return err
		}
		result = ExpireResult{Expired: true, SeatsReleased: released}
		return nil
	})
	if err != nil {
		return ExpireResult{}, err
	}
	return result, nil
}

func (s *systemService) CompleteCheckout(ctx context.Context, id uuid.UUID, actor string) (bool, error) {
	completed, err := s.repo.CompleteCheckout(ctx, id, s.clock.Now())
	if err != nil || !completed {
		return completed, err
	}

	audit.Emit(ctx, s.sink, audit.NewEntry(audit.EntityReservation, id, audit.ActionReservationCheckedOut, actor, nil))
	return true, nil
}
