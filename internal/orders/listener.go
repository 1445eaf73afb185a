package orders

import (
	"context"

	"boxoffice/internal/audit"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
)

// ReservationListener cancels the pending orders of a reservation that gave
// up its seats. It runs inside the releasing transaction.
type ReservationListener struct {
	repo  Repository
	sink  audit.Sink
	clock clock.Clock
}

func NewReservationListener(repo Repository, sink audit.Sink, clk clock.Clock) *ReservationListener {
	return &ReservationListener{repo: repo, sink: sink, clock: clk}
}

func (l *ReservationListener) OnReservationReleased(ctx context.Context, reservation *reservations.SeatReservation, reason reservations.DeactivationReason) error {
	if reason == reservations.ReasonCheckedOut {
		return nil
	}

	pending, err := l.repo.FindPendingByReservation(ctx, reservation.ID)
	if err != nil {
		return apperrors.Storage("find pending orders", err)
	}

	actor := reservation.HolderKey
	if reason == reservations.ReasonExpired {
		actor = audit.ActorSweeper
	}
	for _, order := range pending {
		if err := cancelPending(ctx, l.repo, l.sink, order.ID, "reservation "+string(reason), actor, l.clock.Now()); err != nil {
			return err
		}
	}
	return nil
}
