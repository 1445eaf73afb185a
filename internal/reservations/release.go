package reservations

import (
	"context"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/shared/transaction"
	"boxoffice/pkg/logger"
)

var releaseActions = map[DeactivationReason]string{
	ReasonReleased:    audit.ActionReservationReleased,
	ReasonExpired:     audit.ActionReservationExpired,
	ReasonCompensated: audit.ActionReservationCompensated,
}

// freeSeats runs after a reservation row was deactivated in the transaction in
// ctx: it frees the seats still reserved by it, notifies listeners and records
// the transition. Seats already sold are left alone.
func freeSeats(
	ctx context.Context,
	guard *inventory.Guard,
	listeners *Listeners,
	sink audit.Sink,
	reservation *SeatReservation,
	reason DeactivationReason,
	actor string,
) (int64, error) {
	released, err := guard.Release(ctx, reservation.ShowID, reservation.ID, nil)
	if err != nil {
		return 0, err
	}

	if err := listeners.Notify(ctx, reservation, reason); err != nil {
		return 0, err
	}

	audit.Emit(ctx, sink, audit.NewEntry(audit.EntityReservation, reservation.ID, releaseActions[reason], actor,
		map[string]interface{}{
			"show_id":        reservation.ShowID.String(),
			"reason":         string(reason),
			"seats_released": released,
		}))

	id := reservation.ID.String()
	transaction.AfterCommit(ctx, func(ctx context.Context) {
		logger.GetDefault().LogReservationReleased(ctx, id, string(reason), released)
	})
	return released, nil
}
