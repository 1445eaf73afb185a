package inventory

import (
	"context"
	"fmt"
	"time"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/constants"
	"boxoffice/internal/shared/transaction"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guard owns every write to show_seats.status. Each transition is one
// conditional UPDATE whose affected-row count is checked; the caller's
// transaction (carried in ctx) is joined when present.
type Guard struct {
	db           *gorm.DB
	clock        clock.Clock
	cacheService cache.Service
}

func NewGuard(db *gorm.DB, clk clock.Clock) *Guard {
	return &Guard{db: db, clock: clk}
}

// SetCacheService enables seat map invalidation after each committed transition
func (g *Guard) SetCacheService(cacheService cache.Service) {
	g.cacheService = cacheService
}

// transition is one guarded status change
type transition struct {
	showID  uuid.UUID
	seatIDs []uuid.UUID
	from    SeatStatus
	to      SeatStatus
	// owner narrows the rows to those held by a reservation
	owner *uuid.UUID
	set   map[string]interface{}
	// landed matches rows that ended in the target state for this caller
	landed func(*gorm.DB) *gorm.DB
}

// TryReserve flips available → reserved for every seat or none of them.
func (g *Guard) TryReserve(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID, reservationID uuid.UUID, until time.Time) error {
	return g.applyAll(ctx, transition{
		showID:  showID,
		seatIDs: seatIDs,
		from:    SeatStatusAvailable,
		to:      SeatStatusReserved,
		set: map[string]interface{}{
			"reserved_by":    reservationID,
			"reserved_until": until,
		},
		landed: func(q *gorm.DB) *gorm.DB { return q.Where("reserved_by = ?", reservationID) },
	})
}

// Release flips reserved → available for seats still reserved by the reservation.
// With no seat ids every seat of the reservation is released. Seats that already
// moved on (sold) are left alone, so partial counts are normal.
func (g *Guard) Release(ctx context.Context, showID, reservationID uuid.UUID, seatIDs []uuid.UUID) (int64, error) {
	return g.apply(ctx, transition{
		showID:  showID,
		seatIDs: seatIDs,
		from:    SeatStatusReserved,
		to:      SeatStatusAvailable,
		owner:   &reservationID,
		set: map[string]interface{}{
			"reserved_by":    nil,
			"reserved_until": nil,
		},
	})
}

// MarkSold flips reserved → sold for every seat of the reservation or none of them.
func (g *Guard) MarkSold(ctx context.Context, showID, reservationID uuid.UUID, seatIDs []uuid.UUID, orderID uuid.UUID) error {
	return g.applyAll(ctx, transition{
		showID:  showID,
		seatIDs: seatIDs,
		from:    SeatStatusReserved,
		to:      SeatStatusSold,
		owner:   &reservationID,
		set: map[string]interface{}{
			"order_id":       orderID,
			"reserved_by":    nil,
			"reserved_until": nil,
		},
		landed: func(q *gorm.DB) *gorm.DB { return q.Where("order_id = ?", orderID) },
	})
}

// ExtendHold moves reserved_until of the reservation's seats.
func (g *Guard) ExtendHold(ctx context.Context, showID, reservationID uuid.UUID, until time.Time) (int64, error) {
	result := transaction.DB(ctx, g.db).
		Model(&ShowSeat{}).
		Where("show_id = ? AND reserved_by = ? AND status = ?", showID, reservationID, SeatStatusReserved).
		Updates(map[string]interface{}{
			"reserved_until": until,
			"updated_at":     g.clock.Now(),
		})
	if result.Error != nil {
		return 0, apperrors.Storage("extend seat hold", result.Error)
	}
	return result.RowsAffected, nil
}

// Hold takes available seats out of sale (house seats).
func (g *Guard) Hold(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID) error {
	return g.applyAll(ctx, transition{
		showID:  showID,
		seatIDs: seatIDs,
		from:    SeatStatusAvailable,
		to:      SeatStatusHeld,
	})
}

// Unhold puts held seats back on sale.
func (g *Guard) Unhold(ctx context.Context, showID uuid.UUID, seatIDs []uuid.UUID) error {
	return g.applyAll(ctx, transition{
		showID:  showID,
		seatIDs: seatIDs,
		from:    SeatStatusHeld,
		to:      SeatStatusAvailable,
	})
}

// apply runs the conditional UPDATE and returns how many rows changed.
func (g *Guard) apply(ctx context.Context, t transition) (int64, error) {
	updates := map[string]interface{}{
		"status":     t.to,
		"updated_at": g.clock.Now(),
	}
	for k, v := range t.set {
		updates[k] = v
	}

	q := transaction.DB(ctx, g.db).
		Model(&ShowSeat{}).
		Where("show_id = ? AND status = ?", t.showID, t.from)
	if len(t.seatIDs) > 0 {
		q = q.Where("id IN ?", t.seatIDs)
	}
	if t.owner != nil {
		q = q.Where("reserved_by = ?", *t.owner)
	}

	result := q.Updates(updates)
	if result.Error != nil {
		return 0, apperrors.Storage(fmt.Sprintf("seats %s to %s", t.from, t.to), result.Error)
	}

	if result.RowsAffected > 0 {
		g.invalidateAfterCommit(ctx, t.showID)
	}
	return result.RowsAffected, nil
}

// applyAll requires every requested seat to end in the target state. On a
// shortfall it returns SeatsUnavailableError and the enclosing transaction
// rolls back whatever this attempt changed.
func (g *Guard) applyAll(ctx context.Context, t transition) error {
	if len(t.seatIDs) == 0 {
		return apperrors.Validation("seat_ids", "at least one seat is required")
	}

	return transaction.Run(ctx, g.db, func(ctx context.Context) error {
		changed, err := g.apply(ctx, t)
		if err != nil {
			return err
		}
		if changed == int64(len(t.seatIDs)) {
			return nil
		}

		failed, err := g.notLanded(ctx, t)
		if err != nil {
			return err
		}
		if len(failed) == 0 {
			// Every seat was already in the target state
			return nil
		}

		logger.GetDefault().DebugContext(ctx, "seat transition rejected",
			"show_id", t.showID.String(),
			"from", string(t.from),
			"to", string(t.to),
			"requested", len(t.seatIDs),
			"changed", changed,
		)
		return &apperrors.SeatsUnavailableError{ShowID: t.showID, SeatIDs: failed}
	})
}

// notLanded lists the requested seats that are not in the target state for this caller.
func (g *Guard) notLanded(ctx context.Context, t transition) ([]uuid.UUID, error) {
	q := transaction.DB(ctx, g.db).
		Model(&ShowSeat{}).
		Where("show_id = ? AND id IN ? AND status = ?", t.showID, t.seatIDs, t.to)
	if t.landed != nil {
		q = t.landed(q)
	}

	var landed []uuid.UUID
	if err := q.Pluck("id", &landed).Error; err != nil {
		return nil, apperrors.Storage("check seat transition", err)
	}

	ok := make(map[uuid.UUID]bool, len(landed))
	for _, id := range landed {
		ok[id] = true
	}

	var failed []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(t.seatIDs))
	for _, id := range t.seatIDs {
		if !ok[id] && !seen[id] {
			failed = append(failed, id)
		}
		seen[id] = true
	}
	return failed, nil
}

func (g *Guard) invalidateAfterCommit(ctx context.Context, showID uuid.UUID) {
	if g.cacheService == nil {
		return
	}
	transaction.AfterCommit(ctx, func(ctx context.Context) {
		if err := g.cacheService.Delete(ctx, constants.BuildSeatMapKey(showID.String())); err != nil {
			logger.GetDefault().WarnContext(ctx, "seat map invalidation failed",
				"show_id", showID.String(), "error", err)
		}
	})
}
