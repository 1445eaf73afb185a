package reservations

import (
	"context"
	"fmt"
	"time"

	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the holder-scoped view of reservations. Every lookup and
// update is narrowed to the holder's key.
type Repository interface {
	Create(ctx context.Context, reservation *SeatReservation) error
	FindByToken(ctx context.Context, holder access.Holder, token string) (*SeatReservation, error)
	FindActiveForShow(ctx context.Context, holder access.Holder, showID uuid.UUID) (*SeatReservation, error)
	Deactivate(ctx context.Context, holder access.Holder, id uuid.UUID, reason DeactivationReason, now time.Time) (bool, error)
	Extend(ctx context.Context, holder access.Holder, id uuid.UUID, expectedCount int, expiresAt, now time.Time) (bool, error)
}

// SystemRepository is what the sweeper and the payment finalizer need. It has
// no holder scope and no way to create or extend reservations.
type SystemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*SeatReservation, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]SeatReservation, error)
	ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	CompleteCheckout(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func NewSystemRepository(db *gorm.DB) SystemRepository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, reservation *SeatReservation) error {
	db := transaction.DB(ctx, r.db)
	if err := db.Omit(clause.Associations).Create(reservation).Error; err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}

	for i := range reservation.Seats {
		reservation.Seats[i].ReservationID = reservation.ID
	}
	if len(reservation.Seats) > 0 {
		if err := db.Create(&reservation.Seats).Error; err != nil {
			return fmt.Errorf("create reservation seats: %w", err)
		}
	}
	return nil
}

func (r *repository) FindByToken(ctx context.Context, holder access.Holder, token string) (*SeatReservation, error) {
	var reservation SeatReservation
	err := transaction.DB(ctx, r.db).
		Preload("Seats").
		Where("token = ?", token).
		First(&reservation).Error
	if err != nil {
		if transaction.IsNotFound(err) {
			return nil, &apperrors.ReservationExpiredError{Token: token, Unknown: true}
		}
		return nil, apperrors.Storage("find reservation", err)
	}

	if !holder.Owns(reservation.HolderKey) {
		return nil, &apperrors.ForbiddenError{Resource: "reservation"}
	}
	return &reservation, nil
}

func (r *repository) FindActiveForShow(ctx context.Context, holder access.Holder, showID uuid.UUID) (*SeatReservation, error) {
	var reservation SeatReservation
	err := transaction.DB(ctx, r.db).
		Preload("Seats").
		Where("show_id = ? AND holder_key = ? AND is_active = ?", showID, holder.Key(), true).
		First(&reservation).Error
	if err != nil {
		if transaction.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.Storage("find active reservation", err)
	}
	return &reservation, nil
}

func (r *repository) Deactivate(ctx context.Context, holder access.Holder, id uuid.UUID, reason DeactivationReason, now time.Time) (bool, error) {
	result := transaction.DB(ctx, r.db).
		Model(&SeatReservation{}).
		Where("id = ? AND holder_key = ? AND is_active = ?", id, holder.Key(), true).
		Updates(deactivation(reason, now))
	if result.Error != nil {
		return false, apperrors.Storage("deactivate reservation", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Extend(ctx context.Context, holder access.Holder, id uuid.UUID, expectedCount int, expiresAt, now time.Time) (bool, error) {
	result := transaction.DB(ctx, r.db).
		Model(&SeatReservation{}).
		Where("id = ? AND holder_key = ? AND is_active = ? AND extension_count = ? AND expires_at > ?",
			id, holder.Key(), true, expectedCount, now).
		Updates(map[string]interface{}{
			"expires_at":      expiresAt,
			"extension_count": expectedCount + 1,
			"updated_at":      now,
		})
	if result.Error != nil {
		return false, apperrors.Storage("extend reservation", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SYSTEM TIER

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*SeatReservation, error) {
	var reservation SeatReservation
	err := transaction.DB(ctx, r.db).
		Preload("Seats").
		First(&reservation, "id = ?", id).Error
	if err != nil {
		if transaction.IsNotFound(err) {
			return nil, apperrors.NotFound("reservation", id.String())
		}
		return nil, apperrors.Storage("get reservation", err)
	}
	return &reservation, nil
}

func (r *repository) FindExpired(ctx context.Context, now time.Time, limit int) ([]SeatReservation, error) {
	var due []SeatReservation
	err := transaction.DB(ctx, r.db).
		Where("is_active = ? AND expires_at < ?", true, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, apperrors.Storage("find expired reservations", err)
	}
	return due, nil
}

func (r *repository) ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := transaction.DB(ctx, r.db).
		Model(&SeatReservation{}).
		Where("id = ? AND is_active = ? AND expires_at < ?", id, true, now).
		Updates(deactivation(ReasonExpired, now))
	if result.Error != nil {
		return false, apperrors.Storage("expire reservation", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CompleteCheckout(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := transaction.DB(ctx, r.db).
		Model(&SeatReservation{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(deactivation(ReasonCheckedOut, now))
	if result.Error != nil {
		return false, apperrors.Storage("complete checkout", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func deactivation(reason DeactivationReason, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"is_active":           false,
		"deactivated_at":      now,
		"deactivation_reason": reason,
		"updated_at":          now,
	}
}
