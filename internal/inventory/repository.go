package inventory

import (
	"context"
	"sort"

	"boxoffice/internal/shared/transaction"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	GetShowByID(ctx context.Context, id uuid.UUID) (*Show, error)
	GetShowSeats(ctx context.Context, showID uuid.UUID) ([]ShowSeat, error)
	GetShowSeatsByIDs(ctx context.Context, showID uuid.UUID, ids []uuid.UUID) ([]ShowSeat, error)
	GetSeatsReservedBy(ctx context.Context, reservationID uuid.UUID) ([]ShowSeat, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetShowByID(ctx context.Context, id uuid.UUID) (*Show, error) {
	var show Show
	if err := transaction.DB(ctx, r.db).First(&show, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &show, nil
}

func (r *repository) GetShowSeats(ctx context.Context, showID uuid.UUID) ([]ShowSeat, error) {
	var seats []ShowSeat
	err := transaction.DB(ctx, r.db).
		Preload("Seat").
		Where("show_id = ?", showID).
		Find(&seats).Error
	if err != nil {
		return nil, err
	}

	sort.SliceStable(seats, func(i, j int) bool {
		a, b := seats[i].Seat, seats[j].Seat
		if a == nil || b == nil {
			return b != nil
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})
	return seats, nil
}

func (r *repository) GetShowSeatsByIDs(ctx context.Context, showID uuid.UUID, ids []uuid.UUID) ([]ShowSeat, error) {
	var seats []ShowSeat
	err := transaction.DB(ctx, r.db).
		Preload("Seat").
		Where("show_id = ? AND id IN ?", showID, ids).
		Find(&seats).Error
	return seats, err
}

func (r *repository) GetSeatsReservedBy(ctx context.Context, reservationID uuid.UUID) ([]ShowSeat, error) {
	var seats []ShowSeat
	err := transaction.DB(ctx, r.db).
		Preload("Seat").
		Where("reserved_by = ?", reservationID).
		Find(&seats).Error
	return seats, err
}
