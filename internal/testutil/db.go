// Package testutil provides an in-memory database with the booking schema and
// show fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"boxoffice/internal/inventory"
	"boxoffice/internal/shared/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with every migration applied.
// A single connection serializes transactions, which stands in for row locks.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_time_format=sqlite", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// ShowOptions describes a show fixture
type ShowOptions struct {
	Seats      int
	PriceCents int64
	StartsAt   time.Time
	Status     inventory.ShowStatus
}

// ShowFixture is a seeded show and its seats in seat order
type ShowFixture struct {
	Show  inventory.Show
	Seats []inventory.ShowSeat
}

// SeatIDs returns the show seat ids of the first n seats
func (f *ShowFixture) SeatIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n && i < len(f.Seats); i++ {
		ids = append(ids, f.Seats[i].ID)
	}
	return ids
}

// SeatIDStrings returns the show seat ids of the first n seats as strings
func (f *ShowFixture) SeatIDStrings(n int) []string {
	ids := f.SeatIDs(n)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// SeedShow creates an on-sale show with one row of seats.
func SeedShow(t testing.TB, db *gorm.DB, opts ShowOptions) *ShowFixture {
	t.Helper()

	if opts.Seats == 0 {
		opts.Seats = 10
	}
	if opts.PriceCents == 0 {
		opts.PriceCents = 1500
	}
	if opts.StartsAt.IsZero() {
		opts.StartsAt = time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Microsecond)
	}
	if opts.Status == "" {
		opts.Status = inventory.ShowStatusOnSale
	}

	fixture := &ShowFixture{
		Show: inventory.Show{
			Title:    "Fixture Show",
			Venue:    "Hall " + uuid.NewString()[:8],
			StartsAt: opts.StartsAt,
			Status:   opts.Status,
		},
	}
	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&fixture.Show).Error)

	for i := 1; i <= opts.Seats; i++ {
		seat := inventory.Seat{
			Venue:    fixture.Show.Venue,
			Section:  "Orchestra",
			Row:      "A",
			Number:   i,
			SeatType: inventory.SeatTypeStandard,
		}
		require.NoError(t, db.WithContext(ctx).Create(&seat).Error)

		showSeat := inventory.ShowSeat{
			ShowID:     fixture.Show.ID,
			SeatID:     seat.ID,
			Status:     inventory.SeatStatusAvailable,
			PriceCents: opts.PriceCents,
			Seat:       &seat,
		}
		require.NoError(t, db.WithContext(ctx).Omit("Seat").Create(&showSeat).Error)
		fixture.Seats = append(fixture.Seats, showSeat)
	}

	return fixture
}

// SeatStatuses returns the current status of the given show seats
func SeatStatuses(t testing.TB, db *gorm.DB, ids []uuid.UUID) map[uuid.UUID]inventory.SeatStatus {
	t.Helper()

	var rows []inventory.ShowSeat
	require.NoError(t, db.Where("id IN ?", ids).Find(&rows).Error)

	out := make(map[uuid.UUID]inventory.SeatStatus, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Status
	}
	return out
}

// CountSeats counts the show's seats in a status
func CountSeats(t testing.TB, db *gorm.DB, showID uuid.UUID, status inventory.SeatStatus) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&inventory.ShowSeat{}).
		Where("show_id = ? AND status = ?", showID, status).
		Count(&n).Error)
	return n
}
