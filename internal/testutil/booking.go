package testutil

import (
	"context"
	"testing"
	"time"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/reservations"
	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// BookingConfig returns the booking rules used by tests
func BookingConfig() config.BookingConfig {
	return config.BookingConfig{
		MaxSeatsPerReservation: 10,
		ReservationTTL:         10 * time.Minute,
		ExtensionDuration:      5 * time.Minute,
		MaxExtensions:          3,
		Currency:               "USD",
	}
}

// BookingStack wires inventory and reservations on a fresh database with a manual clock
type BookingStack struct {
	DB           *gorm.DB
	Show         *ShowFixture
	Clock        *clock.Manual
	Guard        *inventory.Guard
	Inventory    inventory.Service
	Listeners    *reservations.Listeners
	Reservations reservations.Service
	System       reservations.SystemService
	Sink         audit.Sink
}

// NewBookingStack seeds one show with opts and wires the reservation services
func NewBookingStack(t testing.TB, opts ShowOptions) *BookingStack {
	t.Helper()

	db := NewDB(t)
	s := &BookingStack{
		DB:        db,
		Show:      SeedShow(t, db, opts),
		Clock:     clock.NewManual(time.Now().UTC().Truncate(time.Microsecond)),
		Listeners: reservations.NewListeners(),
		Sink:      audit.NewGormSink(db),
	}
	s.Guard = inventory.NewGuard(db, s.Clock)
	s.Inventory = inventory.NewService(inventory.NewRepository(db), s.Guard, nil, 0)
	s.Reservations = reservations.NewService(db, reservations.NewRepository(db), s.Inventory, s.Guard,
		s.Listeners, s.Clock, s.Sink, BookingConfig())
	s.System = reservations.NewSystemService(db, reservations.NewSystemRepository(db), s.Guard,
		s.Listeners, s.Clock, s.Sink)
	return s
}

// Reserve reserves the first n seats of the show for holder
func (s *BookingStack) Reserve(t testing.TB, holder access.Holder, n int) *reservations.ReservationResponse {
	t.Helper()

	res, err := s.Reservations.Reserve(context.Background(), holder, reservations.ReserveRequest{
		ShowID:  s.Show.Show.ID.String(),
		SeatIDs: s.Show.SeatIDStrings(n),
	})
	require.NoError(t, err)
	return res
}

// ReservationByToken loads a reservation without holder scope
func (s *BookingStack) ReservationByToken(t testing.TB, token string) *reservations.SeatReservation {
	t.Helper()

	var r reservations.SeatReservation
	require.NoError(t, s.DB.Preload("Seats").First(&r, "token = ?", token).Error)
	return &r
}

// CountAudit counts audit entries for an entity and action
func (s *BookingStack) CountAudit(t testing.TB, entityID interface{}, action string) int64 {
	t.Helper()

	var n int64
	require.NoError(t, s.DB.Model(&audit.AuditLogEntry{}).
		Where("entity_id = ? AND action = ?", entityID, action).
		Count(&n).Error)
	return n
}
