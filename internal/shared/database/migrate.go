package database

import (
	"fmt"

	"boxoffice/internal/audit"
	"boxoffice/internal/inventory"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/reservations"

	"gorm.io/gorm"
)

// Migrate creates the booking tables and the constraints AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&inventory.Show{},
		&inventory.Seat{},
		&inventory.ShowSeat{},
		&reservations.SeatReservation{},
		&reservations.ReservationSeat{},
		&orders.TicketOrder{},
		&orders.OrderItem{},
		&orders.Ticket{},
		&payments.PaymentIntent{},
		&audit.AuditLogEntry{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return MigrateConstraints(db)
}
