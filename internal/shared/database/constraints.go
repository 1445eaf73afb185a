package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Partial unique indexes backing the booking rules. Written in the subset of SQL
// shared by PostgreSQL and SQLite.
var constraintStatements = []string{
	// At most one active reservation per holder and show
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_one_active_per_holder
		ON seat_reservations (show_id, holder_key)
		WHERE is_active = true`,

	// A reservation feeds at most one live order
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_ticket_orders_one_live_per_reservation
		ON ticket_orders (reservation_id)
		WHERE status IN ('pending', 'paid')`,

	// Sweeper scan
	`CREATE INDEX IF NOT EXISTS idx_reservations_due
		ON seat_reservations (expires_at)
		WHERE is_active = true`,
}

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	for _, stmt := range constraintStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}
