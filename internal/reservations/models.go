package reservations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeactivationReason records why a reservation stopped holding seats
type DeactivationReason string

const (
	ReasonReleased    DeactivationReason = "released"
	ReasonExpired     DeactivationReason = "expired"
	ReasonCheckedOut  DeactivationReason = "checked_out"
	ReasonCompensated DeactivationReason = "compensated"
)

// SeatReservation is a temporary exclusive claim on seats of one show.
// A holder has at most one active reservation per show.
type SeatReservation struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Token     string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	ShowID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"show_id"`
	HolderKey string     `gorm:"type:varchar(160);not null;index" json:"-"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	SessionID string     `gorm:"type:varchar(128)" json:"-"`

	ContactName  string `gorm:"type:varchar(255)" json:"contact_name,omitempty"`
	ContactEmail string `gorm:"type:varchar(255)" json:"contact_email,omitempty"`
	ContactPhone string `gorm:"type:varchar(50)" json:"contact_phone,omitempty"`

	ExpiresAt          time.Time          `gorm:"not null" json:"expires_at"`
	IsActive           bool               `gorm:"not null" json:"is_active"`
	ExtensionCount     int                `gorm:"not null" json:"extension_count"`
	DeactivatedAt      *time.Time         `json:"deactivated_at,omitempty"`
	DeactivationReason DeactivationReason `gorm:"type:varchar(20)" json:"deactivation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Seats []ReservationSeat `gorm:"foreignKey:ReservationID" json:"seats,omitempty"`
}

// ReservationSeat links a reservation to one show seat
type ReservationSeat struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReservationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reservation_seat" json:"reservation_id"`
	ShowSeatID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reservation_seat;index" json:"show_seat_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName sets the table name for SeatReservation
func (SeatReservation) TableName() string {
	return "seat_reservations"
}

// TableName sets the table name for ReservationSeat
func (ReservationSeat) TableName() string {
	return "reservation_seats"
}

func (r *SeatReservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *ReservationSeat) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsLive reports whether the reservation still holds its seats at t
func (r *SeatReservation) IsLive(t time.Time) bool {
	return r.IsActive && t.Before(r.ExpiresAt)
}

// SeatIDs returns the show seat ids of the loaded join rows
func (r *SeatReservation) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Seats))
	for _, s := range r.Seats {
		ids = append(ids, s.ShowSeatID)
	}
	return ids
}

// State is the externally visible lifecycle state
func (r *SeatReservation) State(t time.Time) string {
	switch {
	case r.IsLive(t):
		return "active"
	case r.IsActive:
		return string(ReasonExpired)
	default:
		return string(r.DeactivationReason)
	}
}
