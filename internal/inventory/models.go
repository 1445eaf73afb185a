package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ShowStatus string

const (
	ShowStatusScheduled ShowStatus = "scheduled"
	ShowStatusOnSale    ShowStatus = "on_sale"
	ShowStatusCancelled ShowStatus = "cancelled"
)

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusReserved  SeatStatus = "reserved"
	SeatStatusSold      SeatStatus = "sold"
	SeatStatusHeld      SeatStatus = "held"
)

type SeatType string

const (
	SeatTypeStandard   SeatType = "standard"
	SeatTypePremium    SeatType = "premium"
	SeatTypeAccessible SeatType = "accessible"
)

// Show is one performance that seats are sold for
type Show struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string     `gorm:"not null" json:"title"`
	Venue     string     `gorm:"not null" json:"venue"`
	StartsAt  time.Time  `gorm:"not null;index" json:"starts_at"`
	Status    ShowStatus `gorm:"type:varchar(20);not null;check:status IN ('scheduled', 'on_sale', 'cancelled')" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Seat is the physical descriptor of a seat. Never mutated after publication.
type Seat struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Venue     string    `gorm:"not null;uniqueIndex:idx_seat_position" json:"venue"`
	Section   string    `gorm:"not null;uniqueIndex:idx_seat_position" json:"section"`
	Row       string    `gorm:"column:row_label;not null;uniqueIndex:idx_seat_position" json:"row"`
	Number    int       `gorm:"not null;uniqueIndex:idx_seat_position" json:"number"`
	SeatType  SeatType  `gorm:"type:varchar(20);not null" json:"seat_type"`
	CreatedAt time.Time `json:"created_at"`
}

// ShowSeat is the mutable inventory unit: one seat for one show.
// Its status is written only by Guard.
type ShowSeat struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ShowID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_show_seat;index:idx_show_seat_status" json:"show_id"`
	SeatID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_show_seat" json:"seat_id"`
	Status        SeatStatus `gorm:"type:varchar(20);not null;index:idx_show_seat_status;check:status IN ('available', 'reserved', 'sold', 'held')" json:"status"`
	PriceCents    int64      `gorm:"not null" json:"price_cents"`
	ReservedBy    *uuid.UUID `gorm:"type:uuid;index" json:"reserved_by,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index" json:"order_id,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Relationships
	Seat *Seat `json:"seat,omitempty" gorm:"foreignKey:SeatID"`
}

// TableName sets the table name for Show
func (Show) TableName() string {
	return "shows"
}

// TableName sets the table name for Seat
func (Seat) TableName() string {
	return "seats"
}

// TableName sets the table name for ShowSeat
func (ShowSeat) TableName() string {
	return "show_seats"
}

func (s *Show) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Seat) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *ShowSeat) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Label is the human readable seat position, e.g. "Orchestra C-12"
func (s *Seat) Label() string {
	return fmt.Sprintf("%s %s-%d", s.Section, s.Row, s.Number)
}

// IsOnSale reports whether the show accepts reservations at t
func (s *Show) IsOnSale(t time.Time) bool {
	return s.Status == ShowStatusOnSale && t.Before(s.StartsAt)
}

// Label returns the seat label, or the show seat id when the seat was not loaded
func (s *ShowSeat) Label() string {
	if s.Seat == nil {
		return s.ID.String()
	}
	return s.Seat.Label()
}
