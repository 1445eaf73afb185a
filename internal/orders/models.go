package orders

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TicketOrder is the purchase of one reservation's seats
type TicketOrder struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderRef         string     `gorm:"uniqueIndex;not null" json:"order_ref"`
	ReservationID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"reservation_id"`
	ReservationToken string     `gorm:"not null;index" json:"reservation_token"`
	ShowID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"show_id"`
	HolderKey        string     `gorm:"not null;index" json:"-"`
	UserID           *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Status           Status     `gorm:"type:varchar(20);not null;index;check:status IN ('pending', 'paid', 'failed', 'refunded', 'cancelled')" json:"status"`
	TotalAmountCents int64      `gorm:"not null" json:"total_amount_cents"`
	Currency         string     `gorm:"type:varchar(3);not null" json:"currency"`
	IdempotencyKey   *string    `gorm:"uniqueIndex" json:"idempotency_key,omitempty"`
	PaymentIntentID  *string    `gorm:"index" json:"payment_intent_id,omitempty"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
	CustomerName     string     `json:"customer_name"`
	CustomerEmail    string     `json:"customer_email"`
	CustomerPhone    string     `json:"customer_phone,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relationships
	Items   []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
	Tickets []Ticket    `json:"tickets,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
}

// OrderItem is one purchased seat at the price charged
type OrderItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_item_seat" json:"order_id"`
	ShowSeatID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_item_seat" json:"show_seat_id"`
	SeatLabel  string    `gorm:"not null" json:"seat_label"`
	PriceCents int64     `gorm:"not null" json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ticket is the admission for one seat. Created as a placeholder with the
// order; issued with a scan code once the order is paid.
type Ticket struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"order_id"`
	ShowSeatID uuid.UUID    `gorm:"type:uuid;not null;index" json:"show_seat_id"`
	SeatLabel  string       `gorm:"not null" json:"seat_label"`
	Status     TicketStatus `gorm:"type:varchar(20);not null;check:status IN ('pending', 'issued', 'void')" json:"status"`
	ScanCode   *string      `gorm:"uniqueIndex" json:"scan_code,omitempty"`
	IssuedAt   *time.Time   `json:"issued_at,omitempty"`
	ScannedAt  *time.Time   `json:"scanned_at,omitempty"`
	ScannedBy  string       `json:"scanned_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// TableName sets the table name for TicketOrder
func (TicketOrder) TableName() string {
	return "ticket_orders"
}

// TableName sets the table name for OrderItem
func (OrderItem) TableName() string {
	return "order_items"
}

// TableName sets the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

func (o *TicketOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// SeatIDs returns the show seat ids of the order's items
func (o *TicketOrder) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ShowSeatID)
	}
	return ids
}
