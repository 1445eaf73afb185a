package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity types
const (
	EntityReservation = "reservation"
	EntityOrder       = "order"
	EntityPayment     = "payment_intent"
)

// Actions
const (
	ActionReservationCreated     = "reservation.created"
	ActionReservationExtended    = "reservation.extended"
	ActionReservationReleased    = "reservation.released"
	ActionReservationExpired     = "reservation.expired"
	ActionReservationCompensated = "reservation.compensated"
	ActionReservationCheckedOut  = "reservation.checked_out"
	ActionOrderCreated           = "order.created"
	ActionOrderPaid              = "order.paid"
	ActionOrderFailed            = "order.failed"
	ActionOrderCancelled         = "order.cancelled"
	ActionOrderRefunded          = "order.refunded"
	ActionPaymentIntentCreated   = "payment_intent.created"
)

// ActorSweeper is the actor recorded for expirations done by the background job
const ActorSweeper = "system:sweeper"

// AuditLogEntry is an append-only record of a reservation or order state transition
type AuditLogEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType string    `gorm:"type:varchar(32);not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity" json:"entity_id"`
	Action     string    `gorm:"type:varchar(64);not null;index" json:"action"`
	Actor      string    `gorm:"type:varchar(160);not null" json:"actor"`
	Payload    string    `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName sets the table name for AuditLogEntry
func (AuditLogEntry) TableName() string {
	return "audit_log"
}

func (e *AuditLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// NewEntry builds an entry; payload is encoded as JSON.
func NewEntry(entityType string, entityID uuid.UUID, action, actor string, payload map[string]interface{}) *AuditLogEntry {
	entry := &AuditLogEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	if len(payload) > 0 {
		if data, err := json.Marshal(payload); err == nil {
			entry.Payload = string(data)
		}
	}
	return entry
}
