package payments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentIntent is the local record of an intent issued by the charge authority.
// An order has at most one, and an idempotency key names at most one.
type PaymentIntent struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID          uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	ProviderIntentID string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"provider_intent_id"`
	ClientSecret     string       `gorm:"type:varchar(255);not null" json:"-"`
	AmountCents      int64        `gorm:"not null" json:"amount_cents"`
	Currency         string       `gorm:"type:varchar(3);not null" json:"currency"`
	Status           IntentStatus `gorm:"type:varchar(40);not null" json:"status"`
	IdempotencyKey   *string      `gorm:"type:varchar(255);uniqueIndex" json:"idempotency_key,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TableName sets the table name for PaymentIntent
func (PaymentIntent) TableName() string {
	return "payment_intents"
}

func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
