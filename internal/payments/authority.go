package payments

import (
	"context"
	"errors"
)

// IntentStatus is the charge authority's view of an intent
type IntentStatus string

const (
	IntentRequiresPayment IntentStatus = "requires_payment_method"
	IntentProcessing      IntentStatus = "processing"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentCanceled        IntentStatus = "canceled"
	IntentFailed          IntentStatus = "failed"
)

// Terminal reports whether the intent can never succeed any more
func (s IntentStatus) Terminal() bool {
	return s == IntentCanceled || s == IntentFailed
}

// ErrIntentNotFound is returned when the authority does not know an intent
var ErrIntentNotFound = errors.New("payment intent not found")

// Intent is an intent as reported by the charge authority
type Intent struct {
	ID                  string            `json:"id"`
	ClientSecret        string            `json:"client_secret"`
	Status              IntentStatus      `json:"status"`
	AmountCents         int64             `json:"amount"`
	AmountReceivedCents int64             `json:"amount_received"`
	Currency            string            `json:"currency"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	LastError           string            `json:"last_payment_error,omitempty"`
}

// OrderID is the order the intent was created for
func (i *Intent) OrderID() string {
	return i.Metadata["order_id"]
}

// CreateIntentParams describes a new intent
type CreateIntentParams struct {
	AmountCents    int64
	Currency       string
	OrderID        string
	IdempotencyKey string
}

// Refund is a refund issued by the charge authority
type Refund struct {
	ID          string `json:"id"`
	IntentID    string `json:"payment_intent"`
	AmountCents int64  `json:"amount"`
	Status      string `json:"status"`
}

// Authority is the external charge authority. Implementations map network
// failures to apperrors.UpstreamError.
type Authority interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	Refund(ctx context.Context, intentID string, amountCents int64, idempotencyKey string) (*Refund, error)
}
