package payments

// IdempotencyHeader carries the client's idempotency key
const IdempotencyHeader = "Idempotency-Key"

// CreateIntentRequest may carry the idempotency key in the body instead of the header
type CreateIntentRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,idempotency_key"`
}

// WebhookEvent is a delivery from the charge authority
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		IntentID string `json:"intent_id"`
	} `json:"data"`
}

// EventIntentSucceeded is the only event type acted upon
const EventIntentSucceeded = "payment_intent.succeeded"
