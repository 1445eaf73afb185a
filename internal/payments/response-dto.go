package payments

// IntentResponse is handed to the client to complete payment
type IntentResponse struct {
	OrderID        string       `json:"order_id"`
	IntentID       string       `json:"intent_id"`
	ClientSecret   string       `json:"client_secret"`
	AmountCents    int64        `json:"amount_cents"`
	Currency       string       `json:"currency"`
	Status         IntentStatus `json:"status"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
}

// Webhook outcomes
const (
	OutcomeConfirmed = "confirmed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
)

// WebhookResult is the acknowledgement returned to the charge authority
type WebhookResult struct {
	EventID string `json:"event_id"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

func (p *PaymentIntent) ToResponse() *IntentResponse {
	res := &IntentResponse{
		OrderID:      p.OrderID.String(),
		IntentID:     p.ProviderIntentID,
		ClientSecret: p.ClientSecret,
		AmountCents:  p.AmountCents,
		Currency:     p.Currency,
		Status:       p.Status,
	}
	if p.IdempotencyKey != nil {
		res.IdempotencyKey = *p.IdempotencyKey
	}
	return res
}
