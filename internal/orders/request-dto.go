package orders

// CreateOrderRequest turns a live reservation into a pending order.
// Customer fields default to the reservation's contact details.
type CreateOrderRequest struct {
	ReservationToken string `json:"reservation_token" binding:"required"`
	CustomerName     string `json:"customer_name" binding:"omitempty,max=200"`
	CustomerEmail    string `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone    string `json:"customer_phone" binding:"omitempty,max=32"`
	IdempotencyKey   string `json:"idempotency_key" binding:"omitempty,idempotency_key"`
}

// ConfirmPaymentRequest names the charge authority intent that paid for the order.
// When empty the order's own intent is used.
type ConfirmPaymentRequest struct {
	PaymentReference string `json:"payment_reference"`
}

type ScanTicketRequest struct {
	ScanCode string `json:"scan_code" binding:"required"`
}
