package orders

import "time"

type OrderResponse struct {
	ID               string           `json:"id"`
	OrderRef         string           `json:"order_ref"`
	Status           Status           `json:"status"`
	ReservationToken string           `json:"reservation_token"`
	ShowID           string           `json:"show_id"`
	TotalAmountCents int64            `json:"total_amount_cents"`
	Currency         string           `json:"currency"`
	PaymentIntentID  string           `json:"payment_intent_id,omitempty"`
	PaymentReference string           `json:"payment_reference,omitempty"`
	CustomerName     string           `json:"customer_name"`
	CustomerEmail    string           `json:"customer_email"`
	CustomerPhone    string           `json:"customer_phone,omitempty"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	Items            []ItemResponse   `json:"items"`
	Tickets          []TicketResponse `json:"tickets"`
	PaidAt           *time.Time       `json:"paid_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

type ItemResponse struct {
	ShowSeatID string `json:"show_seat_id"`
	SeatLabel  string `json:"seat_label"`
	PriceCents int64  `json:"price_cents"`
}

type TicketResponse struct {
	ID         string       `json:"id"`
	ShowSeatID string       `json:"show_seat_id"`
	SeatLabel  string       `json:"seat_label"`
	Status     TicketStatus `json:"status"`
	ScanCode   string       `json:"scan_code,omitempty"`
	IssuedAt   *time.Time   `json:"issued_at,omitempty"`
	ScannedAt  *time.Time   `json:"scanned_at,omitempty"`
}

type ScanResponse struct {
	Ticket  TicketResponse `json:"ticket"`
	OrderID string         `json:"order_id"`
}

func (o *TicketOrder) ToResponse() *OrderResponse {
	res := &OrderResponse{
		ID:               o.ID.String(),
		OrderRef:         o.OrderRef,
		Status:           o.Status,
		ReservationToken: o.ReservationToken,
		ShowID:           o.ShowID.String(),
		TotalAmountCents: o.TotalAmountCents,
		Currency:         o.Currency,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		FailureReason:    o.FailureReason,
		Items:            make([]ItemResponse, 0, len(o.Items)),
		Tickets:          make([]TicketResponse, 0, len(o.Tickets)),
		PaidAt:           o.PaidAt,
		CreatedAt:        o.CreatedAt,
	}
	if o.PaymentIntentID != nil {
		res.PaymentIntentID = *o.PaymentIntentID
	}
	if o.PaymentReference != nil {
		res.PaymentReference = *o.PaymentReference
	}
	for _, item := range o.Items {
		res.Items = append(res.Items, ItemResponse{
			ShowSeatID: item.ShowSeatID.String(),
			SeatLabel:  item.SeatLabel,
			PriceCents: item.PriceCents,
		})
	}
	for i := range o.Tickets {
		res.Tickets = append(res.Tickets, o.Tickets[i].ToResponse())
	}
	return res
}

func (t *Ticket) ToResponse() TicketResponse {
	res := TicketResponse{
		ID:         t.ID.String(),
		ShowSeatID: t.ShowSeatID.String(),
		SeatLabel:  t.SeatLabel,
		Status:     t.Status,
		IssuedAt:   t.IssuedAt,
		ScannedAt:  t.ScannedAt,
	}
	if t.ScanCode != nil {
		res.ScanCode = *t.ScanCode
	}
	return res
}
