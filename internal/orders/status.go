package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the order status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanBeCancelled checks if an order with this status can be cancelled
func (s Status) CanBeCancelled() bool {
	return s == StatusPending
}

// IsLive reports whether the order still claims its reservation
func (s Status) IsLive() bool {
	return s == StatusPending || s == StatusPaid
}

type TicketStatus string

const (
	TicketStatusPending TicketStatus = "pending"
	TicketStatusIssued  TicketStatus = "issued"
	TicketStatusVoid    TicketStatus = "void"
)
