package orders

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TicketScannedError means the ticket was already used for admission
type TicketScannedError struct {
	TicketID  uuid.UUID
	ScannedAt *time.Time
}

func (e *TicketScannedError) Error() string   { return "ticket has already been scanned" }
func (e *TicketScannedError) StatusCode() int { return http.StatusConflict }
func (e *TicketScannedError) Code() string    { return "ticket_already_scanned" }
func (e *TicketScannedError) Details() map[string]interface{} {
	d := map[string]interface{}{"ticket_id": e.TicketID.String()}
	if e.ScannedAt != nil {
		d["scanned_at"] = e.ScannedAt.Format(time.RFC3339)
	}
	return d
}
