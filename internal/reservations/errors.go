package reservations

import (
	"errors"
	"fmt"

	"boxoffice/internal/shared/apperrors"
)

// CartError reports the cart item that failed and which earlier reservations
// were compensated. Its status is the status of the cause.
type CartError struct {
	Index              int
	ShowID             string
	Compensated        []string
	CompensationFailed []string
	Err                error
}

func (e *CartError) Error() string {
	return fmt.Sprintf("cart item %d (show %s) failed: %v", e.Index, e.ShowID, e.Err)
}

func (e *CartError) Unwrap() error   { return e.Err }
func (e *CartError) StatusCode() int { return apperrors.StatusOf(e.Err) }
func (e *CartError) Code() string    { return "cart_failed" }

func (e *CartError) Details() map[string]interface{} {
	d := map[string]interface{}{
		"failed_index":       e.Index,
		"failed_show_id":     e.ShowID,
		"compensated_tokens": e.Compensated,
	}
	if len(e.CompensationFailed) > 0 {
		d["compensation_failed_tokens"] = e.CompensationFailed
	}

	var cause apperrors.HTTPError
	if errors.As(e.Err, &cause) {
		d["cause"] = cause.Code()
		if details := cause.Details(); details != nil {
			d["cause_details"] = details
		}
	}
	return d
}
