// Package apperrors defines the error taxonomy shared by the booking core.
// Every error knows its HTTP status and a stable machine-readable code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// HTTPError is implemented by every error in this package.
type HTTPError interface {
	error
	StatusCode() int
	Code() string
	Details() map[string]interface{}
}

// ValidationError reports malformed input. Never retried automatically.
type ValidationError struct {
	Field   string
	Reason  string
	Message string
}

// Validation builds a ValidationError for a field.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Reason: "invalid", Message: message}
}

func (e *ValidationError) Error() string   { return e.Message }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *ValidationError) Code() string {
	if e.Reason != "" && e.Reason != "invalid" {
		return e.Reason
	}
	return "validation_failed"
}
func (e *ValidationError) Details() map[string]interface{} {
	if e.Field == "" {
		return nil
	}
	return map[string]interface{}{"field": e.Field}
}

// SeatsUnavailableError means at least one requested seat could not make the transition.
type SeatsUnavailableError struct {
	ShowID  uuid.UUID
	SeatIDs []uuid.UUID
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("%d seat(s) are no longer available", len(e.SeatIDs))
}
func (e *SeatsUnavailableError) StatusCode() int { return http.StatusConflict }
func (e *SeatsUnavailableError) Code() string    { return "seats_unavailable" }
func (e *SeatsUnavailableError) Details() map[string]interface{} {
	ids := make([]string, 0, len(e.SeatIDs))
	for _, id := range e.SeatIDs {
		ids = append(ids, id.String())
	}
	d := map[string]interface{}{"seat_ids": ids}
	if e.ShowID != uuid.Nil {
		d["show_id"] = e.ShowID.String()
	}
	return d
}

// DuplicateReservationError means the holder already has an active reservation for the show.
type DuplicateReservationError struct {
	ShowID uuid.UUID
	Token  string
}

func (e *DuplicateReservationError) Error() string {
	return "an active reservation already exists for this show"
}
func (e *DuplicateReservationError) StatusCode() int { return http.StatusConflict }
func (e *DuplicateReservationError) Code() string    { return "duplicate_reservation" }
func (e *DuplicateReservationError) Details() map[string]interface{} {
	d := map[string]interface{}{"show_id": e.ShowID.String()}
	if e.Token != "" {
		d["token"] = e.Token
	}
	return d
}

// ReservationExpiredError means the reservation cannot be used any more.
// Known tokens map to 410; unknown tokens to 404.
type ReservationExpiredError struct {
	Token   string
	Unknown bool
}

func (e *ReservationExpiredError) Error() string {
	if e.Unknown {
		return "reservation not found"
	}
	return "reservation has expired or is no longer active"
}
func (e *ReservationExpiredError) StatusCode() int {
	if e.Unknown {
		return http.StatusNotFound
	}
	return http.StatusGone
}
func (e *ReservationExpiredError) Code() string {
	if e.Unknown {
		return "reservation_not_found"
	}
	return "reservation_expired"
}
func (e *ReservationExpiredError) Details() map[string]interface{} {
	return map[string]interface{}{"token": e.Token}
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string   { return e.Resource + " not found" }
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }
func (e *NotFoundError) Code() string    { return "not_found" }
func (e *NotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource, "id": e.ID}
}

// ForbiddenError means the resource belongs to someone else.
type ForbiddenError struct {
	Resource string
}

func (e *ForbiddenError) Error() string {
	return e.Resource + " does not belong to the requesting session"
}
func (e *ForbiddenError) StatusCode() int                 { return http.StatusForbidden }
func (e *ForbiddenError) Code() string                    { return "forbidden" }
func (e *ForbiddenError) Details() map[string]interface{} { return nil }

// IdempotencyConflictError means a key was reused for a different target.
type IdempotencyConflictError struct {
	Key     string
	OrderID uuid.UUID
}

func (e *IdempotencyConflictError) Error() string {
	return "idempotency key was already used for a different request"
}
func (e *IdempotencyConflictError) StatusCode() int { return http.StatusConflict }
func (e *IdempotencyConflictError) Code() string    { return "idempotency_conflict" }
func (e *IdempotencyConflictError) Details() map[string]interface{} {
	return map[string]interface{}{"idempotency_key": e.Key}
}

// PaymentError reports a declined, mismatched or unverifiable payment.
// Terminal errors have moved the order to failed; others leave it pending.
type PaymentError struct {
	OrderID  uuid.UUID
	Reason   string
	Terminal bool
	// BadReference marks a reference that does not belong to the order (400).
	BadReference bool
}

func (e *PaymentError) Error() string { return "payment not accepted: " + e.Reason }
func (e *PaymentError) StatusCode() int {
	if e.BadReference {
		return http.StatusBadRequest
	}
	return http.StatusPaymentRequired
}
func (e *PaymentError) Code() string {
	if e.Terminal {
		return "payment_failed"
	}
	return "payment_incomplete"
}
func (e *PaymentError) Details() map[string]interface{} {
	return map[string]interface{}{
		"order_id":  e.OrderID.String(),
		"retryable": !e.Terminal,
	}
}

// OrderStateError means the order is not in a state that allows the operation.
type OrderStateError struct {
	OrderID uuid.UUID
	Status  string
}

func (e *OrderStateError) Error() string   { return "order is " + e.Status }
func (e *OrderStateError) StatusCode() int { return http.StatusConflict }
func (e *OrderStateError) Code() string    { return "order_state_conflict" }
func (e *OrderStateError) Details() map[string]interface{} {
	return map[string]interface{}{"order_id": e.OrderID.String(), "status": e.Status}
}

// UpstreamError reports that the charge authority could not be reached.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string                   { return e.Service + " unavailable: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error                   { return e.Err }
func (e *UpstreamError) StatusCode() int                 { return http.StatusServiceUnavailable }
func (e *UpstreamError) Code() string                    { return "upstream_unavailable" }
func (e *UpstreamError) Details() map[string]interface{} { return nil }

// StorageError wraps an unexpected persistence failure. Safe to retry.
type StorageError struct {
	Op  string
	Err error
}

// Storage wraps err unless it already belongs to the taxonomy.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var known HTTPError
	if errors.As(err, &known) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string                   { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error                   { return e.Err }
func (e *StorageError) StatusCode() int                 { return http.StatusInternalServerError }
func (e *StorageError) Code() string                    { return "storage_error" }
func (e *StorageError) Details() map[string]interface{} { return nil }

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var known HTTPError
	if errors.As(err, &known) {
		return known.StatusCode()
	}
	return http.StatusInternalServerError
}
