// Package access identifies who is acting on a reservation or order.
package access

import (
	"strings"

	"github.com/google/uuid"
)

// Holder is the customer a reservation or order belongs to: an authenticated
// user, or a guest identified by a session id.
type Holder struct {
	UserID    *uuid.UUID
	SessionID string
}

// UserHolder returns a holder for an authenticated user.
func UserHolder(id uuid.UUID) Holder {
	return Holder{UserID: &id}
}

// SessionHolder returns a holder for a guest session.
func SessionHolder(sessionID string) Holder {
	return Holder{SessionID: strings.TrimSpace(sessionID)}
}

// Key is the stable string stored with reservations and orders.
func (h Holder) Key() string {
	if h.UserID != nil {
		return "user:" + h.UserID.String()
	}
	if h.SessionID != "" {
		return "session:" + h.SessionID
	}
	return ""
}

// Valid reports whether the holder identifies anyone.
func (h Holder) Valid() bool {
	return h.Key() != ""
}

// Owns reports whether a stored holder key belongs to h.
func (h Holder) Owns(holderKey string) bool {
	return h.Valid() && h.Key() == holderKey
}
