package reservations

import (
	"time"

	"boxoffice/internal/inventory"
)

// ReservationResponse is returned when seats have been reserved
type ReservationResponse struct {
	Token     string               `json:"token"`
	ShowID    string               `json:"show_id"`
	ExpiresAt time.Time            `json:"expires_at"`
	Seats     []inventory.SeatView `json:"seats"`
}

// CartResponse lists one reservation per show of the cart
type CartResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
}

// ExtendResponse carries the new deadline
type ExtendResponse struct {
	Token               string    `json:"token"`
	ExpiresAt           time.Time `json:"expires_at"`
	ExtensionsUsed      int       `json:"extensions_used"`
	ExtensionsRemaining int       `json:"extensions_remaining"`
}

// ReleaseResponse reports a release. Releasing twice is not an error.
type ReleaseResponse struct {
	Token           string `json:"token"`
	SeatsReleased   int64  `json:"seats_released"`
	AlreadyReleased bool   `json:"already_released"`
}

// StatusResponse is the holder's view of a reservation
type StatusResponse struct {
	Token               string               `json:"token"`
	ShowID              string               `json:"show_id"`
	State               string               `json:"state"`
	ExpiresAt           time.Time            `json:"expires_at"`
	RemainingSeconds    int64                `json:"remaining_seconds"`
	Expired             bool                 `json:"expired"`
	ExtensionsUsed      int                  `json:"extensions_used"`
	ExtensionsRemaining int                  `json:"extensions_remaining"`
	Seats               []inventory.SeatView `json:"seats"`
}

// Checkout is a validated, live reservation together with its reserved seats
type Checkout struct {
	Reservation *SeatReservation
	Seats       []inventory.ShowSeat
}

func seatViews(seats []inventory.ShowSeat) []inventory.SeatView {
	views := make([]inventory.SeatView, 0, len(seats))
	for i := range seats {
		views = append(views, seats[i].ToView())
	}
	return views
}
