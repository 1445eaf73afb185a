package inventory

import (
	"time"
)

// SeatMapResponse is the current state of every seat of a show
type SeatMapResponse struct {
	ShowID   string             `json:"show_id"`
	Title    string             `json:"title"`
	Venue    string             `json:"venue"`
	StartsAt time.Time          `json:"starts_at"`
	Status   ShowStatus         `json:"status"`
	Counts   map[SeatStatus]int `json:"counts"`
	Seats    []SeatView         `json:"seats"`
}

// SeatView is one seat on the seat map. ID is the show seat id used for reservations.
type SeatView struct {
	ID         string     `json:"id"`
	SeatID     string     `json:"seat_id"`
	Section    string     `json:"section"`
	Row        string     `json:"row"`
	Number     int        `json:"number"`
	SeatType   SeatType   `json:"seat_type"`
	Label      string     `json:"label"`
	Status     SeatStatus `json:"status"`
	PriceCents int64      `json:"price_cents"`
}

// HoldResponse reports an admin hold change
type HoldResponse struct {
	ShowID  string     `json:"show_id"`
	SeatIDs []string   `json:"seat_ids"`
	Status  SeatStatus `json:"status"`
}

// ToView converts a loaded show seat to its seat map entry
func (s *ShowSeat) ToView() SeatView {
	view := SeatView{
		ID:         s.ID.String(),
		SeatID:     s.SeatID.String(),
		Status:     s.Status,
		PriceCents: s.PriceCents,
		Label:      s.Label(),
	}
	if s.Seat != nil {
		view.Section = s.Seat.Section
		view.Row = s.Seat.Row
		view.Number = s.Seat.Number
		view.SeatType = s.Seat.SeatType
	}
	return view
}
