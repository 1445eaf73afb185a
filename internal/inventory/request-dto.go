package inventory

// SeatHoldRequest takes seats out of sale or puts them back (admin)
type SeatHoldRequest struct {
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,max=500,unique,dive,uuid"`
}
