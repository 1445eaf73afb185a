package reservations

// ContactRequest is the optional contact block of a reservation
type ContactRequest struct {
	ContactName  string `json:"contact_name" binding:"omitempty,max=255"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email,max=255"`
	ContactPhone string `json:"contact_phone" binding:"omitempty,max=50"`
}

// ReserveRequest reserves seats of one show
type ReserveRequest struct {
	ShowID  string   `json:"show_id" binding:"required,uuid"`
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,unique,dive,uuid"`
	ContactRequest
}

// CartItem is the seats of one show inside a cart
type CartItem struct {
	ShowID  string   `json:"show_id" binding:"required,uuid"`
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,unique,dive,uuid"`
}

// CartRequest reserves seats across several shows
type CartRequest struct {
	Items []CartItem `json:"items" binding:"required,min=1,max=10,dive"`
	ContactRequest
}
