package wish

import "time"

type Wish struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Link          *string   `json:"link,omitempty"`
	PriceEstimate *float64  `json:"price_estimate,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	OwnerID       string    `json:"owner_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateInput struct {
	Title         string   `json:"title"`
	Link          *string  `json:"link"`
	PriceEstimate *float64 `json:"price_estimate"`
	Notes         *string  `json:"notes"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Title         *string  `json:"title"`
	Link          *string  `json:"link"`
	PriceEstimate *float64 `json:"price_estimate"`
	Notes         *string  `json:"notes"`
}
