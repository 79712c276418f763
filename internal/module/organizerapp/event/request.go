package event

import "time"

type CreateEventRequest struct {
	Name     string    `json:"name" validate:"required"`
	Venue    string    `json:"venue" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

type CreateTierRequest struct {
	EventID     string `json:"-" validate:"required"`
	Name        string `json:"name" validate:"required"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Capacity    *int64 `json:"capacity" validate:"omitempty,gt=0"`
	MaxPerOrder *int64 `json:"max_per_order" validate:"omitempty,gt=0"`
	SortOrder   int64  `json:"sort_order"`
}

type UpdateTierRequest struct {
	EventID     string `json:"-" validate:"required"`
	TierID      string `json:"-" validate:"required"`
	Name        string `json:"name" validate:"required"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"`
	Capacity    *int64 `json:"capacity" validate:"omitempty,gt=0"`
	MaxPerOrder *int64 `json:"max_per_order" validate:"omitempty,gt=0"`
	SortOrder   int64  `json:"sort_order"`
}
