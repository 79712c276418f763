package discount

import "time"

type CreateDiscountRequest struct {
	EventID  string    `json:"-" validate:"required"`
	Code     string    `json:"code" validate:"required,alphanum,min=3,max=32"`
	Type     string    `json:"type" validate:"oneof=PERCENT FIXED"`
	Value    int64     `json:"value" validate:"gt=0"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	MaxUses  int64     `json:"max_uses" validate:"gt=0"`
}

type UpdateDiscountRequest struct {
	EventID  string    `json:"-" validate:"required"`
	Code     string    `json:"-" validate:"required"`
	Type     string    `json:"type" validate:"oneof=PERCENT FIXED"`
	Value    int64     `json:"value" validate:"gt=0"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	MaxUses  int64     `json:"max_uses" validate:"gt=0"`
	Active   bool      `json:"active"`
}
