package discount

import "time"

type DiscountResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Code      string    `json:"code"`
	Type      string    `json:"type"`
	Value     int64     `json:"value"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	MaxUses   int64     `json:"max_uses"`
	UsedCount int64     `json:"used_count"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *DiscountResponse) PopulateFromEntity(d Discount) {
	r.ID = d.ID
	r.EventID = d.EventID
	r.Code = d.Code
	r.Type = d.Type
	r.Value = d.Value
	r.StartsAt = d.StartsAt
	r.EndsAt = d.EndsAt
	r.MaxUses = d.MaxUses
	r.UsedCount = d.UsedCount
	r.Active = d.Active
	r.CreatedAt = d.CreatedAt
	r.UpdatedAt = d.UpdatedAt
}
