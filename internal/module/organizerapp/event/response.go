package event

import "time"

type EventResponse struct {
	ID          string    `json:"id"`
	OrganizerID int64     `json:"organizer_id"`
	Name        string    `json:"name"`
	Venue       string    `json:"venue"`
	StartsAt    time.Time `json:"starts_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *EventResponse) PopulateFromEntity(e Event) {
	r.ID = e.ID
	r.OrganizerID = e.OrganizerID
	r.Name = e.Name
	r.Venue = e.Venue
	r.StartsAt = e.StartsAt
	r.Status = e.Status
	r.CreatedAt = e.CreatedAt
	r.UpdatedAt = e.UpdatedAt
}

type TierResponse struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	Name        string    `json:"name"`
	UnitPrice   int64     `json:"unit_price"`
	Capacity    *int64    `json:"capacity"`
	MaxPerOrder *int64    `json:"max_per_order"`
	SortOrder   int64     `json:"sort_order"`
	Sold        int64     `json:"sold"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *TierResponse) PopulateFromEntity(t Tier) {
	r.ID = t.ID
	r.EventID = t.EventID
	r.Name = t.Name
	r.UnitPrice = t.UnitPrice
	r.Capacity = t.Capacity
	r.MaxPerOrder = t.MaxPerOrder
	r.SortOrder = t.SortOrder
	r.Sold = t.Sold
	r.Archived = t.Archived
	r.CreatedAt = t.CreatedAt
	r.UpdatedAt = t.UpdatedAt
}
