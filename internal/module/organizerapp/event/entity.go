package event

import "time"

const (
	EventStatusDraft     = "DRAFT"
	EventStatusPublished = "PUBLISHED"
	EventStatusArchived  = "ARCHIVED"
)

type Event struct {
	ID          string
	OrganizerID int64
	Name        string
	Venue       string
	StartsAt    time.Time
	Status      string
	Tiers       []Tier
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tier is a sellable ticket category. Capacity nil means unlimited.
// Sold counts permanently acquired units and is only mutated by the
// inventory module when a reservation converts.
type Tier struct {
	ID          string
	EventID     string
	Name        string
	UnitPrice   int64
	Capacity    *int64
	MaxPerOrder *int64
	SortOrder   int64
	Sold        int64
	Archived    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
