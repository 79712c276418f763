package inventory

import "time"

// Reservation is an ephemeral hold on tier capacity while a pending order
// goes through the payment round trip. It is keyed by the order id so the
// whole hold can be released or converted in one step. Reservations past
// ExpiresAt no longer count against capacity even before the sweep deletes
// them.
type Reservation struct {
	ID        string
	TierID    string
	OrderID   string
	Quantity  int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TierStock is the customer-side projection of a tier: just what checkout
// needs to price and admit a line item.
type TierStock struct {
	ID          string
	EventID     string
	Name        string
	UnitPrice   int64
	Capacity    *int64
	MaxPerOrder *int64
	Sold        int64
	Archived    bool
}
