package discount

import "time"

const (
	TypePercent = "PERCENT"
	TypeFixed   = "FIXED"
)

// Discount is a code scoped to one event. UsedCount increments exactly
// once per completed order that redeemed it, never at checkout start.
type Discount struct {
	ID        string
	EventID   string
	Code      string
	Type      string
	Value     int64
	StartsAt  time.Time
	EndsAt    time.Time
	MaxUses   int64
	UsedCount int64
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Redeemable reports whether the code can be applied at the given time.
func (d Discount) Redeemable(at time.Time) bool {
	if !d.Active {
		return false
	}
	if at.Before(d.StartsAt) || at.After(d.EndsAt) {
		return false
	}

	return d.UsedCount < d.MaxUses
}

// AmountFor computes the discount in minor units against a subtotal. The
// result never exceeds the subtotal.
func (d Discount) AmountFor(subtotal int64) int64 {
	var amount int64

	switch d.Type {
	case TypePercent:
		amount = subtotal * d.Value / 100
	case TypeFixed:
		amount = d.Value
	}

	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}

	return amount
}
