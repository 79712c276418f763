package order

import "time"

const (
	StatusPending           = "PENDING"
	StatusPaid              = "PAID"
	StatusFailed            = "FAILED"
	StatusPartiallyRefunded = "PARTIALLY_REFUNDED"
	StatusRefunded          = "REFUNDED"
)

const (
	FeeBasisEstimated = "ESTIMATED"
	FeeBasisActual    = "ACTUAL"
)

// transitions is the complete legal state machine. Anything not listed is
// an idempotent no-op, never an error.
var transitions = map[string][]string{
	StatusPending:           {StatusPaid, StatusFailed},
	StatusPaid:              {StatusPartiallyRefunded, StatusRefunded},
	StatusPartiallyRefunded: {StatusRefunded},
	StatusFailed:            {},
	StatusRefunded:          {},
}

// CanTransition reports whether from→to is in the legal table.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// StatusAfterRefund derives the order status implied by the cumulative
// refunded amount.
func StatusAfterRefund(totalAmount, refundedAmount int64) string {
	if refundedAmount >= totalAmount {
		return StatusRefunded
	}

	return StatusPartiallyRefunded
}

// Order is one buyer's purchase attempt. All amounts are integer minor
// currency units, computed once at placement and never recomputed from
// webhook data.
type Order struct {
	ID                string
	EventID           string
	CustomerID        int64
	CustomerName      string
	CustomerEmail     string
	Status            string
	DiscountCode      *string
	Subtotal          int64
	DiscountAmount    int64
	PlatformFee       int64
	Tax               int64
	TotalAmount       int64
	RefundedAmount    int64
	CheckoutSessionID *string
	PaymentIntentID   *string
	ChargeID          *string
	ProviderFee       int64
	ProviderFeeBasis  *string
	Items             []Item
	PlacedAt          time.Time
	RefundedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Item is one tier/quantity line of an order. Immutable once created.
// AllocatedTax and AllocatedFee are this line's exact share of the order
// level tax and platform fee; line shares always sum to the order totals.
type Item struct {
	ID           int64
	OrderID      string
	TierID       string
	TierName     string
	EventID      string
	UnitPrice    int64
	Quantity     int64
	AllocatedTax int64
	AllocatedFee int64
}
