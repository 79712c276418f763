package payout

import "time"

const (
	EntryTypeSale   = "SALE"
	EntryTypeRefund = "REFUND"
)

const (
	EntryStatusPending = "PENDING"
	EntryStatusPaid    = "PAID"
)

const (
	PayoutStatusFinalized = "FINALIZED"
	PayoutStatusPaid      = "PAID"
)

const (
	FeeBasisEstimated = "ESTIMATED"
	FeeBasisActual    = "ACTUAL"
)

// LedgerEntry is one signed movement of organizer-payable money. A SALE
// entry is positive and recorded at most once per order; REFUND entries
// are negative and may repeat, but their running sum never exceeds the
// order's sale entry in magnitude.
type LedgerEntry struct {
	ID          int64
	OrganizerID int64
	EventID     string
	OrderID     string
	Type        string
	Amount      int64
	FeeBasis    string
	Status      string
	PayoutID    *string
	CreatedAt   time.Time
}

// Payout is a settled batch of ledger entries covering one settlement
// period. Its amount is summed server side at finalization, never taken
// from the caller.
type Payout struct {
	ID          string
	OrganizerID int64
	Amount      int64
	EntryCount  int64
	Status      string
	Method      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
}
