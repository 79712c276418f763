package payout

import "time"

type BalanceResponse struct {
	PendingAmount  int64 `json:"pendingAmount"`
	EntryCount     int64 `json:"entryCount"`
	EstimatedCount int64 `json:"estimatedCount"`
	Finalizable    bool  `json:"finalizable"`
}

type PayoutResponse struct {
	ID          string     `json:"id"`
	Amount      int64      `json:"amount"`
	EntryCount  int64      `json:"entryCount"`
	Status      string     `json:"status"`
	Method      string     `json:"method"`
	PeriodStart time.Time  `json:"periodStart"`
	PeriodEnd   time.Time  `json:"periodEnd"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (r *PayoutResponse) PopulateFromEntity(p Payout) {
	r.ID = p.ID
	r.Amount = p.Amount
	r.EntryCount = p.EntryCount
	r.Status = p.Status
	r.Method = p.Method
	r.PeriodStart = p.PeriodStart
	r.PeriodEnd = p.PeriodEnd
	r.PaidAt = p.PaidAt
	r.CreatedAt = p.CreatedAt
}
