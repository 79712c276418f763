package payout

import "time"

type FinalizePayoutRequest struct {
	PeriodStart time.Time `json:"periodStart" validate:"required"`
	PeriodEnd   time.Time `json:"periodEnd" validate:"required"`
	Method      string    `json:"method" validate:"required,oneof=BANK_TRANSFER PAYPAL"`
}
