package webhook

import "time"

const (
	KindCheckoutCompleted = "checkout.session.completed"
	KindChargeSucceeded   = "charge.succeeded"
	KindPaymentFailed     = "payment.failed"
	KindChargeRefunded    = "charge.refunded"
)

const (
	LogStatusPending   = "PENDING"
	LogStatusProcessed = "PROCESSED"
	LogStatusFailed    = "FAILED"
)

// EventLog is a durable record of one provider delivery, written before
// any side effect so a crash mid-processing leaves a replayable trail
// instead of a silently lost event. ProviderEventID is unique; redelivery
// of the same event is absorbed at insert time.
type EventLog struct {
	ID              int64
	ProviderEventID string
	Kind            string
	Payload         []byte
	Status          string
	Error           *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// EventPayload is the payvault webhook envelope.
type EventPayload struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the provider correlation ids and amounts. Which
// fields are populated depends on the event kind; RefundedAmount is the
// cumulative refunded total on the charge, not a delta.
type EventData struct {
	CheckoutSessionID string `json:"checkoutSessionId"`
	PaymentIntentID   string `json:"paymentIntentId"`
	ChargeID          string `json:"chargeId"`
	Amount            int64  `json:"amount"`
	Fee               int64  `json:"fee"`
	FeeAvailable      bool   `json:"feeAvailable"`
	RefundedAmount    int64  `json:"refundedAmount"`
	FailureReason     string `json:"failureReason"`
}
