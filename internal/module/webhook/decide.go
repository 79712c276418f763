package webhook

import (
	"fmt"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
)

// decision is the side-effect plan produced by a decide function. Decide
// functions are pure: they look only at the resolved order and the event
// data, never at the store, so every idempotency rule that depends on
// order state alone is unit-testable without I/O. Checks that need the
// store (sale-entry existence, capacity rows) are closed atomically in
// the apply step instead.
type decision struct {
	Noop       bool
	NoopReason string

	NextStatus       string
	References       map[string]string
	RecordFee        bool
	CreateSaleEntry  bool
	RefundDelta      int64
	RefundCumulative int64
	IssueTickets     bool
	ConvertCapacity  bool
	ReleaseCapacity  bool
	ConsumeDiscount  bool
}

type decideFunc func(o order.Order, data EventData) (decision, error)

func noop(reason string) decision {
	return decision{Noop: true, NoopReason: reason}
}

func decideCheckoutCompleted(o order.Order, data EventData) (decision, error) {
	if o.Status == order.StatusPaid {
		return noop("order is already paid"), nil
	}

	if !order.CanTransition(o.Status, order.StatusPaid) {
		return noop(fmt.Sprintf("order is %s, cannot become paid", o.Status)), nil
	}

	d := decision{
		NextStatus:      order.StatusPaid,
		References:      map[string]string{},
		IssueTickets:    true,
		ConvertCapacity: true,
		ConsumeDiscount: o.DiscountCode != nil,
	}

	if data.CheckoutSessionID != "" {
		d.References[order.RefCheckoutSession] = data.CheckoutSessionID
	}
	if data.PaymentIntentID != "" {
		d.References[order.RefPaymentIntent] = data.PaymentIntentID
	}

	return d, nil
}

// decideChargeSucceeded never requires the order to be paid already: the
// charge event may overtake the checkout event, and the ledger sale entry
// must still end up written exactly once. The sale-entry uniqueness guard
// in the apply step carries the idempotency.
func decideChargeSucceeded(o order.Order, data EventData) (decision, error) {
	if data.ChargeID == "" {
		return decision{}, fmt.Errorf("charge succeeded event carries no charge id")
	}

	d := decision{
		References:      map[string]string{order.RefCharge: data.ChargeID},
		RecordFee:       true,
		CreateSaleEntry: true,
	}

	if data.PaymentIntentID != "" {
		d.References[order.RefPaymentIntent] = data.PaymentIntentID
	}

	return d, nil
}

func decidePaymentFailed(o order.Order, data EventData) (decision, error) {
	if o.Status == order.StatusFailed {
		return noop("order has already failed"), nil
	}

	if !order.CanTransition(o.Status, order.StatusFailed) {
		return noop(fmt.Sprintf("order is %s, failure event ignored", o.Status)), nil
	}

	return decision{
		NextStatus:      order.StatusFailed,
		ReleaseCapacity: true,
	}, nil
}

// decideChargeRefunded works off the provider's cumulative refunded
// amount: the delta against what the order already absorbed is the only
// thing applied, so a redelivered event decides to a no-op. The delta here
// is provisional; the apply step re-derives it against the row-locked
// order, since a racing delivery may have moved RefundedAmount after this
// read. The resulting order status falls out of the locked re-derivation
// too, so refund decisions never carry a NextStatus.
func decideChargeRefunded(o order.Order, data EventData) (decision, error) {
	delta := data.RefundedAmount - o.RefundedAmount
	if delta <= 0 {
		return noop("refunded amount is already accounted for"), nil
	}

	if o.Status != order.StatusPaid && o.Status != order.StatusPartiallyRefunded {
		return noop(fmt.Sprintf("order is %s, refund event ignored", o.Status)), nil
	}

	d := decision{
		RefundDelta:      delta,
		RefundCumulative: data.RefundedAmount,
		References:       map[string]string{},
	}

	if data.ChargeID != "" {
		d.References[order.RefCharge] = data.ChargeID
	}

	return d, nil
}
