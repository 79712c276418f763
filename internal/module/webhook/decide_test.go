package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
)

func pendingOrder() order.Order {
	return order.Order{
		ID:          "ORD-1",
		EventID:     "EVT-1",
		Status:      order.StatusPending,
		Subtotal:    10000,
		PlatformFee: 500,
		Tax:         1100,
		TotalAmount: 11600,
	}
}

func TestDecideCheckoutCompleted(t *testing.T) {
	o := pendingOrder()

	d, err := decideCheckoutCompleted(o, EventData{CheckoutSessionID: "cs_1", PaymentIntentID: "pi_1"})
	require.NoError(t, err)

	assert.False(t, d.Noop)
	assert.Equal(t, order.StatusPaid, d.NextStatus)
	assert.True(t, d.IssueTickets)
	assert.True(t, d.ConvertCapacity)
	assert.False(t, d.ConsumeDiscount)
	assert.Equal(t, "cs_1", d.References[order.RefCheckoutSession])
	assert.Equal(t, "pi_1", d.References[order.RefPaymentIntent])
}

func TestDecideCheckoutCompletedAlreadyPaid(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusPaid

	d, err := decideCheckoutCompleted(o, EventData{CheckoutSessionID: "cs_1"})
	require.NoError(t, err)

	assert.True(t, d.Noop)
}

func TestDecideCheckoutCompletedOnFailedOrder(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusFailed

	d, err := decideCheckoutCompleted(o, EventData{})
	require.NoError(t, err)

	assert.True(t, d.Noop)
}

func TestDecideCheckoutCompletedConsumesDiscount(t *testing.T) {
	o := pendingOrder()
	code := "EARLYBIRD"
	o.DiscountCode = &code

	d, err := decideCheckoutCompleted(o, EventData{})
	require.NoError(t, err)

	assert.True(t, d.ConsumeDiscount)
}

func TestDecideChargeSucceeded(t *testing.T) {
	d, err := decideChargeSucceeded(pendingOrder(), EventData{ChargeID: "ch_1", PaymentIntentID: "pi_1"})
	require.NoError(t, err)

	assert.False(t, d.Noop)
	assert.True(t, d.RecordFee)
	assert.True(t, d.CreateSaleEntry)
	assert.Equal(t, "ch_1", d.References[order.RefCharge])
}

func TestDecideChargeSucceededWithoutChargeID(t *testing.T) {
	_, err := decideChargeSucceeded(pendingOrder(), EventData{})
	assert.Error(t, err)
}

func TestDecideChargeSucceededOnPendingOrder(t *testing.T) {
	// The charge event may overtake the checkout event; it must still
	// decide to write the ledger entry.
	o := pendingOrder()

	d, err := decideChargeSucceeded(o, EventData{ChargeID: "ch_1"})
	require.NoError(t, err)

	assert.True(t, d.CreateSaleEntry)
}

func TestDecidePaymentFailed(t *testing.T) {
	d, err := decidePaymentFailed(pendingOrder(), EventData{})
	require.NoError(t, err)

	assert.Equal(t, order.StatusFailed, d.NextStatus)
	assert.True(t, d.ReleaseCapacity)
}

func TestDecidePaymentFailedAfterPaid(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusPaid

	d, err := decidePaymentFailed(o, EventData{})
	require.NoError(t, err)

	assert.True(t, d.Noop)
}

func TestDecidePaymentFailedRedelivered(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusFailed

	d, err := decidePaymentFailed(o, EventData{})
	require.NoError(t, err)

	assert.True(t, d.Noop)
}

func TestDecideChargeRefundedPartial(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusPaid

	d, err := decideChargeRefunded(o, EventData{ChargeID: "ch_1", RefundedAmount: 2900})
	require.NoError(t, err)

	assert.False(t, d.Noop)
	assert.Equal(t, int64(2900), d.RefundDelta)
	assert.Equal(t, int64(2900), d.RefundCumulative)
	assert.Empty(t, d.NextStatus)
}

func TestDecideChargeRefundedFull(t *testing.T) {
	o := pendingOrder()
	o.Status = order.StatusPartiallyRefunded
	o.RefundedAmount = 2900

	d, err := decideChargeRefunded(o, EventData{RefundedAmount: 11600})
	require.NoError(t, err)

	assert.Equal(t, int64(8700), d.RefundDelta)
	assert.Equal(t, int64(11600), d.RefundCumulative)
	assert.Empty(t, d.NextStatus)
}

func TestDecideChargeRefundedRedelivered(t *testing.T) {
	// Cumulative amounts make redelivery self-absorbing: no new delta.
	o := pendingOrder()
	o.Status = order.StatusPartiallyRefunded
	o.RefundedAmount = 2900

	d, err := decideChargeRefunded(o, EventData{RefundedAmount: 2900})
	require.NoError(t, err)

	assert.True(t, d.Noop)
}

func TestDecideChargeRefundedOnPendingOrder(t *testing.T) {
	d, err := decideChargeRefunded(pendingOrder(), EventData{RefundedAmount: 100})
	require.NoError(t, err)

	assert.True(t, d.Noop)
}
