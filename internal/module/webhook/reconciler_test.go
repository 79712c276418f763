package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/inventory"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/payvault"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/ticket"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/discount"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/event"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/payout"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type memEventLog struct {
	seen      map[string]int64
	nextID    int64
	processed map[int64]bool
	failed    map[int64]string
}

func newMemEventLog() *memEventLog {
	return &memEventLog{seen: map[string]int64{}, processed: map[int64]bool{}, failed: map[int64]string{}}
}

func (m *memEventLog) Save(ctx context.Context, e EventLog) (int64, bool, error) {
	if ID, ok := m.seen[e.ProviderEventID]; ok {
		if _, failed := m.failed[ID]; failed {
			delete(m.failed, ID)
			return ID, true, nil
		}
		return 0, false, nil
	}
	m.nextID++
	m.seen[e.ProviderEventID] = m.nextID
	return m.nextID, true, nil
}

func (m *memEventLog) MarkProcessed(ctx context.Context, ID int64, at time.Time) error {
	m.processed[ID] = true
	return nil
}

func (m *memEventLog) MarkFailed(ctx context.Context, ID int64, message string) error {
	m.failed[ID] = message
	return nil
}

type memOrderRepo struct {
	order.OrderRepository
	o order.Order

	// resolve, when set, is the snapshot returned by the reference
	// lookups, modeling a delivery that read the order before a racing
	// one committed. The FOR UPDATE read always returns current state.
	resolve *order.Order
}

func (m *memOrderRepo) resolved() order.Order {
	if m.resolve != nil {
		return *m.resolve
	}
	return m.o
}

func (m *memOrderRepo) BeginTx(ctx context.Context) (*sql.Tx, error) { return nil, nil }

func (m *memOrderRepo) CommitTx(ctx context.Context, tx *sql.Tx) error { return nil }

func (m *memOrderRepo) Rollback(ctx context.Context, tx *sql.Tx) error { return nil }

func notFound() error {
	return errors.New(http.StatusNotFound, status.NOT_FOUND, "order is not found")
}

func (m *memOrderRepo) FindByCheckoutSessionID(ctx context.Context, sessionID string, tx *sql.Tx) (order.Order, error) {
	o := m.resolved()
	if o.CheckoutSessionID != nil && *o.CheckoutSessionID == sessionID {
		return o, nil
	}
	return order.Order{}, notFound()
}

func (m *memOrderRepo) FindByPaymentIntentID(ctx context.Context, paymentIntentID string, tx *sql.Tx) (order.Order, error) {
	o := m.resolved()
	if o.PaymentIntentID != nil && *o.PaymentIntentID == paymentIntentID {
		return o, nil
	}
	return order.Order{}, notFound()
}

func (m *memOrderRepo) FindByChargeID(ctx context.Context, chargeID string, tx *sql.Tx) (order.Order, error) {
	o := m.resolved()
	if o.ChargeID != nil && *o.ChargeID == chargeID {
		return o, nil
	}
	return order.Order{}, notFound()
}

func (m *memOrderRepo) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (order.Order, error) {
	if m.o.ID == ID {
		return m.o, nil
	}
	return order.Order{}, notFound()
}

func (m *memOrderRepo) UpdateStatusIfCurrent(ctx context.Context, ID, current, next string, tx *sql.Tx) (bool, error) {
	if m.o.ID != ID || m.o.Status != current {
		return false, nil
	}
	m.o.Status = next
	return true, nil
}

func (m *memOrderRepo) SetProviderReference(ctx context.Context, ID, field, value string, tx *sql.Tx) error {
	var slot **string
	switch field {
	case order.RefCheckoutSession:
		slot = &m.o.CheckoutSessionID
	case order.RefPaymentIntent:
		slot = &m.o.PaymentIntentID
	case order.RefCharge:
		slot = &m.o.ChargeID
	}

	if *slot != nil && **slot != value {
		return errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("order '%s' already has a different %s", ID, field))
	}

	*slot = &value
	return nil
}

func (m *memOrderRepo) SetProviderFee(ctx context.Context, ID string, fee int64, basis string, tx *sql.Tx) error {
	m.o.ProviderFee = fee
	m.o.ProviderFeeBasis = &basis
	return nil
}

func (m *memOrderRepo) AddRefundedAmount(ctx context.Context, ID string, amount int64, refundedAt time.Time, tx *sql.Tx) (int64, error) {
	if m.o.RefundedAmount+amount > m.o.TotalAmount {
		return 0, errors.New(http.StatusConflict, status.CONFLICT, "refunded amount would exceed order total")
	}
	m.o.RefundedAmount += amount
	m.o.RefundedAt = &refundedAt
	return m.o.RefundedAmount, nil
}

type memItemRepo struct {
	order.ItemRepository
	items []order.Item
}

func (m *memItemRepo) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]order.Item, error) {
	return m.items, nil
}

type memEventRepo struct {
	event.EventRepository
	ev event.Event
}

func (m *memEventRepo) FindByID(ctx context.Context, ID string, tx *sql.Tx) (event.Event, error) {
	if m.ev.ID == ID {
		return m.ev, nil
	}
	return event.Event{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "event is not found")
}

type memDiscountRepo struct {
	discount.DiscountRepository
	d        discount.Discount
	consumed int
}

func (m *memDiscountRepo) FindByEventIDAndCode(ctx context.Context, eventID, code string, tx *sql.Tx) (discount.Discount, error) {
	return m.d, nil
}

func (m *memDiscountRepo) Consume(ctx context.Context, ID string, tx *sql.Tx) (bool, error) {
	m.consumed++
	return true, nil
}

type memLedgerRepo struct {
	payout.LedgerEntryRepository
	sales     map[string]payout.LedgerEntry
	refunds   []payout.LedgerEntry
	failSaves int
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{sales: map[string]payout.LedgerEntry{}}
}

func (m *memLedgerRepo) SaveSale(ctx context.Context, e payout.LedgerEntry, tx *sql.Tx) (bool, error) {
	if m.failSaves > 0 {
		m.failSaves--
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "ledger is unavailable")
	}
	if _, ok := m.sales[e.OrderID]; ok {
		return false, nil
	}
	m.sales[e.OrderID] = e
	return true, nil
}

func (m *memLedgerRepo) SaveRefund(ctx context.Context, e payout.LedgerEntry, tx *sql.Tx) error {
	m.refunds = append(m.refunds, e)
	return nil
}

func (m *memLedgerRepo) UpgradeSaleFeeBasis(ctx context.Context, orderID string, tx *sql.Tx) (bool, error) {
	e, ok := m.sales[orderID]
	if !ok || e.FeeBasis != payout.FeeBasisEstimated || e.PayoutID != nil {
		return false, nil
	}
	e.FeeBasis = payout.FeeBasisActual
	m.sales[orderID] = e
	return true, nil
}

type memTicketRepo struct {
	ticket.TicketRepository
	refundedOrders []string
}

func (m *memTicketRepo) MarkAllRefundedByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error {
	m.refundedOrders = append(m.refundedOrders, orderID)
	return nil
}

type fakeIssuer struct {
	calls int
}

func (f *fakeIssuer) IssueForOrder(ctx context.Context, o order.Order, tx *sql.Tx) ([]ticket.Ticket, error) {
	if o.Status != order.StatusPaid {
		return nil, errors.New(http.StatusConflict, status.CONFLICT, "order is not paid")
	}
	f.calls++
	return []ticket.Ticket{{ID: "TKT-1"}}, nil
}

type fakeCapacityLedger struct {
	inventory.CapacityLedger
	converted []string
	released  []string
}

func (f *fakeCapacityLedger) Convert(ctx context.Context, orderID string, units []inventory.SoldUnit, tx *sql.Tx) error {
	f.converted = append(f.converted, orderID)
	return nil
}

func (f *fakeCapacityLedger) Release(ctx context.Context, orderID string, tx *sql.Tx) error {
	f.released = append(f.released, orderID)
	return nil
}

type fakePayvault struct {
	payvault.PayvaultRepository
	charge payvault.Charge
	err    error
}

func (f *fakePayvault) GetCharge(ctx context.Context, chargeID string) (payvault.Charge, error) {
	if f.err != nil {
		return payvault.Charge{}, f.err
	}
	return f.charge, nil
}

type fakePublisher struct {
	topics []string
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, headers map[string]string, message []byte) {
	f.topics = append(f.topics, topic)
}

func (f *fakePublisher) Close() {}

type reconcilerHarness struct {
	reconciler Reconciler
	eventLog   *memEventLog
	orders     *memOrderRepo
	ledger     *memLedgerRepo
	tickets    *memTicketRepo
	issuer     *fakeIssuer
	capacity   *fakeCapacityLedger
	discounts  *memDiscountRepo
	publisher  *fakePublisher
}

func newHarness(o order.Order, items []order.Item) *reconcilerHarness {
	logger := logrus.New()

	h := &reconcilerHarness{
		eventLog:  newMemEventLog(),
		orders:    &memOrderRepo{o: o},
		ledger:    newMemLedgerRepo(),
		tickets:   &memTicketRepo{},
		issuer:    &fakeIssuer{},
		capacity:  &fakeCapacityLedger{},
		discounts: &memDiscountRepo{d: discount.Discount{ID: "DSC-1", Code: "EARLYBIRD"}},
		publisher: &fakePublisher{},
	}

	h.reconciler = NewReconciler(ReconcilerProperty{
		Logger:                logger,
		Timeout:               time.Second,
		EventLogRepository:    h.eventLog,
		OrderRepository:       h.orders,
		ItemRepository:        &memItemRepo{items: items},
		EventRepository:       &memEventRepo{ev: event.Event{ID: o.EventID, OrganizerID: 42}},
		DiscountRepository:    h.discounts,
		LedgerEntryRepository: h.ledger,
		TicketRepository:      h.tickets,
		Issuer:                h.issuer,
		CapacityLedger:        h.capacity,
		PayvaultRepository:    &fakePayvault{charge: payvault.Charge{ID: "ch_1", Fee: 365, FeeAvailable: true}},
		Publisher:             h.publisher,
	})

	return h
}

func strptr(s string) *string { return &s }

func testOrder() order.Order {
	return order.Order{
		ID:                "ORD-1",
		EventID:           "EVT-1",
		Status:            order.StatusPending,
		Subtotal:          10000,
		PlatformFee:       500,
		Tax:               1100,
		TotalAmount:       11600,
		CheckoutSessionID: strptr("cs_1"),
		PaymentIntentID:   strptr("pi_1"),
	}
}

func testItems() []order.Item {
	return []order.Item{{ID: 1, OrderID: "ORD-1", TierID: "TIER-1", Quantity: 2, UnitPrice: 5000}}
}

func TestProcessCheckoutCompleted(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindCheckoutCompleted,
		Data: EventData{CheckoutSessionID: "cs_1"},
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, order.StatusPaid, h.orders.o.Status)
	assert.Equal(t, 1, h.issuer.calls)
	assert.Equal(t, []string{"ORD-1"}, h.capacity.converted)
	assert.Contains(t, h.publisher.topics, order.TopicOrderPaid)
	assert.True(t, h.eventLog.processed[1])
}

func TestProcessCheckoutCompletedRedelivered(t *testing.T) {
	// The same provider event id delivered twice results in exactly one
	// paid transition and one ticket set.
	h := newHarness(testOrder(), testItems())

	payload := EventPayload{ID: "evt_1", Type: KindCheckoutCompleted, Data: EventData{CheckoutSessionID: "cs_1"}}

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), payload, []byte(`{}`)))
	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), payload, []byte(`{}`)))

	assert.Equal(t, 1, h.issuer.calls)
	assert.Len(t, h.capacity.converted, 1)
}

func TestProcessCheckoutCompletedFreshEventIDStillOnePaidTransition(t *testing.T) {
	// A redelivery under a new provider event id is absorbed by the order
	// state check instead of the event log.
	h := newHarness(testOrder(), testItems())

	first := EventPayload{ID: "evt_1", Type: KindCheckoutCompleted, Data: EventData{CheckoutSessionID: "cs_1"}}
	second := EventPayload{ID: "evt_2", Type: KindCheckoutCompleted, Data: EventData{CheckoutSessionID: "cs_1"}}

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), first, []byte(`{}`)))
	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), second, []byte(`{}`)))

	assert.Equal(t, 1, h.issuer.calls)
}

func TestProcessCheckoutCompletedConsumesDiscount(t *testing.T) {
	o := testOrder()
	o.DiscountCode = strptr("EARLYBIRD")
	o.DiscountAmount = 1000

	h := newHarness(o, testItems())

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindCheckoutCompleted,
		Data: EventData{CheckoutSessionID: "cs_1"},
	}, []byte(`{}`)))

	assert.Equal(t, 1, h.discounts.consumed)
}

func TestProcessChargeSucceeded(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1", Fee: 365, FeeAvailable: true},
	}, []byte(`{}`))
	require.NoError(t, err)

	require.NotNil(t, h.orders.o.ChargeID)
	assert.Equal(t, "ch_1", *h.orders.o.ChargeID)
	assert.Equal(t, int64(365), h.orders.o.ProviderFee)
	require.NotNil(t, h.orders.o.ProviderFeeBasis)
	assert.Equal(t, payout.FeeBasisActual, *h.orders.o.ProviderFeeBasis)

	entry, ok := h.ledger.sales["ORD-1"]
	require.True(t, ok)
	assert.Equal(t, int64(9500), entry.Amount)
	assert.Equal(t, int64(42), entry.OrganizerID)
}

func TestProcessChargeSucceededBeforeCheckoutCompleted(t *testing.T) {
	// Out of order delivery: the charge event lands while the order is
	// still pending, then the checkout event lands. Exactly one sale
	// ledger entry must exist at the end.
	h := newHarness(testOrder(), testItems())

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1", Fee: 365, FeeAvailable: true},
	}, []byte(`{}`)))

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_2",
		Type: KindCheckoutCompleted,
		Data: EventData{CheckoutSessionID: "cs_1"},
	}, []byte(`{}`)))

	assert.Equal(t, order.StatusPaid, h.orders.o.Status)
	assert.Equal(t, 1, h.issuer.calls)
	assert.Len(t, h.ledger.sales, 1)
}

func TestProcessChargeSucceededRedeliveredKeepsOneSaleEntry(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	first := EventPayload{ID: "evt_1", Type: KindChargeSucceeded, Data: EventData{ChargeID: "ch_1", PaymentIntentID: "pi_1", Fee: 365, FeeAvailable: true}}
	second := EventPayload{ID: "evt_2", Type: KindChargeSucceeded, Data: EventData{ChargeID: "ch_1", PaymentIntentID: "pi_1", Fee: 365, FeeAvailable: true}}

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), first, []byte(`{}`)))
	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), second, []byte(`{}`)))

	assert.Len(t, h.ledger.sales, 1)
}

func TestProcessChargeSucceededEstimatesFee(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1"},
	}, []byte(`{}`))
	require.NoError(t, err)

	require.NotNil(t, h.orders.o.ProviderFeeBasis)
	assert.Equal(t, payout.FeeBasisActual, *h.orders.o.ProviderFeeBasis)
	assert.Equal(t, int64(365), h.orders.o.ProviderFee)
}

func TestProcessChargeSucceededFallsBackToEstimate(t *testing.T) {
	h := newHarness(testOrder(), testItems())
	h.reconciler.(*reconciler).payvaultRepository = &fakePayvault{err: errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "provider unavailable")}

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1"},
	}, []byte(`{}`))
	require.NoError(t, err)

	require.NotNil(t, h.orders.o.ProviderFeeBasis)
	assert.Equal(t, payout.FeeBasisEstimated, *h.orders.o.ProviderFeeBasis)
	total := h.orders.o.TotalAmount
	assert.Equal(t, int64(float64(total)*estimatedFeePercentage/100)+estimatedFeeFlat, h.orders.o.ProviderFee)

	entry := h.ledger.sales["ORD-1"]
	assert.Equal(t, payout.FeeBasisEstimated, entry.FeeBasis)
}

func TestProcessChargeSucceededUpgradesEstimatedEntry(t *testing.T) {
	h := newHarness(testOrder(), testItems())
	h.reconciler.(*reconciler).payvaultRepository = &fakePayvault{err: errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "provider unavailable")}

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1"},
	}, []byte(`{}`)))

	require.Equal(t, payout.FeeBasisEstimated, h.ledger.sales["ORD-1"].FeeBasis)

	// Redelivery under a fresh event id, now with the settled fee.
	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_2",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1", Fee: 365, FeeAvailable: true},
	}, []byte(`{}`)))

	assert.Len(t, h.ledger.sales, 1)
	assert.Equal(t, payout.FeeBasisActual, h.ledger.sales["ORD-1"].FeeBasis)
	assert.Equal(t, int64(365), h.orders.o.ProviderFee)
	require.NotNil(t, h.orders.o.ProviderFeeBasis)
	assert.Equal(t, payout.FeeBasisActual, *h.orders.o.ProviderFeeBasis)
}

func TestProcessPaymentFailed(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindPaymentFailed,
		Data: EventData{CheckoutSessionID: "cs_1", FailureReason: "card declined"},
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, order.StatusFailed, h.orders.o.Status)
	assert.Equal(t, []string{"ORD-1"}, h.capacity.released)
}

func TestProcessPaymentFailedAfterPaidIsNoop(t *testing.T) {
	o := testOrder()
	o.Status = order.StatusPaid

	h := newHarness(o, testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindPaymentFailed,
		Data: EventData{CheckoutSessionID: "cs_1"},
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, order.StatusPaid, h.orders.o.Status)
	assert.Empty(t, h.capacity.released)
	assert.True(t, h.eventLog.processed[1])
}

func TestProcessChargeRefundedFull(t *testing.T) {
	o := testOrder()
	o.Status = order.StatusPaid
	o.ChargeID = strptr("ch_1")
	basis := payout.FeeBasisActual
	o.ProviderFeeBasis = &basis

	h := newHarness(o, testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeRefunded,
		Data: EventData{ChargeID: "ch_1", RefundedAmount: 11600},
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, order.StatusRefunded, h.orders.o.Status)
	assert.Equal(t, int64(11600), h.orders.o.RefundedAmount)
	assert.Equal(t, []string{"ORD-1"}, h.tickets.refundedOrders)

	require.Len(t, h.ledger.refunds, 1)
	assert.Equal(t, int64(-9500), h.ledger.refunds[0].Amount)
}

func TestProcessChargeRefundedPartialTwice(t *testing.T) {
	// Two partial refunds whose ledger entries sum to no more than the
	// sale entry's magnitude.
	o := testOrder()
	o.Status = order.StatusPaid
	o.ChargeID = strptr("ch_1")

	h := newHarness(o, testItems())

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeRefunded,
		Data: EventData{ChargeID: "ch_1", RefundedAmount: 5800},
	}, []byte(`{}`)))

	assert.Equal(t, order.StatusPartiallyRefunded, h.orders.o.Status)

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_2",
		Type: KindChargeRefunded,
		Data: EventData{ChargeID: "ch_1", RefundedAmount: 11600},
	}, []byte(`{}`)))

	assert.Equal(t, order.StatusRefunded, h.orders.o.Status)

	var refunded int64
	for _, e := range h.ledger.refunds {
		refunded += e.Amount
	}
	assert.GreaterOrEqual(t, refunded, int64(-9500))
	assert.Equal(t, int64(-9500), refunded)
}

func TestProcessChargeRefundedRedelivered(t *testing.T) {
	o := testOrder()
	o.Status = order.StatusPartiallyRefunded
	o.ChargeID = strptr("ch_1")
	o.RefundedAmount = 5800

	h := newHarness(o, testItems())

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_9",
		Type: KindChargeRefunded,
		Data: EventData{ChargeID: "ch_1", RefundedAmount: 5800},
	}, []byte(`{}`)))

	assert.Empty(t, h.ledger.refunds)
	assert.Equal(t, int64(5800), h.orders.o.RefundedAmount)
}

func TestProcessChargeSucceededRetriedAfterFailure(t *testing.T) {
	// The first delivery dies inside the transaction and the event log
	// row is marked FAILED. The provider's redelivery of the same event
	// id must be re-claimed and processed, not swallowed as a duplicate.
	h := newHarness(testOrder(), testItems())
	h.ledger.failSaves = 1

	payload := EventPayload{
		ID:   "evt_1",
		Type: KindChargeSucceeded,
		Data: EventData{PaymentIntentID: "pi_1", ChargeID: "ch_1", Fee: 365, FeeAvailable: true},
	}

	require.Error(t, h.reconciler.ProcessEvent(context.Background(), payload, []byte(`{}`)))
	assert.Empty(t, h.ledger.sales)

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), payload, []byte(`{}`)))

	entry, ok := h.ledger.sales["ORD-1"]
	require.True(t, ok)
	assert.Equal(t, int64(9500), entry.Amount)
	assert.True(t, h.eventLog.processed[1])
}

func TestProcessChargeRefundedConcurrentDeliveriesStaleRead(t *testing.T) {
	// Two refund deliveries race: the second resolves the order from a
	// snapshot taken before the first committed. The delta must be
	// recomputed against the locked row, so the cumulative totals never
	// double-apply.
	o := testOrder()
	o.Status = order.StatusPaid
	o.ChargeID = strptr("ch_1")

	h := newHarness(o, testItems())

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindChargeRefunded,
		Data: EventData{ChargeID: "ch_1", RefundedAmount: 3000},
	}, []byte(`{}`)))

	assert.Equal(t, int64(3000), h.orders.o.RefundedAmount)

	stale := o
	h.orders.resolve = &stale

	require.NoError(t, h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_2",
		Type: KindChargeRefunded,
		Data: EventData{ChargeID: "ch_1", RefundedAmount: 5000},
	}, []byte(`{}`)))

	assert.Equal(t, int64(5000), h.orders.o.RefundedAmount)
	assert.Equal(t, order.StatusPartiallyRefunded, h.orders.o.Status)

	var refunded int64
	for _, e := range h.ledger.refunds {
		refunded += e.Amount
	}
	assert.Equal(t, int64(-(9500*3000/11600)-(9500*2000/11600)), refunded)
}

func TestProcessUnknownKindIgnored(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: "customer.created",
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.Empty(t, h.eventLog.seen)
}

func TestProcessEventWithoutMatchingOrderDropped(t *testing.T) {
	h := newHarness(testOrder(), testItems())

	err := h.reconciler.ProcessEvent(context.Background(), EventPayload{
		ID:   "evt_1",
		Type: KindCheckoutCompleted,
		Data: EventData{CheckoutSessionID: "cs_unknown"},
	}, []byte(`{}`))
	require.NoError(t, err)

	assert.True(t, h.eventLog.processed[1])
	assert.Equal(t, order.StatusPending, h.orders.o.Status)
	assert.Equal(t, 0, h.issuer.calls)
}
