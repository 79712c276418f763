package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/inventory"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/payvault"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/ticket"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/discount"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/event"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/payout"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/pubsub"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

// Fallback fee formula used when the provider has not settled the actual
// fee yet. Entries written from it carry the ESTIMATED basis and block
// payout finalization until corrected.
const (
	estimatedFeePercentage = 2.9
	estimatedFeeFlat       = 30
)

type Reconciler interface {
	ProcessEvent(ctx context.Context, payload EventPayload, raw []byte) error
}

type reconciler struct {
	logger                *logrus.Logger
	timeout               time.Duration
	eventLogRepository    EventLogRepository
	orderRepository       order.OrderRepository
	itemRepository        order.ItemRepository
	eventRepository       event.EventRepository
	discountRepository    discount.DiscountRepository
	ledgerEntryRepository payout.LedgerEntryRepository
	ticketRepository      ticket.TicketRepository
	issuer                ticket.Issuer
	capacityLedger        inventory.CapacityLedger
	payvaultRepository    payvault.PayvaultRepository
	publisher             pubsub.Publisher

	dispatch map[string]decideFunc
}

type ReconcilerProperty struct {
	Logger                *logrus.Logger
	Timeout               time.Duration
	EventLogRepository    EventLogRepository
	OrderRepository       order.OrderRepository
	ItemRepository        order.ItemRepository
	EventRepository       event.EventRepository
	DiscountRepository    discount.DiscountRepository
	LedgerEntryRepository payout.LedgerEntryRepository
	TicketRepository      ticket.TicketRepository
	Issuer                ticket.Issuer
	CapacityLedger        inventory.CapacityLedger
	PayvaultRepository    payvault.PayvaultRepository
	Publisher             pubsub.Publisher
}

func NewReconciler(props ReconcilerProperty) Reconciler {
	r := &reconciler{
		logger:                props.Logger,
		timeout:               props.Timeout,
		eventLogRepository:    props.EventLogRepository,
		orderRepository:       props.OrderRepository,
		itemRepository:        props.ItemRepository,
		eventRepository:       props.EventRepository,
		discountRepository:    props.DiscountRepository,
		ledgerEntryRepository: props.LedgerEntryRepository,
		ticketRepository:      props.TicketRepository,
		issuer:                props.Issuer,
		capacityLedger:        props.CapacityLedger,
		payvaultRepository:    props.PayvaultRepository,
		publisher:             props.Publisher,
	}

	r.dispatch = map[string]decideFunc{
		KindCheckoutCompleted: decideCheckoutCompleted,
		KindChargeSucceeded:   decideChargeSucceeded,
		KindPaymentFailed:     decidePaymentFailed,
		KindChargeRefunded:    decideChargeRefunded,
	}

	return r
}

// ProcessEvent implements Reconciler. The event is durably logged before
// any side effect; a processing error marks the log entry failed and is
// surfaced to the provider so its retry policy redelivers.
func (r *reconciler) ProcessEvent(ctx context.Context, payload EventPayload, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	decide, known := r.dispatch[payload.Type]
	if !known {
		r.logger.WithContext(ctx).WithField("type", payload.Type).Warn("ignoring webhook event of unknown type")
		return nil
	}

	logID, first, err := r.eventLogRepository.Save(ctx, EventLog{
		ProviderEventID: payload.ID,
		Kind:            payload.Type,
		Payload:         raw,
		Status:          LogStatusPending,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		return err
	}

	if !first {
		r.logger.WithContext(ctx).WithField("providerEventId", payload.ID).Info("webhook event already processed or in flight, skipping")
		return nil
	}

	o, found, err := r.resolveOrder(ctx, payload.Data)
	if err != nil {
		r.eventLogRepository.MarkFailed(ctx, logID, err.Error())
		return err
	}

	if !found {
		r.logger.WithContext(ctx).WithFields(logrus.Fields{
			"providerEventId": payload.ID,
			"type":            payload.Type,
		}).Warn("webhook event matches no order, dropping")
		r.eventLogRepository.MarkProcessed(ctx, logID, time.Now())
		return nil
	}

	d, err := decide(o, payload.Data)
	if err != nil {
		r.eventLogRepository.MarkFailed(ctx, logID, err.Error())
		return errors.New(http.StatusUnprocessableEntity, status.UNPROCESSABLE_ENTITY, err.Error())
	}

	if d.Noop {
		r.logger.WithContext(ctx).WithFields(logrus.Fields{
			"orderId": o.ID,
			"type":    payload.Type,
		}).Info(d.NoopReason)
		r.eventLogRepository.MarkProcessed(ctx, logID, time.Now())
		return nil
	}

	if err := r.apply(ctx, o, d, payload); err != nil {
		r.eventLogRepository.MarkFailed(ctx, logID, errors.Destruct(err).Message)
		return err
	}

	r.eventLogRepository.MarkProcessed(ctx, logID, time.Now())

	return nil
}

// resolveOrder tries every correlation id the event carries, in order of
// specificity. Events can arrive before later references are recorded, so
// absence of one reference is not an error.
func (r *reconciler) resolveOrder(ctx context.Context, data EventData) (order.Order, bool, error) {
	type lookup struct {
		value string
		find  func(context.Context, string, *sql.Tx) (order.Order, error)
	}

	lookups := []lookup{
		{data.ChargeID, r.orderRepository.FindByChargeID},
		{data.PaymentIntentID, r.orderRepository.FindByPaymentIntentID},
		{data.CheckoutSessionID, r.orderRepository.FindByCheckoutSessionID},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}

		o, err := l.find(ctx, l.value, nil)
		if err == nil {
			return o, true, nil
		}

		ae := errors.Destruct(err)
		if ae.HTTPStatusCode != http.StatusNotFound {
			return order.Order{}, false, err
		}
	}

	return order.Order{}, false, nil
}

// apply executes one decision as a single atomic unit: every money or
// inventory affecting write for the event shares one transaction, and
// racing deliveries are settled by the compare-and-swap and conditional
// updates underneath, not by locks held across provider calls.
func (r *reconciler) apply(ctx context.Context, o order.Order, d decision, payload EventPayload) error {
	// The provider fee lookup is the only network call and happens before
	// the transaction opens.
	var fee int64
	feeBasis := payout.FeeBasisActual

	if d.RecordFee {
		fee, feeBasis = r.resolveFee(ctx, o, payload.Data)
	}

	tx, err := r.orderRepository.BeginTx(ctx)
	if err != nil {
		return err
	}

	for field, value := range d.References {
		if err := r.orderRepository.SetProviderReference(ctx, o.ID, field, value, tx); err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}
	}

	if d.NextStatus != "" && d.NextStatus != o.Status {
		swapped, err := r.orderRepository.UpdateStatusIfCurrent(ctx, o.ID, o.Status, d.NextStatus, tx)
		if err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}

		if !swapped {
			r.orderRepository.Rollback(ctx, tx)
			r.logger.WithContext(ctx).WithFields(logrus.Fields{
				"orderId":    o.ID,
				"nextStatus": d.NextStatus,
			}).Info("order status changed concurrently, treating event as absorbed")
			return nil
		}
	}

	if d.IssueTickets {
		paid := o
		paid.Status = order.StatusPaid

		items, err := r.itemRepository.FindManyByOrderID(ctx, o.ID, tx)
		if err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}
		paid.Items = items

		if _, err := r.issuer.IssueForOrder(ctx, paid, tx); err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}

		if d.ConvertCapacity {
			units := make([]inventory.SoldUnit, len(items))
			for k, item := range items {
				units[k] = inventory.SoldUnit{TierID: item.TierID, Quantity: item.Quantity}
			}

			if err := r.capacityLedger.Convert(ctx, o.ID, units, tx); err != nil {
				r.orderRepository.Rollback(ctx, tx)
				return err
			}
		}

		if d.ConsumeDiscount {
			if err := r.consumeDiscount(ctx, o, tx); err != nil {
				r.orderRepository.Rollback(ctx, tx)
				return err
			}
		}
	}

	if d.ReleaseCapacity {
		if err := r.capacityLedger.Release(ctx, o.ID, tx); err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}
	}

	if d.RecordFee {
		if err := r.orderRepository.SetProviderFee(ctx, o.ID, fee, feeBasis, tx); err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}
	}

	if d.CreateSaleEntry {
		if err := r.createSaleEntry(ctx, o, feeBasis, tx); err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}
	}

	var refundedTotal int64
	refundApplied := false

	if d.RefundDelta > 0 {
		refundedTotal, refundApplied, err = r.applyRefund(ctx, o, d.RefundCumulative, tx)
		if err != nil {
			r.orderRepository.Rollback(ctx, tx)
			return err
		}
	}

	if err := r.orderRepository.CommitTx(ctx, tx); err != nil {
		return err
	}

	r.publish(ctx, o, d, refundedTotal, refundApplied)

	return nil
}

// resolveFee prefers the fee carried by the event, then the charge lookup
// on the provider, then the estimate formula. Lookup failure is transient
// and never fails the event.
func (r *reconciler) resolveFee(ctx context.Context, o order.Order, data EventData) (int64, string) {
	if data.FeeAvailable {
		return data.Fee, payout.FeeBasisActual
	}

	if data.ChargeID != "" {
		charge, err := r.payvaultRepository.GetCharge(ctx, data.ChargeID)
		if err == nil && charge.FeeAvailable {
			return charge.Fee, payout.FeeBasisActual
		}

		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("chargeId", data.ChargeID).Warn("charge lookup failed, estimating provider fee")
		}
	}

	estimated := int64(float64(o.TotalAmount)*estimatedFeePercentage/100) + estimatedFeeFlat

	return estimated, payout.FeeBasisEstimated
}

// createSaleEntry writes the single positive ledger entry for a paid
// order. Net-to-organizer excludes tax entirely: subtotal minus discount
// minus platform fee. The partial unique index underneath SaveSale makes
// redelivery a no-op.
func (r *reconciler) createSaleEntry(ctx context.Context, o order.Order, feeBasis string, tx *sql.Tx) error {
	ev, err := r.eventRepository.FindByID(ctx, o.EventID, tx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"orderId": o.ID,
			"eventId": o.EventID,
		}).Error("order references a missing event, refusing to write ledger entry")
		return err
	}

	inserted, err := r.ledgerEntryRepository.SaveSale(ctx, payout.LedgerEntry{
		OrganizerID: ev.OrganizerID,
		EventID:     o.EventID,
		OrderID:     o.ID,
		Amount:      o.Subtotal - o.DiscountAmount - o.PlatformFee,
		FeeBasis:    feeBasis,
		CreatedAt:   time.Now(),
	}, tx)
	if err != nil {
		return err
	}

	if !inserted {
		r.logger.WithContext(ctx).WithField("orderId", o.ID).Info("sale ledger entry already exists")

		if feeBasis == payout.FeeBasisActual {
			upgraded, err := r.ledgerEntryRepository.UpgradeSaleFeeBasis(ctx, o.ID, tx)
			if err != nil {
				return err
			}

			if upgraded {
				r.logger.WithContext(ctx).WithField("orderId", o.ID).Info("sale ledger entry fee basis upgraded to actual")
			}
		}
	}

	return nil
}

func (r *reconciler) consumeDiscount(ctx context.Context, o order.Order, tx *sql.Tx) error {
	dsc, err := r.discountRepository.FindByEventIDAndCode(ctx, o.EventID, *o.DiscountCode, tx)
	if err != nil {
		return err
	}

	consumed, err := r.discountRepository.Consume(ctx, dsc.ID, tx)
	if err != nil {
		return err
	}

	if !consumed {
		// The code was validated at placement but a racing order took the
		// last use; the buyer's money is already captured, so keep going.
		r.logger.WithContext(ctx).WithFields(logrus.Fields{
			"orderId": o.ID,
			"code":    dsc.Code,
		}).Warn("discount exhausted between placement and payment")
	}

	return nil
}

// applyRefund reverses the refunded fraction of the sale entry and moves
// the order to the status implied by its cumulative refunded amount. The
// delta is re-derived from the row-locked order, never taken from the
// pre-transaction read: a racing delivery may already have absorbed part
// of the provider's cumulative figure, and applying the stale delta would
// debit the organizer's ledger twice. Returns the order's refunded total
// and whether anything was applied.
func (r *reconciler) applyRefund(ctx context.Context, o order.Order, cumulative int64, tx *sql.Tx) (int64, bool, error) {
	locked, err := r.orderRepository.FindByIDForUpdate(ctx, o.ID, tx)
	if err != nil {
		return 0, false, err
	}

	delta := cumulative - locked.RefundedAmount
	if delta <= 0 {
		r.logger.WithContext(ctx).WithFields(logrus.Fields{
			"orderId":    locked.ID,
			"cumulative": cumulative,
		}).Info("refunded amount absorbed concurrently, nothing to apply")
		return locked.RefundedAmount, false, nil
	}

	now := time.Now()

	newRefunded, err := r.orderRepository.AddRefundedAmount(ctx, locked.ID, delta, now, tx)
	if err != nil {
		return 0, false, err
	}

	saleNet := locked.Subtotal - locked.DiscountAmount - locked.PlatformFee
	entryAmount := -(saleNet * delta / locked.TotalAmount)

	ev, err := r.eventRepository.FindByID(ctx, locked.EventID, tx)
	if err != nil {
		return 0, false, err
	}

	feeBasis := payout.FeeBasisActual
	if locked.ProviderFeeBasis != nil {
		feeBasis = *locked.ProviderFeeBasis
	}

	if err := r.ledgerEntryRepository.SaveRefund(ctx, payout.LedgerEntry{
		OrganizerID: ev.OrganizerID,
		EventID:     locked.EventID,
		OrderID:     locked.ID,
		Amount:      entryAmount,
		FeeBasis:    feeBasis,
		CreatedAt:   now,
	}, tx); err != nil {
		return 0, false, err
	}

	nextStatus := order.StatusAfterRefund(locked.TotalAmount, newRefunded)
	if nextStatus != locked.Status {
		if _, err := r.orderRepository.UpdateStatusIfCurrent(ctx, locked.ID, locked.Status, nextStatus, tx); err != nil {
			return 0, false, err
		}
	}

	if nextStatus == order.StatusRefunded {
		if err := r.ticketRepository.MarkAllRefundedByOrderID(ctx, locked.ID, tx); err != nil {
			return 0, false, err
		}
	}

	return newRefunded, true, nil
}

func (r *reconciler) publish(ctx context.Context, o order.Order, d decision, refundedTotal int64, refundApplied bool) {
	if r.publisher == nil {
		return
	}

	if d.NextStatus == order.StatusPaid {
		message, _ := json.Marshal(order.OrderPaidEvent{
			OrderID:       o.ID,
			EventID:       o.EventID,
			CustomerEmail: o.CustomerEmail,
			TotalAmount:   o.TotalAmount,
			PaidAt:        time.Now(),
		})
		r.publisher.Publish(ctx, order.TopicOrderPaid, o.ID, nil, message)
	}

	if refundApplied {
		message, _ := json.Marshal(order.OrderRefundedEvent{
			OrderID:        o.ID,
			EventID:        o.EventID,
			RefundedAmount: refundedTotal,
			Status:         order.StatusAfterRefund(o.TotalAmount, refundedTotal),
			RefundedAt:     time.Now(),
		})
		r.publisher.Publish(ctx, order.TopicOrderRefunded, o.ID, nil, message)
	}
}
