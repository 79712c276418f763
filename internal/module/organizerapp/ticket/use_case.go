package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/payvault"
	customerTicket "github.com/stagepass/sp-ticketing/internal/module/customerapp/ticket"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/event"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/payout"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/internal/pkg/util"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/pubsub"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type TicketUseCase interface {
	RefundTicket(ctx context.Context, req RefundTicketRequest) (RefundTicketResponse, error)
	TransferTicket(ctx context.Context, req TransferTicketRequest) (TicketResponse, error)
	CheckInTicket(ctx context.Context, req CheckInTicketRequest) (TicketResponse, error)
}

type ticketUseCase struct {
	logger                *logrus.Logger
	timeout               time.Duration
	ticketRepository      customerTicket.TicketRepository
	orderRepository       order.OrderRepository
	itemRepository        order.ItemRepository
	eventRepository       event.EventRepository
	ledgerEntryRepository payout.LedgerEntryRepository
	payvaultRepository    payvault.PayvaultRepository
	publisher             pubsub.Publisher
}

type TicketUseCaseProperty struct {
	Logger                *logrus.Logger
	Timeout               time.Duration
	TicketRepository      customerTicket.TicketRepository
	OrderRepository       order.OrderRepository
	ItemRepository        order.ItemRepository
	EventRepository       event.EventRepository
	LedgerEntryRepository payout.LedgerEntryRepository
	PayvaultRepository    payvault.PayvaultRepository
	Publisher             pubsub.Publisher
}

func NewTicketUseCase(props TicketUseCaseProperty) TicketUseCase {
	return &ticketUseCase{
		logger:                props.Logger,
		timeout:               props.Timeout,
		ticketRepository:      props.TicketRepository,
		orderRepository:       props.OrderRepository,
		itemRepository:        props.ItemRepository,
		eventRepository:       props.EventRepository,
		ledgerEntryRepository: props.LedgerEntryRepository,
		payvaultRepository:    props.PayvaultRepository,
		publisher:             props.Publisher,
	}
}

// RefundTicket implements TicketUseCase. The provider refund executes
// first with no transaction open; only on provider success does the local
// state change, and then as one atomic unit. The refund ceiling is the
// ticket's proportional share of its order item's price plus allocated
// tax.
func (u *ticketUseCase) RefundTicket(ctx context.Context, req RefundTicketRequest) (RefundTicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return RefundTicketResponse{}, err
	}

	t, err := u.ticketRepository.FindByID(ctx, req.TicketID, nil)
	if err != nil {
		return RefundTicketResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, t.EventID, acc.ID, nil); err != nil {
		return RefundTicketResponse{}, err
	}

	if t.Status == customerTicket.StatusRefunded {
		return RefundTicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket '%s' is already refunded", t.ID))
	}

	o, err := u.orderRepository.FindByID(ctx, t.OrderID, nil)
	if err != nil {
		return RefundTicketResponse{}, err
	}

	if o.ChargeID == nil {
		return RefundTicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("order '%s' has no settled charge to refund against", o.ID))
	}

	items, err := u.itemRepository.FindManyByOrderID(ctx, o.ID, nil)
	if err != nil {
		return RefundTicketResponse{}, err
	}

	var item order.Item
	for _, candidate := range items {
		if candidate.ID == t.OrderItemID {
			item = candidate
			break
		}
	}

	if item.ID == 0 {
		return RefundTicketResponse{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, fmt.Sprintf("ticket '%s' references a missing order item", t.ID))
	}

	ceiling := item.UnitPrice + item.AllocatedTax/item.Quantity

	amount := req.Amount
	if amount == 0 {
		amount = ceiling
	}

	if amount > ceiling {
		return RefundTicketResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, fmt.Sprintf("refund amount %d exceeds the ticket's refundable price %d", amount, ceiling))
	}

	if remaining := o.TotalAmount - o.RefundedAmount; amount > remaining {
		return RefundTicketResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, fmt.Sprintf("refund amount %d exceeds the order's remaining refundable balance %d", amount, remaining))
	}

	providerRefund, err := u.payvaultRepository.Refund(ctx, payvault.RefundRequest{
		ChargeID: *o.ChargeID,
		Amount:   amount,
		Reason:   req.Reason,
	})
	if err != nil {
		return RefundTicketResponse{}, err
	}

	tx, err := u.orderRepository.BeginTx(ctx)
	if err != nil {
		return RefundTicketResponse{}, err
	}

	locked, err := u.orderRepository.FindByIDForUpdate(ctx, o.ID, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return RefundTicketResponse{}, err
	}

	now := time.Now()

	newRefunded, err := u.orderRepository.AddRefundedAmount(ctx, locked.ID, amount, now, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return RefundTicketResponse{}, err
	}

	swapped, err := u.ticketRepository.UpdateStatusIfCurrent(ctx, t.ID, t.Status, customerTicket.StatusRefunded, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return RefundTicketResponse{}, err
	}

	if !swapped {
		u.orderRepository.Rollback(ctx, tx)
		return RefundTicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket '%s' changed state while refunding", t.ID))
	}

	saleNet := locked.Subtotal - locked.DiscountAmount - locked.PlatformFee
	entryAmount := -(saleNet * amount / locked.TotalAmount)

	feeBasis := payout.FeeBasisActual
	if locked.ProviderFeeBasis != nil {
		feeBasis = *locked.ProviderFeeBasis
	}

	if err := u.ledgerEntryRepository.SaveRefund(ctx, payout.LedgerEntry{
		OrganizerID: acc.ID,
		EventID:     locked.EventID,
		OrderID:     locked.ID,
		Amount:      entryAmount,
		FeeBasis:    feeBasis,
		CreatedAt:   now,
	}, tx); err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return RefundTicketResponse{}, err
	}

	nextStatus := order.StatusAfterRefund(locked.TotalAmount, newRefunded)
	if nextStatus != locked.Status {
		if _, err := u.orderRepository.UpdateStatusIfCurrent(ctx, locked.ID, locked.Status, nextStatus, tx); err != nil {
			u.orderRepository.Rollback(ctx, tx)
			return RefundTicketResponse{}, err
		}
	}

	if nextStatus == order.StatusRefunded {
		if err := u.ticketRepository.MarkAllRefundedByOrderID(ctx, locked.ID, tx); err != nil {
			u.orderRepository.Rollback(ctx, tx)
			return RefundTicketResponse{}, err
		}
	}

	if err := u.orderRepository.CommitTx(ctx, tx); err != nil {
		return RefundTicketResponse{}, err
	}

	if u.publisher != nil {
		message, _ := json.Marshal(order.OrderRefundedEvent{
			OrderID:        locked.ID,
			EventID:        locked.EventID,
			RefundedAmount: newRefunded,
			Status:         nextStatus,
			RefundedAt:     now,
		})
		u.publisher.Publish(ctx, order.TopicOrderRefunded, locked.ID, nil, message)
	}

	return RefundTicketResponse{
		TicketID:             t.ID,
		OrderID:              locked.ID,
		RefundedAmount:       amount,
		OrderRefundedAmount:  newRefunded,
		OrderStatus:          nextStatus,
		ProviderRefundID:     providerRefund.ID,
		ProviderRefundStatus: providerRefund.Status,
	}, nil
}

// TransferTicket implements TicketUseCase. The old ticket is retired and
// a linked replacement is minted with a fresh scan credential, so the old
// QR code stops admitting at the gate.
func (u *ticketUseCase) TransferTicket(ctx context.Context, req TransferTicketRequest) (TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	tx, err := u.orderRepository.BeginTx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	t, err := u.ticketRepository.FindByIDForUpdate(ctx, req.TicketID, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, t.EventID, acc.ID, tx); err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if t.Status != customerTicket.StatusValid {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket '%s' is %s, only valid tickets can be transferred", t.ID, t.Status))
	}

	now := time.Now()
	replacement := customerTicket.Ticket{
		ID:              util.GenerateTimestampWithPrefix("TKT"),
		OrderItemID:     t.OrderItemID,
		OrderID:         t.OrderID,
		TierID:          t.TierID,
		EventID:         t.EventID,
		HolderName:      req.HolderName,
		HolderEmail:     req.HolderEmail,
		ScanCredential:  util.GenerateScanCredential(),
		Status:          customerTicket.StatusValid,
		TransferredFrom: &t.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	swapped, err := u.ticketRepository.MarkTransferred(ctx, t.ID, replacement.ID, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if !swapped {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket '%s' changed state while transferring", t.ID))
	}

	if err := u.ticketRepository.Save(ctx, replacement, tx); err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if err := u.orderRepository.CommitTx(ctx, tx); err != nil {
		return TicketResponse{}, err
	}

	resp := TicketResponse{}
	resp.PopulateFromEntity(replacement)

	return resp, nil
}

// CheckInTicket implements TicketUseCase. Lookup is by scan credential,
// never by ticket id, so only the holder of the QR code can be admitted.
func (u *ticketUseCase) CheckInTicket(ctx context.Context, req CheckInTicketRequest) (TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	tx, err := u.orderRepository.BeginTx(ctx)
	if err != nil {
		return TicketResponse{}, err
	}

	t, err := u.ticketRepository.FindByScanCredentialForUpdate(ctx, req.ScanCredential, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, t.EventID, acc.ID, tx); err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	now := time.Now()

	swapped, err := u.ticketRepository.MarkCheckedIn(ctx, t.ID, acc.ID, now, tx)
	if err != nil {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, err
	}

	if !swapped {
		u.orderRepository.Rollback(ctx, tx)
		return TicketResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("ticket '%s' is %s and cannot be checked in", t.ID, t.Status))
	}

	if err := u.orderRepository.CommitTx(ctx, tx); err != nil {
		return TicketResponse{}, err
	}

	t.Status = customerTicket.StatusUsed
	t.CheckedInAt = &now
	t.CheckedInBy = &acc.ID

	resp := TicketResponse{}
	resp.PopulateFromEntity(t)

	return resp, nil
}
