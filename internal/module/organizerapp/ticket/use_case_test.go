package ticket

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

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/payvault"
	customerTicket "github.com/stagepass/sp-ticketing/internal/module/customerapp/ticket"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/event"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/payout"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type memTicketRepo struct {
	customerTicket.TicketRepository
	tickets    map[string]customerTicket.Ticket
	saved      []customerTicket.Ticket
	refunded   []string
	markedUsed []string
}

func newMemTicketRepo(tickets ...customerTicket.Ticket) *memTicketRepo {
	m := &memTicketRepo{tickets: map[string]customerTicket.Ticket{}}
	for _, t := range tickets {
		m.tickets[t.ID] = t
	}
	return m
}

func (m *memTicketRepo) Save(ctx context.Context, t customerTicket.Ticket, tx *sql.Tx) error {
	m.tickets[t.ID] = t
	m.saved = append(m.saved, t)
	return nil
}

func (m *memTicketRepo) FindByID(ctx context.Context, ID string, tx *sql.Tx) (customerTicket.Ticket, error) {
	t, ok := m.tickets[ID]
	if !ok {
		return customerTicket.Ticket{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("ticket '%s' is not found", ID))
	}
	return t, nil
}

func (m *memTicketRepo) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (customerTicket.Ticket, error) {
	return m.FindByID(ctx, ID, tx)
}

func (m *memTicketRepo) FindByScanCredentialForUpdate(ctx context.Context, credential string, tx *sql.Tx) (customerTicket.Ticket, error) {
	for _, t := range m.tickets {
		if t.ScanCredential == credential {
			return t, nil
		}
	}
	return customerTicket.Ticket{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "ticket is not found")
}

func (m *memTicketRepo) UpdateStatusIfCurrent(ctx context.Context, ID string, current, next string, tx *sql.Tx) (bool, error) {
	t, ok := m.tickets[ID]
	if !ok || t.Status != current {
		return false, nil
	}
	t.Status = next
	m.tickets[ID] = t
	return true, nil
}

func (m *memTicketRepo) MarkCheckedIn(ctx context.Context, ID string, actorID int64, at time.Time, tx *sql.Tx) (bool, error) {
	t, ok := m.tickets[ID]
	if !ok || t.Status != customerTicket.StatusValid {
		return false, nil
	}
	t.Status = customerTicket.StatusUsed
	t.CheckedInAt = &at
	t.CheckedInBy = &actorID
	m.tickets[ID] = t
	m.markedUsed = append(m.markedUsed, ID)
	return true, nil
}

func (m *memTicketRepo) MarkTransferred(ctx context.Context, ID string, transferredTo string, tx *sql.Tx) (bool, error) {
	t, ok := m.tickets[ID]
	if !ok || t.Status != customerTicket.StatusValid {
		return false, nil
	}
	t.Status = customerTicket.StatusTransferred
	t.TransferredTo = &transferredTo
	m.tickets[ID] = t
	return true, nil
}

func (m *memTicketRepo) MarkAllRefundedByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error {
	m.refunded = append(m.refunded, orderID)
	for id, t := range m.tickets {
		if t.OrderID == orderID && t.Status == customerTicket.StatusValid {
			t.Status = customerTicket.StatusRefunded
			m.tickets[id] = t
		}
	}
	return nil
}

type memOrderRepo struct {
	order.OrderRepository
	o order.Order
}

func (m *memOrderRepo) BeginTx(ctx context.Context) (*sql.Tx, error)   { return nil, nil }
func (m *memOrderRepo) CommitTx(ctx context.Context, tx *sql.Tx) error { return nil }
func (m *memOrderRepo) Rollback(ctx context.Context, tx *sql.Tx) error { return nil }

func (m *memOrderRepo) FindByID(ctx context.Context, ID string, tx *sql.Tx) (order.Order, error) {
	if m.o.ID != ID {
		return order.Order{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("order '%s' is not found", ID))
	}
	return m.o, nil
}

func (m *memOrderRepo) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (order.Order, error) {
	return m.FindByID(ctx, ID, tx)
}

func (m *memOrderRepo) AddRefundedAmount(ctx context.Context, ID string, amount int64, refundedAt time.Time, tx *sql.Tx) (int64, error) {
	if m.o.RefundedAmount+amount > m.o.TotalAmount {
		return 0, errors.New(http.StatusConflict, status.CONFLICT, "refund exceeds the order total")
	}
	m.o.RefundedAmount += amount
	m.o.RefundedAt = &refundedAt
	return m.o.RefundedAmount, nil
}

func (m *memOrderRepo) UpdateStatusIfCurrent(ctx context.Context, ID string, current, next string, tx *sql.Tx) (bool, error) {
	if m.o.ID != ID || m.o.Status != current {
		return false, nil
	}
	m.o.Status = next
	return true, nil
}

type memItemRepo struct {
	items []order.Item
}

func (m *memItemRepo) Save(ctx context.Context, item order.Item, tx *sql.Tx) error { return nil }

func (m *memItemRepo) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]order.Item, error) {
	return m.items, nil
}

type memEventRepo struct {
	event.EventRepository
	organizerID int64
}

func (m *memEventRepo) FindByIDAndOrganizerID(ctx context.Context, ID string, organizerID int64, tx *sql.Tx) (event.Event, error) {
	if organizerID != m.organizerID {
		return event.Event{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("event '%s' is not found", ID))
	}
	return event.Event{ID: ID, OrganizerID: m.organizerID}, nil
}

type memLedgerRepo struct {
	payout.LedgerEntryRepository
	refunds []payout.LedgerEntry
}

func (m *memLedgerRepo) SaveRefund(ctx context.Context, e payout.LedgerEntry, tx *sql.Tx) error {
	m.refunds = append(m.refunds, e)
	return nil
}

type fakePayvault struct {
	fail    bool
	refunds []payvault.RefundRequest
}

func (f *fakePayvault) CreateCheckoutSession(ctx context.Context, req payvault.CreateCheckoutSessionRequest) (payvault.CheckoutSession, error) {
	return payvault.CheckoutSession{}, nil
}

func (f *fakePayvault) GetCharge(ctx context.Context, chargeID string) (payvault.Charge, error) {
	return payvault.Charge{}, nil
}

func (f *fakePayvault) Refund(ctx context.Context, req payvault.RefundRequest) (payvault.RefundResponse, error) {
	if f.fail {
		return payvault.RefundResponse{}, errors.New(http.StatusBadGateway, status.INTERNAL_SERVER_ERROR, "payment provider is unavailable")
	}
	f.refunds = append(f.refunds, req)
	return payvault.RefundResponse{ID: "re_1", ChargeID: req.ChargeID, Amount: req.Amount, Status: "succeeded"}, nil
}

type fakePublisher struct {
	topics []string
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, key string, headers map[string]string, message []byte) {
	f.topics = append(f.topics, topic)
}

func (f *fakePublisher) Close() {}

type ticketHarness struct {
	useCase    TicketUseCase
	ticketRepo *memTicketRepo
	orderRepo  *memOrderRepo
	ledgerRepo *memLedgerRepo
	payvault   *fakePayvault
	publisher  *fakePublisher
}

func newTicketHarness(o order.Order, items []order.Item, tickets ...customerTicket.Ticket) *ticketHarness {
	h := &ticketHarness{
		ticketRepo: newMemTicketRepo(tickets...),
		orderRepo:  &memOrderRepo{o: o},
		ledgerRepo: &memLedgerRepo{},
		payvault:   &fakePayvault{},
		publisher:  &fakePublisher{},
	}

	h.useCase = NewTicketUseCase(TicketUseCaseProperty{
		Logger:                logrus.New(),
		Timeout:               5 * time.Second,
		TicketRepository:      h.ticketRepo,
		OrderRepository:       h.orderRepo,
		ItemRepository:        &memItemRepo{items: items},
		EventRepository:       &memEventRepo{organizerID: 42},
		LedgerEntryRepository: h.ledgerRepo,
		PayvaultRepository:    h.payvault,
		Publisher:             h.publisher,
	})

	return h
}

func organizerCtx() context.Context {
	return session.SetAccountToCtx(context.Background(), session.Account{ID: 42, Type: session.AccountTypeOrganizer})
}

func chargeID(s string) *string { return &s }

func paidOrder() order.Order {
	return order.Order{
		ID:          "ORD-1",
		EventID:     "EVT-1",
		CustomerID:  7,
		Status:      order.StatusPaid,
		Subtotal:    10000,
		PlatformFee: 500,
		Tax:         1100,
		TotalAmount: 11600,
		ChargeID:    chargeID("ch_1"),
		PlacedAt:    time.Now(),
	}
}

func paidOrderItems() []order.Item {
	return []order.Item{
		{ID: 7, OrderID: "ORD-1", TierID: "TIER-1", EventID: "EVT-1", UnitPrice: 5000, Quantity: 2, AllocatedTax: 1100, AllocatedFee: 500},
	}
}

func validTicket(id string) customerTicket.Ticket {
	return customerTicket.Ticket{
		ID:             id,
		OrderItemID:    7,
		OrderID:        "ORD-1",
		TierID:         "TIER-1",
		EventID:        "EVT-1",
		HolderName:     "Ari",
		HolderEmail:    "ari@example.com",
		ScanCredential: "cred-" + id,
		Status:         customerTicket.StatusValid,
	}
}

func TestRefundTicketDefaultsToCeiling(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"), validTicket("TKT-2"))

	resp, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Reason: "event cancelled"})
	require.NoError(t, err)

	// ceiling = unit price + per-unit share of the allocated tax
	assert.Equal(t, int64(5550), resp.RefundedAmount)
	assert.Equal(t, int64(5550), resp.OrderRefundedAmount)
	assert.Equal(t, order.StatusPartiallyRefunded, resp.OrderStatus)
	assert.Equal(t, "re_1", resp.ProviderRefundID)

	require.Len(t, h.payvault.refunds, 1)
	assert.Equal(t, "ch_1", h.payvault.refunds[0].ChargeID)
	assert.Equal(t, int64(5550), h.payvault.refunds[0].Amount)

	assert.Equal(t, customerTicket.StatusRefunded, h.ticketRepo.tickets["TKT-1"].Status)
	assert.Equal(t, customerTicket.StatusValid, h.ticketRepo.tickets["TKT-2"].Status)
	assert.Equal(t, order.StatusPartiallyRefunded, h.orderRepo.o.Status)

	require.Len(t, h.ledgerRepo.refunds, 1)
	assert.Equal(t, int64(-(9500 * 5550 / 11600)), h.ledgerRepo.refunds[0].Amount)
	assert.Equal(t, int64(42), h.ledgerRepo.refunds[0].OrganizerID)

	assert.Equal(t, []string{order.TopicOrderRefunded}, h.publisher.topics)
}

func TestRefundTicketRejectsAmountAboveCeiling(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"))

	_, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Amount: 5551, Reason: "goodwill"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.Destruct(err).HTTPStatusCode)

	assert.Empty(t, h.payvault.refunds)
	assert.Equal(t, customerTicket.StatusValid, h.ticketRepo.tickets["TKT-1"].Status)
	assert.Zero(t, h.orderRepo.o.RefundedAmount)
}

func TestRefundTicketRejectsAmountAboveOrderRemaining(t *testing.T) {
	o := paidOrder()
	o.Status = order.StatusPartiallyRefunded
	o.RefundedAmount = 11000
	h := newTicketHarness(o, paidOrderItems(), validTicket("TKT-1"))

	_, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Amount: 5000, Reason: "goodwill"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, errors.Destruct(err).HTTPStatusCode)
	assert.Empty(t, h.payvault.refunds)
}

func TestRefundTicketProviderFailureLeavesStateUntouched(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"))
	h.payvault.fail = true

	_, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Reason: "event cancelled"})
	require.Error(t, err)

	assert.Equal(t, customerTicket.StatusValid, h.ticketRepo.tickets["TKT-1"].Status)
	assert.Zero(t, h.orderRepo.o.RefundedAmount)
	assert.Equal(t, order.StatusPaid, h.orderRepo.o.Status)
	assert.Empty(t, h.ledgerRepo.refunds)
	assert.Empty(t, h.publisher.topics)
}

func TestRefundTicketRejectsAlreadyRefunded(t *testing.T) {
	tk := validTicket("TKT-1")
	tk.Status = customerTicket.StatusRefunded
	h := newTicketHarness(paidOrder(), paidOrderItems(), tk)

	_, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Reason: "again"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
	assert.Empty(t, h.payvault.refunds)
}

func TestRefundTicketRejectsOrderWithoutCharge(t *testing.T) {
	o := paidOrder()
	o.ChargeID = nil
	h := newTicketHarness(o, paidOrderItems(), validTicket("TKT-1"))

	_, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Reason: "no charge"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
	assert.Empty(t, h.payvault.refunds)
}

func TestRefundTicketFullRefundCascades(t *testing.T) {
	o := paidOrder()
	o.Status = order.StatusPartiallyRefunded
	o.RefundedAmount = 6050
	h := newTicketHarness(o, paidOrderItems(), validTicket("TKT-1"), validTicket("TKT-2"))

	resp, err := h.useCase.RefundTicket(organizerCtx(), RefundTicketRequest{TicketID: "TKT-1", Reason: "event cancelled"})
	require.NoError(t, err)

	assert.Equal(t, int64(11600), resp.OrderRefundedAmount)
	assert.Equal(t, order.StatusRefunded, resp.OrderStatus)
	assert.Equal(t, order.StatusRefunded, h.orderRepo.o.Status)
	assert.Equal(t, []string{"ORD-1"}, h.ticketRepo.refunded)
	assert.Equal(t, customerTicket.StatusRefunded, h.ticketRepo.tickets["TKT-2"].Status)
}

func TestRefundTicketRejectsForeignOrganizer(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"))

	ctx := session.SetAccountToCtx(context.Background(), session.Account{ID: 9, Type: session.AccountTypeOrganizer})

	_, err := h.useCase.RefundTicket(ctx, RefundTicketRequest{TicketID: "TKT-1", Reason: "not mine"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, errors.Destruct(err).HTTPStatusCode)
	assert.Empty(t, h.payvault.refunds)
}

func TestTransferTicketMintsReplacement(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"))

	resp, err := h.useCase.TransferTicket(organizerCtx(), TransferTicketRequest{
		TicketID:    "TKT-1",
		HolderName:  "Budi",
		HolderEmail: "budi@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, customerTicket.StatusTransferred, h.ticketRepo.tickets["TKT-1"].Status)
	require.NotNil(t, h.ticketRepo.tickets["TKT-1"].TransferredTo)
	assert.Equal(t, resp.ID, *h.ticketRepo.tickets["TKT-1"].TransferredTo)

	require.Len(t, h.ticketRepo.saved, 1)
	replacement := h.ticketRepo.saved[0]
	assert.NotEqual(t, "TKT-1", replacement.ID)
	assert.NotEqual(t, "cred-TKT-1", replacement.ScanCredential)
	assert.Equal(t, customerTicket.StatusValid, replacement.Status)
	require.NotNil(t, replacement.TransferredFrom)
	assert.Equal(t, "TKT-1", *replacement.TransferredFrom)
	assert.Equal(t, "Budi", replacement.HolderName)
	assert.Equal(t, int64(7), replacement.OrderItemID)
}

func TestTransferTicketRejectsNonValidTicket(t *testing.T) {
	tk := validTicket("TKT-1")
	tk.Status = customerTicket.StatusUsed
	h := newTicketHarness(paidOrder(), paidOrderItems(), tk)

	_, err := h.useCase.TransferTicket(organizerCtx(), TransferTicketRequest{
		TicketID:    "TKT-1",
		HolderName:  "Budi",
		HolderEmail: "budi@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
	assert.Empty(t, h.ticketRepo.saved)
}

func TestCheckInTicketByScanCredential(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"))

	resp, err := h.useCase.CheckInTicket(organizerCtx(), CheckInTicketRequest{ScanCredential: "cred-TKT-1"})
	require.NoError(t, err)

	assert.Equal(t, "TKT-1", resp.ID)
	assert.Equal(t, customerTicket.StatusUsed, resp.Status)
	require.NotNil(t, resp.CheckedInAt)
	assert.Equal(t, customerTicket.StatusUsed, h.ticketRepo.tickets["TKT-1"].Status)
}

func TestCheckInTicketRejectsSecondScan(t *testing.T) {
	h := newTicketHarness(paidOrder(), paidOrderItems(), validTicket("TKT-1"))

	_, err := h.useCase.CheckInTicket(organizerCtx(), CheckInTicketRequest{ScanCredential: "cred-TKT-1"})
	require.NoError(t, err)

	_, err = h.useCase.CheckInTicket(organizerCtx(), CheckInTicketRequest{ScanCredential: "cred-TKT-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, errors.Destruct(err).HTTPStatusCode)
}
