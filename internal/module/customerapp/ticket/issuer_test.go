package ticket

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
)

type memTicketRepo struct {
	TicketRepository
	saved []Ticket
}

func (m *memTicketRepo) Save(ctx context.Context, t Ticket, tx *sql.Tx) error {
	m.saved = append(m.saved, t)
	return nil
}

func (m *memTicketRepo) CountByOrderItemID(ctx context.Context, orderItemID int64, tx *sql.Tx) (int64, error) {
	var count int64
	for _, t := range m.saved {
		if t.OrderItemID == orderItemID {
			count++
		}
	}
	return count, nil
}

func paidOrder() order.Order {
	return order.Order{
		ID:            "ORD-1",
		EventID:       "EVT-1",
		Status:        order.StatusPaid,
		CustomerName:  "Ayu Lestari",
		CustomerEmail: "ayu@example.com",
		Items: []order.Item{
			{ID: 1, OrderID: "ORD-1", TierID: "TIER-1", Quantity: 2},
			{ID: 2, OrderID: "ORD-1", TierID: "TIER-2", Quantity: 1},
		},
	}
}

func newTestIssuer() (Issuer, *memTicketRepo) {
	repo := &memTicketRepo{}
	return NewIssuer(IssuerProperty{Logger: logrus.New(), TicketRepository: repo}), repo
}

func TestIssueForOrder(t *testing.T) {
	issuer, repo := newTestIssuer()

	issued, err := issuer.IssueForOrder(context.Background(), paidOrder(), nil)
	require.NoError(t, err)

	assert.Len(t, issued, 3)
	assert.Len(t, repo.saved, 3)

	serials := map[string]bool{}
	credentials := map[string]bool{}
	for _, tk := range repo.saved {
		assert.Equal(t, StatusValid, tk.Status)
		assert.NotEmpty(t, tk.ScanCredential)
		serials[tk.ID] = true
		credentials[tk.ScanCredential] = true
	}
	assert.Len(t, serials, 3, "serials must be unique")
	assert.Len(t, credentials, 3, "scan credentials must be unique")
}

func TestIssueForOrderIdempotent(t *testing.T) {
	issuer, repo := newTestIssuer()

	_, err := issuer.IssueForOrder(context.Background(), paidOrder(), nil)
	require.NoError(t, err)

	again, err := issuer.IssueForOrder(context.Background(), paidOrder(), nil)
	require.NoError(t, err)

	assert.Empty(t, again, "a second issuance must mint nothing")
	assert.Len(t, repo.saved, 3)
}

func TestIssueForOrderTopsUpPartialIssuance(t *testing.T) {
	issuer, repo := newTestIssuer()

	repo.saved = append(repo.saved, Ticket{ID: "TKT-0", OrderItemID: 1, Status: StatusValid})

	issued, err := issuer.IssueForOrder(context.Background(), paidOrder(), nil)
	require.NoError(t, err)

	assert.Len(t, issued, 2)
	assert.Len(t, repo.saved, 3)
}

func TestIssueForOrderRejectsUnpaid(t *testing.T) {
	issuer, repo := newTestIssuer()

	o := paidOrder()
	o.Status = order.StatusPending

	_, err := issuer.IssueForOrder(context.Background(), o, nil)
	assert.Error(t, err)
	assert.Empty(t, repo.saved)
}
