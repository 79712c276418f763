package inventory

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type memTierStockRepo struct {
	ts          TierStock
	forceAdds   int64
	addFailures int
}

func (m *memTierStockRepo) FindByID(ctx context.Context, ID string, tx *sql.Tx) (TierStock, error) {
	return m.ts, nil
}

func (m *memTierStockRepo) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (TierStock, error) {
	return m.ts, nil
}

func (m *memTierStockRepo) AddSold(ctx context.Context, ID string, quantity int64, tx *sql.Tx) error {
	if m.ts.Capacity != nil && m.ts.Sold+quantity > *m.ts.Capacity {
		m.addFailures++
		return errors.New(http.StatusConflict, status.CONFLICT, "tier capacity exhausted")
	}
	m.ts.Sold += quantity
	return nil
}

func (m *memTierStockRepo) ForceAddSold(ctx context.Context, ID string, quantity int64, tx *sql.Tx) error {
	m.ts.Sold += quantity
	m.forceAdds += quantity
	return nil
}

type memReservationRepo struct {
	active  int64
	saved   []Reservation
	deleted []string
}

func (m *memReservationRepo) Save(ctx context.Context, res Reservation, tx *sql.Tx) error {
	m.saved = append(m.saved, res)
	m.active += res.Quantity
	return nil
}

func (m *memReservationRepo) SumActiveQuantityByTierID(ctx context.Context, tierID string, now time.Time, tx *sql.Tx) (int64, error) {
	return m.active, nil
}

func (m *memReservationRepo) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Reservation, error) {
	return m.saved, nil
}

func (m *memReservationRepo) DeleteByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error {
	m.deleted = append(m.deleted, orderID)
	return nil
}

func (m *memReservationRepo) DeleteExpired(ctx context.Context, now time.Time, tx *sql.Tx) (int64, error) {
	return 0, nil
}

func int64ptr(v int64) *int64 { return &v }

func newTestLedger(ts TierStock, active int64) (CapacityLedger, *memTierStockRepo, *memReservationRepo) {
	tiers := &memTierStockRepo{ts: ts}
	reservations := &memReservationRepo{active: active}

	ledger := NewCapacityLedger(CapacityLedgerProperty{
		Logger:                logrus.New(),
		ReservationTTL:        15 * time.Minute,
		TierStockRepository:   tiers,
		ReservationRepository: reservations,
	})

	return ledger, tiers, reservations
}

func TestReserveWithinCapacity(t *testing.T) {
	ledger, _, reservations := newTestLedger(TierStock{ID: "TIER-1", Capacity: int64ptr(10), Sold: 4}, 3)

	res, err := ledger.Reserve(context.Background(), "TIER-1", 3, "ORD-1", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Quantity)
	assert.Len(t, reservations.saved, 1)
	assert.True(t, res.ExpiresAt.After(time.Now()))
}

func TestReserveSoldOut(t *testing.T) {
	// sold 4 + reserved 3 + requested 4 > capacity 10
	ledger, _, reservations := newTestLedger(TierStock{ID: "TIER-1", Capacity: int64ptr(10), Sold: 4}, 3)

	_, err := ledger.Reserve(context.Background(), "TIER-1", 4, "ORD-1", nil)
	require.Error(t, err)

	ae := errors.Destruct(err)
	assert.Equal(t, status.SOLD_OUT, ae.Status)
	assert.Empty(t, reservations.saved, "a failed reserve must leave no hold behind")
}

func TestReserveLastUnitRace(t *testing.T) {
	// Two buyers after the last unit: the first reserve lands, the second
	// sees it in the active sum and is refused.
	ledger, _, _ := newTestLedger(TierStock{ID: "TIER-1", Capacity: int64ptr(1), Sold: 0}, 0)

	_, err := ledger.Reserve(context.Background(), "TIER-1", 1, "ORD-1", nil)
	require.NoError(t, err)

	_, err = ledger.Reserve(context.Background(), "TIER-1", 1, "ORD-2", nil)
	require.Error(t, err)
	assert.Equal(t, status.SOLD_OUT, errors.Destruct(err).Status)
}

func TestReserveUnlimitedCapacity(t *testing.T) {
	ledger, _, _ := newTestLedger(TierStock{ID: "TIER-1", Capacity: nil}, 100000)

	_, err := ledger.Reserve(context.Background(), "TIER-1", 500, "ORD-1", nil)
	assert.NoError(t, err)
}

func TestReserveArchivedTier(t *testing.T) {
	ledger, _, _ := newTestLedger(TierStock{ID: "TIER-1", Archived: true}, 0)

	_, err := ledger.Reserve(context.Background(), "TIER-1", 1, "ORD-1", nil)
	assert.Error(t, err)
}

func TestConvertAddsSoldAndDropsHold(t *testing.T) {
	ledger, tiers, reservations := newTestLedger(TierStock{ID: "TIER-1", Capacity: int64ptr(10), Sold: 4}, 2)

	err := ledger.Convert(context.Background(), "ORD-1", []SoldUnit{{TierID: "TIER-1", Quantity: 2}}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(6), tiers.ts.Sold)
	assert.Equal(t, []string{"ORD-1"}, reservations.deleted)
	assert.Zero(t, tiers.forceAdds)
}

func TestConvertForceCountsWhenHoldExpired(t *testing.T) {
	// The hold expired and the capacity was re-sold; the paid order still
	// wins and the overage is force counted.
	ledger, tiers, _ := newTestLedger(TierStock{ID: "TIER-1", Capacity: int64ptr(10), Sold: 10}, 0)

	err := ledger.Convert(context.Background(), "ORD-1", []SoldUnit{{TierID: "TIER-1", Quantity: 1}}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(11), tiers.ts.Sold)
	assert.Equal(t, int64(1), tiers.forceAdds)
}

func TestCheckAvailability(t *testing.T) {
	ledger, _, _ := newTestLedger(TierStock{ID: "TIER-1", Capacity: int64ptr(10), Sold: 4}, 3)

	ok, err := ledger.CheckAvailability(context.Background(), "TIER-1", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.CheckAvailability(context.Background(), "TIER-1", 4)
	require.NoError(t, err)
	assert.False(t, ok)
}
