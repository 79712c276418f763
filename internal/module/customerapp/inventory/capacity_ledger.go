package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/pkg/util"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

// CapacityLedger owns the sold+reserved accounting for tiers. Reserve,
// Release and Convert run inside the caller's transaction so inventory
// moves atomically with order state. Availability is always re-checked
// under the tier row lock at write time; a prior CheckAvailability read is
// advisory only.
type CapacityLedger interface {
	CheckAvailability(ctx context.Context, tierID string, quantity int64) (bool, error)
	Reserve(ctx context.Context, tierID string, quantity int64, orderID string, tx *sql.Tx) (Reservation, error)
	Release(ctx context.Context, orderID string, tx *sql.Tx) error
	Convert(ctx context.Context, orderID string, units []SoldUnit, tx *sql.Tx) error
	SweepExpired(ctx context.Context) (int64, error)
}

// SoldUnit is one tier/quantity pair of a paid order to be converted into
// permanently sold capacity.
type SoldUnit struct {
	TierID   string
	Quantity int64
}

type capacityLedger struct {
	logger                *logrus.Logger
	reservationTTL        time.Duration
	tierStockRepository   TierStockRepository
	reservationRepository ReservationRepository
}

type CapacityLedgerProperty struct {
	Logger                *logrus.Logger
	ReservationTTL        time.Duration
	TierStockRepository   TierStockRepository
	ReservationRepository ReservationRepository
}

func NewCapacityLedger(props CapacityLedgerProperty) CapacityLedger {
	return &capacityLedger{
		logger:                props.Logger,
		reservationTTL:        props.ReservationTTL,
		tierStockRepository:   props.TierStockRepository,
		reservationRepository: props.ReservationRepository,
	}
}

// CheckAvailability implements CapacityLedger.
func (l *capacityLedger) CheckAvailability(ctx context.Context, tierID string, quantity int64) (bool, error) {
	ts, err := l.tierStockRepository.FindByID(ctx, tierID, nil)
	if err != nil {
		return false, err
	}

	if ts.Archived {
		return false, nil
	}

	if ts.Capacity == nil {
		return true, nil
	}

	reserved, err := l.reservationRepository.SumActiveQuantityByTierID(ctx, tierID, time.Now(), nil)
	if err != nil {
		return false, err
	}

	return ts.Sold+reserved+quantity <= *ts.Capacity, nil
}

// Reserve implements CapacityLedger. The tier row lock serializes two
// near-sellout checkouts; the loser sees the winner's reservation in the
// sum and gets a sold-out error with no side effects.
func (l *capacityLedger) Reserve(ctx context.Context, tierID string, quantity int64, orderID string, tx *sql.Tx) (Reservation, error) {
	ts, err := l.tierStockRepository.FindByIDForUpdate(ctx, tierID, tx)
	if err != nil {
		return Reservation{}, err
	}

	if ts.Archived {
		return Reservation{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, fmt.Sprintf("tier '%s' is no longer on sale", tierID))
	}

	now := time.Now()

	if ts.Capacity != nil {
		reserved, err := l.reservationRepository.SumActiveQuantityByTierID(ctx, tierID, now, tx)
		if err != nil {
			return Reservation{}, err
		}

		if ts.Sold+reserved+quantity > *ts.Capacity {
			return Reservation{}, errors.New(http.StatusBadRequest, status.SOLD_OUT, fmt.Sprintf("tier '%s' is sold out", tierID))
		}
	}

	res := Reservation{
		ID:        util.NewCorrelationID(),
		TierID:    tierID,
		OrderID:   orderID,
		Quantity:  quantity,
		ExpiresAt: now.Add(l.reservationTTL),
		CreatedAt: now,
	}

	if err := l.reservationRepository.Save(ctx, res, tx); err != nil {
		return Reservation{}, err
	}

	return res, nil
}

// Release implements CapacityLedger.
func (l *capacityLedger) Release(ctx context.Context, orderID string, tx *sql.Tx) error {
	return l.reservationRepository.DeleteByOrderID(ctx, orderID, tx)
}

// Convert implements CapacityLedger. Converts a paid order's holds into
// permanently sold units. While the reservation is alive sold+quantity is
// guaranteed to fit; if the hold expired and the slot was re-consumed the
// paid order still wins, the overage is force-counted and logged for
// manual follow up.
func (l *capacityLedger) Convert(ctx context.Context, orderID string, units []SoldUnit, tx *sql.Tx) error {
	for _, unit := range units {
		if _, err := l.tierStockRepository.FindByIDForUpdate(ctx, unit.TierID, tx); err != nil {
			return err
		}

		err := l.tierStockRepository.AddSold(ctx, unit.TierID, unit.Quantity, tx)
		if err != nil {
			ae := errors.Destruct(err)
			if ae.HTTPStatusCode != http.StatusConflict {
				return err
			}

			l.logger.WithContext(ctx).WithFields(logrus.Fields{
				"order_id": orderID,
				"tier_id":  unit.TierID,
				"quantity": unit.Quantity,
			}).Error("paid order exceeds tier capacity; hold expired before settlement, counting anyway")

			if err := l.tierStockRepository.ForceAddSold(ctx, unit.TierID, unit.Quantity, tx); err != nil {
				return err
			}
		}
	}

	return l.reservationRepository.DeleteByOrderID(ctx, orderID, tx)
}

// SweepExpired implements CapacityLedger.
func (l *capacityLedger) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := l.reservationRepository.DeleteExpired(ctx, time.Now(), nil)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		l.logger.WithContext(ctx).WithField("deleted", deleted).Info("expired capacity reservations have been swept")
	}

	return deleted, nil
}
