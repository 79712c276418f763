package order

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type ItemRepository interface {
	Save(ctx context.Context, item Item, tx *sql.Tx) error
	FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Item, error)
}

type itemRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewItemRepository(logger *logrus.Logger, db *sql.DB) ItemRepository {
	return &itemRepository{
		logger: logger,
		db:     db,
	}
}

// Save implements ItemRepository.
func (r *itemRepository) Save(ctx context.Context, item Item, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO ticket_order_item
		(
			order_id, tier_id, tier_name, event_id, unit_price, quantity, allocated_tax, allocated_fee
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving order item's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, item.OrderID, item.TierID, item.TierName, item.EventID, item.UnitPrice, item.Quantity, item.AllocatedTax, item.AllocatedFee)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving order item's properties")
	}

	return nil
}

// FindManyByOrderID implements ItemRepository.
func (r *itemRepository) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Item, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT id, order_id, tier_id, tier_name, event_id, unit_price, quantity, allocated_tax, allocated_fee
		FROM ticket_order_item
		WHERE order_id = $1
		ORDER BY id ASC
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of order item's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, orderID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of order item's properties")
	}

	defer rows.Close()

	var data = make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.TierID, &item.TierName, &item.EventID, &item.UnitPrice, &item.Quantity, &item.AllocatedTax, &item.AllocatedFee); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of order item's properties")
		}

		data = append(data, item)
	}

	return data, nil
}
