package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type TierStockRepository interface {
	FindByID(ctx context.Context, ID string, tx *sql.Tx) (TierStock, error)
	FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (TierStock, error)
	AddSold(ctx context.Context, ID string, quantity int64, tx *sql.Tx) error
	ForceAddSold(ctx context.Context, ID string, quantity int64, tx *sql.Tx) error
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type tierStockRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewTierStockRepository(logger *logrus.Logger, db *sql.DB) TierStockRepository {
	return &tierStockRepository{
		logger: logger,
		db:     db,
	}
}

// FindByID implements TierStockRepository.
func (r *tierStockRepository) FindByID(ctx context.Context, ID string, tx *sql.Tx) (TierStock, error) {
	return r.findOne(ctx, tx, `
		SELECT id, event_id, name, unit_price, capacity, max_per_order, sold, archived
		FROM tier
		WHERE id = $1
		LIMIT 1
	`, ID)
}

// FindByIDForUpdate implements TierStockRepository. The row lock makes the
// availability re-check and the reservation insert one atomic step under
// concurrent checkouts.
func (r *tierStockRepository) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (TierStock, error) {
	return r.findOne(ctx, tx, `
		SELECT id, event_id, name, unit_price, capacity, max_per_order, sold, archived
		FROM tier
		WHERE id = $1
		FOR UPDATE
	`, ID)
}

func (r *tierStockRepository) findOne(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (TierStock, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return TierStock{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting tier stock's properties")
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, args...)

	var data TierStock
	var capacity sql.NullInt64
	var maxPerOrder sql.NullInt64

	err = row.Scan(&data.ID, &data.EventID, &data.Name, &data.UnitPrice, &capacity, &maxPerOrder, &data.Sold, &data.Archived)
	if err != nil {
		if err == sql.ErrNoRows {
			return TierStock{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("tier with id '%v' is not found", args[0]))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return TierStock{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting tier stock's properties")
	}

	if capacity.Valid {
		data.Capacity = &capacity.Int64
	}
	if maxPerOrder.Valid {
		data.MaxPerOrder = &maxPerOrder.Int64
	}

	return data, nil
}

// AddSold implements TierStockRepository. The capacity bound is re-checked
// inside the UPDATE itself so a stale prior read can never push sold past
// capacity.
func (r *tierStockRepository) AddSold(ctx context.Context, ID string, quantity int64, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE tier
		SET
			sold = sold + $1,
			updated_at = NOW()
		WHERE
			id = $2
		AND
			(capacity IS NULL OR sold + $1 <= capacity)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier stock's properties")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, quantity, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier stock's properties")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier stock's properties")
	}

	if affected == 0 {
		return errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("tier '%s' has no remaining capacity for %d units", ID, quantity))
	}

	return nil
}

// ForceAddSold implements TierStockRepository. Skips the capacity bound;
// used only when a paid order's hold was lost to expiry.
func (r *tierStockRepository) ForceAddSold(ctx context.Context, ID string, quantity int64, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE tier
		SET
			sold = sold + $1,
			updated_at = NOW()
		WHERE id = $2
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier stock's properties")
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, quantity, ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier stock's properties")
	}

	return nil
}
