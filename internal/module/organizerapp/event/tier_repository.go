package event

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type TierRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(ctx context.Context, tx *sql.Tx) error
	Rollback(ctx context.Context, tx *sql.Tx) error

	Save(ctx context.Context, t Tier, tx *sql.Tx) error
	FindByID(ctx context.Context, ID string, tx *sql.Tx) (Tier, error)
	FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (Tier, error)
	FindManyByEventID(ctx context.Context, eventID string, tx *sql.Tx) ([]Tier, error)
	Update(ctx context.Context, ID string, t Tier, tx *sql.Tx) error
	Archive(ctx context.Context, ID string, tx *sql.Tx) error
}

type tierRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewTierRepository(logger *logrus.Logger, db *sql.DB) TierRepository {
	return &tierRepository{
		logger: logger,
		db:     db,
	}
}

// BeginTx implements TierRepository.
func (r *tierRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to begin transaction")
	}

	return tx, nil
}

// CommitTx implements TierRepository.
func (r *tierRepository) CommitTx(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to commit transaction")
	}

	return nil
}

// Rollback implements TierRepository.
func (r *tierRepository) Rollback(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to rollback transaction")
	}

	return nil
}

const tierColumns = `id, event_id, name, unit_price, capacity, max_per_order, sort_order, sold, archived, created_at, updated_at`

// Save implements TierRepository.
func (r *tierRepository) Save(ctx context.Context, t Tier, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO tier
		(
			id, event_id, name, unit_price, capacity, max_per_order, sort_order, sold, archived, created_at, updated_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving tier's properties")
	}
	defer stmt.Close()

	var capacity sql.NullInt64
	var maxPerOrder sql.NullInt64

	if t.Capacity != nil {
		capacity.Int64 = *t.Capacity
		capacity.Valid = true
	}
	if t.MaxPerOrder != nil {
		maxPerOrder.Int64 = *t.MaxPerOrder
		maxPerOrder.Valid = true
	}

	_, err = stmt.ExecContext(ctx, t.ID, t.EventID, t.Name, t.UnitPrice, capacity, maxPerOrder, t.SortOrder, t.Sold, t.Archived, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving tier's properties")
	}

	return nil
}

func (r *tierRepository) scanTier(row *sql.Row) (Tier, error) {
	var data Tier
	var capacity sql.NullInt64
	var maxPerOrder sql.NullInt64

	err := row.Scan(
		&data.ID, &data.EventID, &data.Name, &data.UnitPrice, &capacity, &maxPerOrder,
		&data.SortOrder, &data.Sold, &data.Archived, &data.CreatedAt, &data.UpdatedAt,
	)
	if err != nil {
		return Tier{}, err
	}

	if capacity.Valid {
		data.Capacity = &capacity.Int64
	}
	if maxPerOrder.Valid {
		data.MaxPerOrder = &maxPerOrder.Int64
	}

	return data, nil
}

// FindByID implements TierRepository.
func (r *tierRepository) FindByID(ctx context.Context, ID string, tx *sql.Tx) (Tier, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM tier
		WHERE id = $1
		LIMIT 1
	`, tierColumns), ID)
}

// FindByIDForUpdate implements TierRepository. The row lock serializes
// concurrent capacity mutations on the same tier.
func (r *tierRepository) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (Tier, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM tier
		WHERE id = $1
		FOR UPDATE
	`, tierColumns), ID)
}

func (r *tierRepository) findOne(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (Tier, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Tier{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting tier's properties")
	}
	defer stmt.Close()

	data, err := r.scanTier(stmt.QueryRowContext(ctx, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return Tier{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("tier with id '%v' is not found", args[0]))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Tier{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting tier's properties")
	}

	return data, nil
}

// FindManyByEventID implements TierRepository.
func (r *tierRepository) FindManyByEventID(ctx context.Context, eventID string, tx *sql.Tx) ([]Tier, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM tier
		WHERE event_id = $1
		ORDER BY sort_order ASC
	`, tierColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of tier's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, eventID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of tier's properties")
	}

	defer rows.Close()

	var data = make([]Tier, 0)
	for rows.Next() {
		var t Tier
		var capacity sql.NullInt64
		var maxPerOrder sql.NullInt64

		if err := rows.Scan(
			&t.ID, &t.EventID, &t.Name, &t.UnitPrice, &capacity, &maxPerOrder,
			&t.SortOrder, &t.Sold, &t.Archived, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of tier's properties")
		}

		if capacity.Valid {
			t.Capacity = &capacity.Int64
		}
		if maxPerOrder.Valid {
			t.MaxPerOrder = &maxPerOrder.Int64
		}

		data = append(data, t)
	}

	return data, nil
}

// Update implements TierRepository.
func (r *tierRepository) Update(ctx context.Context, ID string, t Tier, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE tier
		SET
			name = $1,
			unit_price = $2,
			capacity = $3,
			max_per_order = $4,
			sort_order = $5,
			updated_at = $6
		WHERE id = $7
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier's properties")
	}
	defer stmt.Close()

	var capacity sql.NullInt64
	var maxPerOrder sql.NullInt64

	if t.Capacity != nil {
		capacity.Int64 = *t.Capacity
		capacity.Valid = true
	}
	if t.MaxPerOrder != nil {
		maxPerOrder.Int64 = *t.MaxPerOrder
		maxPerOrder.Valid = true
	}

	_, err = stmt.ExecContext(ctx, t.Name, t.UnitPrice, capacity, maxPerOrder, t.SortOrder, t.UpdatedAt, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating tier's properties")
	}

	return nil
}

// Archive implements TierRepository. Tiers are never physically deleted
// once sold; archived tiers stop being sellable but keep their rows.
func (r *tierRepository) Archive(ctx context.Context, ID string, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE tier
		SET
			archived = TRUE,
			updated_at = NOW()
		WHERE id = $1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while archiving tier's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while archiving tier's properties")
	}

	return nil
}
