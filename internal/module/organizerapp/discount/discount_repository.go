package discount

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type DiscountRepository interface {
	Save(ctx context.Context, d Discount, tx *sql.Tx) error
	FindByEventIDAndCode(ctx context.Context, eventID, code string, tx *sql.Tx) (Discount, error)
	FindManyByEventID(ctx context.Context, eventID string, tx *sql.Tx) ([]Discount, error)
	Update(ctx context.Context, ID string, d Discount, tx *sql.Tx) error
	Consume(ctx context.Context, ID string, tx *sql.Tx) (bool, error)
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type discountRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewDiscountRepository(logger *logrus.Logger, db *sql.DB) DiscountRepository {
	return &discountRepository{
		logger: logger,
		db:     db,
	}
}

const discountColumns = `id, event_id, code, type, value, starts_at, ends_at, max_uses, used_count, active, created_at, updated_at`

// Save implements DiscountRepository.
func (r *discountRepository) Save(ctx context.Context, d Discount, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		INSERT INTO discount
		(
			%s
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`, discountColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving discount's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, d.ID, d.EventID, d.Code, d.Type, d.Value, d.StartsAt, d.EndsAt, d.MaxUses, d.UsedCount, d.Active, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving discount's properties")
	}

	return nil
}

// FindByEventIDAndCode implements DiscountRepository.
func (r *discountRepository) FindByEventIDAndCode(ctx context.Context, eventID, code string, tx *sql.Tx) (Discount, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM discount
		WHERE event_id = $1 AND code = $2
		LIMIT 1
	`, discountColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Discount{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting discount's properties")
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, eventID, code)

	var d Discount
	err = row.Scan(&d.ID, &d.EventID, &d.Code, &d.Type, &d.Value, &d.StartsAt, &d.EndsAt, &d.MaxUses, &d.UsedCount, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Discount{}, errors.New(http.StatusBadRequest, status.INVALID_DISCOUNT, fmt.Sprintf("discount code '%s' is not valid for this event", code))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Discount{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting discount's properties")
	}

	return d, nil
}

// FindManyByEventID implements DiscountRepository.
func (r *discountRepository) FindManyByEventID(ctx context.Context, eventID string, tx *sql.Tx) ([]Discount, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM discount
		WHERE event_id = $1
		ORDER BY created_at DESC
	`, discountColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of discount's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, eventID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of discount's properties")
	}

	defer rows.Close()

	var data = make([]Discount, 0)
	for rows.Next() {
		var d Discount
		if err := rows.Scan(&d.ID, &d.EventID, &d.Code, &d.Type, &d.Value, &d.StartsAt, &d.EndsAt, &d.MaxUses, &d.UsedCount, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of discount's properties")
		}

		data = append(data, d)
	}

	return data, nil
}

// Update implements DiscountRepository.
func (r *discountRepository) Update(ctx context.Context, ID string, d Discount, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE discount
		SET
			type = $1,
			value = $2,
			starts_at = $3,
			ends_at = $4,
			max_uses = $5,
			active = $6,
			updated_at = $7
		WHERE id = $8
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating discount's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, d.Type, d.Value, d.StartsAt, d.EndsAt, d.MaxUses, d.Active, d.UpdatedAt, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating discount's properties")
	}

	return nil
}

// Consume implements DiscountRepository. The cap is enforced in the
// statement so two simultaneous redemptions at the cap settle to exactly
// one winner.
func (r *discountRepository) Consume(ctx context.Context, ID string, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE discount
		SET
			used_count = used_count + 1,
			updated_at = NOW()
		WHERE
			id = $1
		AND
			used_count < max_uses
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while consuming discount's usage")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while consuming discount's usage")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while consuming discount's usage")
	}

	return affected == 1, nil
}
