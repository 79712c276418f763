package payout

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type PayoutRepository interface {
	Save(ctx context.Context, p Payout, tx *sql.Tx) error
	FindByIDAndOrganizerID(ctx context.Context, ID string, organizerID int64, tx *sql.Tx) (Payout, error)
	FindManyByOrganizerID(ctx context.Context, organizerID int64, tx *sql.Tx) ([]Payout, error)
	MarkPaidIfFinalized(ctx context.Context, ID string, paidAt time.Time, tx *sql.Tx) (bool, error)
}

type payoutRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewPayoutRepository(logger *logrus.Logger, db *sql.DB) PayoutRepository {
	return &payoutRepository{
		logger: logger,
		db:     db,
	}
}

const payoutColumns = `id, organizer_id, amount, entry_count, status, method, period_start, period_end, paid_at, created_at`

// Save implements PayoutRepository.
func (r *payoutRepository) Save(ctx context.Context, p Payout, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		INSERT INTO payout
		(
			%s
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`, payoutColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving payout's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, p.ID, p.OrganizerID, p.Amount, p.EntryCount, p.Status, p.Method, p.PeriodStart, p.PeriodEnd, p.PaidAt, p.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving payout's properties")
	}

	return nil
}

// FindByIDAndOrganizerID implements PayoutRepository.
func (r *payoutRepository) FindByIDAndOrganizerID(ctx context.Context, ID string, organizerID int64, tx *sql.Tx) (Payout, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM payout
		WHERE id = $1 AND organizer_id = $2
		LIMIT 1
	`, payoutColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Payout{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payout's properties")
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, ID, organizerID)

	var p Payout
	err = row.Scan(&p.ID, &p.OrganizerID, &p.Amount, &p.EntryCount, &p.Status, &p.Method, &p.PeriodStart, &p.PeriodEnd, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Payout{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("payout with id '%s' is not found", ID))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Payout{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payout's properties")
	}

	return p, nil
}

// FindManyByOrganizerID implements PayoutRepository.
func (r *payoutRepository) FindManyByOrganizerID(ctx context.Context, organizerID int64, tx *sql.Tx) ([]Payout, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM payout
		WHERE organizer_id = $1
		ORDER BY created_at DESC
	`, payoutColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payouts")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, organizerID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payouts")
	}
	defer rows.Close()

	payouts := make([]Payout, 0)
	for rows.Next() {
		var p Payout
		err = rows.Scan(&p.ID, &p.OrganizerID, &p.Amount, &p.EntryCount, &p.Status, &p.Method, &p.PeriodStart, &p.PeriodEnd, &p.PaidAt, &p.CreatedAt)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting payouts")
		}

		payouts = append(payouts, p)
	}

	return payouts, nil
}

// MarkPaidIfFinalized implements PayoutRepository. Compare and swap on the
// status column; returns false when the payout was already paid.
func (r *payoutRepository) MarkPaidIfFinalized(ctx context.Context, ID string, paidAt time.Time, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE payout
		SET status = $1, paid_at = $2
		WHERE id = $3 AND status = $4
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating payout's status")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, PayoutStatusPaid, paidAt, ID, PayoutStatusFinalized)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating payout's status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating payout's status")
	}

	return affected > 0, nil
}
