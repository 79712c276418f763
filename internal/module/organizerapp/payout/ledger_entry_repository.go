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

type PendingSummary struct {
	Amount         int64
	EntryCount     int64
	EstimatedCount int64
}

type LedgerEntryRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(ctx context.Context, tx *sql.Tx) error
	Rollback(ctx context.Context, tx *sql.Tx) error

	SaveSale(ctx context.Context, e LedgerEntry, tx *sql.Tx) (bool, error)
	SaveRefund(ctx context.Context, e LedgerEntry, tx *sql.Tx) error
	UpgradeSaleFeeBasis(ctx context.Context, orderID string, tx *sql.Tx) (bool, error)
	FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]LedgerEntry, error)
	SummarizePending(ctx context.Context, organizerID int64, periodStart, periodEnd *time.Time, tx *sql.Tx) (PendingSummary, error)
	AssignToPayout(ctx context.Context, organizerID int64, payoutID string, periodStart, periodEnd time.Time, tx *sql.Tx) (int64, error)
	SumByPayoutID(ctx context.Context, payoutID string, tx *sql.Tx) (int64, error)
	MarkPaidByPayoutID(ctx context.Context, payoutID string, tx *sql.Tx) error
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type ledgerEntryRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewLedgerEntryRepository(logger *logrus.Logger, db *sql.DB) LedgerEntryRepository {
	return &ledgerEntryRepository{
		logger: logger,
		db:     db,
	}
}

const ledgerEntryColumns = `id, organizer_id, event_id, order_id, type, amount, fee_basis, status, payout_id, created_at`

// BeginTx implements LedgerEntryRepository.
func (r *ledgerEntryRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while starting a transaction")
	}

	return tx, nil
}

// CommitTx implements LedgerEntryRepository.
func (r *ledgerEntryRepository) CommitTx(ctx context.Context, tx *sql.Tx) error {
	err := tx.Commit()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while committing a transaction")
	}

	return nil
}

// Rollback implements LedgerEntryRepository.
func (r *ledgerEntryRepository) Rollback(ctx context.Context, tx *sql.Tx) error {
	err := tx.Rollback()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while rolling back a transaction")
	}

	return nil
}

// SaveSale implements LedgerEntryRepository. A partial unique index on
// (order_id) WHERE type = 'SALE' makes the insert a no-op when the sale
// entry already exists, which is how redelivered charge webhooks stay
// idempotent. The returned bool reports whether a row was inserted.
func (r *ledgerEntryRepository) SaveSale(ctx context.Context, e LedgerEntry, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO payout_ledger_entry
		(
			organizer_id, event_id, order_id, type, amount, fee_basis, status, created_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (order_id) WHERE type = 'SALE' DO NOTHING
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ledger entry's properties")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, e.OrganizerID, e.EventID, e.OrderID, EntryTypeSale, e.Amount, e.FeeBasis, EntryStatusPending, e.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ledger entry's properties")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ledger entry's properties")
	}

	return affected > 0, nil
}

// SaveRefund implements LedgerEntryRepository. Refund entries are always
// negative; the caller derives the amount from the refunded delta the
// order row actually accepted, so repeated inserts stay within the sale
// entry's magnitude.
func (r *ledgerEntryRepository) SaveRefund(ctx context.Context, e LedgerEntry, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO payout_ledger_entry
		(
			organizer_id, event_id, order_id, type, amount, fee_basis, status, created_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ledger entry's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, e.OrganizerID, e.EventID, e.OrderID, EntryTypeRefund, e.Amount, e.FeeBasis, EntryStatusPending, e.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ledger entry's properties")
	}

	return nil
}

// UpgradeSaleFeeBasis implements LedgerEntryRepository. Flips an
// estimated sale entry to the actual basis once the provider settles the
// fee. Entries already swept into a payout are left alone; finalize
// refuses estimated entries so that condition never holds in practice.
func (r *ledgerEntryRepository) UpgradeSaleFeeBasis(ctx context.Context, orderID string, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE payout_ledger_entry
		SET fee_basis = $1
		WHERE order_id = $2 AND type = $3 AND fee_basis = $4 AND payout_id IS NULL
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ledger entry's properties")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, FeeBasisActual, orderID, EntryTypeSale, FeeBasisEstimated)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ledger entry's properties")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ledger entry's properties")
	}

	return affected > 0, nil
}

// FindManyByOrderID implements LedgerEntryRepository.
func (r *ledgerEntryRepository) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]LedgerEntry, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM payout_ledger_entry
		WHERE order_id = $1
		ORDER BY id ASC
	`, ledgerEntryColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ledger entries")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, orderID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ledger entries")
	}
	defer rows.Close()

	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		var e LedgerEntry
		err = rows.Scan(&e.ID, &e.OrganizerID, &e.EventID, &e.OrderID, &e.Type, &e.Amount, &e.FeeBasis, &e.Status, &e.PayoutID, &e.CreatedAt)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ledger entries")
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// SummarizePending implements LedgerEntryRepository. Pending entries are
// those not yet swept into a payout batch. Nil period bounds leave the
// corresponding side open.
func (r *ledgerEntryRepository) SummarizePending(ctx context.Context, organizerID int64, periodStart, periodEnd *time.Time, tx *sql.Tx) (PendingSummary, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT
			COALESCE(SUM(amount), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE fee_basis = $2)
		FROM payout_ledger_entry
		WHERE organizer_id = $1 AND status = $3 AND payout_id IS NULL
			AND ($4::timestamptz IS NULL OR created_at >= $4)
			AND ($5::timestamptz IS NULL OR created_at < $5)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return PendingSummary{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while summarizing ledger entries")
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, organizerID, FeeBasisEstimated, EntryStatusPending, periodStart, periodEnd)

	var summary PendingSummary
	err = row.Scan(&summary.Amount, &summary.EntryCount, &summary.EstimatedCount)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return PendingSummary{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while summarizing ledger entries")
	}

	return summary, nil
}

// AssignToPayout implements LedgerEntryRepository. Only pending entries
// created inside the payout period are swept. Returns the number of
// entries assigned to the batch.
func (r *ledgerEntryRepository) AssignToPayout(ctx context.Context, organizerID int64, payoutID string, periodStart, periodEnd time.Time, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE payout_ledger_entry
		SET payout_id = $1
		WHERE organizer_id = $2 AND status = $3 AND payout_id IS NULL
			AND created_at >= $4 AND created_at < $5
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while assigning ledger entries to a payout")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, payoutID, organizerID, EntryStatusPending, periodStart, periodEnd)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while assigning ledger entries to a payout")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while assigning ledger entries to a payout")
	}

	return affected, nil
}

// SumByPayoutID implements LedgerEntryRepository.
func (r *ledgerEntryRepository) SumByPayoutID(ctx context.Context, payoutID string, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payout_ledger_entry
		WHERE payout_id = $1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while summing ledger entries")
	}
	defer stmt.Close()

	var sum int64
	err = stmt.QueryRowContext(ctx, payoutID).Scan(&sum)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while summing ledger entries")
	}

	return sum, nil
}

// MarkPaidByPayoutID implements LedgerEntryRepository.
func (r *ledgerEntryRepository) MarkPaidByPayoutID(ctx context.Context, payoutID string, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE payout_ledger_entry
		SET status = $1
		WHERE payout_id = $2
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ledger entries")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, EntryStatusPaid, payoutID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ledger entries")
	}

	return nil
}
