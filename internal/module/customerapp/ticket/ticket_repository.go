package ticket

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

type TicketRepository interface {
	Save(ctx context.Context, t Ticket, tx *sql.Tx) error
	FindByID(ctx context.Context, ID string, tx *sql.Tx) (Ticket, error)
	FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (Ticket, error)
	FindByScanCredentialForUpdate(ctx context.Context, credential string, tx *sql.Tx) (Ticket, error)
	FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Ticket, error)
	CountByOrderItemID(ctx context.Context, orderItemID int64, tx *sql.Tx) (int64, error)

	UpdateStatusIfCurrent(ctx context.Context, ID string, current, next string, tx *sql.Tx) (bool, error)
	MarkCheckedIn(ctx context.Context, ID string, actorID int64, at time.Time, tx *sql.Tx) (bool, error)
	MarkTransferred(ctx context.Context, ID string, transferredTo string, tx *sql.Tx) (bool, error)
	MarkAllRefundedByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type ticketRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewTicketRepository(logger *logrus.Logger, db *sql.DB) TicketRepository {
	return &ticketRepository{
		logger: logger,
		db:     db,
	}
}

const ticketColumns = `
	id, order_item_id, order_id, tier_id, event_id, holder_name, holder_email,
	scan_credential, status, checked_in_at, checked_in_by, transferred_from,
	transferred_to, created_at, updated_at
`

// Save implements TicketRepository.
func (r *ticketRepository) Save(ctx context.Context, t Ticket, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		INSERT INTO ticket
		(
			%s
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`, ticketColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ticket's properties")
	}
	defer stmt.Close()

	var checkedInAt sql.NullTime
	var checkedInBy sql.NullInt64
	var transferredFrom, transferredTo sql.NullString

	if t.CheckedInAt != nil {
		checkedInAt = sql.NullTime{Time: *t.CheckedInAt, Valid: true}
	}
	if t.CheckedInBy != nil {
		checkedInBy = sql.NullInt64{Int64: *t.CheckedInBy, Valid: true}
	}
	if t.TransferredFrom != nil {
		transferredFrom = sql.NullString{String: *t.TransferredFrom, Valid: true}
	}
	if t.TransferredTo != nil {
		transferredTo = sql.NullString{String: *t.TransferredTo, Valid: true}
	}

	_, err = stmt.ExecContext(ctx,
		t.ID, t.OrderItemID, t.OrderID, t.TierID, t.EventID, t.HolderName, t.HolderEmail,
		t.ScanCredential, t.Status, checkedInAt, checkedInBy, transferredFrom,
		transferredTo, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving ticket's properties")
	}

	return nil
}

func scanTicket(row interface {
	Scan(dest ...interface{}) error
}) (Ticket, error) {
	var t Ticket
	var checkedInAt sql.NullTime
	var checkedInBy sql.NullInt64
	var transferredFrom, transferredTo sql.NullString

	err := row.Scan(
		&t.ID, &t.OrderItemID, &t.OrderID, &t.TierID, &t.EventID, &t.HolderName, &t.HolderEmail,
		&t.ScanCredential, &t.Status, &checkedInAt, &checkedInBy, &transferredFrom,
		&transferredTo, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Ticket{}, err
	}

	if checkedInAt.Valid {
		t.CheckedInAt = &checkedInAt.Time
	}
	if checkedInBy.Valid {
		t.CheckedInBy = &checkedInBy.Int64
	}
	if transferredFrom.Valid {
		t.TransferredFrom = &transferredFrom.String
	}
	if transferredTo.Valid {
		t.TransferredTo = &transferredTo.String
	}

	return t, nil
}

func (r *ticketRepository) findOne(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (Ticket, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Ticket{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ticket's properties")
	}
	defer stmt.Close()

	data, err := scanTicket(stmt.QueryRowContext(ctx, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return Ticket{}, errors.New(http.StatusNotFound, status.NOT_FOUND, "ticket is not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Ticket{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting ticket's properties")
	}

	return data, nil
}

// FindByID implements TicketRepository.
func (r *ticketRepository) FindByID(ctx context.Context, ID string, tx *sql.Tx) (Ticket, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket
		WHERE id = $1
		LIMIT 1
	`, ticketColumns), ID)
}

// FindByIDForUpdate implements TicketRepository.
func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (Ticket, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket
		WHERE id = $1
		FOR UPDATE
	`, ticketColumns), ID)
}

// FindByScanCredentialForUpdate implements TicketRepository.
func (r *ticketRepository) FindByScanCredentialForUpdate(ctx context.Context, credential string, tx *sql.Tx) (Ticket, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket
		WHERE scan_credential = $1
		FOR UPDATE
	`, ticketColumns), credential)
}

// FindManyByOrderID implements TicketRepository.
func (r *ticketRepository) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Ticket, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM ticket
		WHERE order_id = $1
		ORDER BY id ASC
	`, ticketColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of ticket's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, orderID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of ticket's properties")
	}

	defer rows.Close()

	var data = make([]Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of ticket's properties")
		}

		data = append(data, t)
	}

	return data, nil
}

// CountByOrderItemID implements TicketRepository.
func (r *ticketRepository) CountByOrderItemID(ctx context.Context, orderItemID int64, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `SELECT count(id) FROM ticket WHERE order_item_id = $1`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while counting ticket's properties")
	}
	defer stmt.Close()

	var count int64
	if err := stmt.QueryRowContext(ctx, orderItemID).Scan(&count); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while counting ticket's properties")
	}

	return count, nil
}

// UpdateStatusIfCurrent implements TicketRepository.
func (r *ticketRepository) UpdateStatusIfCurrent(ctx context.Context, ID string, current, next string, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket
		SET
			status = $1,
			updated_at = NOW()
		WHERE
			id = $2
		AND
			status = $3
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ticket's status")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, next, ID, current)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ticket's status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating ticket's status")
	}

	return affected == 1, nil
}

// MarkCheckedIn implements TicketRepository. Only a VALID ticket can be
// scanned in; a second scan fails the guard and returns false.
func (r *ticketRepository) MarkCheckedIn(ctx context.Context, ID string, actorID int64, at time.Time, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket
		SET
			status = $1,
			checked_in_at = $2,
			checked_in_by = $3,
			updated_at = NOW()
		WHERE
			id = $4
		AND
			status = $5
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while checking the ticket in")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, StatusUsed, at, actorID, ID, StatusValid)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while checking the ticket in")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while checking the ticket in")
	}

	return affected == 1, nil
}

// MarkTransferred implements TicketRepository.
func (r *ticketRepository) MarkTransferred(ctx context.Context, ID string, transferredTo string, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket
		SET
			status = $1,
			transferred_to = $2,
			updated_at = NOW()
		WHERE
			id = $3
		AND
			status = $4
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while transferring the ticket")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, StatusTransferred, transferredTo, ID, StatusValid)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while transferring the ticket")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while transferring the ticket")
	}

	return affected == 1, nil
}

// MarkAllRefundedByOrderID implements TicketRepository. Used by the full
// refund cascade; tickets already refunded or canceled are untouched.
func (r *ticketRepository) MarkAllRefundedByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket
		SET
			status = $1,
			updated_at = NOW()
		WHERE
			order_id = $2
		AND
			status IN ($3, $4)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while refunding order's tickets")
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, StatusRefunded, orderID, StatusValid, StatusUsed); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while refunding order's tickets")
	}

	return nil
}
