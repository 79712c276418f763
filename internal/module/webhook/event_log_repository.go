package webhook

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type EventLogRepository interface {
	Save(ctx context.Context, e EventLog) (int64, bool, error)
	MarkProcessed(ctx context.Context, ID int64, at time.Time) error
	MarkFailed(ctx context.Context, ID int64, message string) error
}

type eventLogRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewEventLogRepository(logger *logrus.Logger, db *sql.DB) EventLogRepository {
	return &eventLogRepository{
		logger: logger,
		db:     db,
	}
}

// Save implements EventLogRepository. Inserts run outside any caller
// transaction so the log row survives a failed processing attempt. The
// unique index on provider_event_id absorbs redelivery of processed and
// in-flight events, but a FAILED row is re-claimed back to PENDING so the
// provider's retry gets another processing attempt. The returned bool
// reports whether this delivery claimed the event.
func (r *eventLogRepository) Save(ctx context.Context, e EventLog) (int64, bool, error) {
	query := `
		INSERT INTO webhook_event_log
		(
			provider_event_id, kind, payload, status, created_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5
		)
		ON CONFLICT (provider_event_id) DO UPDATE
		SET status = $4, error = NULL
		WHERE webhook_event_log.status = 'FAILED'
		RETURNING id
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving webhook event log")
	}
	defer stmt.Close()

	var ID int64
	err = stmt.QueryRowContext(ctx, e.ProviderEventID, e.Kind, e.Payload, e.Status, e.CreatedAt).Scan(&ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving webhook event log")
	}

	return ID, true, nil
}

// MarkProcessed implements EventLogRepository.
func (r *eventLogRepository) MarkProcessed(ctx context.Context, ID int64, at time.Time) error {
	query := `
		UPDATE webhook_event_log
		SET status = $1, processed_at = $2, error = NULL
		WHERE id = $3
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating webhook event log")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, LogStatusProcessed, at, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating webhook event log")
	}

	return nil
}

// MarkFailed implements EventLogRepository.
func (r *eventLogRepository) MarkFailed(ctx context.Context, ID int64, message string) error {
	query := `
		UPDATE webhook_event_log
		SET status = $1, error = $2
		WHERE id = $3
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating webhook event log")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, LogStatusFailed, message, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating webhook event log")
	}

	return nil
}
