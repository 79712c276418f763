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

type EventRepository interface {
	Save(ctx context.Context, e Event, tx *sql.Tx) error
	FindByID(ctx context.Context, ID string, tx *sql.Tx) (Event, error)
	FindByIDAndOrganizerID(ctx context.Context, ID string, organizerID int64, tx *sql.Tx) (Event, error)
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type eventRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewEventRepository(logger *logrus.Logger, db *sql.DB) EventRepository {
	return &eventRepository{
		logger: logger,
		db:     db,
	}
}

// Save implements EventRepository.
func (r *eventRepository) Save(ctx context.Context, e Event, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO event
		(
			id, organizer_id, name, venue, starts_at, status, created_at, updated_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving event's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, e.ID, e.OrganizerID, e.Name, e.Venue, e.StartsAt, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving event's properties")
	}

	return nil
}

// FindByID implements EventRepository.
func (r *eventRepository) FindByID(ctx context.Context, ID string, tx *sql.Tx) (Event, error) {
	return r.findOne(ctx, tx, `
		SELECT id, organizer_id, name, venue, starts_at, status, created_at, updated_at
		FROM event
		WHERE id = $1
		LIMIT 1
	`, ID)
}

// FindByIDAndOrganizerID implements EventRepository.
func (r *eventRepository) FindByIDAndOrganizerID(ctx context.Context, ID string, organizerID int64, tx *sql.Tx) (Event, error) {
	return r.findOne(ctx, tx, `
		SELECT id, organizer_id, name, venue, starts_at, status, created_at, updated_at
		FROM event
		WHERE id = $1 AND organizer_id = $2
		LIMIT 1
	`, ID, organizerID)
}

func (r *eventRepository) findOne(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (Event, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Event{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting event's properties")
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, args...)

	var data Event
	err = row.Scan(&data.ID, &data.OrganizerID, &data.Name, &data.Venue, &data.StartsAt, &data.Status, &data.CreatedAt, &data.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Event{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("event with id '%v' is not found", args[0]))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Event{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting event's properties")
	}

	return data, nil
}
