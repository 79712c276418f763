package inventory

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type ReservationRepository interface {
	Save(ctx context.Context, res Reservation, tx *sql.Tx) error
	SumActiveQuantityByTierID(ctx context.Context, tierID string, now time.Time, tx *sql.Tx) (int64, error)
	FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Reservation, error)
	DeleteByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error
	DeleteExpired(ctx context.Context, now time.Time, tx *sql.Tx) (int64, error)
}

type reservationRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewReservationRepository(logger *logrus.Logger, db *sql.DB) ReservationRepository {
	return &reservationRepository{
		logger: logger,
		db:     db,
	}
}

// Save implements ReservationRepository.
func (r *reservationRepository) Save(ctx context.Context, res Reservation, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		INSERT INTO capacity_reservation
		(
			id, tier_id, order_id, quantity, expires_at, created_at
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6
		)
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving reservation's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, res.ID, res.TierID, res.OrderID, res.Quantity, res.ExpiresAt, res.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving reservation's properties")
	}

	return nil
}

// SumActiveQuantityByTierID implements ReservationRepository. Expired rows
// are excluded even before the sweep removes them.
func (r *reservationRepository) SumActiveQuantityByTierID(ctx context.Context, tierID string, now time.Time, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM capacity_reservation
		WHERE
			tier_id = $1
		AND
			expires_at > $2
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while summing reservation's properties")
	}
	defer stmt.Close()

	var total int64
	if err := stmt.QueryRowContext(ctx, tierID, now).Scan(&total); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while summing reservation's properties")
	}

	return total, nil
}

// FindManyByOrderID implements ReservationRepository.
func (r *reservationRepository) FindManyByOrderID(ctx context.Context, orderID string, tx *sql.Tx) ([]Reservation, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT id, tier_id, order_id, quantity, expires_at, created_at
		FROM capacity_reservation
		WHERE order_id = $1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of reservation's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, orderID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of reservation's properties")
	}

	defer rows.Close()

	var data = make([]Reservation, 0)
	for rows.Next() {
		var res Reservation
		if err := rows.Scan(&res.ID, &res.TierID, &res.OrderID, &res.Quantity, &res.ExpiresAt, &res.CreatedAt); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of reservation's properties")
		}

		data = append(data, res)
	}

	return data, nil
}

// DeleteByOrderID implements ReservationRepository.
func (r *reservationRepository) DeleteByOrderID(ctx context.Context, orderID string, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `DELETE FROM capacity_reservation WHERE order_id = $1`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while deleting reservation's properties")
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, orderID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while deleting reservation's properties")
	}

	return nil
}

// DeleteExpired implements ReservationRepository. Safe to run concurrently
// with itself; each row is deleted at most once.
func (r *reservationRepository) DeleteExpired(ctx context.Context, now time.Time, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `DELETE FROM capacity_reservation WHERE expires_at <= $1`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while sweeping expired reservations")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, now)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while sweeping expired reservations")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while sweeping expired reservations")
	}

	return deleted, nil
}
