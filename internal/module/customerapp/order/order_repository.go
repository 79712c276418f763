package order

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

// Provider reference fields accepted by SetProviderReference.
const (
	RefCheckoutSession = "checkout_session_id"
	RefPaymentIntent   = "payment_intent_id"
	RefCharge          = "charge_id"
)

type OrderRepository interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(ctx context.Context, tx *sql.Tx) error
	Rollback(ctx context.Context, tx *sql.Tx) error

	Save(ctx context.Context, o Order, tx *sql.Tx) error
	FindByID(ctx context.Context, ID string, tx *sql.Tx) (Order, error)
	FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (Order, error)
	FindByCheckoutSessionID(ctx context.Context, sessionID string, tx *sql.Tx) (Order, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string, tx *sql.Tx) (Order, error)
	FindByChargeID(ctx context.Context, chargeID string, tx *sql.Tx) (Order, error)
	FindMany(ctx context.Context, customerID int64, offset, limit int64, tx *sql.Tx) ([]Order, error)
	Count(ctx context.Context, customerID int64, tx *sql.Tx) (int64, error)

	UpdateStatusIfCurrent(ctx context.Context, ID string, current, next string, tx *sql.Tx) (bool, error)
	SetProviderReference(ctx context.Context, ID string, field string, value string, tx *sql.Tx) error
	SetProviderFee(ctx context.Context, ID string, fee int64, basis string, tx *sql.Tx) error
	AddRefundedAmount(ctx context.Context, ID string, amount int64, refundedAt time.Time, tx *sql.Tx) (int64, error)
}

type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type orderRepository struct {
	logger *logrus.Logger
	db     *sql.DB
}

func NewOrderRepository(logger *logrus.Logger, db *sql.DB) OrderRepository {
	return &orderRepository{
		logger: logger,
		db:     db,
	}
}

// BeginTx implements OrderRepository.
func (r *orderRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to begin transaction")
	}

	return tx, nil
}

// CommitTx implements OrderRepository.
func (r *orderRepository) CommitTx(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to commit transaction")
	}

	return nil
}

// Rollback implements OrderRepository.
func (r *orderRepository) Rollback(ctx context.Context, tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred trying to rollback transaction")
	}

	return nil
}

const orderColumns = `
	id, event_id, customer_id, customer_name, customer_email, status,
	discount_code, subtotal, discount_amount, platform_fee, tax, total_amount,
	refunded_amount, checkout_session_id, payment_intent_id, charge_id,
	provider_fee, provider_fee_basis, placed_at, refunded_at, created_at, updated_at
`

// Save implements OrderRepository.
func (r *orderRepository) Save(ctx context.Context, o Order, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		INSERT INTO ticket_order
		(
			%s
		)
		VALUES
		(
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`, orderColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving order's properties")
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		o.ID, o.EventID, o.CustomerID, o.CustomerName, o.CustomerEmail, o.Status,
		nullString(o.DiscountCode), o.Subtotal, o.DiscountAmount, o.PlatformFee, o.Tax, o.TotalAmount,
		o.RefundedAmount, nullString(o.CheckoutSessionID), nullString(o.PaymentIntentID), nullString(o.ChargeID),
		o.ProviderFee, nullString(o.ProviderFeeBasis), o.PlacedAt, nullTime(o.RefundedAt), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while saving order's properties")
	}

	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func scanOrder(row interface {
	Scan(dest ...interface{}) error
}) (Order, error) {
	var o Order
	var discountCode, checkoutSessionID, paymentIntentID, chargeID, providerFeeBasis sql.NullString
	var refundedAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.EventID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &o.Status,
		&discountCode, &o.Subtotal, &o.DiscountAmount, &o.PlatformFee, &o.Tax, &o.TotalAmount,
		&o.RefundedAmount, &checkoutSessionID, &paymentIntentID, &chargeID,
		&o.ProviderFee, &providerFeeBasis, &o.PlacedAt, &refundedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}

	if discountCode.Valid {
		o.DiscountCode = &discountCode.String
	}
	if checkoutSessionID.Valid {
		o.CheckoutSessionID = &checkoutSessionID.String
	}
	if paymentIntentID.Valid {
		o.PaymentIntentID = &paymentIntentID.String
	}
	if chargeID.Valid {
		o.ChargeID = &chargeID.String
	}
	if providerFeeBasis.Valid {
		o.ProviderFeeBasis = &providerFeeBasis.String
	}
	if refundedAt.Valid {
		o.RefundedAt = &refundedAt.Time
	}

	return o, nil
}

func (r *orderRepository) findOne(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (Order, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return Order{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting order's properties")
	}
	defer stmt.Close()

	data, err := scanOrder(stmt.QueryRowContext(ctx, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return Order{}, errors.New(http.StatusNotFound, status.NOT_FOUND, fmt.Sprintf("order with reference '%v' is not found", args[0]))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return Order{}, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting order's properties")
	}

	return data, nil
}

// FindByID implements OrderRepository.
func (r *orderRepository) FindByID(ctx context.Context, ID string, tx *sql.Tx) (Order, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket_order
		WHERE id = $1
		LIMIT 1
	`, orderColumns), ID)
}

// FindByIDForUpdate implements OrderRepository. Serializes webhook
// deliveries and refunds touching the same order.
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, ID string, tx *sql.Tx) (Order, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket_order
		WHERE id = $1
		FOR UPDATE
	`, orderColumns), ID)
}

// FindByCheckoutSessionID implements OrderRepository.
func (r *orderRepository) FindByCheckoutSessionID(ctx context.Context, sessionID string, tx *sql.Tx) (Order, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket_order
		WHERE checkout_session_id = $1
		LIMIT 1
	`, orderColumns), sessionID)
}

// FindByPaymentIntentID implements OrderRepository.
func (r *orderRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string, tx *sql.Tx) (Order, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket_order
		WHERE payment_intent_id = $1
		LIMIT 1
	`, orderColumns), paymentIntentID)
}

// FindByChargeID implements OrderRepository.
func (r *orderRepository) FindByChargeID(ctx context.Context, chargeID string, tx *sql.Tx) (Order, error) {
	return r.findOne(ctx, tx, fmt.Sprintf(`
		SELECT %s
		FROM ticket_order
		WHERE charge_id = $1
		LIMIT 1
	`, orderColumns), chargeID)
}

// FindMany implements OrderRepository.
func (r *orderRepository) FindMany(ctx context.Context, customerID int64, offset int64, limit int64, tx *sql.Tx) ([]Order, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM ticket_order
		WHERE customer_id = $1
		ORDER BY placed_at DESC
		OFFSET $2
		LIMIT $3
	`, orderColumns)

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of order's properties")
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, customerID, offset, limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of order's properties")
	}

	defer rows.Close()

	var data = make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error()
			return nil, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while getting bunch of order's properties")
		}

		data = append(data, o)
	}

	return data, nil
}

// Count implements OrderRepository.
func (r *orderRepository) Count(ctx context.Context, customerID int64, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		SELECT count(id)
		FROM ticket_order
		WHERE customer_id = $1
		LIMIT 1
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while counting order's properties")
	}
	defer stmt.Close()

	var count int64
	if err := stmt.QueryRowContext(ctx, customerID).Scan(&count); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while counting order's properties")
	}

	return count, nil
}

// UpdateStatusIfCurrent implements OrderRepository. Compare-and-swap on the
// status column; returns false when another writer got there first, which
// callers treat as an idempotent no-op.
func (r *orderRepository) UpdateStatusIfCurrent(ctx context.Context, ID string, current, next string, tx *sql.Tx) (bool, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket_order
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
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating order's status")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, next, ID, current)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating order's status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return false, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while updating order's status")
	}

	return affected == 1, nil
}

// SetProviderReference implements OrderRepository. References arrive in
// different webhook events at different times; a reference can be written
// once and re-written only with the same value.
func (r *orderRepository) SetProviderReference(ctx context.Context, ID string, field string, value string, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	var query string
	switch field {
	case RefCheckoutSession:
		query = `UPDATE ticket_order SET checkout_session_id = $1, updated_at = NOW() WHERE id = $2 AND (checkout_session_id IS NULL OR checkout_session_id = $1)`
	case RefPaymentIntent:
		query = `UPDATE ticket_order SET payment_intent_id = $1, updated_at = NOW() WHERE id = $2 AND (payment_intent_id IS NULL OR payment_intent_id = $1)`
	case RefCharge:
		query = `UPDATE ticket_order SET charge_id = $1, updated_at = NOW() WHERE id = $2 AND (charge_id IS NULL OR charge_id = $1)`
	default:
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, fmt.Sprintf("unknown provider reference field '%s'", field))
	}

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's provider reference")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, value, ID)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's provider reference")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's provider reference")
	}

	if affected == 0 {
		return errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("order '%s' already carries a different %s", ID, field))
	}

	return nil
}

// SetProviderFee implements OrderRepository.
func (r *orderRepository) SetProviderFee(ctx context.Context, ID string, fee int64, basis string, tx *sql.Tx) error {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket_order
		SET
			provider_fee = $1,
			provider_fee_basis = $2,
			updated_at = NOW()
		WHERE id = $3
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's provider fee")
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, fee, basis, ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's provider fee")
	}

	return nil
}

// AddRefundedAmount implements OrderRepository. The bound is enforced in
// the statement itself so the cumulative refund can never pass the order
// total, regardless of what the caller read earlier. Returns the new
// cumulative refunded amount.
func (r *orderRepository) AddRefundedAmount(ctx context.Context, ID string, amount int64, refundedAt time.Time, tx *sql.Tx) (int64, error) {
	var cmd sqlCommand = r.db

	if tx != nil {
		cmd = tx
	}

	query := `
		UPDATE ticket_order
		SET
			refunded_amount = refunded_amount + $1,
			refunded_at = $2,
			updated_at = NOW()
		WHERE
			id = $3
		AND
			refunded_amount + $1 <= total_amount
		RETURNING refunded_amount
	`

	stmt, err := cmd.PrepareContext(ctx, query)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's refunded amount")
	}
	defer stmt.Close()

	var refunded int64
	err = stmt.QueryRowContext(ctx, amount, refundedAt, ID).Scan(&refunded)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("refund of %d would exceed order '%s' total", amount, ID))
		}
		r.logger.WithContext(ctx).WithError(err).Error()
		return 0, errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, "an error occurred while recording order's refunded amount")
	}

	return refunded, nil
}
