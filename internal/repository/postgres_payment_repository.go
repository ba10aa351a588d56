package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/staybook/staybook/internal/database"
	"github.com/staybook/staybook/internal/domain"
)

// PostgreSQL error code for unique violation
const pgUniqueViolationCode = "23505"

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL
type PostgresPaymentRepository struct {
	db *database.PostgresDB
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository
func NewPostgresPaymentRepository(db *database.PostgresDB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

// paymentColumns defines the columns to select for payment queries
const paymentColumns = `
	id, booking_id, user_id, gateway_intent_id, transaction_id,
	amount, currency, status, refunds,
	error_code, error_message, raw_payload,
	created_at, updated_at, processed_at
`

// Create creates a new payment record. The unique index on booking_id
// guarantees one ledger row per booking.
func (r *PostgresPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	refundsJSON, err := json.Marshal(p.Refunds)
	if err != nil {
		return fmt.Errorf("failed to marshal refunds: %w", err)
	}

	_, err = r.db.Pool().Exec(ctx, `
		INSERT INTO payments (
			id, booking_id, user_id, gateway_intent_id, transaction_id,
			amount, currency, status, refunds,
			error_code, error_message, raw_payload,
			created_at, updated_at, processed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`,
		p.ID, p.BookingID, p.UserID, nullString(p.GatewayIntentID), nullString(p.TransactionID),
		p.Amount, p.Currency, string(p.Status), refundsJSON,
		nullString(p.ErrorCode), nullString(p.ErrorMessage), p.RawPayload,
		p.CreatedAt, p.UpdatedAt, p.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return ErrPaymentAlreadyExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByBookingID retrieves the payment for a booking
func (r *PostgresPaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`
	return r.scanPayment(r.db.Pool().QueryRow(ctx, query, bookingID))
}

// GetByIntentID retrieves a payment by processor intent id
func (r *PostgresPaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_intent_id = $1`
	return r.scanPayment(r.db.Pool().QueryRow(ctx, query, intentID))
}

// Update persists the mutable fields of a payment
func (r *PostgresPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	refundsJSON, err := json.Marshal(p.Refunds)
	if err != nil {
		return fmt.Errorf("failed to marshal refunds: %w", err)
	}

	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE payments
		SET gateway_intent_id = $2,
		    transaction_id = $3,
		    status = $4,
		    refunds = $5,
		    error_code = $6,
		    error_message = $7,
		    raw_payload = $8,
		    updated_at = $9,
		    processed_at = $10
		WHERE id = $1`,
		p.ID, nullString(p.GatewayIntentID), nullString(p.TransactionID), string(p.Status), refundsJSON,
		nullString(p.ErrorCode), nullString(p.ErrorMessage), p.RawPayload,
		p.UpdatedAt, p.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// Complete marks the payment succeeded with a guarded update so
// duplicate notifications produce exactly one transition.
func (r *PostgresPaymentRepository) Complete(ctx context.Context, id, transactionID string, rawPayload []byte) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE payments
		SET status = 'completed',
		    transaction_id = $2,
		    raw_payload = COALESCE($3, raw_payload),
		    error_code = NULL,
		    error_message = NULL,
		    processed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'processing', 'failed')`,
		id, transactionID, rawPayload,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	p, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if p.Status == domain.PaymentStatusCompleted {
		return false, nil
	}
	return false, domain.NewError(domain.KindConflict, "PAYMENT_CLOSED", "payment is already settled", nil)
}

// Fail marks the payment failed unless it already settled
func (r *PostgresPaymentRepository) Fail(ctx context.Context, id, errorCode, errorMessage string, rawPayload []byte) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE payments
		SET status = 'failed',
		    error_code = $2,
		    error_message = $3,
		    raw_payload = COALESCE($4, raw_payload),
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'processing', 'failed')`,
		id, errorCode, errorMessage, rawPayload,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Mutate applies fn to the payment under SELECT ... FOR UPDATE so the
// refund ledger cap holds under concurrent requests.
func (r *PostgresPaymentRepository) Mutate(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	p, err := r.scanPayment(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	refundsJSON, err := json.Marshal(p.Refunds)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refunds: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET gateway_intent_id = $2,
		    transaction_id = $3,
		    status = $4,
		    refunds = $5,
		    error_code = $6,
		    error_message = $7,
		    raw_payload = $8,
		    updated_at = $9,
		    processed_at = $10
		WHERE id = $1`,
		p.ID, nullString(p.GatewayIntentID), nullString(p.TransactionID), string(p.Status), refundsJSON,
		nullString(p.ErrorCode), nullString(p.ErrorMessage), p.RawPayload,
		p.UpdatedAt, p.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment mutation: %w", err)
	}
	return p, nil
}

func (r *PostgresPaymentRepository) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	var status string
	var intentID, transactionID, errorCode, errorMessage *string
	var refundsJSON []byte

	err := row.Scan(
		&p.ID, &p.BookingID, &p.UserID, &intentID, &transactionID,
		&p.Amount, &p.Currency, &status, &refundsJSON,
		&errorCode, &errorMessage, &p.RawPayload,
		&p.CreatedAt, &p.UpdatedAt, &p.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Status = domain.PaymentStatus(status)
	if intentID != nil {
		p.GatewayIntentID = *intentID
	}
	if transactionID != nil {
		p.TransactionID = *transactionID
	}
	if errorCode != nil {
		p.ErrorCode = *errorCode
	}
	if errorMessage != nil {
		p.ErrorMessage = *errorMessage
	}
	if len(refundsJSON) > 0 {
		if err := json.Unmarshal(refundsJSON, &p.Refunds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal refunds: %w", err)
		}
	}

	return p, nil
}
