package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/staybook/staybook/internal/database"
	"github.com/staybook/staybook/internal/domain"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	db *database.PostgresDB
}

// NewPostgresBookingRepository creates a new PostgreSQL booking repository
func NewPostgresBookingRepository(db *database.PostgresDB) *PostgresBookingRepository {
	return &PostgresBookingRepository{db: db}
}

// bookingColumns defines the columns to select for booking queries
const bookingColumns = `
	id, property_id, guest_id, host_id, check_in, check_out,
	adults, children, infants, pets,
	nightly_rate, nights, base_price, cleaning_fee, service_fee, security_deposit, taxes, total_amount,
	status, payment_status, transaction_id, paid_at,
	cancelled_by, cancelled_at, cancel_reason, refund_amount, refund_status,
	created_at, updated_at
`

// blockingOverlapCondition matches confirmed bookings whose half-open
// window intersects [$2, $3). Adjacent stays share a boundary instant
// and do not match.
const blockingOverlapCondition = `
	property_id = $1
	AND status = 'confirmed'
	AND check_in < $3
	AND check_out > $2
`

// CreateIfAvailable inserts the booking inside one transaction with the
// overlap check. The property row is locked first so two concurrent
// requests for the same property serialize; the loser sees the winner's
// row and gets ErrDatesUnavailable.
func (r *PostgresBookingRepository) CreateIfAvailable(ctx context.Context, b *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var propertyID string
	err = tx.QueryRow(ctx, `SELECT id FROM properties WHERE id = $1 FOR UPDATE`, b.PropertyID).Scan(&propertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPropertyNotFound
		}
		return fmt.Errorf("failed to lock property: %w", err)
	}

	var overlaps int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE `+blockingOverlapCondition,
		b.PropertyID, b.CheckIn, b.CheckOut,
	).Scan(&overlaps)
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}
	if overlaps > 0 {
		return domain.ErrDatesUnavailable
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			id, property_id, guest_id, host_id, check_in, check_out,
			adults, children, infants, pets,
			nightly_rate, nights, base_price, cleaning_fee, service_fee, security_deposit, taxes, total_amount,
			status, payment_status, transaction_id, paid_at,
			cancelled_by, cancelled_at, cancel_reason, refund_amount, refund_status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29
		)`,
		b.ID, b.PropertyID, b.GuestID, b.HostID, b.CheckIn, b.CheckOut,
		b.Occupancy.Adults, b.Occupancy.Children, b.Occupancy.Infants, b.Occupancy.Pets,
		b.Pricing.NightlyRate, b.Pricing.Nights, b.Pricing.BasePrice, b.Pricing.CleaningFee,
		b.Pricing.ServiceFee, b.Pricing.SecurityDeposit, b.Pricing.Taxes, b.Pricing.Total,
		string(b.Status), string(b.PaymentStatus), nullString(b.TransactionID), b.PaidAt,
		nil, nil, nil, nil, nil,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a booking by its ID
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.scanBooking(r.db.Pool().QueryRow(ctx, query, id))
}

// Update persists the mutable fields of a booking
func (r *PostgresBookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	var cancelledBy, cancelReason, refundStatus *string
	var cancelledAt *time.Time
	var refundAmount *float64
	if c := b.Cancellation; c != nil {
		by := string(c.CancelledBy)
		at := c.CancelledAt
		rs := string(c.RefundStatus)
		cancelledBy = &by
		cancelledAt = &at
		cancelReason = nullString(c.Reason)
		refundAmount = &c.RefundAmount
		refundStatus = &rs
	}

	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE bookings
		SET status = $2,
		    payment_status = $3,
		    transaction_id = $4,
		    paid_at = $5,
		    cancelled_by = $6,
		    cancelled_at = $7,
		    cancel_reason = $8,
		    refund_amount = $9,
		    refund_status = $10,
		    updated_at = $11
		WHERE id = $1`,
		b.ID, string(b.Status), string(b.PaymentStatus), nullString(b.TransactionID), b.PaidAt,
		cancelledBy, cancelledAt, cancelReason, refundAmount, refundStatus,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// MarkPaid applies a successful payment with a guarded update so
// concurrent notifications produce exactly one transition.
func (r *PostgresBookingRepository) MarkPaid(ctx context.Context, id, transactionID string, paidAt time.Time) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE bookings
		SET status = 'confirmed',
		    payment_status = 'paid',
		    transaction_id = $2,
		    paid_at = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND payment_status <> 'paid'
		  AND status NOT IN ('cancelled', 'refunded', 'completed')`,
		id, transactionID, paidAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking paid: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Nothing changed: diagnose the actual state
	b, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if b.PaymentStatus == domain.PaymentStatePaid {
		return false, nil
	}
	return false, domain.NewError(domain.KindConflict, "BOOKING_CLOSED", "booking is no longer payable", nil)
}

// Cancel records the cancellation intent with a guarded update; exactly
// one concurrent caller wins.
func (r *PostgresBookingRepository) Cancel(ctx context.Context, id string, c *domain.Cancellation) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_by = $2,
		    cancelled_at = $3,
		    cancel_reason = $4,
		    refund_amount = $5,
		    refund_status = $6,
		    updated_at = NOW()
		WHERE id = $1
		  AND status NOT IN ('cancelled', 'completed')`,
		id, string(c.CancelledBy), c.CancelledAt, nullString(c.Reason), c.RefundAmount, string(c.RefundStatus),
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, domain.ErrBookingNotCancelable
}

// HasBlockingOverlap reports whether a confirmed booking overlaps the window
func (r *PostgresBookingRepository) HasBlockingOverlap(ctx context.Context, propertyID string, checkIn, checkOut time.Time) (bool, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE `+blockingOverlapCondition,
		propertyID, checkIn, checkOut,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return count > 0, nil
}

// ListByGuest returns the guest's bookings, newest first
func (r *PostgresBookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE guest_id = $1 ORDER BY created_at DESC`
	return r.queryBookings(ctx, query, guestID)
}

// ListByHost returns bookings on the host's properties, newest first
func (r *PostgresBookingRepository) ListByHost(ctx context.Context, hostID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE host_id = $1 ORDER BY created_at DESC`
	return r.queryBookings(ctx, query, hostID)
}

// ListPaidByProperty returns the property's paid bookings
func (r *PostgresBookingRepository) ListPaidByProperty(ctx context.Context, propertyID string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = $1 AND payment_status = 'paid' ORDER BY check_in`
	return r.queryBookings(ctx, query, propertyID)
}

// ListStalePending returns pending unpaid bookings whose check-in passed
func (r *PostgresBookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND payment_status = 'pending' AND check_in < $1
		ORDER BY check_in
		LIMIT $2`
	return r.queryBookings(ctx, query, before, limit)
}

func (r *PostgresBookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*domain.Booking, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func (r *PostgresBookingRepository) scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	var status, paymentStatus string
	var transactionID, cancelledBy, cancelReason, refundStatus *string
	var cancelledAt *time.Time
	var refundAmount *float64

	err := row.Scan(
		&b.ID, &b.PropertyID, &b.GuestID, &b.HostID, &b.CheckIn, &b.CheckOut,
		&b.Occupancy.Adults, &b.Occupancy.Children, &b.Occupancy.Infants, &b.Occupancy.Pets,
		&b.Pricing.NightlyRate, &b.Pricing.Nights, &b.Pricing.BasePrice, &b.Pricing.CleaningFee,
		&b.Pricing.ServiceFee, &b.Pricing.SecurityDeposit, &b.Pricing.Taxes, &b.Pricing.Total,
		&status, &paymentStatus, &transactionID, &b.PaidAt,
		&cancelledBy, &cancelledAt, &cancelReason, &refundAmount, &refundStatus,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentState(paymentStatus)
	if transactionID != nil {
		b.TransactionID = *transactionID
	}
	if cancelledBy != nil {
		c := &domain.Cancellation{
			CancelledBy: domain.CancelActor(*cancelledBy),
		}
		if cancelledAt != nil {
			c.CancelledAt = *cancelledAt
		}
		if cancelReason != nil {
			c.Reason = *cancelReason
		}
		if refundAmount != nil {
			c.RefundAmount = *refundAmount
		}
		if refundStatus != nil {
			c.RefundStatus = domain.RefundState(*refundStatus)
		}
		b.Cancellation = c
	}

	return b, nil
}

// nullString returns nil if string is empty, otherwise returns pointer to string
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
