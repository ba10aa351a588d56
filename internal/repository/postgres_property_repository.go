package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/staybook/staybook/internal/database"
	"github.com/staybook/staybook/internal/domain"
)

// PostgresPropertyRepository implements PropertyRepository using PostgreSQL
type PostgresPropertyRepository struct {
	db *database.PostgresDB
}

// NewPostgresPropertyRepository creates a new PostgreSQL property repository
func NewPostgresPropertyRepository(db *database.PostgresDB) *PostgresPropertyRepository {
	return &PostgresPropertyRepository{db: db}
}

const propertyColumns = `
	id, host_id, title, nightly_rate, currency,
	cleaning_fee, security_deposit, service_fee_rate, tax_rate,
	max_guests, suspended, created_at, updated_at
`

// Create persists a property
func (r *PostgresPropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO properties (
			id, host_id, title, nightly_rate, currency,
			cleaning_fee, security_deposit, service_fee_rate, tax_rate,
			max_guests, suspended, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.HostID, p.Title, p.NightlyRate, p.Currency,
		p.Fees.CleaningFee, p.Fees.SecurityDeposit, p.Fees.ServiceFeeRate, p.Fees.TaxRate,
		p.MaxGuests, p.Suspended, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

// GetByID retrieves a property by its ID
func (r *PostgresPropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	p := &domain.Property{}
	err := r.db.Pool().QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id,
	).Scan(
		&p.ID, &p.HostID, &p.Title, &p.NightlyRate, &p.Currency,
		&p.Fees.CleaningFee, &p.Fees.SecurityDeposit, &p.Fees.ServiceFeeRate, &p.Fees.TaxRate,
		&p.MaxGuests, &p.Suspended, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to scan property: %w", err)
	}
	return p, nil
}

// PostgresUserStatsRepository implements UserStatsRepository using PostgreSQL
type PostgresUserStatsRepository struct {
	db *database.PostgresDB
}

// NewPostgresUserStatsRepository creates a new PostgreSQL user stats repository
func NewPostgresUserStatsRepository(db *database.PostgresDB) *PostgresUserStatsRepository {
	return &PostgresUserStatsRepository{db: db}
}

// RecordCompletedBooking upserts the guest aggregates in one statement
// so concurrent completions never lose an increment.
func (r *PostgresUserStatsRepository) RecordCompletedBooking(ctx context.Context, userID string, amount float64) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO user_stats (user_id, total_spent, bookings_completed, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET total_spent = user_stats.total_spent + EXCLUDED.total_spent,
		    bookings_completed = user_stats.bookings_completed + 1,
		    updated_at = NOW()`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to record completed booking: %w", err)
	}
	return nil
}

// Get returns the guest aggregates, zero-valued when absent
func (r *PostgresUserStatsRepository) Get(ctx context.Context, userID string) (*domain.UserStats, error) {
	s := &domain.UserStats{UserID: userID}
	err := r.db.Pool().QueryRow(ctx,
		`SELECT total_spent, bookings_completed, updated_at FROM user_stats WHERE user_id = $1`, userID,
	).Scan(&s.TotalSpent, &s.BookingsCompleted, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to scan user stats: %w", err)
	}
	return s, nil
}
