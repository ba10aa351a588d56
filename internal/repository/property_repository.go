package repository

import (
	"context"

	"github.com/staybook/staybook/internal/domain"
)

// PropertyRepository exposes the listing fields the booking flow needs.
// Listing management is owned by another service; this repository only
// reads, plus a Create used by migrations seeding and tests.
type PropertyRepository interface {
	Create(ctx context.Context, property *domain.Property) error
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// UserStatsRepository maintains the guest aggregates updated when a
// payment completes.
type UserStatsRepository interface {
	// RecordCompletedBooking adds one completed booking and its amount
	// to the guest's aggregates, creating the row when absent.
	RecordCompletedBooking(ctx context.Context, userID string, amount float64) error

	// Get returns the guest's aggregates, zero-valued when absent.
	Get(ctx context.Context, userID string) (*domain.UserStats, error)
}
