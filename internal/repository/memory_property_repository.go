package repository

import (
	"context"
	"sync"

	"github.com/staybook/staybook/internal/domain"
)

// MemoryPropertyRepository is an in-memory PropertyRepository for tests
// and local development.
type MemoryPropertyRepository struct {
	mu         sync.RWMutex
	properties map[string]*domain.Property
}

// NewMemoryPropertyRepository creates an in-memory property repository
func NewMemoryPropertyRepository() *MemoryPropertyRepository {
	return &MemoryPropertyRepository{properties: make(map[string]*domain.Property)}
}

func (r *MemoryPropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.properties[p.ID] = &cp
	return nil
}

func (r *MemoryPropertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.properties[id]
	if !ok {
		return nil, domain.ErrPropertyNotFound
	}
	cp := *p
	return &cp, nil
}

// MemoryUserStatsRepository is an in-memory UserStatsRepository.
type MemoryUserStatsRepository struct {
	mu    sync.Mutex
	stats map[string]*domain.UserStats
}

// NewMemoryUserStatsRepository creates an in-memory user stats repository
func NewMemoryUserStatsRepository() *MemoryUserStatsRepository {
	return &MemoryUserStatsRepository{stats: make(map[string]*domain.UserStats)}
}

func (r *MemoryUserStatsRepository) RecordCompletedBooking(ctx context.Context, userID string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		s = &domain.UserStats{UserID: userID}
		r.stats[userID] = s
	}
	s.RecordCompletedBooking(amount)
	return nil
}

func (r *MemoryUserStatsRepository) Get(ctx context.Context, userID string) (*domain.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[userID]
	if !ok {
		return &domain.UserStats{UserID: userID}, nil
	}
	cp := *s
	return &cp, nil
}
