package repository

import (
	"context"
	"sync"

	"github.com/staybook/staybook/internal/domain"
)

// MemoryPaymentRepository is an in-memory PaymentRepository for tests
// and local development.
type MemoryPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

// NewMemoryPaymentRepository creates an in-memory payment repository
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{payments: make(map[string]*domain.Payment)}
}

func (r *MemoryPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.payments {
		if existing.BookingID == p.BookingID {
			return ErrPaymentAlreadyExists
		}
	}
	r.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *MemoryPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r *MemoryPaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	return r.find(func(p *domain.Payment) bool { return p.BookingID == bookingID })
}

func (r *MemoryPaymentRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	if intentID == "" {
		return nil, domain.ErrPaymentNotFound
	}
	return r.find(func(p *domain.Payment) bool { return p.GatewayIntentID == intentID })
}

func (r *MemoryPaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[p.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	r.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *MemoryPaymentRepository) Complete(ctx context.Context, id, transactionID string, rawPayload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.Status == domain.PaymentStatusCompleted {
		return false, nil
	}
	if err := p.Complete(transactionID); err != nil {
		return false, err
	}
	if len(rawPayload) > 0 {
		p.RawPayload = rawPayload
	}
	return true, nil
}

func (r *MemoryPaymentRepository) Fail(ctx context.Context, id, errorCode, errorMessage string, rawPayload []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.IsFinal() {
		return false, nil
	}
	if err := p.Fail(errorCode, errorMessage); err != nil {
		return false, err
	}
	if len(rawPayload) > 0 {
		p.RawPayload = rawPayload
	}
	return true, nil
}

func (r *MemoryPaymentRepository) Mutate(ctx context.Context, id string, fn func(*domain.Payment) error) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := clonePayment(p)
	if err := fn(cp); err != nil {
		return nil, err
	}
	r.payments[id] = cp
	return clonePayment(cp), nil
}

func (r *MemoryPaymentRepository) find(match func(*domain.Payment) bool) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.payments {
		if match(p) {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	cp.Refunds = append([]domain.Refund(nil), p.Refunds...)
	cp.RawPayload = append([]byte(nil), p.RawPayload...)
	return &cp
}
