package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockGateway implements PaymentGateway in memory for development and
// tests. Intents succeed when confirmed through SucceedIntent, which
// stands in for the frontend card flow.
type MockGateway struct {
	// Delay simulates processor latency
	Delay time.Duration
	// AutoSucceed marks every created intent as succeeded immediately,
	// for development environments with no frontend.
	AutoSucceed bool
	// FailRefunds makes Refund return failed results
	FailRefunds bool

	intents sync.Map // intentID -> *Intent
	seq     atomic.Int64
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) CreateIntent(ctx context.Context, req *CreateIntentRequest) (*Intent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	n := g.seq.Add(1)
	intent := &Intent{
		ID:           fmt.Sprintf("pi_mock_%d", n),
		ClientSecret: fmt.Sprintf("pi_mock_%d_secret", n),
		Status:       "requires_payment_method",
		Amount:       req.Amount,
		Currency:     req.Currency,
	}
	if g.AutoSucceed {
		intent.Status = "succeeded"
		intent.ChargeID = fmt.Sprintf("ch_mock_%d", n)
	}
	g.intents.Store(intent.ID, intent)

	cp := *intent
	return &cp, nil
}

func (g *MockGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	v, ok := g.intents.Load(intentID)
	if !ok {
		return nil, fmt.Errorf("no such payment intent: %s", intentID)
	}
	cp := *v.(*Intent)
	return &cp, nil
}

func (g *MockGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	if _, ok := g.intents.Load(req.IntentID); !ok {
		return nil, fmt.Errorf("no such payment intent: %s", req.IntentID)
	}

	n := g.seq.Add(1)
	status := "succeeded"
	if g.FailRefunds {
		status = "failed"
	}
	return &RefundResult{
		ID:     fmt.Sprintf("re_mock_%d", n),
		Status: status,
	}, nil
}

// SucceedIntent simulates the frontend completing the card flow
func (g *MockGateway) SucceedIntent(intentID string) {
	if v, ok := g.intents.Load(intentID); ok {
		intent := v.(*Intent)
		intent.Status = "succeeded"
		intent.ChargeID = fmt.Sprintf("ch_for_%s", intentID)
	}
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) wait(ctx context.Context) error {
	if g.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.Delay):
		return nil
	}
}
