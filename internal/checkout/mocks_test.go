package checkout

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type mockValidator struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	fn      func(domain.CartSnapshot) (*domain.ValidationResult, error)
}

func (m *mockValidator) Validate(ctx context.Context, snap domain.CartSnapshot) (*domain.ValidationResult, error) {
	m.calls.Add(1)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.fn == nil {
		return &domain.ValidationResult{Revision: snap.Revision}, nil
	}
	return m.fn(snap)
}

type mockOrders struct {
	mu       sync.Mutex
	requests []domain.OrderRequest
	err      error
}

func (m *mockOrders) PlaceOrder(_ context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.OrderConfirmation{OrderID: "ord-1", Status: "PENDING", Total: req.Total}, nil
}

func (m *mockOrders) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockOrders) sent() []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderRequest(nil), m.requests...)
}
