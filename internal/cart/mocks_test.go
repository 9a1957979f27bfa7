package cart

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

// mockRepository records every saved revision in call order.
type mockRepository struct {
	mu        sync.Mutex
	loaded    *domain.CartRecord
	loadErr   error
	saveErr   error
	failOnce  error
	saveDelay time.Duration
	started   chan uint64
	saves     []uint64
	last      *domain.CartRecord
	block     chan struct{}
}

func (m *mockRepository) Load(context.Context) (*domain.CartRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.loaded == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.loaded, nil
}

func (m *mockRepository) Save(ctx context.Context, r *domain.CartRecord) error {
	if m.started != nil {
		m.started <- r.Revision
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	time.Sleep(m.saveDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnce != nil {
		err := m.failOnce
		m.failOnce = nil
		return err
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, r.Revision)
	m.last = r
	return nil
}

func (m *mockRepository) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *mockRepository) savedRevisions() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.saves...)
}

func (m *mockRepository) lastRecord() *domain.CartRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
