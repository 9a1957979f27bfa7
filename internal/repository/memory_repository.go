package repository

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MemoryRepository keeps the encoded record in process memory.
// It goes through the same codec as the durable repositories.
type MemoryRepository struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Load(context.Context) (*domain.CartRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, ErrCartNotFound
	}
	return DecodeRecord(m.data)
}

func (m *MemoryRepository) Save(_ context.Context, record *domain.CartRecord) error {
	data, err := EncodeRecord(record)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}
