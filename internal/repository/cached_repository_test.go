package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDurable struct {
	m      sync.Mutex
	record *domain.CartRecord
	err    error
	loads  atomic.Int32
	delay  time.Duration
}

func (m *mockDurable) Load(context.Context) (*domain.CartRecord, error) {
	m.loads.Add(1)
	time.Sleep(m.delay)
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.record == nil {
		return nil, ErrCartNotFound
	}
	return m.record, nil
}

func (m *mockDurable) Save(_ context.Context, r *domain.CartRecord) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.record = r
	return nil
}

type mockCache struct {
	m        sync.RWMutex
	record   *domain.CartRecord
	err      error
	setDelay time.Duration
}

func (m *mockCache) Get(context.Context, string) (*domain.CartRecord, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.record == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.record, nil
}

func (m *mockCache) Set(_ context.Context, _ string, r *domain.CartRecord) error {
	time.Sleep(m.setDelay)
	m.m.Lock()
	defer m.m.Unlock()
	m.record = r
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.record = nil
	return nil
}

func (m *mockCache) get() *domain.CartRecord {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.record
}

func TestCachedLoad_MissFillsCache(t *testing.T) {
	durable := &mockDurable{record: sampleRecord()}
	c := &mockCache{}
	sut := NewCachedRepository(durable, c, "owner1", zap.NewNop())

	got, err := sut.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)

	require.Eventually(t, func() bool {
		return c.get() != nil
	}, 100*time.Millisecond, 10*time.Millisecond, "record was not set in cache")
}

func TestCachedLoad_CacheHitSkipsDurable(t *testing.T) {
	durable := &mockDurable{}
	c := &mockCache{record: sampleRecord()}
	sut := NewCachedRepository(durable, c, "owner1", zap.NewNop())

	got, err := sut.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Revision)
	assert.Equal(t, int32(0), durable.loads.Load())
}

func TestCachedLoad_CacheErrorFallsBack(t *testing.T) {
	durable := &mockDurable{record: sampleRecord()}
	c := &mockCache{err: errors.New("redis down")}
	sut := NewCachedRepository(durable, c, "owner1", zap.NewNop())

	got, err := sut.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)
}

func TestCachedLoad_NotFoundPropagates(t *testing.T) {
	sut := NewCachedRepository(&mockDurable{}, &mockCache{}, "owner1", zap.NewNop())

	_, err := sut.Load(context.Background())
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCachedLoad_ConcurrentMissesShareOneDurableRead(t *testing.T) {
	durable := &mockDurable{record: sampleRecord(), delay: 50 * time.Millisecond}
	sut := NewCachedRepository(durable, &mockCache{}, "owner1", zap.NewNop())

	var wg sync.WaitGroup
	results := make([]*domain.CartRecord, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := sut.Load(context.Background())
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), durable.loads.Load())
	results[0].Lines[0].Quantity = 42
	assert.NotEqual(t, 42, results[1].Lines[0].Quantity, "callers must not share lines")
}

func TestCachedSave_InvalidatesCache(t *testing.T) {
	durable := &mockDurable{}
	c := &mockCache{record: sampleRecord()}
	sut := NewCachedRepository(durable, c, "owner1", zap.NewNop())

	require.NoError(t, sut.Save(context.Background(), sampleRecord()))
	assert.Nil(t, c.get())
	assert.NotNil(t, durable.record)
}

func TestCachedSave_SlowBackfillDoesNotResurrectOlderRecord(t *testing.T) {
	durable := &mockDurable{record: &domain.CartRecord{SchemaVersion: domain.CurrentSchemaVersion, OwnerID: "owner1", Revision: 1}}
	c := &mockCache{setDelay: 100 * time.Millisecond}
	sut := NewCachedRepository(durable, c, "owner1", zap.NewNop())
	ctx := context.Background()

	got, err := sut.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), got.Revision)

	require.NoError(t, sut.Save(ctx, &domain.CartRecord{SchemaVersion: domain.CurrentSchemaVersion, OwnerID: "owner1", Revision: 2}))
	time.Sleep(300 * time.Millisecond)

	got, err = sut.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Revision, "a back-fill started before the save must not shadow it")
}

func TestCachedSave_DurableErrorKeepsCache(t *testing.T) {
	durable := &mockDurable{err: errors.New("database error")}
	c := &mockCache{record: sampleRecord()}
	sut := NewCachedRepository(durable, c, "owner1", zap.NewNop())

	err := sut.Save(context.Background(), sampleRecord())
	require.ErrorContains(t, err, "database error")
	assert.NotNil(t, c.get())
}
