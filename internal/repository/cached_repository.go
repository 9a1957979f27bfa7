package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedRepository reads through a cache in front of a durable repository.
// Saves go to the durable repository and invalidate the cached copy.
type CachedRepository struct {
	durable CartRepository
	cache   cache.CartCache
	ownerID string
	log     *zap.Logger
	sfg     singleflight.Group // Prevents cache stampede

	// fillMu orders cache back-fills against invalidations; savedRev is the
	// newest revision this repository has written.
	fillMu   sync.Mutex
	savedRev uint64
}

func NewCachedRepository(durable CartRepository, c cache.CartCache, ownerID string, log *zap.Logger) *CachedRepository {
	return &CachedRepository{
		durable: durable,
		cache:   c,
		ownerID: ownerID,
		log:     log,
	}
}

func (r *CachedRepository) Load(ctx context.Context) (*domain.CartRecord, error) {
	v, err, _ := r.sfg.Do(r.ownerID, func() (interface{}, error) {
		record, err := r.cache.Get(ctx, r.ownerID)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Warn("cache get error", zap.Error(err)) // log cache error but continue
		}

		record, err = r.durable.Load(ctx)
		if err != nil {
			return nil, err
		}

		go r.fill(record)

		return record, nil
	})
	if err != nil {
		return nil, err
	}

	// shared callers must not alias each other's record
	record := *v.(*domain.CartRecord)
	record.Lines = cloneLines(record.Lines)
	return &record, nil
}

func (r *CachedRepository) Save(ctx context.Context, record *domain.CartRecord) error {
	if err := r.durable.Save(ctx, record); err != nil {
		return err
	}
	r.invalidate(record.Revision)
	return nil
}

// fill back-fills the cache after a miss unless a newer record was saved meanwhile.
func (r *CachedRepository) fill(record *domain.CartRecord) {
	r.fillMu.Lock()
	defer r.fillMu.Unlock()
	if record.Revision < r.savedRev {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cache.Set(ctx, r.ownerID, record); err != nil {
		r.log.Warn("cache set error", zap.Error(err))
	}
}

func (r *CachedRepository) invalidate(rev uint64) {
	r.fillMu.Lock()
	defer r.fillMu.Unlock()
	if rev > r.savedRev {
		r.savedRev = rev
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cache.Delete(ctx, r.ownerID); err != nil {
		r.log.Warn("cache invalidate error", zap.Error(err))
	}
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}
