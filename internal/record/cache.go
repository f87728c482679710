package record

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coldkeep/coldkeep/internal/tier"
)

// CachedStore decorates another Store with an LRU cache over FindByID.
// Writes go through to the backing store and refresh or evict the cached
// entry, so reads never serve a record the same process has since changed.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, File]
}

// NewCachedStore wraps next with a cache holding up to size records.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, File](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, cache: cache}, nil
}

// Create inserts a record and primes the cache with it.
func (s *CachedStore) Create(ctx context.Context, t tier.Tier, filename, path string, hotUntil *time.Time) (File, error) {
	f, err := s.next.Create(ctx, t, filename, path, hotUntil)
	if err != nil {
		return File{}, err
	}
	s.cache.Add(f.ID, f.clone())
	return f, nil
}

// FindByID returns the cached record when present, else reads through.
func (s *CachedStore) FindByID(ctx context.Context, id string) (File, error) {
	if f, ok := s.cache.Get(id); ok {
		return f.clone(), nil
	}
	f, err := s.next.FindByID(ctx, id)
	if err != nil {
		return File{}, err
	}
	s.cache.Add(id, f.clone())
	return f, nil
}

// Update writes through and refreshes the cached entry.
func (s *CachedStore) Update(ctx context.Context, id string, patch Update) (File, error) {
	f, err := s.next.Update(ctx, id, patch)
	if err != nil {
		s.cache.Remove(id)
		return File{}, err
	}
	s.cache.Add(id, f.clone())
	return f, nil
}

// Delete removes the record and evicts it from the cache.
func (s *CachedStore) Delete(ctx context.Context, id string) error {
	s.cache.Remove(id)
	return s.next.Delete(ctx, id)
}

// FindExpiredHot is a passthrough; batch reads are not cached.
func (s *CachedStore) FindExpiredHot(ctx context.Context, now time.Time) ([]File, error) {
	return s.next.FindExpiredHot(ctx, now)
}

// FindAll is a passthrough; batch reads are not cached.
func (s *CachedStore) FindAll(ctx context.Context) ([]File, error) {
	return s.next.FindAll(ctx)
}

var _ Store = (*CachedStore)(nil)
