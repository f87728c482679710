package record

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coldkeep/coldkeep/internal/tier"
)

// MemoryStore is a mutex-guarded in-memory Store. It is the default backend
// and the reference implementation the other backends are tested against.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]File
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]File),
		now:   time.Now,
	}
}

// Create inserts a new record and returns it.
func (s *MemoryStore) Create(_ context.Context, t tier.Tier, filename, path string, hotUntil *time.Time) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	f := File{
		ID:        uuid.NewString(),
		Tier:      t,
		Filename:  filename,
		Path:      path,
		HotUntil:  cloneTime(hotUntil),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.files[f.ID] = f
	return f.clone(), nil
}

// FindByID returns the record with the given id.
func (s *MemoryStore) FindByID(_ context.Context, id string) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return File{}, ErrNotFound
	}
	return f.clone(), nil
}

// Update applies patch to the record with the given id.
func (s *MemoryStore) Update(_ context.Context, id string, patch Update) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return File{}, ErrNotFound
	}
	f.apply(patch, s.now().UTC())
	s.files[id] = f
	return f.clone(), nil
}

// Delete removes the record with the given id.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

// FindExpiredHot returns hot records whose expiry is not after now.
func (s *MemoryStore) FindExpiredHot(_ context.Context, now time.Time) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []File
	for _, f := range s.files {
		if f.expired(now) {
			expired = append(expired, f.clone())
		}
	}
	sortFiles(expired)
	return expired, nil
}

// FindAll returns every record, oldest first.
func (s *MemoryStore) FindAll(_ context.Context) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]File, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f.clone())
	}
	sortFiles(files)
	return files, nil
}

// sortFiles orders by creation time, then id for a stable tiebreak.
func sortFiles(files []File) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].ID < files[j].ID
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
}
