// Package record defines the metadata side of a stored file: the File
// record, the Store capability interface the lifecycle layer depends on,
// and the bundled memory, Redis and Postgres implementations.
package record

import (
	"context"
	"errors"
	"time"

	"github.com/coldkeep/coldkeep/internal/tier"
)

// Store errors.
var (
	// ErrNotFound is returned when no record exists for the given id.
	ErrNotFound = errors.New("file record not found")
)

// File is one metadata record. Path is the full object key including the
// visibility prefix; HotUntil is only meaningful on the hot tier, where nil
// means "hot indefinitely".
type File struct {
	ID        string     `json:"id"`
	Tier      tier.Tier  `json:"tier"`
	Filename  string     `json:"filename"`
	Path      string     `json:"path"`
	HotUntil  *time.Time `json:"hot_until,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Update is a partial record patch. Nil pointer fields are left untouched.
// HotUntil is tri-state: it is only written when SetHotUntil is true, so a
// nil HotUntil with SetHotUntil set clears the expiry.
type Update struct {
	Tier        *tier.Tier
	Path        *string
	HotUntil    *time.Time
	SetHotUntil bool
}

// Store is the capability interface over file records. Implementations
// assign ids, own the created_at/updated_at timestamps, and must return
// ErrNotFound for unknown ids on FindByID, Update and Delete.
type Store interface {
	// Create inserts a new record and returns it with id and timestamps set.
	Create(ctx context.Context, t tier.Tier, filename, path string, hotUntil *time.Time) (File, error)

	// FindByID returns the record with the given id.
	FindByID(ctx context.Context, id string) (File, error)

	// Update applies patch to the record with the given id and returns the
	// updated record.
	Update(ctx context.Context, id string, patch Update) (File, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id string) error

	// FindExpiredHot returns every hot-tier record whose HotUntil is set
	// and not after now.
	FindExpiredHot(ctx context.Context, now time.Time) ([]File, error)

	// FindAll returns every record.
	FindAll(ctx context.Context) ([]File, error)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// clone returns a copy of f that shares no pointers with the original.
func (f File) clone() File {
	f.HotUntil = cloneTime(f.HotUntil)
	return f
}

// apply folds patch into f and bumps UpdatedAt.
func (f *File) apply(patch Update, now time.Time) {
	if patch.Tier != nil {
		f.Tier = *patch.Tier
	}
	if patch.Path != nil {
		f.Path = *patch.Path
	}
	if patch.SetHotUntil {
		f.HotUntil = cloneTime(patch.HotUntil)
	}
	f.UpdatedAt = now
}

// expired reports whether f is a hot record whose expiry has passed.
func (f File) expired(now time.Time) bool {
	return f.Tier == tier.Hot && f.HotUntil != nil && !f.HotUntil.After(now)
}
