package record

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldkeep/coldkeep/internal/tier"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

// runStoreTests exercises the Store contract against one backend. Every
// implementation must pass this suite unchanged.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("CreateAndFind", func(t *testing.T) {
		s := open(t)
		hotUntil := time.Now().Add(time.Hour).UTC()

		created, err := s.Create(ctx, tier.Hot, "report.pdf", "private/abc-report.pdf", timePtr(hotUntil))
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, tier.Hot, created.Tier)
		assert.Equal(t, "report.pdf", created.Filename)
		assert.Equal(t, "private/abc-report.pdf", created.Path)
		require.NotNil(t, created.HotUntil)
		assert.False(t, created.CreatedAt.IsZero())
		assert.False(t, created.UpdatedAt.IsZero())

		found, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, created.Path, found.Path)
		require.NotNil(t, found.HotUntil)
		assert.WithinDuration(t, hotUntil, *found.HotUntil, time.Second)
	})

	t.Run("FindMissing", func(t *testing.T) {
		s := open(t)

		_, err := s.FindByID(ctx, "no-such-id")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateTierAndPath", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, tier.Hot, "a.txt", "public/a.txt", nil)
		require.NoError(t, err)

		cold := tier.Cold
		newPath := "private/a.txt"
		updated, err := s.Update(ctx, created.ID, Update{Tier: &cold, Path: &newPath})
		require.NoError(t, err)
		assert.Equal(t, tier.Cold, updated.Tier)
		assert.Equal(t, "private/a.txt", updated.Path)
		assert.Equal(t, "a.txt", updated.Filename)

		found, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, tier.Cold, found.Tier)
		assert.Equal(t, "private/a.txt", found.Path)
	})

	t.Run("UpdateHotUntilTriState", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, tier.Hot, "a.txt", "public/a.txt", nil)
		require.NoError(t, err)

		// Set an expiry
		expiry := time.Now().Add(2 * time.Hour).UTC()
		updated, err := s.Update(ctx, created.ID, Update{HotUntil: timePtr(expiry), SetHotUntil: true})
		require.NoError(t, err)
		require.NotNil(t, updated.HotUntil)

		// A patch without SetHotUntil leaves the expiry alone
		newPath := "private/a.txt"
		updated, err = s.Update(ctx, created.ID, Update{Path: &newPath})
		require.NoError(t, err)
		require.NotNil(t, updated.HotUntil)
		assert.WithinDuration(t, expiry, *updated.HotUntil, time.Second)

		// SetHotUntil with nil clears it
		updated, err = s.Update(ctx, created.ID, Update{HotUntil: nil, SetHotUntil: true})
		require.NoError(t, err)
		assert.Nil(t, updated.HotUntil)

		found, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, found.HotUntil)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := open(t)

		_, err := s.Update(ctx, "no-such-id", Update{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, tier.Cold, "a.txt", "public/a.txt", nil)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))

		_, err = s.FindByID(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, created.ID), ErrNotFound)
	})

	t.Run("FindExpiredHot", func(t *testing.T) {
		s := open(t)
		now := time.Now().UTC()

		expired, err := s.Create(ctx, tier.Hot, "expired.txt", "public/expired.txt", timePtr(now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = s.Create(ctx, tier.Hot, "fresh.txt", "public/fresh.txt", timePtr(now.Add(time.Hour)))
		require.NoError(t, err)
		_, err = s.Create(ctx, tier.Hot, "forever.txt", "public/forever.txt", nil)
		require.NoError(t, err)
		_, err = s.Create(ctx, tier.Cold, "cold.txt", "public/cold.txt", nil)
		require.NoError(t, err)

		files, err := s.FindExpiredHot(ctx, now)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, expired.ID, files[0].ID)

		// Clearing the expiry removes it from the expired set
		_, err = s.Update(ctx, expired.ID, Update{SetHotUntil: true})
		require.NoError(t, err)

		files, err = s.FindExpiredHot(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("ExpiredHotIgnoresColdRecords", func(t *testing.T) {
		s := open(t)
		now := time.Now().UTC()

		created, err := s.Create(ctx, tier.Hot, "a.txt", "public/a.txt", timePtr(now.Add(-time.Hour)))
		require.NoError(t, err)

		// Archiving to cold clears the expiry
		cold := tier.Cold
		_, err = s.Update(ctx, created.ID, Update{Tier: &cold, SetHotUntil: true})
		require.NoError(t, err)

		files, err := s.FindExpiredHot(ctx, now)
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("FindAll", func(t *testing.T) {
		s := open(t)

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		first, err := s.Create(ctx, tier.Hot, "a.txt", "public/a.txt", nil)
		require.NoError(t, err)
		second, err := s.Create(ctx, tier.Cold, "b.txt", "private/b.txt", nil)
		require.NoError(t, err)

		all, err = s.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		ids := []string{all[0].ID, all[1].ID}
		assert.Contains(t, ids, first.ID)
		assert.Contains(t, ids, second.ID)
	})

	t.Run("ReturnedRecordsDoNotAlias", func(t *testing.T) {
		s := open(t)
		hotUntil := time.Now().Add(time.Hour).UTC()

		created, err := s.Create(ctx, tier.Hot, "a.txt", "public/a.txt", timePtr(hotUntil))
		require.NoError(t, err)
		require.NotNil(t, created.HotUntil)

		// Mutating a returned record must not leak into the store
		*created.HotUntil = created.HotUntil.Add(-100 * time.Hour)

		found, err := s.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found.HotUntil)
		assert.WithinDuration(t, hotUntil, *found.HotUntil, time.Second)
	})
}
