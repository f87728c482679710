package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldkeep/coldkeep/internal/tier"
)

func TestListAllObjects(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.manager.Upload(ctx, []byte("a"), UploadOptions{PathSuffix: "a.txt"})
	require.NoError(t, err)
	_, err = env.manager.Upload(ctx, []byte("b"), UploadOptions{Visibility: tier.Public, PathSuffix: "b.txt"})
	require.NoError(t, err)
	_, err = env.manager.Upload(ctx, []byte("c"), UploadOptions{Tier: tier.Cold, PathSuffix: "c.txt"})
	require.NoError(t, err)

	all, err := env.manager.ListAllObjects(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, tier.Hot, all.Hot.Tier)
	assert.Equal(t, "hot-bucket", all.Hot.Bucket)
	assert.Equal(t, 2, all.Hot.Count)
	assert.Len(t, all.Hot.Objects, 2)
	assert.Equal(t, "cold-bucket", all.Cold.Bucket)
	assert.Equal(t, 1, all.Cold.Count)
	assert.Equal(t, 3, all.TotalCount)
	assert.False(t, all.CollectedAt.IsZero())
}

func TestListAllObjectsPrefix(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.manager.Upload(ctx, []byte("a"), UploadOptions{PathSuffix: "a.txt"})
	require.NoError(t, err)
	_, err = env.manager.Upload(ctx, []byte("b"), UploadOptions{Visibility: tier.Public, PathSuffix: "b.txt"})
	require.NoError(t, err)

	all, err := env.manager.ListAllObjects(ctx, "public/")
	require.NoError(t, err)
	assert.Equal(t, 1, all.TotalCount)
	assert.Equal(t, "public/b.txt", all.Hot.Objects[0].Key)
}

func TestListAllObjectsError(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.cold.Fault = func(op, _ string) error {
		if op == "list" {
			return errors.New("bucket unavailable")
		}
		return nil
	}

	_, err := env.manager.ListAllObjects(ctx, "")
	assert.ErrorContains(t, err, "bucket unavailable")
}

func TestListOrphanObjects(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// One managed file plus a stray object on each tier.
	managed, err := env.manager.Upload(ctx, []byte("m"), UploadOptions{PathSuffix: "managed.txt"})
	require.NoError(t, err)
	require.NoError(t, env.hot.Put(ctx, "private/stray-hot.txt", []byte("x")))
	require.NoError(t, env.cold.Put(ctx, "public/stray-cold.txt", []byte("y")))

	orphans, err := env.manager.ListOrphanObjects(ctx, "")
	require.NoError(t, err)
	require.Len(t, orphans, 2)

	assert.Equal(t, "private/stray-hot.txt", orphans[0].Key)
	assert.Equal(t, tier.Hot, orphans[0].Tier)
	assert.Equal(t, "hot-bucket", orphans[0].Bucket)
	assert.Equal(t, "public/stray-cold.txt", orphans[1].Key)
	assert.Equal(t, tier.Cold, orphans[1].Tier)
	assert.Equal(t, "cold-bucket", orphans[1].Bucket)

	for _, o := range orphans {
		assert.NotEqual(t, managed.Path, o.Key)
	}
}

func TestListOrphanObjectsMatchesRecordsAcrossTiers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// The record lives on cold, but an object with the same path also
	// sits on hot. Matching against the full record set keeps it safe.
	f, err := env.manager.Upload(ctx, []byte("c"), UploadOptions{Tier: tier.Cold, PathSuffix: "shared.txt"})
	require.NoError(t, err)
	require.NoError(t, env.hot.Put(ctx, f.Path, []byte("h")))

	orphans, err := env.manager.ListOrphanObjects(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestListOrphanObjectsRecordWithoutObject(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// A record pointing at nothing is not an orphan object.
	_, err := env.store.Create(ctx, tier.Hot, "ghost.txt", "private/ghost.txt", nil)
	require.NoError(t, err)

	orphans, err := env.manager.ListOrphanObjects(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestDeleteOrphans(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	managed, err := env.manager.Upload(ctx, []byte("m"), UploadOptions{PathSuffix: "managed.txt"})
	require.NoError(t, err)
	require.NoError(t, env.hot.Put(ctx, "private/stray-hot.txt", []byte("x")))
	require.NoError(t, env.cold.Put(ctx, "public/stray-cold.txt", []byte("y")))

	result, err := env.manager.DeleteOrphans(ctx, DeleteOrphanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deleted)
	assert.Equal(t, 0, result.Failed)
	assert.ElementsMatch(t, []string{"private/stray-hot.txt", "public/stray-cold.txt"}, result.DeletedPaths)
	assert.False(t, result.DryRun)

	// The managed object is untouched, the strays are gone.
	assert.True(t, env.manager.Exists(ctx, managed))
	assert.Equal(t, 1, env.hot.Len())
	assert.Equal(t, 0, env.cold.Len())
}

func TestDeleteOrphansDryRun(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/stray.txt", []byte("x")))

	result, err := env.manager.DeleteOrphans(ctx, DeleteOrphanOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"private/stray.txt"}, result.DeletedPaths)

	// Nothing was actually removed.
	assert.Equal(t, 1, env.hot.Len())
}

func TestDeleteOrphansTierFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/stray-hot.txt", []byte("x")))
	require.NoError(t, env.cold.Put(ctx, "private/stray-cold.txt", []byte("y")))

	result, err := env.manager.DeleteOrphans(ctx, DeleteOrphanOptions{Tier: tier.Hot})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 0, env.hot.Len())
	assert.Equal(t, 1, env.cold.Len())

	_, err = env.manager.DeleteOrphans(ctx, DeleteOrphanOptions{Tier: "warm"})
	assert.ErrorContains(t, err, "invalid tier")
}

func TestDeleteOrphansPrefixFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/keep.txt", []byte("x")))
	require.NoError(t, env.hot.Put(ctx, "public/drop.txt", []byte("y")))

	result, err := env.manager.DeleteOrphans(ctx, DeleteOrphanOptions{Prefix: "public/"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, []string{"public/drop.txt"}, result.DeletedPaths)
	assert.Equal(t, 1, env.hot.Len())
}

func TestDeleteOrphansCollectsFailures(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/stray-hot.txt", []byte("x")))
	require.NoError(t, env.cold.Put(ctx, "private/stray-cold.txt", []byte("y")))
	env.hot.Fault = func(op, _ string) error {
		if op == "delete" {
			return errors.New("backend unavailable")
		}
		return nil
	}

	result, err := env.manager.DeleteOrphans(ctx, DeleteOrphanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "private/stray-hot.txt", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Error, "backend unavailable")
}

func TestAdoptOrphans(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.cold.Put(ctx, "public/reports/q3.pdf", []byte("pdf")))

	result, err := env.manager.AdoptOrphans(ctx, AdoptOrphanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Adopted)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.AdoptedIDs, 1)

	f, err := env.store.FindByID(ctx, result.AdoptedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, tier.Cold, f.Tier)
	assert.Equal(t, "q3.pdf", f.Filename)
	assert.Equal(t, "public/reports/q3.pdf", f.Path)
	assert.Nil(t, f.HotUntil)

	// Adopted objects are no longer orphans.
	orphans, err := env.manager.ListOrphanObjects(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestAdoptOrphansHotExpiry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.manager.now = func() time.Time { return fixed }

	require.NoError(t, env.hot.Put(ctx, "private/hot.txt", []byte("h")))
	require.NoError(t, env.cold.Put(ctx, "private/cold.txt", []byte("c")))

	result, err := env.manager.AdoptOrphans(ctx, AdoptOrphanOptions{
		SetHotUntil: true,
		HotDuration: durPtr(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Adopted)

	files, err := env.store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		if f.Tier == tier.Hot {
			require.NotNil(t, f.HotUntil)
			assert.True(t, f.HotUntil.Equal(fixed.Add(time.Hour)))
		} else {
			// Cold files never carry an expiry, even when requested.
			assert.Nil(t, f.HotUntil)
		}
	}
}

func TestAdoptOrphansExpiryNeedsDuration(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/hot.txt", []byte("h")))

	result, err := env.manager.AdoptOrphans(ctx, AdoptOrphanOptions{SetHotUntil: true})
	require.NoError(t, err)
	require.Len(t, result.AdoptedIDs, 1)

	f, err := env.store.FindByID(ctx, result.AdoptedIDs[0])
	require.NoError(t, err)
	assert.Nil(t, f.HotUntil)
}

func TestAdoptOrphansCustomExtractor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/2026/03/upload.bin", []byte("b")))

	result, err := env.manager.AdoptOrphans(ctx, AdoptOrphanOptions{
		ExtractFilename: func(key string) string { return "renamed.bin" },
	})
	require.NoError(t, err)
	require.Len(t, result.AdoptedIDs, 1)

	f, err := env.store.FindByID(ctx, result.AdoptedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "renamed.bin", f.Filename)
}

func TestAdoptOrphansTierFilter(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, env.hot.Put(ctx, "private/hot.txt", []byte("h")))
	require.NoError(t, env.cold.Put(ctx, "private/cold.txt", []byte("c")))

	result, err := env.manager.AdoptOrphans(ctx, AdoptOrphanOptions{Tier: tier.Cold})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Adopted)

	files, err := env.store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, tier.Cold, files[0].Tier)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "c.txt", baseName("a/b/c.txt"))
	assert.Equal(t, "c.txt", baseName("c.txt"))
	assert.Equal(t, "", baseName("a/b/"))
}
