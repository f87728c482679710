package record

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldkeep/coldkeep/internal/tier"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	s, err := NewRedisStore("redis://" + srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return newRedisStore(t)
	})
}

func TestRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url")
	assert.Error(t, err)
}

func TestRedisStoreHotIndexFollowsUpdates(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t)
	now := time.Now().UTC()

	created, err := s.Create(ctx, tier.Hot, "a.txt", "public/a.txt", timePtr(now.Add(-time.Hour)))
	require.NoError(t, err)

	files, err := s.FindExpiredHot(ctx, now)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Pushing the expiry forward removes it from the expired window
	_, err = s.Update(ctx, created.ID, Update{HotUntil: timePtr(now.Add(time.Hour)), SetHotUntil: true})
	require.NoError(t, err)

	files, err = s.FindExpiredHot(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, files)

	// And deleting drops it from every index
	_, err = s.Update(ctx, created.ID, Update{HotUntil: timePtr(now.Add(-time.Hour)), SetHotUntil: true})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, created.ID))

	files, err = s.FindExpiredHot(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, files)

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
