package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldkeep/coldkeep/internal/tier"
)

func TestNewSweeperDisabled(t *testing.T) {
	env := newTestEnv()
	env.manager.cfg.Sweeper.Interval = "0s"

	assert.Nil(t, NewSweeper(env.manager))
}

func TestNewSweeperDefaults(t *testing.T) {
	env := newTestEnv()

	s := NewSweeper(env.manager)
	require.NotNil(t, s)
	assert.Equal(t, 15*time.Minute, s.interval)
	assert.False(t, s.orphanScan)
}

func TestSweeperArchivesOnRun(t *testing.T) {
	env := newTestEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := env.manager.Upload(ctx, []byte("x"), UploadOptions{
		PathSuffix:  "expired.txt",
		HotDuration: durPtr(-time.Hour),
	})
	require.NoError(t, err)

	env.manager.cfg.Sweeper.Interval = "10ms"
	s := NewSweeper(env.manager)
	require.NotNil(t, s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// The first sweep happens immediately, so the file goes cold fast.
	require.Eventually(t, func() bool {
		got, err := env.store.FindByID(context.Background(), f.ID)
		return err == nil && got.Tier == tier.Cold
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}

func TestSweeperSkipsOverlappingPass(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	f, err := env.manager.Upload(ctx, []byte("x"), UploadOptions{
		PathSuffix:  "expired.txt",
		HotDuration: durPtr(-time.Hour),
	})
	require.NoError(t, err)

	s := NewSweeper(env.manager)
	require.NotNil(t, s)

	// A pass already marked running blocks the next one entirely.
	s.running.Store(true)
	s.sweep(ctx)
	got, err := env.store.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.Hot, got.Tier)

	s.running.Store(false)
	s.sweep(ctx)
	got, err = env.store.FindByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.Cold, got.Tier)
}

func TestSweeperOrphanScan(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.manager.cfg.Sweeper.OrphanScan = true

	require.NoError(t, env.hot.Put(ctx, "private/stray.txt", []byte("x")))

	s := NewSweeper(env.manager)
	require.NotNil(t, s)
	s.sweep(ctx)

	// The scan only observes; the stray object must survive it.
	assert.Equal(t, 1, env.hot.Len())
}
