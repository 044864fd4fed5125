package sweeper_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/internal/sweeper"
)

func redisStore(t *testing.T) (*miniredis.Miniredis, kv.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, kv.NewRedisStore(client, 10)
}

func TestSweepOnceEvictsEntriesWithoutTTL(t *testing.T) {
	t.Parallel()

	mr, store := redisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "transfer:token:live", []byte("x"), time.Minute))
	require.NoError(t, store.Set(ctx, "transfer:token:leaked", []byte("x"), 0))
	require.NoError(t, store.Set(ctx, "registry:mobile:id:u", []byte("x"), 0))

	var observed atomic.Int32
	sw, err := sweeper.New(store,
		sweeper.WithPrefixes("transfer:token:"),
		sweeper.WithObserver(func(evicted int, err error) {
			assert.NoError(t, err)
			observed.Add(int32(evicted))
		}),
	)
	require.NoError(t, err)

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), observed.Load())

	assert.True(t, mr.Exists("transfer:token:live"))
	assert.False(t, mr.Exists("transfer:token:leaked"))
	assert.True(t, mr.Exists("registry:mobile:id:u"))

	stats := sw.Stats()
	assert.Equal(t, int64(1), stats.Sweeps)
	assert.Equal(t, int64(1), stats.Evicted)
	assert.False(t, stats.LastRun.IsZero())
}

func TestSweepOnceScanFailure(t *testing.T) {
	t.Parallel()

	mr, store := redisStore(t)
	sw, err := sweeper.New(store, sweeper.WithPrefixes("transfer:token:"))
	require.NoError(t, err)

	mr.Close()

	_, err = sw.SweepOnce(context.Background())
	assert.ErrorIs(t, err, kv.ErrUnavailable)
	assert.Equal(t, int64(1), sw.Stats().Failures)
}

func TestSweepOncePurgesMemoryStore(t *testing.T) {
	t.Parallel()

	store := kv.NewMemoryStore()
	t.Cleanup(store.Close)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "transfer:token:a", []byte("x"), 20*time.Millisecond))
	require.NoError(t, store.Set(ctx, "transfer:token:b", []byte("x"), time.Minute))

	sw, err := sweeper.New(store, sweeper.WithPrefixes("transfer:token:"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = sw.SweepOnce(ctx)
	require.NoError(t, err)

	_, err = store.Get(ctx, "transfer:token:a")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	_, err = store.Get(ctx, "transfer:token:b")
	assert.NoError(t, err)
}

func TestRunSweepsUntilCanceled(t *testing.T) {
	t.Parallel()

	_, store := redisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "transfer:token:leaked", []byte("x"), 0))

	sw, err := sweeper.NewFromConfig(sweeper.Config{Interval: 10 * time.Millisecond}, store,
		sweeper.WithPrefixes("transfer:token:"))
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(sw.Run(gctx))

	require.Eventually(t, func() bool {
		return sw.Stats().Evicted == 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, sw.Stats().IsRunning)

	cancel()
	require.NoError(t, g.Wait())
	assert.False(t, sw.Stats().IsRunning)
}

func TestLifecycleErrors(t *testing.T) {
	t.Parallel()

	_, store := redisStore(t)

	_, err := sweeper.New(nil, sweeper.WithPrefixes("x"))
	assert.ErrorIs(t, err, sweeper.ErrNilStore)
	_, err = sweeper.New(store)
	assert.ErrorIs(t, err, sweeper.ErrNoPrefixes)

	sw, err := sweeper.New(store, sweeper.WithPrefixes("x"))
	require.NoError(t, err)
	assert.ErrorIs(t, sw.Stop(), sweeper.ErrNotStarted)
}
