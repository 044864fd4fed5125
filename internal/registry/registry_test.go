package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/handoff/internal/kv"
	"github.com/dmitrymomot/handoff/internal/registry"
)

func setup(t *testing.T, opts ...registry.Option) (*miniredis.Miniredis, *registry.Registry) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	reg, err := registry.New(kv.NewRedisStore(client, 10), opts...)
	require.NoError(t, err)
	return mr, reg
}

func TestRegisterAndLookup(t *testing.T) {
	t.Parallel()

	mr, reg := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-a"))

	handle, err := reg.Lookup(ctx, registry.Mobile, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-a", handle)

	_, err = reg.Lookup(ctx, registry.Kiosk, "user-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.Equal(t, registry.DefaultTTL, mr.TTL("registry:mobile:id:user-1"))
	assert.Equal(t, registry.DefaultTTL, mr.TTL("registry:mobile:conn:conn-a"))
}

func TestRegisterLastWriterWins(t *testing.T) {
	t.Parallel()

	mr, reg := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-a"))
	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-b"))

	handle, err := reg.Lookup(ctx, registry.Mobile, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-b", handle)
	assert.False(t, mr.Exists("registry:mobile:conn:conn-a"))

	// The superseded connection closing must not remove the new binding.
	_, err = reg.UnregisterByHandle(ctx, registry.Mobile, "conn-a")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	handle, err = reg.Lookup(ctx, registry.Mobile, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-b", handle)
}

func TestRegisterSameHandleNewIdentity(t *testing.T) {
	t.Parallel()

	_, reg := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Kiosk, "kiosk-1", "conn-a"))
	require.NoError(t, reg.Register(ctx, registry.Kiosk, "kiosk-2", "conn-a"))

	_, err := reg.Lookup(ctx, registry.Kiosk, "kiosk-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	handle, err := reg.Lookup(ctx, registry.Kiosk, "kiosk-2")
	require.NoError(t, err)
	assert.Equal(t, "conn-a", handle)
}

func TestUnregisterByHandle(t *testing.T) {
	t.Parallel()

	mr, reg := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-a"))

	identity, err := reg.UnregisterByHandle(ctx, registry.Mobile, "conn-a")
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity)

	_, err = reg.Lookup(ctx, registry.Mobile, "user-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.False(t, mr.Exists("registry:mobile:conn:conn-a"))
}

func TestUnregisterFallsBackToScan(t *testing.T) {
	t.Parallel()

	mr, reg := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-a"))
	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-2", "conn-b"))
	mr.Del("registry:mobile:conn:conn-a")

	identity, err := reg.UnregisterByHandle(ctx, registry.Mobile, "conn-a")
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity)

	_, err = reg.Lookup(ctx, registry.Mobile, "user-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	handle, err := reg.Lookup(ctx, registry.Mobile, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "conn-b", handle)
}

func TestTouchRefreshesTTL(t *testing.T) {
	t.Parallel()

	mr, reg := setup(t, registry.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-a"))
	mr.FastForward(50 * time.Second)

	require.NoError(t, reg.Touch(ctx, registry.Mobile, "user-1", "conn-a"))
	mr.FastForward(50 * time.Second)

	handle, err := reg.Lookup(ctx, registry.Mobile, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-a", handle)

	mr.FastForward(11 * time.Second)
	_, err = reg.Lookup(ctx, registry.Mobile, "user-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	// A heartbeat after expiry re-registers the connection.
	require.NoError(t, reg.Touch(ctx, registry.Mobile, "user-1", "conn-a"))
	handle, err = reg.Lookup(ctx, registry.Mobile, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-a", handle)
}

func TestTouchIgnoresSupersededHandle(t *testing.T) {
	t.Parallel()

	_, reg := setup(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-a"))
	require.NoError(t, reg.Register(ctx, registry.Mobile, "user-1", "conn-b"))
	require.NoError(t, reg.Touch(ctx, registry.Mobile, "user-1", "conn-a"))

	handle, err := reg.Lookup(ctx, registry.Mobile, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-b", handle)
}

func TestValidation(t *testing.T) {
	t.Parallel()

	_, reg := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, reg.Register(ctx, "tablet", "id", "h"), registry.ErrInvalidChannel)
	assert.ErrorIs(t, reg.Register(ctx, registry.Mobile, "", "h"), registry.ErrInvalidIdentity)
	assert.ErrorIs(t, reg.Register(ctx, registry.Mobile, "id", ""), registry.ErrInvalidHandle)

	_, err := reg.Lookup(ctx, "tablet", "id")
	assert.ErrorIs(t, err, registry.ErrInvalidChannel)
	_, err = reg.UnregisterByHandle(ctx, registry.Kiosk, "")
	assert.ErrorIs(t, err, registry.ErrInvalidHandle)

	ch, err := registry.ParseChannel(" Kiosk ")
	require.NoError(t, err)
	assert.Equal(t, registry.Kiosk, ch)
	_, err = registry.ParseChannel("desktop")
	assert.ErrorIs(t, err, registry.ErrInvalidChannel)

	_, err = registry.New(nil)
	assert.ErrorIs(t, err, registry.ErrNilStore)
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()

	mr, reg := setup(t)
	mr.Close()

	err := reg.Register(context.Background(), registry.Mobile, "user-1", "conn-a")
	assert.ErrorIs(t, err, registry.ErrStoreUnavailable)
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()

	store := kv.NewMemoryStore()
	t.Cleanup(store.Close)

	reg, err := registry.NewFromConfig(registry.Config{TTL: time.Minute, KeyPrefix: "r:"}, store)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, registry.Kiosk, "kiosk-1", "conn-k"))
	handle, err := reg.Lookup(ctx, registry.Kiosk, "kiosk-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-k", handle)

	identity, err := reg.UnregisterByHandle(ctx, registry.Kiosk, "conn-k")
	require.NoError(t, err)
	assert.Equal(t, "kiosk-1", identity)
}
