package viewcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/carelog/internal/config"
)

func TestRedisStore_PutGet(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "carelog:views")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Put(ctx, "carelog:views", []byte(`{"records":[]}`), time.Minute))
	got, err := store.Get(ctx, "carelog:views")
	require.NoError(t, err)
	assert.JSONEq(t, `{"records":[]}`, string(got))
	assert.Equal(t, time.Minute, mr.TTL("carelog:views"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "carelog:views")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := time.Date(2024, 9, 26, 8, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	value := []byte("v1")
	require.NoError(t, store.Put(ctx, "k", value, time.Hour))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	clock = clock.Add(time.Hour)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Put(ctx, "forever", []byte("v"), 0))
	clock = clock.Add(1000 * time.Hour)
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestNew_SelectsBackend(t *testing.T) {
	assert.Nil(t, New(config.ViewCacheConfig{}))

	mr := miniredis.RunT(t)
	store := New(config.ViewCacheConfig{RedisAddr: mr.Addr()})
	t.Cleanup(func() { _ = store.Close() })
	assert.IsType(t, &RedisStore{}, store)
}
