package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SentiCast/internal/domain/models"
	"SentiCast/internal/repository/memory"
	"SentiCast/pkg/cache"
	applogger "SentiCast/pkg/logger"
)

func newTestRedisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisCacheFromClient(client, "senticast"), mr
}

// countingStore counts reads that reach the backing store.
type countingStore struct {
	*memory.ArtifactStore
	currentCalls int
}

func (c *countingStore) Current(ctx context.Context) (string, []byte, error) {
	c.currentCalls++
	return c.ArtifactStore.Current(ctx)
}

func TestCachedArtifactStoreServesFromRedis(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestRedisCache(t)
	backing := &countingStore{ArtifactStore: memory.NewArtifactStore()}
	store := NewCachedArtifactStore(backing, rc, time.Minute, time.Hour, applogger.NewNop())

	_, _, err := store.Current(ctx)
	assert.ErrorIs(t, err, models.ErrArtifactMissing)

	require.NoError(t, store.Save(ctx, "v1", []byte("one")))
	assert.True(t, mr.Exists("senticast:artifact:blob:v1"))

	backing.currentCalls = 0
	version, blob, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", version)
	assert.Equal(t, []byte("one"), blob)
	assert.Zero(t, backing.currentCalls)

	mr.FastForward(2 * time.Minute)
	version, _, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", version)
	assert.Equal(t, 1, backing.currentCalls)
}

func TestCachedArtifactStoreSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestRedisCache(t)
	backing := memory.NewArtifactStore()
	store := NewCachedArtifactStore(backing, rc, time.Minute, time.Hour, applogger.NewNop())

	require.NoError(t, store.Save(ctx, "v1", []byte("one")))
	// Another process publishes straight to the backing store.
	require.NoError(t, backing.Save(ctx, "v2", []byte("two")))

	version, _, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", version, "pointer cached until it expires")

	mr.FastForward(2 * time.Minute)
	version, blob, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", version)
	assert.Equal(t, []byte("two"), blob)
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	rc, _ := newTestRedisCache(t)
	locker := NewRedisLocker(rc)

	release, ok, err := locker.TryLock(ctx, "lock:training", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "lock:training", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = locker.TryLock(ctx, "lock:training", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
