package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptogate/cryptogate/internal/pkg/testutil"
)

const cacheTestRedisDB = 13

func TestAcquireLockIsExclusive(t *testing.T) {
	rdb := testutil.NewTestRedis(t, cacheTestRedisDB)
	c := context.Background()

	first, err := AcquireLock(c, rdb, "lock:test", time.Minute)
	require.NoError(t, err)

	_, err = AcquireLock(c, rdb, "lock:test", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, first.Release(c))

	second, err := AcquireLock(c, rdb, "lock:test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(c))
}

func TestReleaseDoesNotDropForeignLock(t *testing.T) {
	rdb := testutil.NewTestRedis(t, cacheTestRedisDB)
	c := context.Background()

	stale, err := AcquireLock(c, rdb, "lock:stale", time.Minute)
	require.NoError(t, err)

	// simulate expiry and takeover by another holder
	require.NoError(t, rdb.Del(c, "lock:stale").Err())
	owner, err := AcquireLock(c, rdb, "lock:stale", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(c))
	exists, err := rdb.Exists(c, "lock:stale").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	require.NoError(t, owner.Release(c))
}
