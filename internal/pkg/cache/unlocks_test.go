package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const isolatedCacheTestRedisDB = 13

// testRedis connects to the Redis used by the dev stack and skips the test
// when none is reachable.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    env.GetEnv("CACHE_PASSWORD", ""),
		DB:          isolatedCacheTestRedisDB,
		DialTimeout: 300 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestUnlockSetRoundTrip(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	set := NewUnlockSet(rdb, time.Minute)

	_, ok, err := set.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, set.Store(ctx, 7, []uint{3, 5}))
	ids, ok, err := set.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[uint]struct{}{3: {}, 5: {}}, ids)

	ttl, err := rdb.TTL(ctx, unlocksKey(7)).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	require.NoError(t, set.InvalidateUnlocks(ctx, 7))
	_, ok, err = set.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlockSetCachesEmptySet(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	set := NewUnlockSet(rdb, 0)

	require.NoError(t, set.Store(ctx, 9, nil))
	ids, ok, err := set.Get(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, ids)
}

func TestUnlocksKey(t *testing.T) {
	assert.Equal(t, "user:unlocks:42", unlocksKey(42))
}
