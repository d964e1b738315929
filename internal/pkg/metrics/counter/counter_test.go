package counter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/database"
	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
)

const isolatedCounterTestRedisDB = 12

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    env.GetEnv("CACHE_PASSWORD", ""),
		DB:          isolatedCounterTestRedisDB,
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

func TestParseIncrementsSkipsGarbage(t *testing.T) {
	incs := parseIncrements(map[string]string{
		"12":  "3",
		"4":   "1",
		"abc": "2",
		"7":   "x",
		"9":   "0",
	})
	assert.Equal(t, []Increment{{ID: 4, Inc: 1}, {ID: 12, Inc: 3}}, incs)
}

func TestBuildIncrementSQL(t *testing.T) {
	sql, args := buildIncrementSQL("deals", "view_count", []Increment{{ID: 1, Inc: 2}, {ID: 5, Inc: 7}})
	assert.Equal(t, "UPDATE deals SET view_count = view_count + CASE id WHEN ? THEN ? WHEN ? THEN ? ELSE 0 END WHERE id IN (?,?)", sql)
	assert.Equal(t, []interface{}{uint64(1), int64(2), uint64(5), int64(7), uint64(1), uint64(5)}, args)
}

func TestApplyIncrements(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	ctx := context.Background()

	a := &models.Deal{Title: "Alpha", Slug: "alpha", PartnerName: "A", LockedByDefault: true, ViewCount: 10}
	b := &models.Deal{Title: "Beta", Slug: "beta", PartnerName: "B", LockedByDefault: true}
	c := &models.Deal{Title: "Gamma", Slug: "gamma", PartnerName: "C", LockedByDefault: true, ViewCount: 1}
	for _, d := range []*models.Deal{a, b, c} {
		require.NoError(t, db.Create(d).Error)
	}

	err = ApplyIncrements(ctx, db, "deals", "view_count", []Increment{{ID: uint64(a.ID), Inc: 5}, {ID: uint64(b.ID), Inc: 2}})
	require.NoError(t, err)

	var got []models.Deal
	require.NoError(t, db.Order("id").Find(&got).Error)
	require.Len(t, got, 3)
	assert.Equal(t, int64(15), got[0].ViewCount)
	assert.Equal(t, int64(2), got[1].ViewCount)
	assert.Equal(t, int64(1), got[2].ViewCount)

	assert.NoError(t, ApplyIncrements(ctx, db, "deals", "view_count", nil))
}

func TestFlushAllAppliesAndClears(t *testing.T) {
	rdb := testRedis(t)
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	ctx := context.Background()

	d := &models.Deal{Title: "Alpha", Slug: "alpha", PartnerName: "A", ClaimCount: 4}
	require.NoError(t, db.Create(d).Error)

	c := New(rdb, db)
	require.NoError(t, c.IncrementClaim(ctx, d.ID))
	require.NoError(t, c.IncrementClaim(ctx, d.ID))
	require.NoError(t, c.AddDealView(ctx, d.ID))

	require.NoError(t, c.FlushAll(ctx))

	var got models.Deal
	require.NoError(t, db.First(&got, d.ID).Error)
	assert.Equal(t, int64(6), got.ClaimCount)
	assert.Equal(t, int64(1), got.ViewCount)

	keys, err := rdb.Keys(ctx, "deal:counters:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)

	// nothing pending is a no-op
	require.NoError(t, c.FlushAll(ctx))
}

func TestFlushAllKeepsDeltasWhenUpdateFails(t *testing.T) {
	rdb := testRedis(t)
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	ctx := context.Background()

	c := New(rdb, db)
	require.NoError(t, c.IncrementClaim(ctx, 7))
	require.NoError(t, c.IncrementClaim(ctx, 7))
	require.NoError(t, c.IncrementClaim(ctx, 9))
	require.NoError(t, db.Migrator().DropTable(&models.Deal{}))

	err = c.FlushAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush claims")

	pending, err := rdb.HGetAll(ctx, dealClaimsKey).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"7": "2", "9": "1"}, pending)

	parked, err := rdb.Keys(ctx, dealClaimsKey+":tmp:*").Result()
	require.NoError(t, err)
	assert.Empty(t, parked)

	// deltas survive until a later flush succeeds
	require.NoError(t, db.Migrator().CreateTable(&models.Deal{}))
	for _, id := range []uint{7, 9} {
		require.NoError(t, db.Create(&models.Deal{ID: id, Title: "Deal", Slug: fmt.Sprintf("deal-%d", id), PartnerName: "P"}).Error)
	}
	require.NoError(t, c.FlushAll(ctx))

	var got []models.Deal
	require.NoError(t, db.Order("id").Find(&got).Error)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ClaimCount)
	assert.Equal(t, int64(1), got[1].ClaimCount)
}
