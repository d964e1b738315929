package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	unlocksKeyPrefix = "user:unlocks:"
	// emptyMember marks a cached empty set; deal ids start at 1.
	emptyMember = "0"
)

// DefaultUnlockTTL bounds how long a cached unlock set may live.
const DefaultUnlockTTL = 10 * time.Minute

// UnlockSet caches the ids of the deals a user has unlocked as a Redis set.
type UnlockSet struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewUnlockSet creates an unlock cache on top of rdb.
func NewUnlockSet(rdb redis.Cmdable, ttl time.Duration) *UnlockSet {
	if ttl <= 0 {
		ttl = DefaultUnlockTTL
	}
	return &UnlockSet{rdb: rdb, ttl: ttl}
}

func unlocksKey(userID uint) string {
	return unlocksKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Get returns the cached deal ids of a user. ok is false on a cache miss.
func (s *UnlockSet) Get(ctx context.Context, userID uint) (map[uint]struct{}, bool, error) {
	members, err := s.rdb.SMembers(ctx, unlocksKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(members) == 0 {
		return nil, false, nil
	}

	ids := make(map[uint]struct{}, len(members))
	for _, m := range members {
		if m == emptyMember {
			continue
		}
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("corrupt unlock cache member %q: %w", m, err)
		}
		ids[uint(id)] = struct{}{}
	}
	return ids, true, nil
}

// Store replaces the cached deal ids of a user.
func (s *UnlockSet) Store(ctx context.Context, userID uint, dealIDs []uint) error {
	key := unlocksKey(userID)
	members := make([]interface{}, 0, len(dealIDs)+1)
	members = append(members, emptyMember)
	for _, id := range dealIDs {
		members = append(members, strconv.FormatUint(uint64(id), 10))
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

// InvalidateUnlocks drops the cached set of a user.
func (s *UnlockSet) InvalidateUnlocks(ctx context.Context, userID uint) error {
	return s.rdb.Del(ctx, unlocksKey(userID)).Err()
}
