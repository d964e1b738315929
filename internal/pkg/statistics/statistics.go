package statistics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
)

const (
	CacheKeySnapshot = "statistics:snapshot:%s" // Format with date YYYY-MM-DD
	CacheExpiration  = 5 * time.Minute
)

// Snapshot holds the marketplace figures shown on the admin dashboard
type Snapshot struct {
	TotalUsers          int64     `json:"total_users"`
	PublishedDeals      int64     `json:"published_deals"`
	TotalDeals          int64     `json:"total_deals"`
	ActiveSubscriptions int64     `json:"active_subscriptions"`
	TotalUnlocks        int64     `json:"total_unlocks"`
	ClaimsToday         int64     `json:"claims_today"`
	DeniedClaimsToday   int64     `json:"denied_claims_today"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Service computes snapshots and caches them in Redis when a client is set
type Service struct {
	db  *gorm.DB
	rdb redis.Cmdable
	now func() time.Time
}

// NewService creates the statistics service. rdb may be nil.
func NewService(db *gorm.DB, rdb redis.Cmdable) *Service {
	return &Service{db: db, rdb: rdb, now: time.Now}
}

func (s *Service) cacheKey() string {
	return fmt.Sprintf(CacheKeySnapshot, s.now().UTC().Format("2006-01-02"))
}

// Get returns the cached snapshot of today, computing it on a miss.
func (s *Service) Get(ctx context.Context) (*Snapshot, error) {
	if s.rdb != nil {
		if val, err := s.rdb.Get(ctx, s.cacheKey()).Result(); err == nil {
			var snap Snapshot
			if err := json.Unmarshal([]byte(val), &snap); err == nil {
				return &snap, nil
			}
		} else if err != redis.Nil {
			log.Warnf("[Statistics] Cache read failed: %v", err)
		}
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the snapshot and replaces the cached one.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.rdb != nil {
		b, err := json.Marshal(snap)
		if err == nil {
			if err := s.rdb.Set(ctx, s.cacheKey(), string(b), CacheExpiration).Err(); err != nil {
				log.Warnf("[Statistics] Cache write failed: %v", err)
			}
		}
	}
	return snap, nil
}

func (s *Service) compute(ctx context.Context) (*Snapshot, error) {
	db := s.db.WithContext(ctx)
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	snap := &Snapshot{GeneratedAt: now}
	counts := []struct {
		name  string
		query *gorm.DB
		out   *int64
	}{
		{"users", db.Model(&models.User{}), &snap.TotalUsers},
		{"deals", db.Model(&models.Deal{}), &snap.TotalDeals},
		{"published deals", db.Model(&models.Deal{}).Where("is_published = ?", true), &snap.PublishedDeals},
		{"active subscriptions", db.Model(&models.Subscription{}).
			Where("status = ? AND started_at <= ? AND (expires_at IS NULL OR expires_at > ?)", models.SubscriptionStatusActive, now, now),
			&snap.ActiveSubscriptions},
		{"unlocks", db.Model(&models.Unlock{}), &snap.TotalUnlocks},
		{"claims today", db.Model(&models.Claim{}).
			Where("status = ? AND claimed_at >= ? AND claimed_at < ?", models.ClaimStatusSuccess, dayStart, dayEnd),
			&snap.ClaimsToday},
		{"denied claims today", db.Model(&models.Claim{}).
			Where("status <> ? AND claimed_at >= ? AND claimed_at < ?", models.ClaimStatusSuccess, dayStart, dayEnd),
			&snap.DeniedClaimsToday},
	}
	for _, c := range counts {
		if err := c.query.Count(c.out).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", c.name, err)
		}
	}
	return snap, nil
}
