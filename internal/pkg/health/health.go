package health

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	// CacheKey holds the last report of the monitor.
	CacheKey = "health:report"

	checkTimeout = 2 * time.Second
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// ComponentStatus is the result of one probe
type ComponentStatus struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the result of a full check
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components []ComponentStatus `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Checker runs the registered probes and keeps the last report
type Checker struct {
	mu     sync.RWMutex
	probes map[string]Probe
	last   *Report
	rdb    redis.Cmdable
	stopCh chan struct{}
	now    func() time.Time
}

// NewChecker creates a checker without probes.
func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe), now: time.Now}
}

// Add registers a probe under name, replacing an existing one.
func (c *Checker) Add(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// WithCache makes the monitor publish each report to Redis so other
// instances can read it.
func (c *Checker) WithCache(rdb redis.Cmdable) *Checker {
	c.rdb = rdb
	return c
}

// DatabaseProbe pings the sql pool behind db.
func DatabaseProbe(db *gorm.DB) Probe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisProbe pings Redis.
func RedisProbe(rdb redis.Cmdable) Probe {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

// Check runs every probe concurrently and stores the report.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	probes := make(map[string]Probe, len(c.probes))
	for k, v := range c.probes {
		probes[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	statuses := make([]ComponentStatus, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := probes[name](pctx)
			status := ComponentStatus{
				Name:      name,
				Healthy:   err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Error = err.Error()
			}
			statuses[i] = status
		}(i, name)
	}
	wg.Wait()

	report := Report{Healthy: true, Components: statuses, CheckedAt: c.now().UTC()}
	for _, s := range statuses {
		if !s.Healthy {
			report.Healthy = false
		}
	}

	c.mu.Lock()
	c.last = &report
	c.mu.Unlock()
	return report
}

// Last returns the most recent report, if any.
func (c *Checker) Last() (Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

// Start runs a check every interval until Stop is called.
func (c *Checker) Start(interval time.Duration) {
	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Infof("[Health] Monitor started (interval: %s)", interval)

		// run once immediately
		c.runOnce()

		for {
			select {
			case <-stopCh:
				log.Info("[Health] Monitor stopped")
				return
			case <-ticker.C:
				c.runOnce()
			}
		}
	}()
}

// Stop ends the monitor
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}

func (c *Checker) runOnce() {
	report := c.Check(context.Background())
	for _, s := range report.Components {
		if !s.Healthy {
			log.Warnf("[Health] %s unhealthy: %s", s.Name, s.Error)
		}
	}
	if c.rdb == nil {
		return
	}
	b, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.rdb.Set(context.Background(), CacheKey, string(b), 2*time.Minute).Err(); err != nil {
		log.Errorf("[Health] Cache set failed: %v", err)
	}
}
