package ratelimit

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
)

// Config controls the API rate limiter
type Config struct {
	Max     int
	Window  time.Duration
	Storage fiber.Storage
}

// FromEnv reads RATE_LIMIT_MAX and RATE_LIMIT_WINDOW (seconds).
func FromEnv(storage fiber.Storage) Config {
	return Config{
		Max:     env.GetEnvInt("RATE_LIMIT_MAX", 120),
		Window:  time.Duration(env.GetEnvInt("RATE_LIMIT_WINDOW", 60)) * time.Second,
		Storage: storage,
	}
}

// NewStorage creates Redis storage for limiter counters on the server the
// cache client points at, in a separate database.
func NewStorage(cacheClient *goredis.Client) fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		// Prefer password from the underlying client if present
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("RATE_LIMIT_REDIS_DB", 1),
		Reset:    false,
	})
}

// New returns the limiter middleware. It must run after the bearer auth
// middleware so authenticated callers are counted per user, not per IP.
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 120
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:          cfg.Max,
		Expiration:   cfg.Window,
		Storage:      cfg.Storage,
		KeyGenerator: Key,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests, slow down",
			})
		},
	})
}

// Key identifies the caller for counting.
func Key(c *fiber.Ctx) string {
	if id := usercontext.GetUserID(c); id != 0 {
		return fmt.Sprintf("user:%d", id)
	}
	return "ip:" + c.IP()
}
