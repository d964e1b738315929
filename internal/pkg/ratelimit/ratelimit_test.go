package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-Test-User") == "7" {
			usercontext.Set(c, usercontext.UserContext{UserID: 7, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Use(New(cfg))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func get(t *testing.T, app *fiber.App, user string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestLimitReached(t *testing.T) {
	app := newApp(Config{Max: 2, Window: time.Minute})

	assert.Equal(t, http.StatusOK, get(t, app, "").StatusCode)
	assert.Equal(t, http.StatusOK, get(t, app, "").StatusCode)

	resp := get(t, app, "")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["error"])

	// an authenticated caller has its own bucket
	assert.Equal(t, http.StatusOK, get(t, app, "7").StatusCode)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")
	cfg := FromEnv(nil)
	assert.Equal(t, 120, cfg.Max)
	assert.Equal(t, time.Minute, cfg.Window)

	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "10")
	cfg = FromEnv(nil)
	assert.Equal(t, 5, cfg.Max)
	assert.Equal(t, 10*time.Second, cfg.Window)
}
