package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
	"github.com/ManuelReschke/PerkFox/internal/pkg/database"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
	"github.com/ManuelReschke/PerkFox/internal/pkg/utils"
)

var accountNow = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

func newAccountApp(t *testing.T) (*fiber.App, *repository.Repositories) {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repos := repository.NewRepositories(db)
	ac := NewAccountController(repos)
	ac.now = func() time.Time { return accountNow }

	app := fiber.New()
	// X-User-ID stands in for the bearer middleware
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User-ID"); id != "" {
			n, err := strconv.ParseUint(id, 10, 64)
			require.NoError(t, err)
			u, err := repos.User.GetByID(uint(n))
			require.NoError(t, err)
			usercontext.Set(c, usercontext.UserContext{UserID: u.ID, Email: u.Email, Role: u.Role, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Get("/me", ac.HandleGetUserAccount)
	app.Get("/me/subscription", ac.HandleGetUserSubscription)
	return app, repos
}

func getJSON(t *testing.T, app *fiber.App, path string, userID uint) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatUint(uint64(userID), 10))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestAccountRequiresLogin(t *testing.T) {
	app, _ := newAccountApp(t)

	status, body := getJSON(t, app, "/me", 0)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"])

	status, _ = getJSON(t, app, "/me/subscription", 0)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAccountPayload(t *testing.T) {
	app, repos := newAccountApp(t)
	ctx := context.Background()

	u, err := models.CreateUser("Ada", "ada@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))
	d := &models.Deal{Title: "Credits", Slug: "credits", PartnerName: "Cloud", IsPublished: true}
	require.NoError(t, repos.Deal.Create(ctx, d))
	_, err = repos.Unlock.Upsert(ctx, &models.Unlock{UserID: u.ID, DealID: d.ID, Source: models.UnlockSourceManual})
	require.NoError(t, err)

	status, body := getJSON(t, app, "/me", u.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, utils.GetGravatarURL(" ADA@example.com ", 200), body["avatar_url"])
	assert.Nil(t, body["last_login_at"])
	stats, _ := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["unlocked_deals"])
}

func TestAccountSubscriptionTier(t *testing.T) {
	app, repos := newAccountApp(t)
	ctx := context.Background()

	u, err := models.CreateUser("Grace", "grace@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))

	status, body := getJSON(t, app, "/me/subscription", u.ID)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["subscription"])
	assert.Nil(t, body["tier"])

	subscribe := func(code, tier string, started time.Time, expires *time.Time) {
		s := &models.Service{Code: code, Name: code, Tier: tier, Currency: "EUR", IsActive: true}
		require.NoError(t, repos.Service.Create(ctx, s))
		require.NoError(t, repos.Subscription.Create(ctx, &models.Subscription{
			UserID: u.ID, ServiceID: s.ID, Status: models.SubscriptionStatusActive, StartedAt: started, ExpiresAt: expires,
		}))
	}

	expires := accountNow.Add(48 * time.Hour)
	subscribe("pro-yearly", "Pro Yearly", accountNow.Add(-time.Hour), &expires)

	status, body = getJSON(t, app, "/me/subscription", u.ID)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["subscription"])
	tier, _ := body["tier"].(map[string]interface{})
	assert.Equal(t, "professional", tier["label"])
	assert.Equal(t, true, tier["recognized"])
	assert.Equal(t, expires.Format(time.RFC3339), body["expires_at"])
	assert.Equal(t, "2025-09-01T08:00:00Z", formatTimePtr(&accountNow))

	// a newer subscription without a tier label becomes authoritative
	subscribe("partner-bundle", "", accountNow.Add(-time.Minute), nil)

	status, body = getJSON(t, app, "/me/subscription", u.ID)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["subscription"])
	assert.Nil(t, body["tier"])
	assert.Nil(t, body["expires_at"])
}
