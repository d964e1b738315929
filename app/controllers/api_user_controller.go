package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/repository"
	"github.com/ManuelReschke/PerkFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
	"github.com/ManuelReschke/PerkFox/internal/pkg/utils"
)

// AccountController serves the authenticated user's own data
type AccountController struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewAccountController(repos *repository.Repositories) *AccountController {
	return &AccountController{repos: repos, now: time.Now}
}

// HandleGetUserAccount returns account information for the authenticated user.
func (ac *AccountController) HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	account, err := ac.repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return internalError(c, "Account", "Failed to load user", err)
	}

	unlocks, err := ac.repos.Unlock.CountByUser(c.UserContext(), account.ID)
	if err != nil {
		return internalError(c, "Account", "Failed to load statistics", err)
	}

	return c.JSON(fiber.Map{
		"id":            account.ID,
		"name":          account.Name,
		"email":         account.Email,
		"company_name":  account.CompanyName,
		"avatar_url":    utils.GetGravatarURL(account.Email, 0),
		"role":          account.Role,
		"status":        account.Status,
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(account.LastLoginAt),
		"stats": fiber.Map{
			"unlocked_deals": unlocks,
		},
	})
}

// HandleGetUserSubscription returns the authoritative subscription and its
// canonical tier. subscription is null when the user has none.
func (ac *AccountController) HandleGetUserSubscription(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}

	sub, err := ac.repos.Subscription.FindActiveSubscription(c.UserContext(), userID, ac.now())
	if err != nil {
		return internalError(c, "Account", "Failed to load subscription", err)
	}
	if sub == nil {
		return c.JSON(fiber.Map{"subscription": nil, "tier": nil})
	}

	var tierBody interface{}
	if tier := entitlements.Canonicalize(sub.Service.Tier); !tier.IsEmpty() {
		tierBody = fiber.Map{
			"label":      tier.String(),
			"recognized": tier.Recognized(),
		}
	}
	return c.JSON(fiber.Map{
		"subscription": sub,
		"tier":         tierBody,
		"expires_at":   formatTimePtr(sub.ExpiresAt),
	})
}

// HandleGetUserClaims lists the caller's claim history, newest first.
func (ac *AccountController) HandleGetUserClaims(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}

	page, size := parsePaging(c)
	offset, limit := pageBounds(page, size, 20, 100)
	items, err := ac.repos.Claim.ListByUser(c.UserContext(), userID, offset, limit)
	if err != nil {
		return internalError(c, "Account", "Failed to load claims", err)
	}
	return c.JSON(fiber.Map{"claims": items, "page": page, "page_size": limit})
}

// HandleGetUserSubscriptions lists every subscription row of the caller.
func (ac *AccountController) HandleGetUserSubscriptions(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	subs, err := ac.repos.Subscription.ListByUser(c.UserContext(), userID)
	if err != nil {
		return internalError(c, "Account", "Failed to load subscriptions", err)
	}
	return c.JSON(fiber.Map{"subscriptions": subs})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
