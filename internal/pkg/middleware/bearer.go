package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/security"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
)

// TokenVerifier is satisfied by *security.TokenService.
type TokenVerifier interface {
	Verify(token string) (*security.AccessTokenClaims, error)
}

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetByID(id uint) (*models.User, error)
}

// BearerAuth resolves an "Authorization: Bearer" token into the request
// user context. Requests without a token stay anonymous; a token that does
// not verify is rejected with 401.
func BearerAuth(tokens TokenVerifier, users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c)
		if raw == "" {
			usercontext.Set(c, usercontext.Anonymous)
			return c.Next()
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, security.ErrTokenExpired) {
				message = "Token expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": message})
		}
		userID, err := claims.UserID()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid token"})
		}

		user, err := users.GetByID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Unknown user"})
			}
			log.Errorf("[Auth] User lookup failed for %d: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Authentication failed"})
		}
		if !user.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Name:       user.Name,
			Email:      user.Email,
			Role:       user.Role,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
		})
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
