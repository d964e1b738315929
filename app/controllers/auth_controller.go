package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
)

// TokenIssuer is satisfied by *security.TokenService.
type TokenIssuer interface {
	Issue(userID uint, role string) (string, time.Time, error)
}

// CaptchaVerifier is satisfied by *hcaptcha.Verifier.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// AuthController handles registration and login
type AuthController struct {
	users   repository.UserRepository
	tokens  TokenIssuer
	captcha CaptchaVerifier
	now     func() time.Time
}

func NewAuthController(users repository.UserRepository, tokens TokenIssuer) *AuthController {
	return &AuthController{users: users, tokens: tokens, now: time.Now}
}

// RequireCaptcha makes registration depend on a solved captcha.
func (ac *AuthController) RequireCaptcha(v CaptchaVerifier) *AuthController {
	ac.captcha = v
	return ac
}

type registerRequest struct {
	Name         string `json:"name" validate:"required,min=3,max=150"`
	Email        string `json:"email" validate:"required,email,max=200"`
	Password     string `json:"password" validate:"required,min=6,max=128"`
	CompanyName  string `json:"company_name" validate:"max=200"`
	CaptchaToken string `json:"captcha_token"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates an account and returns a bearer token for it.
func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if ac.captcha != nil {
		if ok, err := ac.captcha.Verify(c.UserContext(), req.CaptchaToken); !ok {
			log.Infof("[Auth] Captcha rejected: %v", err)
			return jsonError(c, fiber.StatusBadRequest, "captcha_failed", "Captcha verification failed")
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := ac.users.GetByEmail(email); err == nil {
		return conflict(c, "Email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(c, "Auth", "Failed to check email", err)
	}

	user, err := models.CreateUser(req.Name, email, req.Password)
	if err != nil {
		return badRequest(c, validationMessage(err))
	}
	user.CompanyName = strings.TrimSpace(req.CompanyName)
	if err := ac.users.Create(user); err != nil {
		return internalError(c, "Auth", "Failed to create user", err)
	}

	log.Infof("[Auth] Registered user %d", user.ID)
	return ac.respondWithToken(c, fiber.StatusCreated, user)
}

// HandleLogin verifies the credentials and returns a bearer token.
func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := ac.users.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(c, "Auth", "Failed to load user", err)
	}
	if user == nil || err != nil || !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "Email or password is wrong")
	}
	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "User inactive")
	}

	if err := ac.users.TouchLastLogin(user.ID, ac.now()); err != nil {
		log.Warnf("[Auth] Failed to update last login of user %d: %v", user.ID, err)
	}
	return ac.respondWithToken(c, fiber.StatusOK, user)
}

func (ac *AuthController) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, expiresAt, err := ac.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return internalError(c, "Auth", "Failed to issue token", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"user":       user,
	})
}
