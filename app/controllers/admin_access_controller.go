package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/billing"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
)

// HandleUsers lists users, optionally filtered by the q search term.
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		users, err := ac.repos.User.Search(q)
		if err != nil {
			return ac.handleError(c, "Failed to search users", err)
		}
		return c.JSON(fiber.Map{"users": users, "total": len(users)})
	}

	page, size := parsePaging(c)
	offset, limit := pageBounds(page, size, 50, 200)
	total, err := ac.repos.User.Count()
	if err != nil {
		return ac.handleError(c, "Failed to count users", err)
	}
	users, err := ac.repos.User.List(offset, limit)
	if err != nil {
		return ac.handleError(c, "Failed to load users", err)
	}
	return c.JSON(fiber.Map{"users": users, "total": total, "page": page, "page_size": limit})
}

// HandleUser returns a user with their subscriptions.
func (ac *AdminController) HandleUser(c *fiber.Ctx) error {
	user, err := ac.loadUser(c)
	if err != nil || user == nil {
		return err
	}
	subs, err := ac.repos.Subscription.ListByUser(c.UserContext(), user.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load subscriptions", err)
	}
	unlocks, err := ac.repos.Unlock.CountByUser(c.UserContext(), user.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load unlocks", err)
	}
	return c.JSON(fiber.Map{"user": user, "subscriptions": subs, "unlocked_deals": unlocks})
}

type userUpdateRequest struct {
	Role   string `json:"role" validate:"omitempty,oneof=user admin"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive disabled"`
}

// HandleUserUpdate changes role and status of a user.
func (ac *AdminController) HandleUserUpdate(c *fiber.Ctx) error {
	user, err := ac.loadUser(c)
	if err != nil || user == nil {
		return err
	}
	var req userUpdateRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if user.ID == usercontext.GetUserID(c) && (req.Role == models.ROLE_USER || (req.Status != "" && req.Status != models.STATUS_ACTIVE)) {
		return jsonError(c, fiber.StatusUnprocessableEntity, "self_lockout", "You cannot demote or disable your own account")
	}

	if req.Role != "" {
		user.Role = req.Role
	}
	if req.Status != "" {
		user.Status = req.Status
	}
	if err := ac.repos.User.Update(user); err != nil {
		return ac.handleError(c, "Failed to update user", err)
	}
	log.Infof("[Admin] User %d updated (role=%s, status=%s)", user.ID, user.Role, user.Status)
	return c.JSON(user)
}

type subscriptionGrantRequest struct {
	ServiceID uint `json:"service_id" validate:"required,gt=0"`
	Days      int  `json:"days" validate:"gte=0"`
}

// HandleSubscriptionGrant gives a user a subscription without a purchase.
func (ac *AdminController) HandleSubscriptionGrant(c *fiber.Ctx) error {
	user, err := ac.loadUser(c)
	if err != nil || user == nil {
		return err
	}
	var req subscriptionGrantRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	sub, err := ac.billing.GrantSubscription(c.UserContext(), user.ID, req.ServiceID, req.Days)
	if err != nil {
		if errors.Is(err, billing.ErrServiceNotFound) {
			return notFound(c, "Service not found")
		}
		return ac.handleError(c, "Failed to grant subscription", err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleSubscriptionCancel ends a subscription immediately.
func (ac *AdminController) HandleSubscriptionCancel(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := ac.billing.CancelSubscription(c.UserContext(), id); err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			return notFound(c, "Subscription not found")
		}
		return ac.handleError(c, "Failed to cancel subscription", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type exceptionRequest struct {
	UserID    uint       `json:"user_id" validate:"required,gt=0"`
	ValidFrom *time.Time `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to"`
	Note      string     `json:"note" validate:"max=2000"`
}

// HandleExceptions lists the exceptions granted for a deal.
func (ac *AdminController) HandleExceptions(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	items, err := ac.repos.Exception.ListByDeal(c.UserContext(), deal.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load exceptions", err)
	}
	return c.JSON(fiber.Map{"exceptions": items})
}

// HandleExceptionCreate grants a user access to a deal regardless of tier.
func (ac *AdminController) HandleExceptionCreate(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	var req exceptionRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.ValidFrom != nil && req.ValidTo != nil && req.ValidTo.Before(*req.ValidFrom) {
		return badRequest(c, "valid_to must not be before valid_from")
	}
	if _, err := ac.repos.User.GetByID(req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "User not found")
		}
		return ac.handleError(c, "Failed to load user", err)
	}

	exception := &models.DealException{
		UserID:    req.UserID,
		DealID:    deal.ID,
		IsActive:  true,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
		Note:      strings.TrimSpace(req.Note),
		GrantedBy: usercontext.GetUserID(c),
	}
	if err := ac.repos.Exception.Create(c.UserContext(), exception); err != nil {
		return ac.handleError(c, "Failed to create exception", err)
	}
	log.Infof("[Admin] Exception %d granted: user %d deal %d", exception.ID, exception.UserID, deal.ID)
	return c.Status(fiber.StatusCreated).JSON(exception)
}

// HandleExceptionRevoke deactivates an exception. Unlocks it produced stay.
func (ac *AdminController) HandleExceptionRevoke(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := ac.repos.Exception.Revoke(c.UserContext(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Exception not found")
		}
		return ac.handleError(c, "Failed to revoke exception", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type unlockRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0"`
}

// HandleUnlockGrant unlocks a deal for a user directly.
func (ac *AdminController) HandleUnlockGrant(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	var req unlockRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if _, err := ac.repos.User.GetByID(req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "User not found")
		}
		return ac.handleError(c, "Failed to load user", err)
	}

	created, err := ac.repos.Unlock.Upsert(c.UserContext(), &models.Unlock{
		UserID: req.UserID,
		DealID: deal.ID,
		Source: models.UnlockSourceManual,
	})
	if err != nil {
		return ac.handleError(c, "Failed to unlock deal", err)
	}
	if created && ac.unlocks != nil {
		if err := ac.unlocks.InvalidateUnlocks(c.UserContext(), req.UserID); err != nil {
			log.Warnf("[Admin] Failed to invalidate unlock cache of user %d: %v", req.UserID, err)
		}
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"user_id": req.UserID, "deal_id": deal.ID, "created": created})
}

func (ac *AdminController) loadUser(c *fiber.Ctx) (*models.User, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, badRequest(c, err.Error())
	}
	user, err := ac.repos.User.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(c, "User not found")
		}
		return nil, ac.handleError(c, "Failed to load user", err)
	}
	return user, nil
}
