package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/repository"
	"github.com/ManuelReschke/PerkFox/internal/pkg/billing"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
)

// BillingController exposes the purchasable services and the checkout flow
type BillingController struct {
	repos   *repository.Repositories
	billing *billing.Service
}

func NewBillingController(repos *repository.Repositories, billingService *billing.Service) *BillingController {
	return &BillingController{repos: repos, billing: billingService}
}

type checkoutRequest struct {
	ServiceID uint `json:"service_id" validate:"required,gt=0"`
}

// HandleListServices lists the services that can be purchased.
func (bc *BillingController) HandleListServices(c *fiber.Ctx) error {
	services, err := bc.repos.Service.List(c.UserContext(), true)
	if err != nil {
		return internalError(c, "Billing", "Failed to load services", err)
	}
	return c.JSON(fiber.Map{"services": services})
}

// HandleCheckout starts a purchase and returns the gateway redirect URL.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}

	var req checkoutRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := bc.repos.User.GetByID(userID)
	if err != nil {
		return internalError(c, "Billing", "Failed to load user", err)
	}
	service, err := bc.repos.Service.GetByID(c.UserContext(), req.ServiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Service not found")
		}
		return internalError(c, "Billing", "Failed to load service", err)
	}

	checkout, err := bc.billing.CheckoutURL(c.UserContext(), user, service)
	if err != nil {
		if errors.Is(err, billing.ErrServiceInactive) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "service_inactive", "Service is not available for purchase")
		}
		return internalError(c, "Billing", "Failed to start checkout", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reference":    checkout.Purchase.Reference,
		"purchase":     checkout.Purchase,
		"redirect_url": checkout.RedirectURL,
	})
}

// HandleReturn settles a purchase when the gateway sends the user back.
// Replayed returns answer with the stored outcome.
func (bc *BillingController) HandleReturn(c *fiber.Ctx) error {
	reference := c.Query("reference")
	status := c.Query("status")
	if reference == "" || status == "" {
		return badRequest(c, "reference and status are required")
	}
	if err := bc.billing.VerifyReturn(reference, status, c.Query("signature")); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Payment signature is invalid")
	}
	paid, ok := billing.ParseReturnStatus(status)
	if !ok {
		return badRequest(c, "unknown payment status")
	}

	confirmation, err := bc.billing.ConfirmPurchase(c.UserContext(), reference, paid)
	switch {
	case errors.Is(err, billing.ErrPurchaseNotFound):
		return notFound(c, "Purchase not found")
	case errors.Is(err, billing.ErrPurchaseSettled):
		return conflict(c, "Purchase was already settled")
	case err != nil:
		return internalError(c, "Billing", "Failed to confirm purchase", err)
	}

	return c.JSON(fiber.Map{
		"reference":      confirmation.Purchase.Reference,
		"status":         confirmation.Purchase.Status,
		"subscription":   confirmation.Subscription,
		"unlocked_deals": confirmation.UnlockedDeals,
		"replayed":       confirmation.Replayed,
	})
}
