package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PerkFox/internal/pkg/catalog"
	"github.com/ManuelReschke/PerkFox/internal/pkg/claims"
	"github.com/ManuelReschke/PerkFox/internal/pkg/usercontext"
)

// DealController serves the public catalog and the claim endpoint
type DealController struct {
	catalog  *catalog.Service
	recorder *claims.Recorder
}

func NewDealController(catalogService *catalog.Service, recorder *claims.Recorder) *DealController {
	return &DealController{catalog: catalogService, recorder: recorder}
}

// HandleList returns a page of published deals annotated for the caller.
func (dc *DealController) HandleList(c *fiber.Ctx) error {
	page, size := parsePaging(c)
	result, err := dc.catalog.List(c.UserContext(), usercontext.GetUserID(c), catalog.Query{
		Category: strings.TrimSpace(c.Query("category")),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return internalError(c, "Deals", "Failed to load deals", err)
	}
	return c.JSON(result)
}

// HandleGet returns one published deal. Secrets are included once unlocked.
func (dc *DealController) HandleGet(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	detail, err := dc.catalog.Get(c.UserContext(), usercontext.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, catalog.ErrDealNotFound) {
			return notFound(c, "Deal not found")
		}
		return internalError(c, "Deals", "Failed to load deal", err)
	}
	return c.JSON(detail)
}

// HandleClaim records a claim attempt. A denial is answered with 403 and the
// reason; the attempt is still part of the audit trail.
func (dc *DealController) HandleClaim(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := dc.recorder.Claim(c.UserContext(), usercontext.GetUserID(c), id)
	switch {
	case errors.Is(err, claims.ErrUnauthenticated):
		return unauthorized(c)
	case errors.Is(err, claims.ErrDealNotFound):
		return notFound(c, "Deal not found")
	case errors.Is(err, claims.ErrClaimsDisabled):
		return jsonError(c, fiber.StatusServiceUnavailable, "claims_disabled", "Claiming is currently disabled")
	case err != nil:
		return internalError(c, "Claims", "Failed to record claim", err)
	}

	if !result.OK {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"ok":      false,
			"reason":  result.Reason,
			"message": result.Message,
		})
	}
	return c.JSON(fiber.Map{
		"ok":      true,
		"reason":  result.Reason,
		"deal":    result.Deal,
		"secrets": result.Deal.Secrets(),
		"claim":   result.Claim,
	})
}
