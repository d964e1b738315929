package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PerkFox/internal/pkg/constants"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get(constants.PublicRoute, h.handleIndex)
	app.Get(constants.HealthRoute, h.handleHealth)
	app.Get(constants.DocsRoute, func(c *fiber.Ctx) error {
		return c.Redirect(constants.DocsRoute+"/v1", fiber.StatusMovedPermanently)
	})
}

func (h HttpRouter) handleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"name":    "PerkFox",
		"version": h.version,
		"api":     constants.APIv1Route,
		"docs":    constants.DocsRoute + "/v1",
	})
}

// handleHealth runs the probes and answers 503 when one fails
func (h HttpRouter) handleHealth(c *fiber.Ctx) error {
	if h.health == nil {
		return c.JSON(fiber.Map{"healthy": true})
	}
	report := h.health.Check(c.UserContext())
	status := fiber.StatusOK
	if !report.Healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(report)
}
