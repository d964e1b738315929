package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PerkFox/internal/pkg/health"
)

type HttpRouter struct {
	health  *health.Checker
	version string
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)
}

func NewHttpRouter(checker *health.Checker, version string) *HttpRouter {
	return &HttpRouter{health: checker, version: version}
}
