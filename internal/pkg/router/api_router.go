package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	apiv1 "github.com/ManuelReschke/PerkFox/internal/api/v1"
	"github.com/ManuelReschke/PerkFox/internal/pkg/constants"
	"github.com/ManuelReschke/PerkFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PerkFox/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute,
		cors.New(),
		middleware.BearerAuth(h.deps.Tokens, h.deps.Users),
		ratelimit.New(h.deps.RateLimit),
	)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1")
	apiv1.RegisterHandlers(v1, h.deps.API)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}
