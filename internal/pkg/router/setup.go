package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/ManuelReschke/PerkFox/internal/api/v1"
	"github.com/ManuelReschke/PerkFox/internal/pkg/health"
	"github.com/ManuelReschke/PerkFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PerkFox/internal/pkg/ratelimit"
)

// Router installs a set of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries what the routers need from main
type Deps struct {
	API       *apiv1.APIServer
	Tokens    middleware.TokenVerifier
	Users     middleware.UserLookup
	RateLimit ratelimit.Config
	Health    *health.Checker
	Version   string
}

func InstallRouter(app *fiber.App, deps Deps) {
	// Public routes first, then the API group with its own auth and limiter.
	setup(app, NewHttpRouter(deps.Health, deps.Version), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
