package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PerkFox/app/controllers"
	"github.com/ManuelReschke/PerkFox/internal/pkg/middleware"
)

// Pong is the body of the ping endpoint
type Pong struct {
	Ping string `json:"ping"`
}

// APIServer groups the controllers behind the v1 routes
type APIServer struct {
	Auth    *controllers.AuthController
	Deals   *controllers.DealController
	Account *controllers.AccountController
	Billing *controllers.BillingController
	Admin   *controllers.AdminController
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// RegisterHandlers installs the v1 routes on router. The caller is expected
// to have resolved the request user (see middleware.BearerAuth) already.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	router.Post("/auth/register", s.Auth.HandleRegister)
	router.Post("/auth/login", s.Auth.HandleLogin)

	router.Get("/deals", s.Deals.HandleList)
	router.Get("/deals/:id", s.Deals.HandleGet)
	router.Post("/deals/:id/claim", s.Deals.HandleClaim)

	router.Get("/services", s.Billing.HandleListServices)
	router.Post("/billing/checkout", middleware.RequireAuth, s.Billing.HandleCheckout)
	router.Get("/billing/return", s.Billing.HandleReturn)

	me := router.Group("/me", middleware.RequireAuth)
	me.Get("/", s.Account.HandleGetUserAccount)
	me.Get("/subscription", s.Account.HandleGetUserSubscription)
	me.Get("/subscriptions", s.Account.HandleGetUserSubscriptions)
	me.Get("/claims", s.Account.HandleGetUserClaims)

	admin := router.Group("/admin", middleware.RequireAdmin)
	admin.Get("/deals", s.Admin.HandleDeals)
	admin.Post("/deals", s.Admin.HandleDealCreate)
	admin.Get("/deals/:id", s.Admin.HandleDeal)
	admin.Put("/deals/:id", s.Admin.HandleDealUpdate)
	admin.Delete("/deals/:id", s.Admin.HandleDealDelete)
	admin.Post("/deals/:id/logo", s.Admin.HandleDealLogo)
	admin.Put("/deals/:id/services", s.Admin.HandleDealServices)
	admin.Get("/deals/:id/claims", s.Admin.HandleDealClaims)
	admin.Get("/deals/:id/exceptions", s.Admin.HandleExceptions)
	admin.Post("/deals/:id/exceptions", s.Admin.HandleExceptionCreate)
	admin.Post("/deals/:id/unlocks", s.Admin.HandleUnlockGrant)
	admin.Delete("/exceptions/:id", s.Admin.HandleExceptionRevoke)

	admin.Get("/services", s.Admin.HandleServices)
	admin.Post("/services", s.Admin.HandleServiceCreate)
	admin.Put("/services/:id", s.Admin.HandleServiceUpdate)

	admin.Get("/users", s.Admin.HandleUsers)
	admin.Get("/users/:id", s.Admin.HandleUser)
	admin.Patch("/users/:id", s.Admin.HandleUserUpdate)
	admin.Post("/users/:id/subscriptions", s.Admin.HandleSubscriptionGrant)
	admin.Delete("/subscriptions/:id", s.Admin.HandleSubscriptionCancel)

	admin.Get("/settings", s.Admin.HandleSettings)
	admin.Put("/settings", s.Admin.HandleSettingsUpdate)
	admin.Put("/settings/claims", s.Admin.HandleClaimsSwitch)
	admin.Get("/queue", s.Admin.HandleQueueStats)
	admin.Get("/stats", s.Admin.HandleStats)
}
