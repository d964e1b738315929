package controllers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
	"github.com/ManuelReschke/PerkFox/internal/pkg/billing"
	"github.com/ManuelReschke/PerkFox/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/PerkFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PerkFox/internal/pkg/slug"
	"github.com/ManuelReschke/PerkFox/internal/pkg/statistics"
	"github.com/ManuelReschke/PerkFox/internal/pkg/upload"
)

// LogoStore is satisfied by *imageprocessor.LogoProcessor.
type LogoStore interface {
	Process(ctx context.Context, dealID uint, filename string, data []byte) (*imageprocessor.Logo, error)
	Remove(publicPath string) error
}

// UnlockInvalidator is satisfied by *cache.UnlockSet.
type UnlockInvalidator interface {
	InvalidateUnlocks(ctx context.Context, userID uint) error
}

// QueueStats is satisfied by *jobqueue.Queue.
type QueueStats interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// Statistics is satisfied by *statistics.Service.
type Statistics interface {
	Get(ctx context.Context) (*statistics.Snapshot, error)
	Refresh(ctx context.Context) (*statistics.Snapshot, error)
}

// AdminController handles the admin API using the repository pattern
type AdminController struct {
	repos   *repository.Repositories
	billing *billing.Service
	logos   LogoStore
	unlocks UnlockInvalidator
	queue   QueueStats
	stats   Statistics
}

// AdminOption attaches an optional collaborator.
type AdminOption func(*AdminController)

func WithLogoStore(logos LogoStore) AdminOption {
	return func(ac *AdminController) { ac.logos = logos }
}

func WithUnlockInvalidator(unlocks UnlockInvalidator) AdminOption {
	return func(ac *AdminController) { ac.unlocks = unlocks }
}

func WithQueueStats(queue QueueStats) AdminOption {
	return func(ac *AdminController) { ac.queue = queue }
}

func WithStatistics(stats Statistics) AdminOption {
	return func(ac *AdminController) { ac.stats = stats }
}

// NewAdminController creates a new admin controller with repository dependencies
func NewAdminController(repos *repository.Repositories, billingService *billing.Service, opts ...AdminOption) *AdminController {
	ac := &AdminController{repos: repos, billing: billingService}
	for _, opt := range opts {
		opt(ac)
	}
	return ac
}

type dealRequest struct {
	Title           string  `json:"title" validate:"required,min=3,max=255"`
	Slug            string  `json:"slug" validate:"max=255"`
	PartnerName     string  `json:"partner_name" validate:"required,max=150"`
	PartnerURL      string  `json:"partner_url" validate:"omitempty,url,max=255"`
	Description     string  `json:"description"`
	Category        string  `json:"category" validate:"max=100"`
	LockedByDefault *bool   `json:"locked_by_default"`
	RequiredTier    *string `json:"required_tier" validate:"omitempty,max=100"`
	CouponCode      string  `json:"coupon_code" validate:"max=255"`
	RedemptionLink  string  `json:"redemption_link" validate:"omitempty,url,max=500"`
	IsPublished     *bool   `json:"is_published"`
}

// apply copies the request onto deal. Unset booleans keep their value.
func (r *dealRequest) apply(deal *models.Deal) {
	deal.Title = strings.TrimSpace(r.Title)
	deal.PartnerName = strings.TrimSpace(r.PartnerName)
	deal.PartnerURL = strings.TrimSpace(r.PartnerURL)
	deal.Description = r.Description
	deal.Category = strings.ToLower(strings.TrimSpace(r.Category))
	deal.CouponCode = strings.TrimSpace(r.CouponCode)
	deal.RedemptionLink = strings.TrimSpace(r.RedemptionLink)
	if r.LockedByDefault != nil {
		deal.LockedByDefault = *r.LockedByDefault
	}
	if r.IsPublished != nil {
		deal.IsPublished = *r.IsPublished
	}
	deal.RequiredTier = nil
	if r.RequiredTier != nil {
		if tier := strings.TrimSpace(*r.RequiredTier); tier != "" {
			deal.RequiredTier = &tier
		}
	}
	if explicit := slug.Make(r.Slug); explicit != "" {
		deal.Slug = explicit
	} else if deal.Slug == "" {
		deal.Slug = slug.Make(r.Title)
	}
}

// HandleDeals lists all deals including unpublished ones.
func (ac *AdminController) HandleDeals(c *fiber.Ctx) error {
	page, size := parsePaging(c)
	offset, limit := pageBounds(page, size, 50, 200)
	filter := repository.DealFilter{Category: c.Query("category"), Offset: offset, Limit: limit}

	total, err := ac.repos.Deal.Count(c.UserContext(), filter)
	if err != nil {
		return ac.handleError(c, "Failed to count deals", err)
	}
	deals, err := ac.repos.Deal.List(c.UserContext(), filter)
	if err != nil {
		return ac.handleError(c, "Failed to load deals", err)
	}

	items := make([]fiber.Map, 0, len(deals))
	for i := range deals {
		items = append(items, adminDeal(&deals[i]))
	}
	return c.JSON(fiber.Map{"deals": items, "total": total, "page": page, "page_size": limit})
}

// HandleDeal returns one deal including its secrets and service mappings.
func (ac *AdminController) HandleDeal(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	serviceIDs, err := ac.repos.Service.ListServiceIDsForDeal(c.UserContext(), deal.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load service mappings", err)
	}
	body := adminDeal(deal)
	body["service_ids"] = serviceIDs
	return c.JSON(body)
}

// HandleDealCreate creates a deal. Deals are locked and unpublished unless
// the request says otherwise. A slug derived from the title gets a random
// suffix when taken; an explicit slug that is taken is a conflict.
func (ac *AdminController) HandleDealCreate(c *fiber.Ctx) error {
	var req dealRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	deal := &models.Deal{LockedByDefault: true}
	req.apply(deal)
	if err := deal.Validate(); err != nil {
		return badRequest(c, validationMessage(err))
	}

	exists, err := ac.repos.Deal.SlugExists(c.UserContext(), deal.Slug)
	if err != nil {
		return ac.handleError(c, "Failed to check slug", err)
	}
	if exists {
		if slug.Make(req.Slug) != "" {
			return conflict(c, "Slug is already in use")
		}
		if deal.Slug, err = slug.WithSuffix(deal.Slug, 6); err != nil {
			return ac.handleError(c, "Failed to generate slug", err)
		}
	}

	if err := ac.repos.Deal.Create(c.UserContext(), deal); err != nil {
		return ac.handleError(c, "Failed to create deal", err)
	}
	log.Infof("[Admin] Created deal %d (%s)", deal.ID, deal.Slug)
	return c.Status(fiber.StatusCreated).JSON(adminDeal(deal))
}

// HandleDealUpdate replaces the editable fields of a deal.
func (ac *AdminController) HandleDealUpdate(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}

	var req dealRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	req.apply(deal)
	if err := deal.Validate(); err != nil {
		return badRequest(c, validationMessage(err))
	}

	taken, err := ac.repos.Deal.SlugExistsExceptID(c.UserContext(), deal.Slug, deal.ID)
	if err != nil {
		return ac.handleError(c, "Failed to check slug", err)
	}
	if taken {
		return conflict(c, "Slug is already in use")
	}

	if err := ac.repos.Deal.Update(c.UserContext(), deal); err != nil {
		return ac.handleError(c, "Failed to update deal", err)
	}
	return c.JSON(adminDeal(deal))
}

// HandleDealDelete removes a deal and its logo files.
func (ac *AdminController) HandleDealDelete(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	if err := ac.repos.Deal.Delete(c.UserContext(), deal.ID); err != nil {
		return ac.handleError(c, "Failed to delete deal", err)
	}
	ac.removeLogo(deal.LogoPath)
	log.Infof("[Admin] Deleted deal %d", deal.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleDealLogo stores the multipart "logo" file as the deal's logo.
func (ac *AdminController) HandleDealLogo(c *fiber.Ctx) error {
	if ac.logos == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Logo uploads are not configured")
	}
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}

	fh, err := c.FormFile("logo")
	if err != nil {
		return badRequest(c, "logo file is required")
	}
	if fh.Size > upload.MaxLogoSize {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "too_large", upload.ErrTooLarge.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return ac.handleError(c, "Failed to read upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return ac.handleError(c, "Failed to read upload", err)
	}

	logo, err := ac.logos.Process(c.UserContext(), deal.ID, fh.Filename, data)
	if err != nil {
		if upload.IsRejected(err) || errors.Is(err, imageprocessor.ErrInvalidImage) {
			return badRequest(c, err.Error())
		}
		return ac.handleError(c, "Failed to store logo", err)
	}

	previous := deal.LogoPath
	deal.LogoPath = logo.Path
	if err := ac.repos.Deal.Update(c.UserContext(), deal); err != nil {
		ac.removeLogo(logo.Path)
		return ac.handleError(c, "Failed to update deal", err)
	}
	ac.removeLogo(previous)
	return c.JSON(fiber.Map{"deal_id": deal.ID, "logo": logo})
}

type dealServicesRequest struct {
	ServiceIDs []uint `json:"service_ids" validate:"dive,gt=0"`
}

// HandleDealServices replaces the set of services mapped to a deal.
func (ac *AdminController) HandleDealServices(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	var req dealServicesRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	for _, id := range req.ServiceIDs {
		if _, err := ac.repos.Service.GetByID(c.UserContext(), id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(c, "Service not found")
			}
			return ac.handleError(c, "Failed to load service", err)
		}
	}
	if err := ac.repos.Service.SetDealServices(c.UserContext(), deal.ID, req.ServiceIDs); err != nil {
		return ac.handleError(c, "Failed to update service mappings", err)
	}
	ids, err := ac.repos.Service.ListServiceIDsForDeal(c.UserContext(), deal.ID)
	if err != nil {
		return ac.handleError(c, "Failed to load service mappings", err)
	}
	return c.JSON(fiber.Map{"deal_id": deal.ID, "service_ids": ids})
}

// HandleDealClaims lists the claim audit trail of a deal.
func (ac *AdminController) HandleDealClaims(c *fiber.Ctx) error {
	deal, err := ac.loadDeal(c)
	if err != nil || deal == nil {
		return err
	}
	page, size := parsePaging(c)
	offset, limit := pageBounds(page, size, 50, 200)
	items, err := ac.repos.Claim.ListByDeal(c.UserContext(), deal.ID, offset, limit)
	if err != nil {
		return ac.handleError(c, "Failed to load claims", err)
	}
	return c.JSON(fiber.Map{"claims": items, "page": page, "page_size": limit})
}

type serviceRequest struct {
	Code         string `json:"code" validate:"required,min=2,max=100"`
	Name         string `json:"name" validate:"required,min=2,max=150"`
	Description  string `json:"description"`
	Tier         string `json:"tier" validate:"max=100"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	DurationDays int    `json:"duration_days" validate:"gte=0"`
	IsActive     *bool  `json:"is_active"`
}

func (r *serviceRequest) apply(s *models.Service) {
	s.Code = strings.ToLower(strings.TrimSpace(r.Code))
	s.Name = strings.TrimSpace(r.Name)
	s.Description = r.Description
	s.Tier = strings.TrimSpace(r.Tier)
	s.PriceCents = r.PriceCents
	s.DurationDays = r.DurationDays
	if cur := strings.ToUpper(strings.TrimSpace(r.Currency)); cur != "" {
		s.Currency = cur
	} else if s.Currency == "" {
		s.Currency = "EUR"
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

// HandleServices lists all services including inactive ones.
func (ac *AdminController) HandleServices(c *fiber.Ctx) error {
	services, err := ac.repos.Service.List(c.UserContext(), false)
	if err != nil {
		return ac.handleError(c, "Failed to load services", err)
	}
	return c.JSON(fiber.Map{"services": services})
}

// HandleServiceCreate creates a service. New services are active by default.
func (ac *AdminController) HandleServiceCreate(c *fiber.Ctx) error {
	var req serviceRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	service := &models.Service{IsActive: true}
	req.apply(service)
	if err := service.Validate(); err != nil {
		return badRequest(c, validationMessage(err))
	}

	if _, err := ac.repos.Service.GetByCode(c.UserContext(), service.Code); err == nil {
		return conflict(c, "Service code is already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ac.handleError(c, "Failed to check service code", err)
	}

	if err := ac.repos.Service.Create(c.UserContext(), service); err != nil {
		return ac.handleError(c, "Failed to create service", err)
	}
	return c.Status(fiber.StatusCreated).JSON(service)
}

// HandleServiceUpdate replaces the editable fields of a service.
func (ac *AdminController) HandleServiceUpdate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	service, err := ac.repos.Service.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "Service not found")
		}
		return ac.handleError(c, "Failed to load service", err)
	}

	var req serviceRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	req.apply(service)
	if err := service.Validate(); err != nil {
		return badRequest(c, validationMessage(err))
	}

	if other, err := ac.repos.Service.GetByCode(c.UserContext(), service.Code); err == nil && other.ID != service.ID {
		return conflict(c, "Service code is already in use")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return ac.handleError(c, "Failed to check service code", err)
	}

	if err := ac.repos.Service.Update(c.UserContext(), service); err != nil {
		return ac.handleError(c, "Failed to update service", err)
	}
	return c.JSON(service)
}

type settingsRequest struct {
	SiteTitle        string `json:"site_title" validate:"required,min=1,max=255"`
	SiteDescription  string `json:"site_description" validate:"max=500"`
	ClaimsEnabled    bool   `json:"claims_enabled"`
	ClaimMailEnabled bool   `json:"claim_mail_enabled"`
	DealsPerPage     int    `json:"deals_per_page" validate:"gte=1,lte=200"`
}

// HandleSettings returns the marketplace settings.
func (ac *AdminController) HandleSettings(c *fiber.Ctx) error {
	settings, err := ac.repos.Setting.Reload(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load settings", err)
	}
	return c.JSON(settingsBody(settings))
}

type claimsSwitchRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// HandleClaimsSwitch turns claiming on or off without touching the other
// settings.
func (ac *AdminController) HandleClaimsSwitch(c *fiber.Ctx) error {
	var req claimsSwitchRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	settings, err := ac.repos.Setting.SetClaimsEnabled(c.UserContext(), *req.Enabled)
	if err != nil {
		return ac.handleError(c, "Failed to switch claims", err)
	}
	log.Infof("[Admin] Claims enabled=%t", settings.ClaimsEnabled)
	return c.JSON(settingsBody(settings))
}

// HandleSettingsUpdate saves the marketplace settings.
func (ac *AdminController) HandleSettingsUpdate(c *fiber.Ctx) error {
	var req settingsRequest
	if err := bindJSON(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	settings := &models.AppSettings{
		SiteTitle:        strings.TrimSpace(req.SiteTitle),
		SiteDescription:  strings.TrimSpace(req.SiteDescription),
		ClaimsEnabled:    req.ClaimsEnabled,
		ClaimMailEnabled: req.ClaimMailEnabled,
		DealsPerPage:     req.DealsPerPage,
	}
	if err := ac.repos.Setting.Save(c.UserContext(), settings); err != nil {
		return ac.handleError(c, "Failed to save settings", err)
	}
	log.Info("[Admin] Settings updated")
	return c.JSON(settingsBody(settings))
}

// HandleQueueStats reports the state of the background job queue.
func (ac *AdminController) HandleQueueStats(c *fiber.Ctx) error {
	if ac.queue == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Job queue is not running")
	}
	stats, err := ac.queue.GetJobStats(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load job stats", err)
	}
	pending, err := ac.queue.GetQueueSize(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load queue size", err)
	}
	processing, err := ac.queue.GetProcessingSize(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load queue size", err)
	}
	return c.JSON(fiber.Map{"stats": stats, "pending": pending, "processing": processing})
}

// HandleStats returns the dashboard figures. ?refresh=1 bypasses the cache.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	if ac.stats == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Statistics are not configured")
	}
	get := ac.stats.Get
	if c.QueryBool("refresh") {
		get = ac.stats.Refresh
	}
	snap, err := get(c.UserContext())
	if err != nil {
		return ac.handleError(c, "Failed to load statistics", err)
	}
	return c.JSON(snap)
}

// loadDeal resolves the :id parameter. On failure the response is already
// written and the returned deal is nil.
func (ac *AdminController) loadDeal(c *fiber.Ctx) (*models.Deal, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, badRequest(c, err.Error())
	}
	deal, err := ac.repos.Deal.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(c, "Deal not found")
		}
		return nil, ac.handleError(c, "Failed to load deal", err)
	}
	return deal, nil
}

func (ac *AdminController) removeLogo(publicPath string) {
	if ac.logos == nil || publicPath == "" {
		return
	}
	if err := ac.logos.Remove(publicPath); err != nil {
		log.Warnf("[Admin] Failed to remove logo %s: %v", publicPath, err)
	}
}

// handleError logs the error and answers with a generic 500
func (ac *AdminController) handleError(c *fiber.Ctx, message string, err error) error {
	return internalError(c, "Admin", message, err)
}

// adminDeal renders a deal with its secrets, which the public JSON omits.
func adminDeal(d *models.Deal) fiber.Map {
	return fiber.Map{
		"id":                d.ID,
		"title":             d.Title,
		"slug":              d.Slug,
		"partner_name":      d.PartnerName,
		"partner_url":       d.PartnerURL,
		"description":       d.Description,
		"category":          d.Category,
		"logo_path":         d.LogoPath,
		"locked_by_default": d.LockedByDefault,
		"required_tier":     d.RequiredTier,
		"coupon_code":       d.CouponCode,
		"redemption_link":   d.RedemptionLink,
		"is_published":      d.IsPublished,
		"view_count":        d.ViewCount,
		"claim_count":       d.ClaimCount,
		"created_at":        d.CreatedAt,
		"updated_at":        d.UpdatedAt,
	}
}

func settingsBody(s *models.AppSettings) fiber.Map {
	return fiber.Map{
		"site_title":         s.SiteTitle,
		"site_description":   s.SiteDescription,
		"claims_enabled":     s.IsClaimsEnabled(),
		"claim_mail_enabled": s.IsClaimMailEnabled(),
		"deals_per_page":     s.GetDealsPerPage(),
	}
}
