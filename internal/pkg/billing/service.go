package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
)

// Config holds the payment gateway endpoints.
type Config struct {
	GatewayURL string
	ReturnURL  string
	Secret     string
}

// ConfigFromEnv reads the gateway configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		GatewayURL: env.GetEnv("PAYMENT_GATEWAY_URL", "https://pay.example.com/checkout"),
		ReturnURL:  env.GetEnv("PAYMENT_RETURN_URL", "http://localhost:4000/api/v1/billing/return"),
		Secret:     env.GetEnv("PAYMENT_SECRET", ""),
	}
}

// ExpiryObserver is notified about subscriptions expired by a run.
type ExpiryObserver interface {
	AddExpiredSubscriptions(n int64)
}

// UnlockInvalidator drops cached unlock state of a user.
type UnlockInvalidator interface {
	InvalidateUnlocks(ctx context.Context, userID uint) error
}

// Service turns purchases into subscriptions and maintains their lifecycle.
type Service struct {
	repo     Repository
	cfg      Config
	now      func() time.Time
	observer ExpiryObserver
	unlocks  UnlockInvalidator
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cfg Config) *Service {
	return NewService(NewRepository(db), cfg)
}

// WithClock replaces time.Now.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithExpiryObserver attaches an observer for ExpireSubscriptions.
func (s *Service) WithExpiryObserver(o ExpiryObserver) *Service {
	s.observer = o
	return s
}

// WithUnlockInvalidator attaches the unlock cache refreshed after a paid
// purchase unlocked deals.
func (s *Service) WithUnlockInvalidator(u UnlockInvalidator) *Service {
	s.unlocks = u
	return s
}

// Config returns the gateway configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// CheckoutURL creates a pending purchase of service for user and returns the
// gateway URL the user is redirected to.
func (s *Service) CheckoutURL(ctx context.Context, user *models.User, service *models.Service) (*Checkout, error) {
	if user == nil || user.ID == 0 {
		return nil, errors.New("user is required")
	}
	if service == nil {
		return nil, ErrServiceNotFound
	}
	if !service.IsActive {
		return nil, ErrServiceInactive
	}

	purchase := &models.Purchase{
		UserID:      user.ID,
		ServiceID:   service.ID,
		Reference:   uuid.NewString(),
		Status:      models.PurchaseStatusPending,
		AmountCents: service.PriceCents,
		Currency:    strings.ToUpper(service.Currency),
	}
	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	redirect, err := s.redirectURL(purchase, user.Email)
	if err != nil {
		return nil, err
	}

	log.Infof("[Billing] Checkout %s started for user %d service %s", purchase.Reference, user.ID, service.Code)
	return &Checkout{Purchase: purchase, RedirectURL: redirect}, nil
}

func (s *Service) redirectURL(purchase *models.Purchase, email string) (string, error) {
	base, err := url.Parse(s.cfg.GatewayURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid payment gateway url %q", s.cfg.GatewayURL)
	}

	params := base.Query()
	params.Set("reference", purchase.Reference)
	params.Set("amount", formatAmount(purchase.AmountCents))
	params.Set("currency", purchase.Currency)
	params.Set("email", email)
	params.Set("return_url", s.cfg.ReturnURL)
	base.RawQuery = params.Encode()
	return base.String(), nil
}

// VerifyReturn checks the signature of a gateway return.
func (s *Service) VerifyReturn(reference, status, signature string) error {
	if !VerifyReturnSignature(reference, status, signature, s.cfg.Secret) {
		return ErrInvalidSignature
	}
	return nil
}

// ConfirmPurchase settles a purchase after the gateway return. A paid
// purchase creates an active subscription starting now and unlocks the deals
// mapped to the service with source "purchase:<reference>". Replaying an
// already settled reference returns the stored outcome.
func (s *Service) ConfirmPurchase(ctx context.Context, reference string, paid bool) (*Confirmation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrPurchaseNotFound
	}

	purchase, err := s.repo.GetPurchaseByReference(ctx, reference)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("load purchase: %w", err)
	}

	if purchase.Status != models.PurchaseStatusPending {
		return s.replay(ctx, purchase, paid)
	}

	if !paid {
		changed, err := s.repo.MarkPurchaseFailed(ctx, purchase.ID)
		if err != nil {
			return nil, fmt.Errorf("mark purchase failed: %w", err)
		}
		if !changed {
			return s.reload(ctx, reference, paid)
		}
		purchase.Status = models.PurchaseStatusFailed
		log.Infof("[Billing] Purchase %s failed", reference)
		return &Confirmation{Purchase: purchase}, nil
	}

	now := s.now()
	purchaseID := purchase.ID
	sub := &models.Subscription{
		UserID:     purchase.UserID,
		ServiceID:  purchase.ServiceID,
		Status:     models.SubscriptionStatusActive,
		StartedAt:  now,
		ExpiresAt:  subscriptionExpiry(now, purchase.Service.DurationDays),
		PurchaseID: &purchaseID,
	}
	unlocked, completed, err := s.repo.CompletePurchase(ctx, purchase, now, sub)
	if err != nil {
		return nil, fmt.Errorf("complete purchase: %w", err)
	}
	if !completed {
		return s.reload(ctx, reference, paid)
	}

	purchase.Status = models.PurchaseStatusPaid
	purchase.PaidAt = &now
	sub.Service = purchase.Service
	if len(unlocked) > 0 && s.unlocks != nil {
		if err := s.unlocks.InvalidateUnlocks(ctx, purchase.UserID); err != nil {
			log.Warnf("[Billing] Failed to invalidate unlock cache of user %d: %v", purchase.UserID, err)
		}
	}
	log.Infof("[Billing] Purchase %s paid, subscription %d active for user %d, %d deals unlocked", reference, sub.ID, purchase.UserID, len(unlocked))
	return &Confirmation{Purchase: purchase, Subscription: sub, UnlockedDeals: unlocked}, nil
}

// reload handles a purchase that was settled concurrently.
func (s *Service) reload(ctx context.Context, reference string, paid bool) (*Confirmation, error) {
	purchase, err := s.repo.GetPurchaseByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("reload purchase: %w", err)
	}
	return s.replay(ctx, purchase, paid)
}

func (s *Service) replay(ctx context.Context, purchase *models.Purchase, paid bool) (*Confirmation, error) {
	switch purchase.Status {
	case models.PurchaseStatusPaid:
		sub, err := s.repo.GetSubscriptionByPurchase(ctx, purchase.ID)
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("load subscription: %w", err)
		}
		return &Confirmation{Purchase: purchase, Subscription: sub, Replayed: true}, nil
	case models.PurchaseStatusFailed:
		if paid {
			return nil, ErrPurchaseSettled
		}
		return &Confirmation{Purchase: purchase, Replayed: true}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %q", ErrPurchaseSettled, purchase.Status)
	}
}

// GrantSubscription creates an active subscription without a purchase.
// days overrides the service duration when positive.
func (s *Service) GrantSubscription(ctx context.Context, userID, serviceID uint, days int) (*models.Subscription, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	service, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if days <= 0 {
		days = service.DurationDays
	}

	now := s.now()
	sub := &models.Subscription{
		UserID:    userID,
		ServiceID: service.ID,
		Status:    models.SubscriptionStatusActive,
		StartedAt: now,
		ExpiresAt: subscriptionExpiry(now, days),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	sub.Service = *service
	log.Infof("[Billing] Granted subscription %d (%s) to user %d", sub.ID, service.Code, userID)
	return sub, nil
}

// CancelSubscription ends a subscription immediately.
func (s *Service) CancelSubscription(ctx context.Context, id uint) error {
	if err := s.repo.CancelSubscription(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrSubscriptionNotFound
		}
		return fmt.Errorf("cancel subscription %d: %w", id, err)
	}
	log.Infof("[Billing] Subscription %d canceled", id)
	return nil
}

// ExpireSubscriptions flips active subscriptions that ended before now.
func (s *Service) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ExpireEnded(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	if n > 0 {
		log.Infof("[Billing] Expired %d subscriptions", n)
		if s.observer != nil {
			s.observer.AddExpiredSubscriptions(n)
		}
	}
	return n, nil
}
