package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
	"github.com/ManuelReschke/PerkFox/internal/pkg/access"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrDealNotFound    = errors.New("deal not found")
	ErrClaimsDisabled  = errors.New("claiming is currently disabled")
)

const (
	MessagePlanMismatch   = "This deal is available on a higher plan."
	MessageNoSubscription = "You need an active subscription to claim this deal."
)

// AccessResolver is satisfied by *access.Resolver.
type AccessResolver interface {
	Resolve(ctx context.Context, userID, dealID uint, deal *models.Deal) (access.Decision, error)
}

// UnlockCache drops cached unlock sets after a new unlock.
type UnlockCache interface {
	InvalidateUnlocks(ctx context.Context, userID uint) error
}

// ClaimCounter counts successful claims per deal.
type ClaimCounter interface {
	IncrementClaim(ctx context.Context, dealID uint) error
}

// Notifier confirms a successful claim to the user.
type Notifier interface {
	NotifyClaim(ctx context.Context, userID uint, deal *models.Deal, claim *models.Claim) error
}

// Metrics observes recorded claims. It is satisfied by *metrics.Decisions.
type Metrics interface {
	ObserveClaim(status string)
}

// Result is the outcome of a claim attempt. Deal and Claim are set on
// success; Reason and Message explain a denial.
type Result struct {
	OK      bool          `json:"ok"`
	Reason  access.Reason `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
	Deal    *models.Deal  `json:"-"`
	Claim   *models.Claim `json:"-"`
}

// Recorder turns an access decision into durable Unlock and Claim rows.
type Recorder struct {
	repos    *repository.Repositories
	resolver AccessResolver
	now      func() time.Time
	enabled  func() bool
	cache    UnlockCache
	counter  ClaimCounter
	notifier Notifier
	metrics  Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithEnabled installs a switch that is consulted on every claim.
func WithEnabled(enabled func() bool) Option {
	return func(r *Recorder) { r.enabled = enabled }
}

func WithUnlockCache(cache UnlockCache) Option {
	return func(r *Recorder) { r.cache = cache }
}

func WithClaimCounter(counter ClaimCounter) Option {
	return func(r *Recorder) { r.counter = counter }
}

func WithNotifier(notifier Notifier) Option {
	return func(r *Recorder) { r.notifier = notifier }
}

func WithMetrics(m Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a claim recorder.
func NewRecorder(repos *repository.Repositories, resolver AccessResolver, opts ...Option) *Recorder {
	r := &Recorder{
		repos:    repos,
		resolver: resolver,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Claim records one claim attempt of userID for dealID. Exactly one Claim
// row is written per call that gets past authentication and deal lookup.
// A granted claim also upserts the user's Unlock in the same transaction.
func (r *Recorder) Claim(ctx context.Context, userID, dealID uint) (*Result, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if r.enabled != nil && !r.enabled() {
		return nil, ErrClaimsDisabled
	}

	deal, err := r.repos.Deal.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("load deal %d: %w", dealID, err)
	}
	// drafts are invisible in the catalog and cannot be claimed either
	if !deal.IsPublished {
		return nil, ErrDealNotFound
	}

	decision, err := r.resolver.Resolve(ctx, userID, deal.ID, deal)
	if err != nil {
		if errors.Is(err, access.ErrDealNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, fmt.Errorf("resolve access: %w", err)
	}

	if !decision.HasAccess {
		return r.recordDenial(ctx, userID, deal, decision.Reason)
	}
	return r.recordGrant(ctx, userID, deal, decision.Reason)
}

func (r *Recorder) recordDenial(ctx context.Context, userID uint, deal *models.Deal, reason access.Reason) (*Result, error) {
	claim := &models.Claim{
		UUID:      uuid.NewString(),
		UserID:    userID,
		DealID:    deal.ID,
		Status:    deniedStatus(reason),
		Reason:    string(reason),
		ClaimedAt: r.now(),
	}
	if err := r.repos.Claim.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("record blocked claim: %w", err)
	}
	r.observe(claim.Status)

	log.Infof("[Claims] User %d blocked from deal %d: %s", userID, deal.ID, reason)
	return &Result{OK: false, Reason: reason, Message: DenialMessage(reason)}, nil
}

func (r *Recorder) recordGrant(ctx context.Context, userID uint, deal *models.Deal, reason access.Reason) (*Result, error) {
	claim := &models.Claim{
		UUID:                   uuid.NewString(),
		UserID:                 userID,
		DealID:                 deal.ID,
		Status:                 models.ClaimStatusSuccess,
		Reason:                 string(reason),
		ClaimedAt:              r.now(),
		CouponCodeSnapshot:     deal.CouponCode,
		RedemptionLinkSnapshot: deal.RedemptionLink,
	}

	var unlocked bool
	err := r.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		created, err := tx.Unlock.Upsert(ctx, &models.Unlock{
			UserID: userID,
			DealID: deal.ID,
			Source: UnlockSource(reason),
		})
		if err != nil {
			return fmt.Errorf("upsert unlock: %w", err)
		}
		unlocked = created
		if err := tx.Claim.Create(ctx, claim); err != nil {
			return fmt.Errorf("record claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.observe(claim.Status)
	r.afterGrant(ctx, userID, deal, claim, unlocked)

	log.Infof("[Claims] User %d claimed deal %d (%s)", userID, deal.ID, reason)
	return &Result{OK: true, Reason: reason, Deal: deal, Claim: claim}, nil
}

// afterGrant runs the post-commit side effects. Failures are logged only;
// the claim is already durable.
func (r *Recorder) afterGrant(ctx context.Context, userID uint, deal *models.Deal, claim *models.Claim, unlocked bool) {
	if unlocked && r.cache != nil {
		if err := r.cache.InvalidateUnlocks(ctx, userID); err != nil {
			log.Warnf("[Claims] Failed to invalidate unlock cache for user %d: %v", userID, err)
		}
	}
	if r.counter != nil {
		if err := r.counter.IncrementClaim(ctx, deal.ID); err != nil {
			log.Warnf("[Claims] Failed to count claim for deal %d: %v", deal.ID, err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyClaim(ctx, userID, deal, claim); err != nil {
			log.Warnf("[Claims] Failed to send claim confirmation to user %d: %v", userID, err)
		}
	}
}

func (r *Recorder) observe(status string) {
	if r.metrics != nil {
		r.metrics.ObserveClaim(status)
	}
}

// UnlockSource maps the reason of a granted decision to the source stored on
// the Unlock row.
func UnlockSource(reason access.Reason) string {
	if reason == access.ReasonException {
		return models.UnlockSourceException
	}
	return models.UnlockSourceSubscription
}

// DenialMessage returns the user facing explanation of a denial reason.
func DenialMessage(reason access.Reason) string {
	switch reason {
	case access.ReasonPlanMismatch:
		return MessagePlanMismatch
	case access.ReasonNoSubscription:
		return MessageNoSubscription
	default:
		return ""
	}
}

func deniedStatus(reason access.Reason) string {
	if reason == access.ReasonPlanMismatch {
		return models.ClaimStatusBlockedPlanMismatch
	}
	return models.ClaimStatusBlockedNoSubscription
}
