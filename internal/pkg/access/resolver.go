package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/entitlements"
)

var ErrDealNotFound = errors.New("deal not found")

// Recorder observes decisions. It is satisfied by *metrics.Decisions.
type Recorder interface {
	ObserveDecision(reason string, d time.Duration)
}

// Resolver decides whether a user may see a deal's secrets.
type Resolver struct {
	deals         DealFinder
	subscriptions SubscriptionFinder
	exceptions    ExceptionFinder
	mappings      MappingChecker
	now           func() time.Time
	recorder      Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithRecorder attaches a decision recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// NewResolver creates a resolver from its lookup ports.
func NewResolver(deals DealFinder, subscriptions SubscriptionFinder, exceptions ExceptionFinder, mappings MappingChecker, opts ...Option) *Resolver {
	r := &Resolver{
		deals:         deals,
		subscriptions: subscriptions,
		exceptions:    exceptions,
		mappings:      mappings,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve evaluates access of userID to dealID. deal may be nil, in which case
// it is loaded. userID 0 stands for an anonymous caller.
//
// The rules run in a fixed order and the first match wins: open deal,
// valid exception, active subscription, tier rank, service mapping.
// Errors are returned only for infrastructure failures; a policy denial is
// a Decision with HasAccess false.
func (r *Resolver) Resolve(ctx context.Context, userID, dealID uint, deal *models.Deal) (Decision, error) {
	start := time.Now()
	decision, err := r.resolve(ctx, userID, dealID, deal)
	if err != nil {
		return Decision{}, err
	}
	if r.recorder != nil {
		r.recorder.ObserveDecision(string(decision.Reason), time.Since(start))
	}
	log.Debugf("[Access] user=%d deal=%d access=%t reason=%s", userID, dealID, decision.HasAccess, decision.Reason)
	return decision, nil
}

func (r *Resolver) resolve(ctx context.Context, userID, dealID uint, deal *models.Deal) (Decision, error) {
	if deal == nil {
		d, err := r.deals.GetByID(ctx, dealID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrDealNotFound) {
				return Decision{}, ErrDealNotFound
			}
			return Decision{}, fmt.Errorf("load deal %d: %w", dealID, err)
		}
		deal = d
	}
	if deal.ID != 0 {
		dealID = deal.ID
	}

	if deal.IsOpen() {
		return allow(ReasonOpen), nil
	}

	if userID == 0 {
		return deny(ReasonNoSubscription), nil
	}

	now := r.now()

	exception, err := r.exceptions.FindValidException(ctx, userID, dealID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("find exception for user %d deal %d: %w", userID, dealID, err)
	}
	if exception != nil {
		return allow(ReasonException), nil
	}

	sub, err := r.subscriptions.FindActiveSubscription(ctx, userID, now)
	if err != nil {
		return Decision{}, fmt.Errorf("find subscription for user %d: %w", userID, err)
	}
	if sub == nil {
		return deny(ReasonNoSubscription), nil
	}

	required := entitlements.Canonicalize(deal.RequiredTierLabel())
	plan := entitlements.Canonicalize(sub.Service.Tier)
	if satisfied, ok := plan.Satisfies(required); ok {
		if satisfied {
			return allow(ReasonOK), nil
		}
		return deny(ReasonPlanMismatch), nil
	}

	mapped, err := r.mappings.IsServiceMappedToDeal(ctx, sub.ServiceID, dealID)
	if err != nil {
		return Decision{}, fmt.Errorf("check mapping service %d deal %d: %w", sub.ServiceID, dealID, err)
	}
	if mapped {
		return allow(ReasonOK), nil
	}
	return deny(ReasonPlanMismatch), nil
}
