package access

import (
	"context"
	"time"

	"github.com/ManuelReschke/PerkFox/app/models"
)

// DealFinder loads deals. Implementations return ErrDealNotFound (or
// gorm.ErrRecordNotFound) for unknown ids.
type DealFinder interface {
	GetByID(ctx context.Context, dealID uint) (*models.Deal, error)
}

// SubscriptionFinder returns the authoritative currently active subscription
// of a user with its Service loaded, or nil when there is none.
type SubscriptionFinder interface {
	FindActiveSubscription(ctx context.Context, userID uint, now time.Time) (*models.Subscription, error)
}

// ExceptionFinder returns a currently valid exception for the pair, or nil.
type ExceptionFinder interface {
	FindValidException(ctx context.Context, userID, dealID uint, now time.Time) (*models.DealException, error)
}

// MappingChecker reports whether a service is explicitly mapped to a deal.
type MappingChecker interface {
	IsServiceMappedToDeal(ctx context.Context, serviceID, dealID uint) (bool, error)
}
