package billing

import (
	"errors"

	"github.com/ManuelReschke/PerkFox/app/models"
)

var (
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrPurchaseSettled      = errors.New("purchase already settled")
	ErrServiceNotFound      = errors.New("service not found")
	ErrServiceInactive      = errors.New("service is not available for purchase")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidSignature     = errors.New("invalid payment signature")
)

// Checkout is a pending purchase together with the gateway redirect.
type Checkout struct {
	Purchase    *models.Purchase
	RedirectURL string
}

// Confirmation is the outcome of a gateway return. Subscription is nil for a
// failed payment.
type Confirmation struct {
	Purchase     *models.Purchase
	Subscription *models.Subscription
	// UnlockedDeals lists the deals unlocked by this settlement.
	UnlockedDeals []uint
	// Replayed is true when the reference had already been settled before.
	Replayed bool
}
