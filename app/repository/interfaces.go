package repository

import (
	"context"
	"time"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	TouchLastLogin(id uint, at time.Time) error
}

// DealFilter narrows deal listings
type DealFilter struct {
	Category      string
	OnlyPublished bool
	Offset        int
	Limit         int
}

// DealRepository defines the interface for deal-related database operations
type DealRepository interface {
	Create(ctx context.Context, deal *models.Deal) error
	GetByID(ctx context.Context, id uint) (*models.Deal, error)
	GetBySlug(ctx context.Context, slug string) (*models.Deal, error)
	Update(ctx context.Context, deal *models.Deal) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter DealFilter) ([]models.Deal, error)
	Count(ctx context.Context, filter DealFilter) (int64, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SlugExistsExceptID(ctx context.Context, slug string, id uint) (bool, error)
}

// ServiceRepository defines the interface for services and their deal mappings
type ServiceRepository interface {
	Create(ctx context.Context, service *models.Service) error
	GetByID(ctx context.Context, id uint) (*models.Service, error)
	GetByCode(ctx context.Context, code string) (*models.Service, error)
	Update(ctx context.Context, service *models.Service) error
	List(ctx context.Context, onlyActive bool) ([]models.Service, error)
	SetDealServices(ctx context.Context, dealID uint, serviceIDs []uint) error
	ListServiceIDsForDeal(ctx context.Context, dealID uint) ([]uint, error)
	IsServiceMappedToDeal(ctx context.Context, serviceID, dealID uint) (bool, error)
}

// SubscriptionRepository defines the interface for the subscription ledger
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetByID(ctx context.Context, id uint) (*models.Subscription, error)
	GetByPurchaseID(ctx context.Context, purchaseID uint) (*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error)
	FindActiveSubscription(ctx context.Context, userID uint, now time.Time) (*models.Subscription, error)
}

// ExceptionRepository defines the interface for the exception ledger
type ExceptionRepository interface {
	Create(ctx context.Context, exception *models.DealException) error
	GetByID(ctx context.Context, id uint) (*models.DealException, error)
	Revoke(ctx context.Context, id uint) error
	ListByDeal(ctx context.Context, dealID uint) ([]models.DealException, error)
	FindValidException(ctx context.Context, userID, dealID uint, now time.Time) (*models.DealException, error)
}

// UnlockRepository defines the interface for materialized deal grants
type UnlockRepository interface {
	Upsert(ctx context.Context, unlock *models.Unlock) (bool, error)
	Get(ctx context.Context, userID, dealID uint) (*models.Unlock, error)
	Exists(ctx context.Context, userID, dealID uint) (bool, error)
	ListDealIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

// ClaimRepository defines the interface for the append-only claim audit trail
type ClaimRepository interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByUUID(ctx context.Context, uuid string) (*models.Claim, error)
	ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.Claim, error)
	ListByDeal(ctx context.Context, dealID uint, offset, limit int) ([]models.Claim, error)
	CountByUserAndDeal(ctx context.Context, userID, dealID uint) (int64, error)
}

// PurchaseRepository defines the interface for one-off purchases
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	GetByReference(ctx context.Context, reference string) (*models.Purchase, error)
	Update(ctx context.Context, purchase *models.Purchase) error
	ListByUser(ctx context.Context, userID uint) ([]models.Purchase, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Reload(ctx context.Context) (*models.AppSettings, error)
	Save(ctx context.Context, settings *models.AppSettings) error
	SetClaimsEnabled(ctx context.Context, enabled bool) (*models.AppSettings, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	db *gorm.DB

	User         UserRepository
	Deal         DealRepository
	Service      ServiceRepository
	Subscription SubscriptionRepository
	Exception    ExceptionRepository
	Unlock       UnlockRepository
	Claim        ClaimRepository
	Purchase     PurchaseRepository
	Setting      SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		User:         NewUserRepository(db),
		Deal:         NewDealRepository(db),
		Service:      NewServiceRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Exception:    NewExceptionRepository(db),
		Unlock:       NewUnlockRepository(db),
		Claim:        NewClaimRepository(db),
		Purchase:     NewPurchaseRepository(db),
		Setting:      NewSettingRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database
// transaction. The transaction is rolled back when fn returns an error.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
