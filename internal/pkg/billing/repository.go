package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetService(ctx context.Context, id uint) (*models.Service, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	GetPurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error)
	MarkPurchaseFailed(ctx context.Context, purchaseID uint) (bool, error)
	CompletePurchase(ctx context.Context, purchase *models.Purchase, paidAt time.Time, sub *models.Subscription) ([]uint, bool, error)
	GetSubscription(ctx context.Context, id uint) (*models.Subscription, error)
	GetSubscriptionByPurchase(ctx context.Context, purchaseID uint) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	CancelSubscription(ctx context.Context, id uint) error
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetService(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	if err := r.db.WithContext(ctx).First(&service, id).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *gormRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Omit("Service").Create(purchase).Error
}

func (r *gormRepository) GetPurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).Preload("Service").Where("reference = ?", reference).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// MarkPurchaseFailed flips a pending purchase to failed. It reports false
// when the purchase was no longer pending.
func (r *gormRepository) MarkPurchaseFailed(ctx context.Context, purchaseID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status = ?", purchaseID, models.PurchaseStatusPending).
		Update("status", models.PurchaseStatusFailed)
	return res.RowsAffected > 0, res.Error
}

// CompletePurchase marks a pending purchase paid, creates its subscription
// and unlocks every deal mapped to the purchased service, all in one
// transaction. It returns the ids of the newly unlocked deals and reports
// false without writing anything when the purchase was no longer pending.
func (r *gormRepository) CompletePurchase(ctx context.Context, purchase *models.Purchase, paidAt time.Time, sub *models.Subscription) ([]uint, bool, error) {
	completed := false
	var unlocked []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchase.ID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{
				"status":  models.PurchaseStatusPaid,
				"paid_at": paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Omit("Service").Create(sub).Error; err != nil {
			return err
		}

		var dealIDs []uint
		if err := tx.Model(&models.ServiceDeal{}).
			Where("service_id = ?", purchase.ServiceID).
			Order("deal_id").
			Pluck("deal_id", &dealIDs).Error; err != nil {
			return err
		}
		source := models.PurchaseUnlockSource(purchase.Reference)
		for _, dealID := range dealIDs {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "deal_id"}},
				DoNothing: true,
			}).Create(&models.Unlock{UserID: purchase.UserID, DealID: dealID, Source: source})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				unlocked = append(unlocked, dealID)
			}
		}
		completed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return unlocked, completed, nil
}

func (r *gormRepository) GetSubscription(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Preload("Service").First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByPurchase(ctx context.Context, purchaseID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Preload("Service").Where("purchase_id = ?", purchaseID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit("Service").Create(sub).Error
}

func (r *gormRepository) CancelSubscription(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", models.SubscriptionStatusCanceled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.SubscriptionStatusActive, now).
		Update("status", models.SubscriptionStatusExpired)
	return res.RowsAffected, res.Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
