package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription in the database
func (r *subscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit("Service").Create(sub).Error
}

// GetByID retrieves a subscription with its service
func (r *subscriptionRepository) GetByID(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Preload("Service").First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByPurchaseID retrieves the subscription created for a purchase
func (r *subscriptionRepository) GetByPurchaseID(ctx context.Context, purchaseID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Preload("Service").Where("purchase_id = ?", purchaseID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Update updates an existing subscription in the database
func (r *subscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Omit("Service").Save(sub).Error
}

// ListByUser returns all subscriptions of a user, newest first
func (r *subscriptionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Preload("Service").
		Where("user_id = ?", userID).
		Order("started_at DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

// FindActiveSubscription returns the authoritative currently active
// subscription of a user, or nil when there is none.
func (r *subscriptionRepository) FindActiveSubscription(ctx context.Context, userID uint, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Preload("Service").
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Where("started_at <= ?", now).
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Order("started_at DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
