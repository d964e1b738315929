package repository

import (
	"context"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// purchaseRepository implements the PurchaseRepository interface
type purchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository creates a new purchase repository instance
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepository{db: db}
}

// Create creates a new purchase in the database
func (r *purchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Omit("Service").Create(purchase).Error
}

// GetByReference retrieves a purchase and its service by the gateway reference
func (r *purchaseRepository) GetByReference(ctx context.Context, reference string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).Preload("Service").Where("reference = ?", reference).First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// Update updates an existing purchase in the database
func (r *purchaseRepository) Update(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Omit("Service").Save(purchase).Error
}

// ListByUser returns the purchases of a user, newest first
func (r *purchaseRepository) ListByUser(ctx context.Context, userID uint) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&purchases).Error
	return purchases, err
}
