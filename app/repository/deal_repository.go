package repository

import (
	"context"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// dealRepository implements the DealRepository interface
type dealRepository struct {
	db *gorm.DB
}

// NewDealRepository creates a new deal repository instance
func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepository{db: db}
}

// Create creates a new deal in the database
func (r *dealRepository) Create(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Create(deal).Error
}

// GetByID retrieves a deal by its ID
func (r *dealRepository) GetByID(ctx context.Context, id uint) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).First(&deal, id).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// GetBySlug retrieves a deal by its slug
func (r *dealRepository) GetBySlug(ctx context.Context, slug string) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// Update updates an existing deal in the database
func (r *dealRepository) Update(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Save(deal).Error
}

// Delete removes a deal together with its unlocks, claims, exceptions and
// service mappings in one transaction.
func (r *dealRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []interface{}{
			&models.Unlock{},
			&models.Claim{},
			&models.DealException{},
			&models.ServiceDeal{},
		} {
			if err := tx.Where("deal_id = ?", id).Delete(dependent).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Deal{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// List retrieves deals matching the filter, newest first
func (r *dealRepository) List(ctx context.Context, filter DealFilter) ([]models.Deal, error) {
	var deals []models.Deal
	q := r.filtered(ctx, filter).Order("created_at DESC, id DESC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&deals).Error
	return deals, err
}

// Count returns the number of deals matching the filter
func (r *dealRepository) Count(ctx context.Context, filter DealFilter) (int64, error) {
	var count int64
	err := r.filtered(ctx, filter).Model(&models.Deal{}).Count(&count).Error
	return count, err
}

// SlugExists checks if a slug already exists
func (r *dealRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Deal{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// SlugExistsExceptID checks if a slug exists excluding a specific ID
func (r *dealRepository) SlugExistsExceptID(ctx context.Context, slug string, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Deal{}).Where("slug = ? AND id != ?", slug, id).Count(&count).Error
	return count > 0, err
}

func (r *dealRepository) filtered(ctx context.Context, filter DealFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Deal{})
	if filter.OnlyPublished {
		q = q.Where("is_published = ?", true)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	return q
}
