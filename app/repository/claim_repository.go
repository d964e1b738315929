package repository

import (
	"context"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// claimRepository implements the ClaimRepository interface.
// Claims are append-only; there is no update or delete.
type claimRepository struct {
	db *gorm.DB
}

// NewClaimRepository creates a new claim repository instance
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

// Create appends a claim to the audit trail
func (r *claimRepository) Create(ctx context.Context, claim *models.Claim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

// GetByUUID returns the claim with the given public id
func (r *claimRepository) GetByUUID(ctx context.Context, uuid string) (*models.Claim, error) {
	var claim models.Claim
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

// ListByUser returns the claims of a user, newest first
func (r *claimRepository) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("claimed_at DESC, id DESC")
	err := paginate(q, offset, limit).Find(&claims).Error
	return claims, err
}

// ListByDeal returns the claims of a deal, newest first
func (r *claimRepository) ListByDeal(ctx context.Context, dealID uint, offset, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	q := r.db.WithContext(ctx).Where("deal_id = ?", dealID).Order("claimed_at DESC, id DESC")
	err := paginate(q, offset, limit).Find(&claims).Error
	return claims, err
}

// CountByUserAndDeal returns how often a user attempted to claim a deal
func (r *claimRepository) CountByUserAndDeal(ctx context.Context, userID, dealID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("user_id = ? AND deal_id = ?", userID, dealID).
		Count(&count).Error
	return count, err
}

func paginate(q *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}
