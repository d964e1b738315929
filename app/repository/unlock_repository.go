package repository

import (
	"context"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// unlockRepository implements the UnlockRepository interface
type unlockRepository struct {
	db *gorm.DB
}

// NewUnlockRepository creates a new unlock repository instance
func NewUnlockRepository(db *gorm.DB) UnlockRepository {
	return &unlockRepository{db: db}
}

// Upsert inserts the unlock unless the user already holds one for the deal.
// It reports whether a new row was written; an existing row keeps its source.
func (r *unlockRepository) Upsert(ctx context.Context, unlock *models.Unlock) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "deal_id"}},
		DoNothing: true,
	}).Create(unlock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Get retrieves the unlock of a user for a deal
func (r *unlockRepository) Get(ctx context.Context, userID, dealID uint) (*models.Unlock, error) {
	var unlock models.Unlock
	err := r.db.WithContext(ctx).Where("user_id = ? AND deal_id = ?", userID, dealID).First(&unlock).Error
	if err != nil {
		return nil, err
	}
	return &unlock, nil
}

// Exists reports whether the user holds an unlock for the deal
func (r *unlockRepository) Exists(ctx context.Context, userID, dealID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Unlock{}).
		Where("user_id = ? AND deal_id = ?", userID, dealID).
		Count(&count).Error
	return count > 0, err
}

// ListDealIDsByUser returns the ids of all deals unlocked by the user
func (r *unlockRepository) ListDealIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Unlock{}).
		Where("user_id = ?", userID).
		Order("deal_id ASC").
		Pluck("deal_id", &ids).Error
	return ids, err
}

// CountByUser returns the number of deals unlocked by the user
func (r *unlockRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Unlock{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
