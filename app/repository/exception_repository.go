package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// exceptionRepository implements the ExceptionRepository interface
type exceptionRepository struct {
	db *gorm.DB
}

// NewExceptionRepository creates a new exception repository instance
func NewExceptionRepository(db *gorm.DB) ExceptionRepository {
	return &exceptionRepository{db: db}
}

// Create creates a new deal exception in the database
func (r *exceptionRepository) Create(ctx context.Context, exception *models.DealException) error {
	return r.db.WithContext(ctx).Create(exception).Error
}

// GetByID retrieves a deal exception by its ID
func (r *exceptionRepository) GetByID(ctx context.Context, id uint) (*models.DealException, error) {
	var exception models.DealException
	if err := r.db.WithContext(ctx).First(&exception, id).Error; err != nil {
		return nil, err
	}
	return &exception, nil
}

// Revoke deactivates an exception. The row is kept for auditing.
func (r *exceptionRepository) Revoke(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.DealException{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByDeal returns all exceptions granted for a deal
func (r *exceptionRepository) ListByDeal(ctx context.Context, dealID uint) ([]models.DealException, error) {
	var exceptions []models.DealException
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at DESC, id DESC").
		Find(&exceptions).Error
	return exceptions, err
}

// FindValidException returns a currently valid exception for the user and
// deal, or nil when there is none.
func (r *exceptionRepository) FindValidException(ctx context.Context, userID, dealID uint, now time.Time) (*models.DealException, error) {
	var exception models.DealException
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deal_id = ? AND is_active = ?", userID, dealID, true).
		Where("valid_from IS NULL OR valid_from <= ?", now).
		Where("valid_to IS NULL OR valid_to >= ?", now).
		Order("id DESC").
		First(&exception).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exception, nil
}
