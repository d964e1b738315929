package repository

import (
	"context"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// serviceRepository implements the ServiceRepository interface
type serviceRepository struct {
	db *gorm.DB
}

// NewServiceRepository creates a new service repository instance
func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

// Create creates a new service in the database
func (r *serviceRepository) Create(ctx context.Context, service *models.Service) error {
	return r.db.WithContext(ctx).Create(service).Error
}

// GetByID retrieves a service by its ID
func (r *serviceRepository) GetByID(ctx context.Context, id uint) (*models.Service, error) {
	var service models.Service
	if err := r.db.WithContext(ctx).First(&service, id).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

// GetByCode retrieves a service by its unique code
func (r *serviceRepository) GetByCode(ctx context.Context, code string) (*models.Service, error) {
	var service models.Service
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&service).Error; err != nil {
		return nil, err
	}
	return &service, nil
}

// Update updates an existing service in the database
func (r *serviceRepository) Update(ctx context.Context, service *models.Service) error {
	return r.db.WithContext(ctx).Save(service).Error
}

// List retrieves services ordered by price
func (r *serviceRepository) List(ctx context.Context, onlyActive bool) ([]models.Service, error) {
	var services []models.Service
	q := r.db.WithContext(ctx).Order("price_cents ASC, id ASC")
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&services).Error
	return services, err
}

// SetDealServices replaces the service mappings of a deal.
func (r *serviceRepository) SetDealServices(ctx context.Context, dealID uint, serviceIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deal_id = ?", dealID).Delete(&models.ServiceDeal{}).Error; err != nil {
			return err
		}
		if len(serviceIDs) == 0 {
			return nil
		}
		rows := make([]models.ServiceDeal, 0, len(serviceIDs))
		seen := make(map[uint]struct{}, len(serviceIDs))
		for _, id := range serviceIDs {
			if _, ok := seen[id]; ok || id == 0 {
				continue
			}
			seen[id] = struct{}{}
			rows = append(rows, models.ServiceDeal{ServiceID: id, DealID: dealID})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

// ListServiceIDsForDeal returns the ids of services mapped to a deal
func (r *serviceRepository) ListServiceIDsForDeal(ctx context.Context, dealID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ServiceDeal{}).
		Where("deal_id = ?", dealID).
		Order("service_id ASC").
		Pluck("service_id", &ids).Error
	return ids, err
}

// IsServiceMappedToDeal reports whether the service is explicitly mapped to the deal
func (r *serviceRepository) IsServiceMappedToDeal(ctx context.Context, serviceID, dealID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ServiceDeal{}).
		Where("service_id = ? AND deal_id = ?", serviceID, dealID).
		Count(&count).Error
	return count > 0, err
}
