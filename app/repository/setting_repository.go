package repository

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// settingRepository persists the marketplace switches as key/value rows and
// keeps the in-memory copy read by the claim path in sync with them.
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository instance
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// Get returns the settings currently in effect on this instance.
func (r *settingRepository) Get() (*models.AppSettings, error) {
	return models.GetAppSettings(), nil
}

// Reload re-reads the rows, so a switch flipped by another instance takes
// effect here as well.
func (r *settingRepository) Reload(ctx context.Context) (*models.AppSettings, error) {
	if err := models.LoadSettings(r.db.WithContext(ctx)); err != nil {
		return nil, err
	}
	return models.GetAppSettings(), nil
}

// Save validates and stores all settings.
func (r *settingRepository) Save(ctx context.Context, settings *models.AppSettings) error {
	return models.SaveSettings(r.db.WithContext(ctx), settings)
}

// SetClaimsEnabled flips the claim switch and keeps every other setting.
func (r *settingRepository) SetClaimsEnabled(ctx context.Context, enabled bool) (*models.AppSettings, error) {
	current, err := r.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload settings: %w", err)
	}
	next := &models.AppSettings{
		SiteTitle:        current.SiteTitle,
		SiteDescription:  current.SiteDescription,
		ClaimsEnabled:    enabled,
		ClaimMailEnabled: current.ClaimMailEnabled,
		DealsPerPage:     current.DealsPerPage,
	}
	if err := r.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
