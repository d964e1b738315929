package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings represents the marketplace settings managed in the admin panel
type AppSettings struct {
	SiteTitle        string `json:"site_title" validate:"required,min=1,max=255"`
	SiteDescription  string `json:"site_description" validate:"max=500"`
	ClaimsEnabled    bool   `json:"claims_enabled"`
	ClaimMailEnabled bool   `json:"claim_mail_enabled"`
	DealsPerPage     int    `json:"deals_per_page" validate:"gte=1,lte=200"`
	mu               sync.RWMutex
}

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

func defaultAppSettings() *AppSettings {
	return &AppSettings{
		SiteTitle:        "PerkFox",
		SiteDescription:  "Perks and deals for startups",
		ClaimsEnabled:    true,
		ClaimMailEnabled: true,
		DealsPerPage:     24,
	}
}

// GetAppSettings returns the current application settings.
// Defaults are returned when LoadSettings has not run yet.
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if appSettings == nil {
		return defaultAppSettings()
	}
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	loaded := defaultAppSettings()

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "site_title":
			loaded.SiteTitle = setting.Value
		case "site_description":
			loaded.SiteDescription = setting.Value
		case "claims_enabled":
			loaded.ClaimsEnabled = setting.Value == "true"
		case "claim_mail_enabled":
			loaded.ClaimMailEnabled = setting.Value == "true"
		case "deals_per_page":
			if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
				loaded.DealsPerPage = v
			}
		}
	}

	appSettings = loaded
	return nil
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsMap := map[string]string{
		"site_title":         settings.SiteTitle,
		"site_description":   settings.SiteDescription,
		"claims_enabled":     strconv.FormatBool(settings.ClaimsEnabled),
		"claim_mail_enabled": strconv.FormatBool(settings.ClaimMailEnabled),
		"deals_per_page":     strconv.Itoa(settings.DealsPerPage),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for key, value := range settingsMap {
			var setting Setting
			result := tx.Where("setting_key = ?", key).First(&setting)

			if result.Error != nil {
				if result.Error != gorm.ErrRecordNotFound {
					return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
				}
				setting = Setting{Key: key, Value: value, Type: getSettingType(key)}
				if err := tx.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
				continue
			}

			setting.Value = value
			if err := tx.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "claims_enabled", "claim_mail_enabled":
		return "boolean"
	case "deals_per_page":
		return "integer"
	default:
		return "string"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// IsClaimsEnabled reports whether users may currently claim deals
func (s *AppSettings) IsClaimsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ClaimsEnabled
}

// IsClaimMailEnabled reports whether claim confirmations are mailed
func (s *AppSettings) IsClaimMailEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ClaimMailEnabled
}

// GetDealsPerPage returns the default page size of the deal catalog
func (s *AppSettings) GetDealsPerPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.DealsPerPage <= 0 {
		return 24
	}
	return s.DealsPerPage
}
