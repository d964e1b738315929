package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Service is a purchasable plan. Its Tier is a free-text label that is
// canonicalized by the entitlements package when access is evaluated.
type Service struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code" validate:"required,min=2,max=100"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description  string    `gorm:"type:text" json:"description"`
	Tier         string    `gorm:"type:varchar(100);default:'';index" json:"tier" validate:"max=100"`
	PriceCents   int64     `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency" validate:"required,len=3"`
	DurationDays int       `gorm:"not null" json:"duration_days" validate:"gte=0"`
	IsActive     bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Service) Validate() error {
	return validator.New().Struct(s)
}
