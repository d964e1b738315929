package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Deal is a partner offer. CouponCode and RedemptionLink are secrets that are
// only revealed to users holding an Unlock for the deal.
type Deal struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=3,max=255"`
	Slug            string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug" validate:"required,min=3,max=255"`
	PartnerName     string    `gorm:"type:varchar(150);not null" json:"partner_name" validate:"required,max=150"`
	PartnerURL      string    `gorm:"type:varchar(255);default:''" json:"partner_url" validate:"omitempty,url,max=255"`
	Description     string    `gorm:"type:text" json:"description"`
	Category        string    `gorm:"type:varchar(100);default:'';index" json:"category" validate:"max=100"`
	LogoPath        string    `gorm:"type:varchar(255);default:''" json:"logo_path"`
	LockedByDefault bool      `gorm:"not null" json:"locked_by_default"`
	RequiredTier    *string   `gorm:"type:varchar(100);default:null" json:"required_tier"`
	CouponCode      string    `gorm:"type:varchar(255);default:''" json:"-" validate:"max=255"`
	RedemptionLink  string    `gorm:"type:varchar(500);default:''" json:"-" validate:"omitempty,url,max=500"`
	IsPublished     bool      `gorm:"not null;index" json:"is_published"`
	ViewCount       int64     `gorm:"not null;default:0" json:"view_count"`
	ClaimCount      int64     `gorm:"not null;default:0" json:"claim_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *Deal) Validate() error {
	return validator.New().Struct(d)
}

// RequiredTierLabel returns the raw required tier or "" when unset.
func (d *Deal) RequiredTierLabel() string {
	if d == nil || d.RequiredTier == nil {
		return ""
	}
	return strings.TrimSpace(*d.RequiredTier)
}

// IsOpen reports whether the deal is accessible without any entitlement.
func (d *Deal) IsOpen() bool {
	return d != nil && !d.LockedByDefault
}

// DealSecrets is the part of a deal that is revealed after unlocking.
type DealSecrets struct {
	CouponCode     string `json:"coupon_code,omitempty"`
	RedemptionLink string `json:"redemption_link,omitempty"`
}

// Secrets returns the secret fields of the deal.
func (d *Deal) Secrets() DealSecrets {
	return DealSecrets{CouponCode: d.CouponCode, RedemptionLink: d.RedemptionLink}
}
