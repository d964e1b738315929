package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusExpired  = "expired"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusPending  = "pending"
)

// Subscription grants a user the tier of a service for a validity window.
// A user may hold several rows over time; the most recent currently active
// one is authoritative.
type Subscription struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	ServiceID  uint       `gorm:"not null;index" json:"service_id"`
	Service    Service    `gorm:"foreignKey:ServiceID" json:"service"`
	Status     string     `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	ExpiresAt  *time.Time `gorm:"default:null;index" json:"expires_at,omitempty"`
	PurchaseID *uint      `gorm:"default:null;index" json:"purchase_id,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCurrentlyActive reports whether the subscription entitles its user at now.
func (s *Subscription) IsCurrentlyActive(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	if s.StartedAt.After(now) {
		return false
	}
	return s.ExpiresAt == nil || !s.ExpiresAt.Before(now)
}
