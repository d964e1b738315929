package models

import "time"

const (
	PurchaseStatusPending = "pending"
	PurchaseStatusPaid    = "paid"
	PurchaseStatusFailed  = "failed"
)

// Purchase is a one-off payment for a service. A paid purchase creates a
// subscription.
type Purchase struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	ServiceID   uint       `gorm:"not null;index" json:"service_id"`
	Service     Service    `gorm:"foreignKey:ServiceID" json:"-"`
	Reference   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	AmountCents int64      `gorm:"not null;default:0" json:"amount_cents"`
	Currency    string     `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	PaidAt      *time.Time `gorm:"default:null" json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
