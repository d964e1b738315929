package models

import "time"

const (
	UnlockSourceManual       = "manual"
	UnlockSourceSubscription = "subscription"
	UnlockSourceException    = "exception"
	UnlockSourcePurchase     = "purchase"
)

// Unlock is a materialized grant: the user may view the deal's secrets.
// At most one row exists per (user, deal).
type Unlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:ux_unlocks_user_deal,unique,priority:1" json:"user_id"`
	DealID    uint      `gorm:"not null;index:ux_unlocks_user_deal,unique,priority:2;index" json:"deal_id"`
	Source    string    `gorm:"type:varchar(100);not null;default:'manual'" json:"source"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PurchaseUnlockSource formats the source of an unlock created by a paid
// purchase, e.g. "purchase:<reference>".
func PurchaseUnlockSource(reference string) string {
	return UnlockSourcePurchase + ":" + reference
}
