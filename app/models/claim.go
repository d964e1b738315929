package models

import "time"

const (
	ClaimStatusSuccess               = "success"
	ClaimStatusFailed                = "failed"
	ClaimStatusBlockedNoSubscription = "blocked_no_subscription"
	ClaimStatusBlockedPlanMismatch   = "blocked_plan_mismatch"
)

// Claim is an append-only audit record of one attempt to reveal a deal's
// secrets. The snapshots keep what the user was shown at claim time, even if
// the deal is edited later.
type Claim struct {
	ID                     uint      `gorm:"primaryKey" json:"-"`
	UUID                   string    `gorm:"type:char(36);uniqueIndex;not null" json:"id"`
	UserID                 uint      `gorm:"not null;index:idx_claims_user_deal,priority:1" json:"user_id"`
	DealID                 uint      `gorm:"not null;index:idx_claims_user_deal,priority:2;index" json:"deal_id"`
	Status                 string    `gorm:"type:varchar(32);not null;index" json:"status"`
	Reason                 string    `gorm:"type:varchar(32);default:''" json:"reason"`
	ClaimedAt              time.Time `gorm:"not null;index" json:"claimed_at"`
	CouponCodeSnapshot     string    `gorm:"type:varchar(255);default:''" json:"coupon_code_snapshot,omitempty"`
	RedemptionLinkSnapshot string    `gorm:"type:varchar(500);default:''" json:"redemption_link_snapshot,omitempty"`
}
