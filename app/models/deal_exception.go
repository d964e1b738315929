package models

import "time"

// DealException is a manually granted, time-bounded override of tier gating
// for one user and one deal.
type DealException struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index:idx_deal_exceptions_user_deal,priority:1" json:"user_id"`
	DealID    uint       `gorm:"not null;index:idx_deal_exceptions_user_deal,priority:2;index" json:"deal_id"`
	IsActive  bool       `gorm:"not null" json:"is_active"`
	ValidFrom *time.Time `gorm:"default:null" json:"valid_from,omitempty"`
	ValidTo   *time.Time `gorm:"default:null" json:"valid_to,omitempty"`
	Note      string     `gorm:"type:text" json:"note"`
	GrantedBy uint       `gorm:"default:0" json:"granted_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCurrentlyValid reports whether the exception applies at now.
func (e *DealException) IsCurrentlyValid(now time.Time) bool {
	if e == nil || !e.IsActive {
		return false
	}
	if e.ValidFrom != nil && e.ValidFrom.After(now) {
		return false
	}
	return e.ValidTo == nil || !e.ValidTo.Before(now)
}
