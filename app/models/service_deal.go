package models

import "time"

// ServiceDeal explicitly maps a service to a deal. It is consulted only when
// tier ranks cannot decide access.
type ServiceDeal struct {
	ServiceID uint      `gorm:"primaryKey;autoIncrement:false" json:"service_id"`
	DealID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"deal_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the ServiceDeal model
func (ServiceDeal) TableName() string {
	return "service_deals"
}
