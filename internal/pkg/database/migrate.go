package database

import (
	"github.com/ManuelReschke/PerkFox/app/models"
	"gorm.io/gorm"
)

// Migrate brings the schema of all marketplace models up to date.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Service{},
		&models.Deal{},
		&models.ServiceDeal{},
		&models.Subscription{},
		&models.DealException{},
		&models.Purchase{},
		&models.Unlock{},
		&models.Claim{},
		&models.Setting{},
	)
}
