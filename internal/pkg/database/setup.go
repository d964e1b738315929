package database

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is the process wide database handle set by SetupDatabase.
var DB *gorm.DB

// GetDB returns the process wide database handle.
func GetDB() *gorm.DB {
	return DB
}

// SetupDatabase connects to MySQL, retrying while the server starts up,
// and migrates the schema.
func SetupDatabase() {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	gormConfig := &gorm.Config{}
	if !env.IsDev() {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), gormConfig)
		if err == nil {
			if err = Migrate(DB); err != nil {
				log.Errorf("[Database] Auto migration failed: %v", err)
			}
			return
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
