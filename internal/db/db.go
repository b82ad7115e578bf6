package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rotaouro/courier-agent/internal/config"
	"github.com/rotaouro/courier-agent/internal/model"
)

// Connect opens the local drafts database and migrates its schema. Sqlite is
// a single file next to the agent; there is no server to configure.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	db, err := gorm.Open(sqlite.Open(cfg.DraftsDB), gcfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.DeliveryDraft{}); err != nil {
		return nil, err
	}
	return db, nil
}
