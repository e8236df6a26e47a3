package postgres

import (
	"log"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func MustInitDB(cfg *config.MarketConfig) *gorm.DB {
	db, err := InitDB(cfg.MarketDB.Dsn)
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}
	return db
}

// InitDB opens the pool. TranslateError makes unique violations surface as
// gorm.ErrDuplicatedKey.
func InitDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
