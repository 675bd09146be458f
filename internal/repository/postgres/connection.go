package postgres

import (
	"fmt"

	"github.com/dom/wartracker/internal/domain"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/dom/wartracker/internal/repository"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options configures the repositories built by NewRepositories.
type Options struct {
	// EmbedPhaseNotes stores phase annotations inside notes when the
	// phase columns do not exist.
	EmbedPhaseNotes bool
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

func NewConnection(databaseURL, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate brings the schema up to the current model, adding any missing
// optional columns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.MatchRecord{})
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func NewRepositories(db *gorm.DB, opts Options) *repository.Repositories {
	return &repository.Repositories{
		Record: NewRecordRepository(db, opts),
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
