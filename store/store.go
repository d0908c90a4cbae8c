// store/store.go
package store

import (
	"fmt"

	"theo-challengers/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Tables lists every persisted model, in migration order.
var Tables = []any{
	&models.Player{},
	&models.ChallengeItem{},
	&models.SentChallenge{},
	&models.Challenge{},
	&models.LeaderboardEntry{},
}

// Open connects with the configured driver, migrates, and wires change events
// into bus when one is given.
func Open(driver, dsn string, bus *Bus, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(Tables...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if bus != nil {
		if err := RegisterCallbacks(db, bus); err != nil {
			return nil, err
		}
	}

	if log != nil {
		log.Info("🗄️ database ready", zap.String("driver", dialector.Name()))
	}
	return db, nil
}

// Reset wipes every table. This is the only path that deletes Challenge rows.
func Reset(db *gorm.DB) error {
	return Transaction(db.Statement.Context, db, func(tx *gorm.DB) error {
		for i := len(Tables) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(Tables[i]).Error; err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
}
