// Package db opens the configured SQL database behind gorm.
package db

import (
	"fmt"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	dbmysql "github.com/christianebacani/yoonet-quest-system-sub000/db/mysql"
	dbpostgres "github.com/christianebacani/yoonet-quest-system-sub000/db/postgres"
	dbsqlite "github.com/christianebacani/yoonet-quest-system-sub000/db/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ModeSQLite   = "sqlite"
	ModeMySQL    = "mysql"
	ModePostgres = "postgres"
)

// Open returns a *gorm.DB for the configured database mode. gorm's clock
// is UTC so autoCreateTime columns agree with service clocks.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		err       error
		maxOpen   = cfg.MaxOpen
	)
	switch cfg.Mode {
	case ModeSQLite:
		dialector, err = dbsqlite.Dialector(cfg.SQLitePath)
		// One writer at a time; a single connection serializes transactions.
		maxOpen = 1
	case ModeMySQL:
		dialector, err = dbmysql.Dialector(cfg.MySQLDSN)
	case ModePostgres:
		dialector, err = dbpostgres.Dialector(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("db: %s: %w", cfg.Mode, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLife)
	}
	return db, nil
}
