package postgres

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialector returns the gorm dialector for dsn.
func Dialector(dsn string) (gorm.Dialector, error) {
	if dsn == "" {
		return nil, errors.New("postgres_dsn is required")
	}
	return postgres.New(postgres.Config{DSN: dsn}), nil
}
