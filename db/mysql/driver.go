package mysql

import (
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NormalizeDSN forces parseTime and a UTC location so due dates and
// timestamps scan into UTC time.Time values regardless of the DSN given.
func NormalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("mysql_dsn is required")
	}
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Dialector returns the gorm dialector for dsn.
func Dialector(dsn string) (gorm.Dialector, error) {
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return mysql.New(mysql.Config{
		DSN:               normalized,
		DefaultStringSize: 255,
	}), nil
}
