package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialector returns the gorm dialector for the database file at path,
// creating its directory. Foreign keys are enforced and writers wait on a
// busy database instead of failing immediately.
func Dialector(path string) (gorm.Dialector, error) {
	if path == "" {
		return nil, errors.New("sqlite_path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	return sqlite.Open(dsn), nil
}
