package testutil

import (
	"path/filepath"
	"testing"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	dbadapter "github.com/christianebacani/yoonet-quest-system-sub000/db"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB gives each test its own migrated SQLite file, so tests can
// run in parallel without sharing rows.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "quests.db"),
	})
	require.NoError(t, err, "open test db")
	require.NoError(t, model.AutoMigrate(db), "migrate test db")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache returns the in-process cache and pub/sub. The cache's GC
// goroutine is stopped when the test ends.
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	var cfg cache.CacheConfig
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "new cache")
	if closer, ok := c.(interface{ Close() }); ok {
		t.Cleanup(closer.Close)
	}
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "new pubsub")
	return c, ps
}
