package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, time.Hour, cfg.Database.MaxLife)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, 5, cfg.Quest.MaxSkills)
	assert.Equal(t, []int{5, 10, 15, 20, 25}, cfg.Quest.CustomSkillPoints)
	assert.Equal(t, 2, cfg.Quest.DefaultCustomTier)
	assert.False(t, cfg.Quest.DedupeCustomSkills)
	assert.False(t, cfg.Quest.PreserveAssignmentsOnEdit)
	assert.Equal(t, 30*time.Second, cfg.Quest.LockTTL)
	assert.Equal(t, time.Duration(0), cfg.Quest.ReconcileInterval)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
}

func TestLoad_FileOverrides(t *testing.T) {
	body := `
database:
  mode: postgres
  postgres_dsn: "host=db"
quest:
  review_bonus_xp: 7
  dedupe_custom_skills: true
  reconcile_interval: 10m
upload:
  allowed_extensions: [".md"]
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Mode)
	assert.Equal(t, "host=db", cfg.Database.PostgresDSN)
	assert.Equal(t, 7, cfg.Quest.ReviewBonusXP)
	assert.True(t, cfg.Quest.DedupeCustomSkills)
	assert.Equal(t, 10*time.Minute, cfg.Quest.ReconcileInterval)
	assert.Equal(t, []string{".md"}, cfg.Upload.AllowedExtensions)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("QUESTS_SERVER_PORT", "7070")
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
