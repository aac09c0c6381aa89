package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Quest    QuestConfig    `mapstructure:"quest"`
}

type ServerConfig struct {
	Port     int      `mapstructure:"port"`
	Debug    bool     `mapstructure:"debug"`
	AdminKey string   `mapstructure:"admin_key"`
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode        string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath  string        `mapstructure:"sqlite_path"`
	MySQLDSN    string        `mapstructure:"mysql_dsn"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLife     time.Duration `mapstructure:"max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// StorageConfig selects where submission files live.
type StorageConfig struct {
	Mode       string `mapstructure:"mode"` // local | s3
	LocalDir   string `mapstructure:"local_dir"`
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Key      string `mapstructure:"s3_key"`
	S3Secret   string `mapstructure:"s3_secret"`
	S3Prefix   string `mapstructure:"s3_prefix"`
}

type UploadConfig struct {
	MaxBytes          int64    `mapstructure:"max_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	TempDir           string   `mapstructure:"temp_dir"`
}

// QuestConfig carries the tunables of the quest workflow.
type QuestConfig struct {
	DefaultQuestXP            int           `mapstructure:"default_quest_xp"`
	ReviewBonusXP             int           `mapstructure:"review_bonus_xp"`
	MaxBonusXP                int           `mapstructure:"max_bonus_xp"`
	MaxSkills                 int           `mapstructure:"max_skills"`
	CustomSkillPoints         []int         `mapstructure:"custom_skill_points"`
	DefaultCustomTier         int           `mapstructure:"default_custom_tier"`
	DedupeCustomSkills        bool          `mapstructure:"dedupe_custom_skills"`
	PreserveAssignmentsOnEdit bool          `mapstructure:"preserve_assignments_on_edit"`
	EligibleRoles             []string      `mapstructure:"eligible_roles"`
	LockTTL                   time.Duration `mapstructure:"lock_ttl"`
	LockWait                  time.Duration `mapstructure:"lock_wait"`
	ReconcileInterval         time.Duration `mapstructure:"reconcile_interval"`
	LeaderboardSize           int           `mapstructure:"leaderboard_size"`
}

// DefaultQuest returns the quest tunables used when nothing is configured.
func DefaultQuest() QuestConfig {
	return QuestConfig{
		DefaultQuestXP:    10,
		ReviewBonusXP:     5,
		MaxBonusXP:        100,
		MaxSkills:         5,
		CustomSkillPoints: []int{5, 10, 15, 20, 25},
		DefaultCustomTier: 2,
		EligibleRoles:     []string{"skill_associate"},
		LockTTL:           30 * time.Second,
		LockWait:          5 * time.Second,
		LeaderboardSize:   100,
	}
}

// DefaultUpload returns the upload constraints used when nothing is configured.
func DefaultUpload() UploadConfig {
	return UploadConfig{
		MaxBytes:          10 << 20,
		AllowedExtensions: []string{".pdf", ".doc", ".docx", ".txt", ".zip", ".png", ".jpg", ".jpeg"},
	}
}

// Load reads config from the given YAML file path. A .env file in the
// working directory is applied to the process environment first, and
// QUESTS_* environment variables override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("QUESTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	q := DefaultQuest()
	u := DefaultUpload()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/quests.db")
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.local_dir", "./data/uploads")
	v.SetDefault("storage.s3_prefix", "submissions")
	v.SetDefault("upload.max_bytes", u.MaxBytes)
	v.SetDefault("upload.allowed_extensions", u.AllowedExtensions)
	v.SetDefault("quest.default_quest_xp", q.DefaultQuestXP)
	v.SetDefault("quest.review_bonus_xp", q.ReviewBonusXP)
	v.SetDefault("quest.max_bonus_xp", q.MaxBonusXP)
	v.SetDefault("quest.max_skills", q.MaxSkills)
	v.SetDefault("quest.custom_skill_points", q.CustomSkillPoints)
	v.SetDefault("quest.default_custom_tier", q.DefaultCustomTier)
	v.SetDefault("quest.dedupe_custom_skills", false)
	v.SetDefault("quest.preserve_assignments_on_edit", false)
	v.SetDefault("quest.eligible_roles", q.EligibleRoles)
	v.SetDefault("quest.lock_ttl", "30s")
	v.SetDefault("quest.lock_wait", "5s")
	v.SetDefault("quest.reconcile_interval", "0s")
	v.SetDefault("quest.leaderboard_size", q.LeaderboardSize)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
