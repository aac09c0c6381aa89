// Package app wires the quest services, the HTTP router and the background
// jobs from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/christianebacani/yoonet-quest-system-sub000/api/rest"
	"github.com/christianebacani/yoonet-quest-system-sub000/api/sse"
	"github.com/christianebacani/yoonet-quest-system-sub000/audit"
	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	dbadapter "github.com/christianebacani/yoonet-quest-system-sub000/db"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/directory"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/notify"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/quest"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/reconcile"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/skill"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/submission"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/xp"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/plugin/hook"
	"github.com/christianebacani/yoonet-quest-system-sub000/scheduler"
	"github.com/christianebacani/yoonet-quest-system-sub000/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// App holds every long-lived component of the service.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Blobs  storage.Store
	Hooks  *hook.Center
	Audit  *audit.Service
	Sched  *scheduler.Scheduler

	Dir        *directory.Directory
	IDs        *identity.Resolver
	Ledger     *xp.Ledger
	Quests     *quest.Service
	Subs       *submission.Service
	Reconciler *reconcile.Reconciler

	adminAllow []netip.Prefix
}

// CacheConfig converts the cache section into the cache package's config.
func CacheConfig(cfg config.CacheConfig) cache.CacheConfig {
	return cache.CacheConfig{
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
		LocalGCInterval: cfg.LocalGCInterval,
		LocalPubSubBuf:  cfg.LocalPubSubBuf,
	}
}

// OpenDB opens the configured database and migrates the schema.
func OpenDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := dbadapter.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}

// New builds the App. Background work starts with Start.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := OpenDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, cfg, db, logger)
}

// NewWithDB builds the App over an already migrated database.
func NewWithDB(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*App, error) {
	adminAllow, err := mw.ParseAllowList(cfg.Server.AdminIPs)
	if err != nil {
		return nil, fmt.Errorf("server.admin_ips: %w", err)
	}
	cc := CacheConfig(cfg.Cache)
	c, err := cache.NewCache(cc)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	ps, err := cache.NewPubSub(cc)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Cache:  c,
		PubSub: ps,
		Blobs:  blobs,
		Hooks:  hook.NewCenter(logger),
		Audit:  audit.New(db, logger),
		Sched:  scheduler.New(logger),
		Dir:    directory.New(db),

		adminAllow: adminAllow,
	}
	a.IDs = identity.NewResolver(a.Dir, 0)
	a.Ledger = xp.NewLedger(db, c, logger)
	a.Reconciler = reconcile.New(db, a.Hooks, logger)
	a.Quests = quest.NewService(db, a.IDs, a.Ledger, blobs, a.Hooks, cfg.Quest, logger)
	a.Quests.SetReconciler(a.Reconciler)
	a.Subs = submission.NewService(db, c, a.IDs, a.Ledger, blobs, a.Hooks, cfg.Quest, cfg.Upload, logger)
	a.Subs.SetReconciler(a.Reconciler)

	a.Audit.Register(a.Hooks)
	notify.New(ps, a.Dir, logger).Register(a.Hooks)
	return a, nil
}

// Start schedules the periodic jobs. The reconcile sweep runs once right
// away to catch up after downtime. A zero reconcile interval leaves the
// sweep to reads and the admin endpoint.
func (a *App) Start() {
	a.Sched.Every("reconcile", a.Config.Quest.ReconcileInterval, func(ctx context.Context) error {
		n, err := a.Reconciler.ReconcileAll(ctx)
		if n > 0 {
			a.Logger.Info("reconcile sweep", zap.Int64("missed", n))
		}
		return err
	}, scheduler.Immediately())
}

// Router builds the gin engine serving /health, /api and /sse. ctx bounds
// the rate limiter's cleanup goroutine.
func (a *App) Router(ctx context.Context) *gin.Engine {
	cfg := a.Config
	r := gin.New()
	r.Use(mw.Origin(), mw.Logger(a.Logger), mw.Recovery(a.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	leaderboardSize := cfg.Quest.LeaderboardSize
	h := &rest.Handlers{
		Auth:       rest.NewAuthHandler(a.IDs, a.Cache, cfg.Security, a.Logger),
		Quest:      rest.NewQuestHandler(a.Quests, a.Subs, a.Reconciler, a.Logger),
		My:         rest.NewMyHandler(a.Quests, a.Subs, cfg.Upload, a.Logger),
		Submission: rest.NewSubmissionHandler(a.Subs, a.Logger),
		Attachment: rest.NewAttachmentHandler(a.Quests, a.Blobs, cfg.Upload, a.Logger),
		Skill:      rest.NewSkillHandler(skill.NewSearch(a.DB), a.Logger),
		XP:         rest.NewXPHandler(a.Ledger, a.Dir, a.IDs, leaderboardSize, a.Logger),
		Admin:      rest.NewAdminHandler(a.Reconciler, a.Ledger, a.Sched, a.Logger),
	}
	if cfg.Security.RateLimitRPS > 0 {
		h.Limit = mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst)
	}
	h.Mount(r, rest.AdminAccess{Key: cfg.Server.AdminKey, Allow: a.adminAllow}, cfg.Security, a.Cache)

	sseH := sse.NewHandler(a.PubSub, a.Cache, a.IDs, cfg.Security, a.Logger)
	r.GET("/sse", sseH.ServeSSE)
	return r
}

// Close stops the scheduler and flushes pending audit entries.
func (a *App) Close() {
	a.Sched.Stop()
	a.Audit.Stop(context.Background())
}
