package rest

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/reconcile"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/xp"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/christianebacani/yoonet-quest-system-sub000/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	rec    *reconcile.Reconciler
	ledger *xp.Ledger
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler. sched may be nil.
func NewAdminHandler(rec *reconcile.Reconciler, ledger *xp.Ledger, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{rec: rec, ledger: ledger, sched: sched, logger: logger}
}

// Reconcile handles POST /api/admin/reconcile?quest_id=. Without a quest
// id every overdue quest is swept.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		n   int64
		err error
	)
	if raw := c.Query("quest_id"); raw != "" {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
			return
		}
		n, err = h.rec.Reconcile(ctx, id)
	} else {
		n, err = h.rec.ReconcileAll(ctx)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("manual reconcile", zap.String("actor", string(mw.GetActor(c).Canonical())), zap.Int64("missed", n))
	c.JSON(http.StatusOK, gin.H{"missed": n})
}

// RefreshLeaderboard handles POST /api/admin/leaderboard/refresh. The
// cached board is dropped and rebuilt from the ledger on the next read.
func (h *AdminHandler) RefreshLeaderboard(c *gin.Context) {
	h.ledger.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "leaderboard invalidated"})
}

// SchedulerTasks handles GET /api/admin/scheduler with each periodic job's
// run record.
func (h *AdminHandler) SchedulerTasks(c *gin.Context) {
	tasks := []scheduler.Status{}
	if h.sched != nil {
		tasks = h.sched.Statuses()
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

// AdminAuth admits actors with the admin role, or callers presenting the
// configured X-Admin-Key. An empty key disables the header path.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mw.GetActor(c).Role == model.RoleAdmin {
			c.Next()
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if adminKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) == 1 {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
	}
}
