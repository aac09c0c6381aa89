package rest

import (
	"net/netip"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/gin-gonic/gin"
)

// Handlers groups every REST handler the API mounts.
type Handlers struct {
	Auth       *AuthHandler
	Quest      *QuestHandler
	My         *MyHandler
	Submission *SubmissionHandler
	Attachment *AttachmentHandler
	Skill      *SkillHandler
	XP         *XPHandler
	Admin      *AdminHandler

	// Limit, when set, runs after authentication on every /api route.
	Limit gin.HandlerFunc
}

// AdminAccess guards /api/admin: callers must come from Allow (when set)
// and hold the admin role or present Key.
type AdminAccess struct {
	Key   string
	Allow []netip.Prefix
}

// Mount registers the /api routes on r. Every route requires a valid
// token; the actor comes from its claims.
func (h *Handlers) Mount(r gin.IRouter, admin AdminAccess, sec config.SecurityConfig, c cache.Cache) {
	api := r.Group("/api", mw.Auth(sec, c))
	if h.Limit != nil {
		api.Use(h.Limit)
	}

	authG := api.Group("/auth")
	authG.GET("/me", h.Auth.Me)
	authG.POST("/logout", h.Auth.Logout)
	authG.POST("/refresh", h.Auth.Refresh)

	questsG := api.Group("/quests")
	questsG.GET("", h.Quest.List)
	questsG.POST("", mw.RequireRole(model.RoleQuestLead, model.RoleAdmin), h.Quest.Create)
	questsG.GET("/:id", h.Quest.Get)
	questsG.PUT("/:id", h.Quest.Edit)
	questsG.POST("/:id/publish", h.Quest.Publish())
	questsG.POST("/:id/draft", h.Quest.Draft())
	questsG.POST("/:id/deactivate", h.Quest.Deactivate())
	questsG.DELETE("/:id", h.Quest.Delete)
	questsG.GET("/:id/missed", h.Quest.Missed)
	questsG.GET("/:id/submissions", h.Quest.Submissions)

	api.POST("/attachments", mw.RequireRole(model.RoleQuestLead, model.RoleAdmin), h.Attachment.Upload)

	myG := api.Group("/my")
	myG.GET("/quests", h.My.List)
	myG.POST("/quests/:id/respond", h.My.Respond)
	myG.POST("/quests/:id/submit", h.My.Submit)

	subsG := api.Group("/submissions")
	subsG.GET("/:id", h.Submission.Get)
	subsG.POST("/:id/review", h.Submission.Review)

	api.GET("/skills", h.Skill.Search)

	xpG := api.Group("/xp")
	xpG.GET("/me", h.XP.Me)
	xpG.GET("/leaderboard", h.XP.Leaderboard)

	adminG := api.Group("/admin", mw.AllowFrom(admin.Allow), AdminAuth(admin.Key))
	adminG.POST("/reconcile", h.Admin.Reconcile)
	adminG.POST("/leaderboard/refresh", h.Admin.RefreshLeaderboard)
	adminG.GET("/scheduler", h.Admin.SchedulerTasks)
}
