package rest

import (
	"net/http"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/directory"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/xp"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// XPHandler serves XP totals, history and the leaderboard.
type XPHandler struct {
	ledger *xp.Ledger
	dir    *directory.Directory
	ids    *identity.Resolver
	top    int
	logger *zap.Logger
}

// NewXPHandler creates an XPHandler. top caps the leaderboard size.
func NewXPHandler(ledger *xp.Ledger, dir *directory.Directory, ids *identity.Resolver, top int, logger *zap.Logger) *XPHandler {
	if top <= 0 {
		top = 100
	}
	return &XPHandler{ledger: ledger, dir: dir, ids: ids, top: top, logger: logger}
}

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank         int    `json:"rank"`
	EmployeeID   int64  `json:"employee_id"`
	EmployeeCode string `json:"employee_code"`
	Name         string `json:"name"`
	XP           int64  `json:"xp"`
}

// Me handles GET /api/xp/me?limit=.
func (h *XPHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	employeeID, err := h.ids.ActorID(ctx, mw.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	total, err := h.ledger.Total(ctx, employeeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	history, err := h.ledger.History(ctx, employeeID, limitQuery(c, 50, 500))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employee_id": employeeID, "total": total, "history": history})
}

// Leaderboard handles GET /api/xp/leaderboard?limit=.
func (h *XPHandler) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	standings, err := h.ledger.Leaderboard(ctx, limitQuery(c, 20, h.top))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ids := make([]int64, len(standings))
	for i, s := range standings {
		ids[i] = s.EmployeeID
	}
	emps, err := h.dir.EmployeesByIDs(ctx, ids)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	entries := make([]RankEntry, len(standings))
	for i, s := range standings {
		entries[i] = RankEntry{Rank: i + 1, EmployeeID: s.EmployeeID, XP: s.Total}
		if e, ok := emps[s.EmployeeID]; ok {
			entries[i].EmployeeCode = e.EmployeeCode
			entries[i].Name = e.Name
		}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
