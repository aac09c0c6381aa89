package rest

import (
	"net/http"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/skill"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxSkillResults = 50

// SkillHandler serves the quest editor's skill picker.
type SkillHandler struct {
	search *skill.Search
	logger *zap.Logger
}

// NewSkillHandler creates a SkillHandler.
func NewSkillHandler(search *skill.Search, logger *zap.Logger) *SkillHandler {
	return &SkillHandler{search: search, logger: logger}
}

// Search handles GET /api/skills?q=&limit=.
func (h *SkillHandler) Search(c *gin.Context) {
	found, err := h.search.Find(c.Request.Context(), c.Query("q"), limitQuery(c, 20, maxSkillResults))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skills": found})
}
