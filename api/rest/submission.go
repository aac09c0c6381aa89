package rest

import (
	"net/http"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/submission"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubmissionHandler handles reading and reviewing submissions.
type SubmissionHandler struct {
	subs   *submission.Service
	logger *zap.Logger
}

// NewSubmissionHandler creates a SubmissionHandler.
func NewSubmissionHandler(subs *submission.Service, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{subs: subs, logger: logger}
}

// Get handles GET /api/submissions/:id.
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sub, err := h.subs.Get(c.Request.Context(), mw.GetActor(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

// Review handles POST /api/submissions/:id/review.
func (h *SubmissionHandler) Review(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var r submission.Review
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.subs.Review(c.Request.Context(), mw.GetActor(c), id, r)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}
