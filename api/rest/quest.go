package rest

import (
	"net/http"

	"github.com/christianebacani/yoonet-quest-system-sub000/game/quest"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/reconcile"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/submission"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuestHandler handles the creator-facing quest endpoints.
type QuestHandler struct {
	quests *quest.Service
	subs   *submission.Service
	rec    *reconcile.Reconciler
	logger *zap.Logger
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(quests *quest.Service, subs *submission.Service, rec *reconcile.Reconciler, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{quests: quests, subs: subs, rec: rec, logger: logger}
}

// Create handles POST /api/quests.
func (h *QuestHandler) Create(c *gin.Context) {
	var req quest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := h.quests.Create(c.Request.Context(), mw.GetActor(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quest": q})
}

// List handles GET /api/quests: the quests the actor created.
func (h *QuestHandler) List(c *gin.Context) {
	quests, err := h.quests.ListCreated(c.Request.Context(), mw.GetActor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests})
}

// Get handles GET /api/quests/:id.
func (h *QuestHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	d, err := h.quests.Get(c.Request.Context(), mw.GetActor(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Edit handles PUT /api/quests/:id.
func (h *QuestHandler) Edit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req quest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := h.quests.Edit(c.Request.Context(), mw.GetActor(c), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quest": q})
}

type questTransition func(*QuestHandler, *gin.Context, int64) (*model.Quest, error)

func (h *QuestHandler) transition(fn questTransition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		q, err := fn(h, c, id)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quest": q})
	}
}

// Publish handles POST /api/quests/:id/publish.
func (h *QuestHandler) Publish() gin.HandlerFunc {
	return h.transition(func(h *QuestHandler, c *gin.Context, id int64) (*model.Quest, error) {
		return h.quests.Publish(c.Request.Context(), mw.GetActor(c), id)
	})
}

// Draft handles POST /api/quests/:id/draft.
func (h *QuestHandler) Draft() gin.HandlerFunc {
	return h.transition(func(h *QuestHandler, c *gin.Context, id int64) (*model.Quest, error) {
		return h.quests.SaveAsDraft(c.Request.Context(), mw.GetActor(c), id)
	})
}

// Deactivate handles POST /api/quests/:id/deactivate.
func (h *QuestHandler) Deactivate() gin.HandlerFunc {
	return h.transition(func(h *QuestHandler, c *gin.Context, id int64) (*model.Quest, error) {
		return h.quests.Deactivate(c.Request.Context(), mw.GetActor(c), id)
	})
}

// Delete handles DELETE /api/quests/:id.
func (h *QuestHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.quests.Delete(c.Request.Context(), mw.GetActor(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Missed handles GET /api/quests/:id/missed.
func (h *QuestHandler) Missed(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	emps, err := h.rec.ListMissed(c.Request.Context(), mw.GetActor(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"missed": emps})
}

// Submissions handles GET /api/quests/:id/submissions.
func (h *QuestHandler) Submissions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	subs, err := h.subs.ListForQuest(c.Request.Context(), mw.GetActor(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}
