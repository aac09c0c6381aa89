package rest

import (
	"net/http"
	"strings"

	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/quest"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/submission"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MyHandler handles the assignee-facing endpoints under /api/my.
type MyHandler struct {
	quests *quest.Service
	subs   *submission.Service
	upload config.UploadConfig
	logger *zap.Logger
}

// NewMyHandler creates a MyHandler.
func NewMyHandler(quests *quest.Service, subs *submission.Service, upload config.UploadConfig, logger *zap.Logger) *MyHandler {
	return &MyHandler{quests: quests, subs: subs, upload: upload, logger: logger}
}

// List handles GET /api/my/quests?status=.
func (h *MyHandler) List(c *gin.Context) {
	list, err := h.quests.ListForEmployee(c.Request.Context(), mw.GetActor(c), model.UserQuestStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": list})
}

type respondRequest struct {
	Action string `json:"action" binding:"required"`
}

// Respond handles POST /api/my/quests/:id/respond.
func (h *MyHandler) Respond(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uq, err := h.quests.Respond(c.Request.Context(), mw.GetActor(c), id, req.Action)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.Action == quest.ActionDecline {
		c.JSON(http.StatusOK, gin.H{"declined": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": uq})
}

// Submit handles POST /api/my/quests/:id/submit. A multipart body carries
// a "file" part or a "link" field; a JSON body carries {"link"}.
func (h *MyHandler) Submit(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req submission.Request
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		limitBody(c, h.upload)
		fh, err := formFile(c)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		req.Link = c.PostForm("link")
		if fh != nil {
			f, err := fh.Open()
			if err != nil {
				respondError(c, h.logger, err)
				return
			}
			defer f.Close()
			req.File = &submission.File{Name: fh.Filename, Size: fh.Size, Reader: f}
		}
	} else {
		var body struct {
			Link string `json:"link"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Link = body.Link
	}

	sub, err := h.subs.Submit(c.Request.Context(), mw.GetActor(c), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submission": sub})
}
