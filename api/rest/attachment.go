package rest

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/quest"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/submission"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/christianebacani/yoonet-quest-system-sub000/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// multipartHeadroom is the allowance for multipart framing and form fields
// on top of upload.max_bytes.
const multipartHeadroom = 64 << 10

// limitBody caps the request body at the upload ceiling plus framing, so
// an oversized upload fails while gin parses it instead of after.
func limitBody(c *gin.Context, cfg config.UploadConfig) {
	if cfg.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxBytes+multipartHeadroom)
	}
}

// formFile returns the "file" part, or nil when the form has none.
func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	fh, err := c.FormFile("file")
	if err == nil {
		return fh, nil
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil, nil
	case errors.As(err, &tooLarge):
		return nil, apperr.Validation(apperr.CodeUploadTooLarge, "request body exceeds the %d byte limit", tooLarge.Limit)
	}
	return nil, apperr.Validation(apperr.CodeInvalidSubmission, "malformed multipart body: %v", err)
}

// AttachmentHandler stores quest reference files ahead of a create or
// edit, which then refer to them by handle.
type AttachmentHandler struct {
	quests *quest.Service
	blobs  storage.Store
	upload config.UploadConfig
	logger *zap.Logger
}

// NewAttachmentHandler creates an AttachmentHandler.
func NewAttachmentHandler(quests *quest.Service, blobs storage.Store, upload config.UploadConfig, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{quests: quests, blobs: blobs, upload: upload, logger: logger}
}

// Upload handles POST /api/attachments (multipart "file"). The handle is
// recorded as an unclaimed upload of the caller.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	limitBody(c, h.upload)
	fh, err := formFile(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if fh == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()

	file := &submission.File{Name: fh.Filename, Size: fh.Size, Reader: f}
	if err := submission.ValidateFile(h.upload, file); err != nil {
		respondError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	handle, err := h.blobs.Put(ctx, fh.Filename, io.LimitReader(f, fh.Size+1), fh.Size)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		respondError(c, h.logger, apperr.Validation(apperr.CodeUploadPartial, "file was only partially uploaded"))
		return
	}
	if err != nil {
		respondError(c, h.logger, apperr.Storage(submission.ErrUploadWriteFailed.Error(), err))
		return
	}

	att := quest.Attachment{Handle: handle, FileName: fh.Filename}
	if _, err := h.quests.RecordUpload(ctx, mw.GetActor(c), att); err != nil {
		if rerr := h.blobs.Release(context.WithoutCancel(ctx), handle); rerr != nil {
			h.logger.Error("blob release failed", zap.String("handle", handle), zap.Error(rerr))
		}
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": att})
}
