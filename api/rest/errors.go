package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/christianebacani/yoonet-quest-system-sub000/apperr"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Storage and
// unexpected errors are logged and answered with a generic message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg, "code": ve.Code})
	case apperr.IsPermission(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case apperr.IsReferential(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", mw.TraceIDOf(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// idParam parses a positive numeric path parameter, answering 400 when it
// is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// limitQuery reads ?limit=, falling back to def and capping at max.
func limitQuery(c *gin.Context, def, max int) int {
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= max {
		return l
	}
	return def
}
