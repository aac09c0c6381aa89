package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500. http.ErrAbortHandler is
// re-raised so the server drops the connection as it normally would.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			o := GetOrigin(c)
			log.Error("handler panic",
				zap.Any("panic", r),
				zap.String("route", c.FullPath()),
				zap.String("actor", string(GetActor(c).Canonical())),
				zap.String("trace_id", o.TraceID),
				zap.String("client_ip", o.ClientIP),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal error",
				"trace_id": o.TraceID,
			})
		}()
		c.Next()
	}
}
