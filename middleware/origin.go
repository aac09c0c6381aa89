package middleware

import (
	"github.com/christianebacani/yoonet-quest-system-sub000/audit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDHeader carries the request trace id in both directions.
const TraceIDHeader = "X-Trace-ID"

const originKey = "origin"

// Origin tags every request with a trace id and the client address. A
// well-formed incoming X-Trace-ID is kept, anything else is replaced by a
// fresh UUID. The origin is stored on the gin context and on the request
// context, where the audit writer picks it up from workflow events.
func Origin() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}
		o := audit.Origin{TraceID: traceID, ClientIP: c.ClientIP()}
		c.Set(originKey, o)
		c.Request = c.Request.WithContext(audit.WithOrigin(c.Request.Context(), o))
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetOrigin returns the origin set by Origin, or the zero value.
func GetOrigin(c *gin.Context) audit.Origin {
	if v, ok := c.Get(originKey); ok {
		return v.(audit.Origin)
	}
	return audit.Origin{}
}

// TraceIDOf is shorthand for GetOrigin(c).TraceID.
func TraceIDOf(c *gin.Context) string {
	return GetOrigin(c).TraceID
}
