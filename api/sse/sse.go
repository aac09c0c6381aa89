// Package sse streams an employee's quest notifications over
// server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/notify"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const resolveTimeout = 2 * time.Second

// Handler serves GET /sse.
type Handler struct {
	pubsub    cache.PubSub
	c         cache.Cache
	ids       *identity.Resolver
	sec       config.SecurityConfig
	keepalive time.Duration
	logger    *zap.Logger
}

func NewHandler(pubsub cache.PubSub, c cache.Cache, ids *identity.Resolver, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, ids: ids, sec: sec, keepalive: 30 * time.Second, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>. Browsers cannot set headers on an
// EventSource, so the token travels in the query. Each notification is
// sent as an event named after the workflow event it reports.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, ok := mw.Authenticate(c.Request.Context(), tokenStr, h.sec, h.c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), resolveTimeout)
	emp, err := h.ids.Resolve(ctx, string(claims.Actor().Canonical()))
	cancel()
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "unknown employee"})
		return
	}

	msgs, unsub, err := h.pubsub.Subscribe(c.Request.Context(), notify.Channel(emp.EmployeeCode))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("employee_code", emp.EmployeeCode), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer unsub()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"employee_code": emp.EmployeeCode})
	c.Writer.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			c.SSEvent(eventName(msg.Payload), msg.Payload)
			return true
		case <-keepalive.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// eventName reads the workflow event out of a notify.Message payload.
func eventName(payload string) string {
	var m struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal([]byte(payload), &m); err != nil || m.Event == "" {
		return "message"
	}
	return m.Event
}
