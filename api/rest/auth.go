package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	mw "github.com/christianebacani/yoonet-quest-system-sub000/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles the token endpoints. Tokens are issued by the
// questd token command; accounts themselves live outside this service.
type AuthHandler struct {
	ids    *identity.Resolver
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(ids *identity.Resolver, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{ids: ids, cache: c, sec: sec, logger: logger}
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	actor := mw.GetActor(c)
	emp, err := h.ids.Resolve(c.Request.Context(), string(actor.Canonical()))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actor": actor.Canonical(), "employee": emp})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := mw.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := mw.Revoke(ctx, h.cache, claims); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh. The old token is revoked.
func (h *AuthHandler) Refresh(c *gin.Context) {
	claims := mw.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	token, err := mw.GenerateToken(claims.Actor(), h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := mw.Revoke(ctx, h.cache, claims); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
