package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/christianebacani/yoonet-quest-system-sub000/cache"
	"github.com/christianebacani/yoonet-quest-system-sub000/config"
	"github.com/christianebacani/yoonet-quest-system-sub000/game/identity"
	"github.com/gin-gonic/gin"
)

const (
	ActorKey  = "actor"
	ClaimsKey = "claims"
)

func revokedKey(c *Claims) string {
	return "revoked:" + c.ID
}

// Auth validates the Bearer JWT token, rejects revoked tokens and stores
// the request actor in the Gin context.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, ok := Authenticate(ctx.Request.Context(), strings.TrimPrefix(header, "Bearer "), sec, c)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		ctx.Set(ClaimsKey, claims)
		ctx.Set(ActorKey, claims.Actor())
		ctx.Next()
	}
}

// Authenticate parses tokenStr and checks it has not been revoked.
func Authenticate(ctx context.Context, tokenStr string, sec config.SecurityConfig, c cache.Cache) (*Claims, bool) {
	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		return nil, false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	revoked, err := c.Exists(cacheCtx, revokedKey(claims))
	if err != nil || revoked {
		return nil, false
	}
	return claims, true
}

// Revoke blacklists the token until it would have expired anyway.
func Revoke(ctx context.Context, c cache.Cache, claims *Claims) error {
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return c.Set(ctx, revokedKey(claims), "1", ttl)
}

// RequireRole rejects actors whose role is not one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor := GetActor(ctx)
		for _, r := range roles {
			if actor.Role == r {
				ctx.Next()
				return
			}
		}
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// GetActor retrieves the authenticated actor from the Gin context.
func GetActor(c *gin.Context) identity.Actor {
	if v, exists := c.Get(ActorKey); exists {
		return v.(identity.Actor)
	}
	return identity.Actor{}
}

// GetClaims retrieves the token claims from the Gin context.
func GetClaims(c *gin.Context) *Claims {
	if v, exists := c.Get(ClaimsKey); exists {
		return v.(*Claims)
	}
	return nil
}
