package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MushhX/RavixPteroX/internal/rbac"
	"github.com/MushhX/RavixPteroX/internal/security"
)

const authClaimsKey = "auth_claims"

// Auth extracts and verifies the bearer access token, attaching the resolved
// identity to the request context. Absence and verification failure are
// indistinguishable to the caller.
func Auth(codec *security.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := codec.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the identity attached by Auth, if any.
func ClaimsFrom(c *gin.Context) (security.Claims, bool) {
	val, exists := c.Get(authClaimsKey)
	if !exists {
		return security.Claims{}, false
	}
	claims, ok := val.(security.Claims)
	return claims, ok
}

// RequirePerm gates a route on a single permission. It distinguishes "not
// authenticated" from "authenticated but lacking rights".
func RequirePerm(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !rbac.HasPerm(claims.Perms, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
