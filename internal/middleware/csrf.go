package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MushhX/RavixPteroX/internal/security"
)

const csrfHeader = "X-CSRF-Token"

// CSRF enforces the double-submit contract on state-changing routes: the
// cookie-carried token and the header-carried copy must both be present and
// exactly equal. Plain reads are never guarded.
func CSRF(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieToken := security.GetCookie(c.Request, cookieName)
		headerToken := c.GetHeader(csrfHeader)

		if !security.CSRFTokensMatch(cookieToken, headerToken) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "csrf"})
			return
		}

		c.Next()
	}
}
