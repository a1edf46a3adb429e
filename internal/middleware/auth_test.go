package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/rbac"
	"github.com/MushhX/RavixPteroX/internal/security"
)

func guardedRouter(t *testing.T, codec *security.TokenCodec) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/whoami", Auth(codec), func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "claims missing"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID, "role": claims.Role})
	})
	router.GET("/admin", Auth(codec), RequirePerm(rbac.PermAdminUsers), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestAuthGuard(t *testing.T) {
	codec := security.NewTokenCodec("signing-secret", "encryption-secret")
	router := guardedRouter(t, codec)

	token, err := codec.IssueAccess("user-1", "user", rbac.Resolve("user"), time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid bearer", "Bearer " + token, http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"bare token without scheme", token, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestAuthGuardRejectsExpiredToken(t *testing.T) {
	codec := security.NewTokenCodec("signing-secret", "encryption-secret")
	router := guardedRouter(t, codec)

	token, err := codec.IssueAccess("user-1", "user", nil, -time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token status = %d, want 401", rec.Code)
	}
}

func TestRequirePerm(t *testing.T) {
	codec := security.NewTokenCodec("signing-secret", "encryption-secret")
	router := guardedRouter(t, codec)

	adminToken, err := codec.IssueAccess("user-admin", "admin", rbac.Resolve("admin"), time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	userToken, err := codec.IssueAccess("user-plain", "user", rbac.Resolve("user"), time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"admin wildcard passes", "Bearer " + adminToken, http.StatusOK},
		{"user lacks admin perm", "Bearer " + userToken, http.StatusForbidden},
		{"unauthenticated", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRateLimitWithoutBackendPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/ping", RateLimit(nil, zerolog.Nop(), "test", 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
}
