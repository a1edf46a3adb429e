package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MushhX/RavixPteroX/internal/middleware"
	"github.com/MushhX/RavixPteroX/internal/security"
	"github.com/MushhX/RavixPteroX/internal/service"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Role  string   `json:"role"`
	Perms []string `json:"perms"`
}

type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
	CSRFToken   string       `json:"csrfToken"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// A malformed login body is still a credential problem to the caller.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	csrfToken, err := security.NewCSRFToken()
	if err != nil {
		h.log.Error().Err(err).Msg("csrf token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	h.cookies.SetRefreshCookie(c.Writer, result.RefreshToken, h.cfg.Auth.RefreshTokenTTL)
	h.cookies.SetCSRFCookie(c.Writer, csrfToken, h.cfg.Auth.RefreshTokenTTL)

	c.JSON(http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		User: userResponse{
			ID:    result.User.ID,
			Email: result.User.Email,
			Role:  string(result.User.Role),
			Perms: result.Perms,
		},
		CSRFToken: csrfToken,
	})
}

func (h HandlerSet) Refresh(c *gin.Context) {
	refreshToken := security.GetCookie(c.Request, h.cfg.Auth.RefreshCookieName)
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.authService.RotateRefresh(c.Request.Context(), refreshToken, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	h.cookies.SetRefreshCookie(c.Writer, result.RefreshToken, h.cfg.Auth.RefreshTokenTTL)

	c.JSON(http.StatusOK, gin.H{"accessToken": result.AccessToken})
}

func (h HandlerSet) Logout(c *gin.Context) {
	refreshToken := security.GetCookie(c.Request, h.cfg.Auth.RefreshCookieName)
	h.authService.Logout(c.Request.Context(), refreshToken, c.ClientIP(), c.GetHeader("User-Agent"))

	h.cookies.ClearRefreshCookie(c.Writer)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": userResponse{
			ID:    user.ID,
			Email: user.Email,
			Role:  claims.Role,
			Perms: claims.Perms,
		},
	})
}

type sessionResponse struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.sessions.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			ID:         session.ID,
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h HandlerSet) RevokeOwnSession(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id required"})
		return
	}

	// Ownership check: a user may only revoke sessions they hold.
	sessions, err := h.sessions.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Msg("list sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	owned := false
	for _, session := range sessions {
		if session.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	if err := h.authService.Revoke(c.Request.Context(), sessionID); err != nil {
		h.log.Error().Err(err).Msg("revoke session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	c.Status(http.StatusNoContent)
}
