package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MushhX/RavixPteroX/internal/ids"
	"github.com/MushhX/RavixPteroX/internal/middleware"
	"github.com/MushhX/RavixPteroX/internal/models"
	"github.com/MushhX/RavixPteroX/internal/rbac"
	"github.com/MushhX/RavixPteroX/internal/repository"
	"github.com/MushhX/RavixPteroX/internal/security"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	type adminUser struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"createdAt"`
	}

	resp := make([]adminUser, 0, len(users))
	for _, user := range users {
		resp = append(resp, adminUser{
			ID:        user.ID,
			Email:     user.Email,
			Role:      string(user.Role),
			CreatedAt: user.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": resp})
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

func (h HandlerSet) AdminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	passwordHash, err := security.HashPassword(req.Password)
	if err != nil {
		h.log.Error().Err(err).Msg("hash password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	user := models.User{
		ID:           ids.New(),
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         rbac.ParseRole(req.Role),
	}

	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email_already_exists"})
			return
		}
		h.log.Error().Err(err).Msg("create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	h.writeAudit(c, models.AuditAdminUserCreate, user.ID, map[string]any{
		"email": user.Email,
		"role":  string(user.Role),
	})

	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

type patchUserRequest struct {
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	var req patchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
		return
	}

	userID := c.Param("id")
	if _, err := h.users.GetByID(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	if req.Role != "" {
		if err := h.users.UpdateRole(c.Request.Context(), userID, rbac.ParseRole(req.Role)); err != nil {
			h.log.Error().Err(err).Msg("update role failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}
	}

	if req.Password != "" {
		passwordHash, err := security.HashPassword(req.Password)
		if err != nil {
			h.log.Error().Err(err).Msg("hash password failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}
		if err := h.users.UpdatePasswordHash(c.Request.Context(), userID, passwordHash); err != nil {
			h.log.Error().Err(err).Msg("update password failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}
	}

	meta := map[string]any{}
	if req.Role != "" {
		meta["role"] = req.Role
	}
	if req.Password != "" {
		meta["password"] = "changed"
	}
	h.writeAudit(c, models.AuditAdminUserUpdate, userID, meta)

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminRevokeUserSessions(c *gin.Context) {
	userID := c.Param("id")

	if err := h.authService.RevokeAllForUser(c.Request.Context(), userID); err != nil {
		h.log.Error().Err(err).Msg("revoke user sessions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	h.writeAudit(c, models.AuditAdminRevokeAll, userID, nil)

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminListAudit(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v >= 1 && v <= 200 {
		limit = v
	}

	var before time.Time
	if v, err := strconv.ParseInt(c.Query("before"), 10, 64); err == nil && v > 0 {
		before = time.UnixMilli(v)
	}

	events, err := h.audit.List(c.Request.Context(), limit, before)
	if err != nil {
		h.log.Error().Err(err).Msg("list audit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	type auditEntry struct {
		ID          string         `json:"id"`
		ActorUserID string         `json:"actorUserId,omitempty"`
		Action      string         `json:"action"`
		Target      string         `json:"target,omitempty"`
		Meta        map[string]any `json:"meta,omitempty"`
		IPAddress   string         `json:"ip,omitempty"`
		UserAgent   string         `json:"userAgent,omitempty"`
		CreatedAt   int64          `json:"createdAt"`
	}

	logs := make([]auditEntry, 0, len(events))
	for _, event := range events {
		logs = append(logs, auditEntry{
			ID:          event.ID,
			ActorUserID: event.ActorUserID,
			Action:      event.Action,
			Target:      event.Target,
			Meta:        event.Meta,
			IPAddress:   event.IPAddress,
			UserAgent:   event.UserAgent,
			CreatedAt:   event.CreatedAt.UnixMilli(),
		})
	}

	h.writeAudit(c, models.AuditAdminAuditList, "", nil)

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h HandlerSet) writeAudit(c *gin.Context, action, target string, meta map[string]any) {
	claims, _ := middleware.ClaimsFrom(c)
	event := models.AuditEvent{
		ID:          ids.New(),
		ActorUserID: claims.UserID,
		Action:      action,
		Target:      target,
		Meta:        meta,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.GetHeader("User-Agent"),
	}
	if err := h.audit.Write(c.Request.Context(), event); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
