package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/config"
	"github.com/MushhX/RavixPteroX/internal/middleware"
	"github.com/MushhX/RavixPteroX/internal/models"
	"github.com/MushhX/RavixPteroX/internal/plugin"
	"github.com/MushhX/RavixPteroX/internal/rbac"
	"github.com/MushhX/RavixPteroX/internal/security"
	"github.com/MushhX/RavixPteroX/internal/service"
)

// UserDirectory is the slice of the user store the HTTP layer needs beyond
// what AuthService already wraps.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash []byte) error
}

type SessionDirectory interface {
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
}

type AuditLog interface {
	Write(ctx context.Context, event models.AuditEvent) error
	List(ctx context.Context, limit int, before time.Time) ([]models.AuditEvent, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	panel       *service.PanelService
	codec       *security.TokenCodec
	cookies     *security.CookieManager
	users       UserDirectory
	sessions    SessionDirectory
	audit       AuditLog
	db          Pinger
	cache       *redis.Client
	plugins     []plugin.Plugin
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	authService *service.AuthService,
	panel *service.PanelService,
	codec *security.TokenCodec,
	users UserDirectory,
	sessions SessionDirectory,
	audit AuditLog,
	db Pinger,
	cache *redis.Client,
	plugins []plugin.Plugin,
) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: authService,
		panel:       panel,
		codec:       codec,
		cookies:     security.NewCookieManager(cfg.Auth.RefreshCookieName, cfg.Auth.CSRFCookieName, cfg.Auth.CookieSecure),
		users:       users,
		sessions:    sessions,
		audit:       audit,
		db:          db,
		cache:       cache,
		plugins:     plugins,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	requireAuth := middleware.Auth(h.codec)
	requireCSRF := middleware.CSRF(h.cfg.Auth.CSRFCookieName)

	v1 := router.Group("/v1")

	v1.GET("/healthz", h.Health)

	auth := v1.Group("/auth")
	auth.POST("/login",
		middleware.RateLimit(h.cache, h.log, "login", h.cfg.RateLimit.LoginPerMinute), h.Login)
	auth.POST("/refresh",
		middleware.RateLimit(h.cache, h.log, "refresh", h.cfg.RateLimit.RefreshPerMinute), h.Refresh)
	auth.POST("/logout", requireCSRF, h.Logout)
	auth.GET("/me", requireAuth, h.Me)
	auth.GET("/sessions", requireAuth, h.ListSessions)
	auth.DELETE("/sessions/:id", requireAuth, requireCSRF, h.RevokeOwnSession)

	admin := v1.Group("/admin")
	admin.Use(requireAuth)
	admin.GET("/users", middleware.RequirePerm(rbac.PermAdminUsers), h.AdminListUsers)
	admin.POST("/users", middleware.RequirePerm(rbac.PermAdminUsers), requireCSRF, h.AdminCreateUser)
	admin.PATCH("/users/:id", middleware.RequirePerm(rbac.PermAdminUsers), requireCSRF, h.AdminUpdateUser)
	admin.POST("/users/:id/revoke-sessions", middleware.RequirePerm(rbac.PermAdminUsers), requireCSRF, h.AdminRevokeUserSessions)
	admin.GET("/audit", middleware.RequirePerm(rbac.PermAdminAudit), h.AdminListAudit)

	panel := v1.Group("/panel")
	panel.Use(requireAuth)
	panel.GET("/servers", middleware.RequirePerm(rbac.PermPanelRead), h.PanelListServers)
	panel.POST("/servers/:id/power", middleware.RequirePerm(rbac.PermPanelPower), requireCSRF, h.PanelPower)

	pluginCtx := plugin.RouteContext{
		Router:      v1,
		Auth:        requireAuth,
		RequirePerm: middleware.RequirePerm,
		CSRF:        requireCSRF,
		Log:         h.log,
	}
	for _, p := range h.plugins {
		meta := p.Metadata()
		if err := p.Register(pluginCtx); err != nil {
			h.log.Error().Err(err).Str("plugin", meta.Name).Msg("plugin registration failed")
			continue
		}
		h.log.Info().Str("plugin", meta.Name).Str("version", meta.Version).Msg("plugin registered")
	}
}
