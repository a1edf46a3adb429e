package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/config"
	"github.com/MushhX/RavixPteroX/internal/ids"
	"github.com/MushhX/RavixPteroX/internal/models"
	"github.com/MushhX/RavixPteroX/internal/rbac"
	"github.com/MushhX/RavixPteroX/internal/repository"
	"github.com/MushhX/RavixPteroX/internal/security"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so a
	// caller cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken mirrors the codec's uniform failure and additionally
	// covers missing, revoked and fingerprint-mismatched sessions.
	ErrInvalidToken = security.ErrInvalidToken
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	RotateFingerprint(ctx context.Context, sessionID, priorHash, newHash string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID, ip, userAgent string) error
}

type AuditStore interface {
	Write(ctx context.Context, event models.AuditEvent) error
}

// AuthService owns the session state machine: login creates an Active
// session, each rotation swaps its refresh-token fingerprint, and revocation
// is terminal.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	audit    AuditStore
	codec    *security.TokenCodec
	cfg      config.AuthConfig
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	audit AuditStore,
	codec *security.TokenCodec,
	cfg config.AuthConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		audit:    audit,
		codec:    codec,
		cfg:      cfg,
		log:      log,
	}
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
	Perms        []string
	SessionID    string
}

// dummyHash keeps the unknown-email path doing roughly the same work as a
// wrong-password attempt.
var dummyHash, _ = security.HashPassword("ravix-dummy-credential")

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = security.VerifyPassword(input.Password, dummyHash)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	perms := rbac.Resolve(user.Role)
	sessionID := ids.New()

	accessToken, err := s.codec.IssueAccess(user.ID, string(user.Role), perms, s.cfg.AccessTokenTTL)
	if err != nil {
		return AuthResult{}, err
	}
	refreshToken, err := s.codec.IssueRefresh(user.ID, string(user.Role), perms, sessionID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: security.FingerprintToken(refreshToken),
		IPAddress:        input.IPAddress,
		UserAgent:        input.UserAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	s.writeAudit(ctx, models.AuditEvent{
		ActorUserID: user.ID,
		Action:      models.AuditLogin,
		Target:      sessionID,
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	})

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		Perms:        perms,
		SessionID:    sessionID,
	}, nil
}

// RotateRefresh exchanges a valid refresh token for a fresh pair bound to the
// same session. A presented token whose fingerprint no longer matches the
// session's stored one is treated as possible theft: the whole session is
// revoked before the generic failure is returned.
func (s *AuthService) RotateRefresh(ctx context.Context, refreshToken, ip, userAgent string) (AuthResult, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return AuthResult{}, ErrInvalidToken
	}
	if claims.SessionID == "" {
		return AuthResult{}, ErrInvalidToken
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		return AuthResult{}, ErrInvalidToken
	}
	if session.Revoked() {
		return AuthResult{}, ErrInvalidToken
	}

	presented := security.FingerprintToken(refreshToken)
	if presented != session.RefreshTokenHash {
		s.revokeForReuse(ctx, session, ip, userAgent)
		return AuthResult{}, ErrInvalidToken
	}

	// Role and permissions are read fresh from the store, not trusted from
	// the old token, so an admin's role change lands on the next rotation.
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if err := s.sessions.Revoke(ctx, session.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("revoke orphaned session failed")
		}
		return AuthResult{}, ErrInvalidToken
	}
	perms := rbac.Resolve(user.Role)

	accessToken, err := s.codec.IssueAccess(user.ID, string(user.Role), perms, s.cfg.AccessTokenTTL)
	if err != nil {
		return AuthResult{}, err
	}
	newRefresh, err := s.codec.IssueRefresh(user.ID, string(user.Role), perms, session.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return AuthResult{}, err
	}

	rotated, err := s.sessions.RotateFingerprint(ctx, session.ID, presented, security.FingerprintToken(newRefresh))
	if err != nil {
		return AuthResult{}, err
	}
	if !rotated {
		// Lost a race against a concurrent rotation or an administrative
		// revocation; the minted pair is discarded.
		return AuthResult{}, ErrInvalidToken
	}

	if err := s.sessions.Touch(ctx, session.ID, ip, userAgent); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("session touch failed")
	}

	s.writeAudit(ctx, models.AuditEvent{
		ActorUserID: user.ID,
		Action:      models.AuditRefresh,
		Target:      session.ID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		User:         user,
		Perms:        perms,
		SessionID:    session.ID,
	}, nil
}

// Logout is best-effort: an absent or undecodable refresh token is not an
// error, the caller's cookies get cleared either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken, ip, userAgent string) {
	if refreshToken == "" {
		return
	}

	claims, err := s.codec.Verify(refreshToken)
	if err != nil || claims.SessionID == "" {
		return
	}

	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", claims.SessionID).Msg("logout revoke failed")
		return
	}

	s.writeAudit(ctx, models.AuditEvent{
		ActorUserID: claims.UserID,
		Action:      models.AuditLogout,
		Target:      claims.SessionID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})
}

// Revoke unconditionally terminates a session. Idempotent.
func (s *AuthService) Revoke(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}

// RevokeAllForUser terminates every active session the user owns.
func (s *AuthService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

func (s *AuthService) revokeForReuse(ctx context.Context, session models.Session, ip, userAgent string) {
	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		s.log.Error().Err(err).Str("session_id", session.ID).Msg("reuse-detection revoke failed")
		return
	}

	s.log.Warn().
		Str("session_id", session.ID).
		Str("user_id", session.UserID).
		Msg("refresh token reuse detected, session revoked")

	s.writeAudit(ctx, models.AuditEvent{
		ActorUserID: session.UserID,
		Action:      models.AuditSessionReuse,
		Target:      session.ID,
		IPAddress:   ip,
		UserAgent:   userAgent,
	})
}

func (s *AuthService) writeAudit(ctx context.Context, event models.AuditEvent) {
	event.ID = ids.New()
	if err := s.audit.Write(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("action", event.Action).Msg("audit write failed")
	}
}
