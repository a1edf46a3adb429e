package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/config"
	"github.com/MushhX/RavixPteroX/internal/models"
	"github.com/MushhX/RavixPteroX/internal/repository"
	"github.com/MushhX/RavixPteroX/internal/security"
	"github.com/MushhX/RavixPteroX/internal/service"
)

// In-memory stores backing the full stack: they satisfy both the service
// interfaces and the handler directories so a single fixture drives the
// whole router.

type stubUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newStubUsers() *stubUsers {
	return &stubUsers{users: make(map[string]models.User)}
}

func (s *stubUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *stubUsers) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUsers) List(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *stubUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return nil
}

func (s *stubUsers) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Role = role
	s.users[id] = user
	return nil
}

func (s *stubUsers) UpdatePasswordHash(_ context.Context, id string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	s.users[id] = user
	return nil
}

type stubSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: make(map[string]*models.Session)}
}

func (s *stubSessions) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.CreatedAt = time.Now()
	session.LastUsedAt = session.CreatedAt
	s.sessions[session.ID] = &session
	return nil
}

func (s *stubSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return *session, nil
}

func (s *stubSessions) RotateFingerprint(_ context.Context, sessionID, priorHash, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.RevokedAt != nil || session.RefreshTokenHash != priorHash {
		return false, nil
	}
	session.RefreshTokenHash = newHash
	session.LastUsedAt = time.Now()
	return true, nil
}

func (s *stubSessions) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok && session.RevokedAt == nil {
		now := time.Now()
		session.RevokedAt = &now
	}
	return nil
}

func (s *stubSessions) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, session := range s.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (s *stubSessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Session, 0)
	for _, session := range s.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (s *stubSessions) Touch(_ context.Context, sessionID, ip, userAgent string) error {
	return nil
}

type stubAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (s *stubAudit) Write(_ context.Context, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.CreatedAt = time.Now()
	s.events = append(s.events, event)
	return nil
}

func (s *stubAudit) List(_ context.Context, limit int, before time.Time) ([]models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		event := s.events[i]
		if !before.IsZero() && !event.CreatedAt.Before(before) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type apiFixture struct {
	router   *gin.Engine
	cfg      *config.AppConfig
	users    *stubUsers
	sessions *stubSessions
	audit    *stubAudit
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment: "test",
		Mode:        "demo",
		Auth: config.AuthConfig{
			AccessTokenTTL:    15 * time.Minute,
			RefreshTokenTTL:   720 * time.Hour,
			RefreshCookieName: "ravix_refresh",
			CSRFCookieName:    "ravix_csrf",
		},
		Panel: config.PanelConfig{Timeout: time.Second},
	}

	users := newStubUsers()
	sessions := newStubSessions()
	audit := &stubAudit{}

	hash, err := security.HashPassword("admin-password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	users.users["user-admin"] = models.User{
		ID:           "user-admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		CreatedAt:    time.Now(),
	}

	codec := security.NewTokenCodec("signing-secret", "encryption-secret")
	authService := service.NewAuthService(users, sessions, audit, codec, cfg.Auth, zerolog.Nop())
	panelService := service.NewPanelService(cfg.Panel, true, zerolog.Nop())

	handlerSet := NewHandlerSet(zerolog.Nop(), cfg, authService, panelService, codec,
		users, sessions, audit, stubPinger{}, nil, nil)

	router := gin.New()
	handlerSet.Register(router.Group("/api"))

	return &apiFixture{router: router, cfg: cfg, users: users, sessions: sessions, audit: audit}
}

type loginArtifacts struct {
	accessToken   string
	csrfToken     string
	refreshCookie *http.Cookie
	csrfCookie    *http.Cookie
}

func (f *apiFixture) login(t *testing.T, email, password string) loginArtifacts {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string `json:"accessToken"`
		CSRFToken   string `json:"csrfToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	art := loginArtifacts{accessToken: resp.AccessToken, csrfToken: resp.CSRFToken}
	for _, cookie := range rec.Result().Cookies() {
		switch cookie.Name {
		case f.cfg.Auth.RefreshCookieName:
			art.refreshCookie = cookie
		case f.cfg.Auth.CSRFCookieName:
			art.csrfCookie = cookie
		}
	}
	if art.refreshCookie == nil || art.csrfCookie == nil {
		t.Fatal("login did not set both auth cookies")
	}
	return art
}

func TestLoginSetsCookiesWithExpectedAttributes(t *testing.T) {
	f := newAPIFixture(t)
	art := f.login(t, "admin@example.com", "admin-password")

	if art.accessToken == "" || art.csrfToken == "" {
		t.Fatal("login response missing tokens")
	}
	if art.csrfToken != art.csrfCookie.Value {
		t.Error("csrf token in body does not match the cookie")
	}

	if !art.refreshCookie.HttpOnly {
		t.Error("refresh cookie must be HTTP-only")
	}
	if art.refreshCookie.Path != security.AuthCookiePath {
		t.Errorf("refresh cookie path = %q, want %q", art.refreshCookie.Path, security.AuthCookiePath)
	}
	if art.refreshCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("refresh cookie SameSite = %v, want Lax", art.refreshCookie.SameSite)
	}

	if art.csrfCookie.HttpOnly {
		t.Error("csrf cookie must stay script-readable")
	}
	if art.csrfCookie.Path != "/" {
		t.Errorf("csrf cookie path = %q, want /", art.csrfCookie.Path)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAPIFixture(t)

	for _, body := range []string{
		`{"email":"admin@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"whatever"}`,
		`{"email":"not-an-email","password":""}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("body %q: status = %d, want 401", body, rec.Code)
		}
	}
}

// Full dashboard round trip: login, hit an admin route, refresh, hit it
// again with the rotated pair, log out and confirm the session is dead.
func TestAuthLifecycleScenario(t *testing.T) {
	f := newAPIFixture(t)
	art := f.login(t, "admin@example.com", "admin-password")

	adminReq := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	if rec := adminReq(art.accessToken); rec.Code != http.StatusOK {
		t.Fatalf("admin with access token: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := adminReq(""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin without token: status = %d, want 401", rec.Code)
	}

	// Rotate.
	refreshReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	refreshReq.AddCookie(art.refreshCookie)
	refreshRec := httptest.NewRecorder()
	f.router.ServeHTTP(refreshRec, refreshReq)

	if refreshRec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", refreshRec.Code, refreshRec.Body.String())
	}
	var refreshResp struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(refreshRec.Body.Bytes(), &refreshResp); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}

	var rotatedCookie *http.Cookie
	for _, cookie := range refreshRec.Result().Cookies() {
		if cookie.Name == f.cfg.Auth.RefreshCookieName {
			rotatedCookie = cookie
		}
	}
	if rotatedCookie == nil {
		t.Fatal("refresh did not rotate the cookie")
	}
	if rotatedCookie.Value == art.refreshCookie.Value {
		t.Fatal("refresh returned the same refresh token")
	}

	if rec := adminReq(refreshResp.AccessToken); rec.Code != http.StatusOK {
		t.Fatalf("admin with rotated token: status = %d", rec.Code)
	}

	// Replaying the consumed cookie is rejected.
	replayReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	replayReq.AddCookie(art.refreshCookie)
	replayRec := httptest.NewRecorder()
	f.router.ServeHTTP(replayRec, replayReq)
	if replayRec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d, want 401", replayRec.Code)
	}

	// Reuse detection revoked the whole session, so the rotated cookie is
	// dead too.
	deadReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	deadReq.AddCookie(rotatedCookie)
	deadRec := httptest.NewRecorder()
	f.router.ServeHTTP(deadRec, deadReq)
	if deadRec.Code != http.StatusUnauthorized {
		t.Fatalf("post-reuse refresh status = %d, want 401", deadRec.Code)
	}
}

func TestLogoutRequiresCSRFAndRevokes(t *testing.T) {
	f := newAPIFixture(t)
	art := f.login(t, "admin@example.com", "admin-password")

	// Missing header: blocked before any session work happens.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(art.refreshCookie)
	req.AddCookie(art.csrfCookie)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("logout without csrf header: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(art.refreshCookie)
	req.AddCookie(art.csrfCookie)
	req.Header.Set("X-CSRF-Token", art.csrfToken)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rec.Code)
	}

	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == f.cfg.Auth.RefreshCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("logout did not clear the refresh cookie")
	}

	// The session is gone: the old refresh cookie no longer rotates.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(art.refreshCookie)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status = %d, want 401", rec.Code)
	}
}

func TestMeReturnsIdentityFromToken(t *testing.T) {
	f := newAPIFixture(t)
	art := f.login(t, "admin@example.com", "admin-password")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+art.accessToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}

	var resp struct {
		User struct {
			ID    string   `json:"id"`
			Email string   `json:"email"`
			Role  string   `json:"role"`
			Perms []string `json:"perms"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if resp.User.ID != "user-admin" || resp.User.Role != "admin" {
		t.Errorf("me = %+v", resp.User)
	}
	if len(resp.User.Perms) != 1 || resp.User.Perms[0] != "*" {
		t.Errorf("admin perms = %v, want [*]", resp.User.Perms)
	}
}

func TestSessionListAndSelfRevoke(t *testing.T) {
	f := newAPIFixture(t)
	first := f.login(t, "admin@example.com", "admin-password")
	f.login(t, "admin@example.com", "admin-password")

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/auth/sessions", nil)
	listReq.Header.Set("Authorization", "Bearer "+first.accessToken)
	listRec := httptest.NewRecorder()
	f.router.ServeHTTP(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("list sessions status = %d", listRec.Code)
	}
	var listResp struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(listResp.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(listResp.Sessions))
	}

	// Revoking an unknown session id is a 404, not a 500.
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/auth/sessions/does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer "+first.accessToken)
	req.AddCookie(first.csrfCookie)
	req.Header.Set("X-CSRF-Token", first.csrfToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("revoke unknown session status = %d, want 404", rec.Code)
	}

	target := listResp.Sessions[0].ID
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/auth/sessions/"+target, nil)
	req.Header.Set("Authorization", "Bearer "+first.accessToken)
	req.AddCookie(first.csrfCookie)
	req.Header.Set("X-CSRF-Token", first.csrfToken)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke session status = %d, want 204", rec.Code)
	}

	session, err := f.sessions.GetByID(context.Background(), target)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if session.RevokedAt == nil {
		t.Error("session not revoked")
	}
}

func TestAdminUserManagement(t *testing.T) {
	f := newAPIFixture(t)
	art := f.login(t, "admin@example.com", "admin-password")

	create := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+art.accessToken)
		req.AddCookie(art.csrfCookie)
		req.Header.Set("X-CSRF-Token", art.csrfToken)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	rec := create(`{"email":"viewer@example.com","password":"longenough","role":"user"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user status = %d, body %s", rec.Code, rec.Body.String())
	}

	if rec := create(`{"email":"viewer@example.com","password":"longenough"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", rec.Code)
	}
	if rec := create(`{"email":"short@example.com","password":"tiny"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("short password status = %d, want 400", rec.Code)
	}

	// The new user can log in and holds only the panel permissions.
	viewer := f.login(t, "viewer@example.com", "longenough")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+viewer.accessToken)
	viewerRec := httptest.NewRecorder()
	f.router.ServeHTTP(viewerRec, req)
	if viewerRec.Code != http.StatusForbidden {
		t.Fatalf("viewer on admin route: status = %d, want 403", viewerRec.Code)
	}

	panelReq := httptest.NewRequest(http.MethodGet, "/api/v1/panel/servers", nil)
	panelReq.Header.Set("Authorization", "Bearer "+viewer.accessToken)
	panelRec := httptest.NewRecorder()
	f.router.ServeHTTP(panelRec, panelReq)
	if panelRec.Code != http.StatusOK {
		t.Fatalf("viewer on panel route: status = %d, want 200", panelRec.Code)
	}
}

func TestAdminAuditListing(t *testing.T) {
	f := newAPIFixture(t)
	art := f.login(t, "admin@example.com", "admin-password")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+art.accessToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}

	var resp struct {
		Logs []struct {
			Action string `json:"action"`
		} `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode audit: %v", err)
	}

	found := false
	for _, entry := range resp.Logs {
		if entry.Action == models.AuditLogin {
			found = true
		}
	}
	if !found {
		t.Error("login event missing from the audit listing")
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}
