package security

import (
	"net/http"
	"time"
)

// AuthCookiePath is the route prefix the refresh cookie is restricted to, so
// the browser only ever sends it to the auth endpoints.
const AuthCookiePath = "/api/v1/auth"

// CookieManager writes and clears the two auth cookies: the HTTP-only
// refresh cookie scoped to the auth prefix, and the script-readable CSRF
// cookie scoped site-wide. The access token is never placed in a cookie.
type CookieManager struct {
	RefreshName string
	CSRFName    string
	Secure      bool
}

func NewCookieManager(refreshName, csrfName string, secure bool) *CookieManager {
	return &CookieManager{RefreshName: refreshName, CSRFName: csrfName, Secure: secure}
}

func (m *CookieManager) SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.RefreshName,
		Value:    token,
		Path:     AuthCookiePath,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (m *CookieManager) SetCSRFCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.CSRFName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func (m *CookieManager) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.RefreshName,
		Value:    "",
		Path:     AuthCookiePath,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func GetCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
