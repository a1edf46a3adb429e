package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// NewCSRFToken returns a random opaque value delivered in a script-readable
// cookie and echoed back in a request header. It is not bound to a session
// server-side; its job is proving the request came from a page that could
// read the cookie.
func NewCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CSRFTokensMatch compares the cookie-carried and header-carried copies.
// Both must be present and byte-for-byte equal.
func CSRFTokensMatch(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}
