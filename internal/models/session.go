package models

import "time"

// Session is one authenticated login lineage. RefreshTokenHash is the
// fingerprint of the currently valid refresh token, never the token itself.
// A revoked session is terminal.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastUsedAt       time.Time
	RevokedAt        *time.Time
}

func (s Session) Revoked() bool {
	return s.RevokedAt != nil
}
