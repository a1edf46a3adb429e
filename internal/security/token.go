package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is the only failure a token ever verifies to. Decrypt
// failures, bad signatures, expiry and malformed claims all collapse into it
// so a caller holding a token cannot distinguish why it was rejected.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the verified contents of a token. SessionID is set only on
// refresh tokens.
type Claims struct {
	UserID    string
	Role      string
	Perms     []string
	SessionID string
}

type innerClaims struct {
	Role      string   `json:"role"`
	Perms     []string `json:"perms"`
	SessionID string   `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// envelope is the authenticated-encryption outer layer wrapped around the
// signed inner token. It carries its own lifetime so the ciphertext expires
// even before the inner token is inspected.
type envelope struct {
	JWS      string `json:"jws"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// TokenCodec builds and parses the sign-then-encrypt token format: an HS256
// JWT carrying identity claims, sealed in AES-256-GCM. Claims stay opaque to
// any holder of the bearer string who lacks the encryption key, and remain
// tamper-evident via the signature even if the encryption key leaks.
type TokenCodec struct {
	signingKey    []byte
	encryptionKey []byte
	now           func() time.Time
}

func NewTokenCodec(signingSecret, encryptionSecret string) *TokenCodec {
	return &TokenCodec{
		signingKey:    DeriveKey(signingSecret),
		encryptionKey: DeriveKey(encryptionSecret),
		now:           time.Now,
	}
}

// IssueAccess mints a short-lived access token with no session claim.
func (c *TokenCodec) IssueAccess(userID, role string, perms []string, ttl time.Duration) (string, error) {
	return c.issue(userID, role, perms, "", ttl)
}

// IssueRefresh mints a refresh token bound to sessionID. The session claim is
// mandatory: a refresh token without one can never rotate.
func (c *TokenCodec) IssueRefresh(userID, role string, perms []string, sessionID string, ttl time.Duration) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("issue refresh: session id required")
	}
	return c.issue(userID, role, perms, sessionID, ttl)
}

func (c *TokenCodec) issue(userID, role string, perms []string, sessionID string, ttl time.Duration) (string, error) {
	now := c.now()
	if perms == nil {
		perms = []string{}
	}

	inner := innerClaims{
		Role:      role,
		Perms:     perms,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	jws, err := jwt.NewWithClaims(jwt.SigningMethodHS256, inner).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	plaintext, err := json.Marshal(envelope{
		JWS:      jws,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Verify decrypts the outer envelope, checks its lifetime, then verifies the
// inner signature, lifetime and claim shape. It returns ErrInvalidToken on
// any deviation; partially trusted claims are never returned.
func (c *TokenCodec) Verify(token string) (Claims, error) {
	gcm, err := c.aead()
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) <= gcm.NonceSize() {
		return Claims{}, ErrInvalidToken
	}

	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil || env.JWS == "" {
		return Claims{}, ErrInvalidToken
	}
	if !c.now().Before(time.Unix(env.Expiry, 0)) {
		return Claims{}, ErrInvalidToken
	}

	var inner innerClaims
	parsed, err := jwt.ParseWithClaims(env.JWS, &inner, c.signingKeyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	if inner.Subject == "" || inner.Role == "" || inner.Perms == nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		UserID:    inner.Subject,
		Role:      inner.Role,
		Perms:     inner.Perms,
		SessionID: inner.SessionID,
	}, nil
}

func (c *TokenCodec) signingKeyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.signingKey, nil
}

func (c *TokenCodec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}

// FingerprintToken derives the one-way fingerprint of a refresh token stored
// server-side in place of the token itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
