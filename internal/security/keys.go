package security

import "crypto/sha256"

// DeriveKey turns an operator-supplied secret of arbitrary length into a
// 32-byte key usable for HMAC signing or AES-256-GCM. Derivation is
// deterministic so every process sharing the secret derives the same key.
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
