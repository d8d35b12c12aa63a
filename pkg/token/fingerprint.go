package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength is the number of hex characters Fingerprint returns.
const FingerprintLength = 12

// Fingerprint returns a short, stable digest of value for logs.
// The empty string maps to the empty string.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])[:FingerprintLength]
}
