// Package secret provides secret generation and fingerprinting utilities.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// DefaultLength is the default secret length in bytes.
const DefaultLength = 32

// Generate generates a cryptographically secure random secret.
//
// The returned secret is Base64 RawURL encoded for safe transmission in
// headers and URLs.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a secret with the specified byte length.
func GenerateWithLength(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateBytes generates random bytes.
func GenerateBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

// GenerateHex generates random bytes encoded as lowercase hex, the format
// keyfiles are written in.
func GenerateHex(length int) (string, error) {
	bytes, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
