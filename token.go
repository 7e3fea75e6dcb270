package ephemera

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the entropy of an access token.
const TokenBytes = 16

const (
	tokenMinLength = 16
	tokenMaxLength = 128
)

// NewToken returns a fresh url-safe access token with TokenBytes of entropy.
// Uniqueness is left to the registry's unique constraint.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("new token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewStoredRef returns a blob reference: 16 random bytes in hex followed by
// the extension of suggestedName, when that extension is itself a valid
// name fragment.
func NewStoredRef(suggestedName string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("new stored ref: %w", err)
	}

	name := hex.EncodeToString(b)
	ext := FileExtension(suggestedName)
	if len(ext) > 1 && len(ext) <= 16 && IsValidStoredRef(name+ext) {
		name += ext
	}

	return name, nil
}
