package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Admin tokens look like wla_<32 hex chars>.
const (
	TokenPrefix    = "wla_"
	tokenSecretLen = 16 // bytes, hex encoded to 32 chars
)

var tokenFormatRegex = regexp.MustCompile(`^wla_[a-f0-9]{32}$`)

// GeneratedToken is a new admin token and its storable hash.
type GeneratedToken struct {
	Plaintext string // shown once
	Hash      string // value for ADMIN_TOKEN_HASH
}

// GenerateAdminToken creates a random admin token and hashes it.
func GenerateAdminToken() (*GeneratedToken, error) {
	secret := make([]byte, tokenSecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	plaintext := TokenPrefix + hex.EncodeToString(secret)

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{Plaintext: plaintext, Hash: hash}, nil
}

// ValidateTokenFormat checks if token matches the generated format.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
