package auth

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minTokenLength    = 16
	maxIdentityLength = 64
)

var identityPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// NormalizeTenantID returns the canonical lowercase tenant id and validates
// allowed characters. Tenant ids name housing cooperatives, so they travel
// in URLs and log lines and stay restricted accordingly.
func NormalizeTenantID(raw string) (string, error) {
	tenant := strings.TrimSpace(strings.ToLower(raw))
	if tenant == "" {
		return "", fmt.Errorf("tenant id is required")
	}
	if len(tenant) > maxIdentityLength {
		return "", fmt.Errorf("tenant id too long")
	}
	if !identityPattern.MatchString(tenant) {
		return "", fmt.Errorf("invalid tenant id")
	}
	return tenant, nil
}

// NormalizeActorID returns the canonical lowercase actor id and validates
// allowed characters.
func NormalizeActorID(raw string) (string, error) {
	actor := strings.TrimSpace(strings.ToLower(raw))
	if actor == "" {
		return "", fmt.Errorf("actor id is required")
	}
	if len(actor) > maxIdentityLength {
		return "", fmt.Errorf("actor id too long")
	}
	if !identityPattern.MatchString(actor) {
		return "", fmt.Errorf("invalid actor id")
	}
	return actor, nil
}

// ValidateToken checks minimal admin token requirements.
func ValidateToken(token string) error {
	if len(token) < minTokenLength {
		return fmt.Errorf("token must be at least %d characters", minTokenLength)
	}
	return nil
}

// HashToken hashes one plaintext admin token for persistent storage.
func HashToken(token string) (string, error) {
	if err := ValidateToken(token); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyToken verifies a plaintext admin token against a bcrypt hash.
func VerifyToken(tokenHash, candidate string) bool {
	if strings.TrimSpace(tokenHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(candidate)) == nil
}
