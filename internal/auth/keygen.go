// Package auth provides widget API key utilities.
//
// Widget keys are public site identifiers embedded in customer pages, not
// secrets: they are stored in plaintext behind a unique index and resolved
// to a website on every call. Format validation here is a cheap first gate
// before any cache or database lookup.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Key format: pv_{env}_{secret}
// Example: pv_live_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	// KeySecretLen is the secret length (hex encoded 16 bytes).
	KeySecretLen = 32
)

// Environment indicators embedded in the key.
const (
	EnvLive = "live"
	EnvTest = "test"
)

var (
	// ErrInvalidKeyFormat indicates the key format is invalid.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// keyFormatRegex validates the key format.
	keyFormatRegex = regexp.MustCompile(`^pv_(live|test)_([a-f0-9]{32})$`)
)

// GenerateSiteKey creates a new widget API key for the given environment.
func GenerateSiteKey(env string) (string, error) {
	if env != EnvLive && env != EnvTest {
		env = EnvLive // Default to live
	}

	secretBytes := make([]byte, 16)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	return fmt.Sprintf("pv_%s_%s", env, hex.EncodeToString(secretBytes)), nil
}

// GenerateVerificationToken creates a token for the domain ownership proof
// file the customer places on their site.
func GenerateVerificationToken() (string, error) {
	tokenBytes := make([]byte, 16)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "proovd-verify-" + hex.EncodeToString(tokenBytes), nil
}

// ParsedKey contains the parsed parts of a widget API key.
type ParsedKey struct {
	Env    string
	Secret string
}

// ParseSiteKey extracts the components from a widget API key.
// Returns an error if the format is invalid.
func ParseSiteKey(key string) (*ParsedKey, error) {
	matches := keyFormatRegex.FindStringSubmatch(key)
	if matches == nil {
		return nil, ErrInvalidKeyFormat
	}

	return &ParsedKey{
		Env:    matches[1],
		Secret: matches[2],
	}, nil
}

// ValidateKeyFormat checks if the key matches the expected format.
func ValidateKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}
