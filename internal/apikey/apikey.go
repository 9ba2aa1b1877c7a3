package apikey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// KeyLength is the length of the random part of the key in bytes
	// before base64 encoding.
	KeyLength = 32
	// KeyPrefix marks every gateway API key.
	KeyPrefix = "ofg"
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 10
)

// Generate creates a new API key. Returns the full key (shown once to the
// operator) and the short prefix used to identify it in logs.
func Generate() (fullKey string, keyPrefix string, err error) {
	randomBytes := make([]byte, KeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullKey = fmt.Sprintf("%s_%s", KeyPrefix, encoded)
	keyPrefix = fmt.Sprintf("%s_%s", KeyPrefix, encoded[:8])
	return fullKey, keyPrefix, nil
}

// Hash hashes an API key with bcrypt for storage.
func Hash(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hashed), nil
}

// Compare checks a plain key against a stored bcrypt hash.
func Compare(key, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}

// DisplayPrefix extracts the identifying prefix from a full key for display.
func DisplayPrefix(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) < 2 {
		return "invalid"
	}
	keyPart := parts[1]
	if len(keyPart) >= 8 {
		return fmt.Sprintf("%s_%s", parts[0], keyPart[:8])
	}
	return fmt.Sprintf("%s_%s", parts[0], keyPart)
}
