package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix is the fixed prefix of every API key secret.
const KeyPrefix = "gld_"

// customKeyPattern is the lexical format required for caller-chosen secrets.
var customKeyPattern = regexp.MustCompile(`^gld_[a-zA-Z0-9_-]{20,64}$`)

// APIKey represents an API key bound to a user account.
type APIKey struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	Key          string     `json:"-" db:"key"`
	KeyHash      string     `json:"-" db:"key_hash"`
	Name         string     `json:"name" db:"name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	RequestCount int64      `json:"request_count" db:"request_count"`
	LastUsed     *time.Time `json:"last_used,omitempty" db:"last_used"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// MaskedKey returns the display form of the secret: the first twelve
// characters followed by an ellipsis.
func (k *APIKey) MaskedKey() string {
	if len(k.Key) <= 12 {
		return k.Key
	}
	return k.Key[:12] + "..."
}

// GenerateKey creates a new random API key secret.
func GenerateKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("models: " + err.Error())
	}
	return KeyPrefix + hex.EncodeToString(buf)
}

// HashKey computes the one-way digest stored and looked up for a secret.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IsValidCustomKey reports whether a caller-chosen secret matches the
// required lexical format.
func IsValidCustomKey(key string) bool {
	return customKeyPattern.MatchString(key)
}
