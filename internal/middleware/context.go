// Package middleware provides HTTP middleware for the GLD API.
package middleware

import (
	"context"

	"github.com/NGeff/gld-rest-api/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserKey is the context key for the authenticated account.
	UserKey contextKey = "user"
	// APIKeyKey is the context key for the authenticated API key.
	APIKeyKey contextKey = "api_key"
)

// GetUser retrieves the authenticated account from context.
func GetUser(ctx context.Context) *models.User {
	if v := ctx.Value(UserKey); v != nil {
		return v.(*models.User)
	}
	return nil
}

// GetAPIKey retrieves the authenticated API key from context.
func GetAPIKey(ctx context.Context) *models.APIKey {
	if v := ctx.Value(APIKeyKey); v != nil {
		return v.(*models.APIKey)
	}
	return nil
}
