package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
	"github.com/NGeff/gld-rest-api/internal/service"
)

// Auth returns a middleware requiring a Bearer session token. The resolved
// account is stored on the request context.
func Auth(authService service.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}

			claims, err := authService.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				response.Error(w, apierrors.AsAPIError(err))
				return
			}

			user, err := authService.GetProfile(r.Context(), claims.UserID)
			if err != nil {
				response.Error(w, apierrors.ErrUnauthorized)
				return
			}
			if user.IsSuspended {
				response.Error(w, apierrors.ErrForbidden.WithMessage("This account is suspended"))
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns a middleware that rejects non-admin accounts. It must
// run after Auth.
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil || user.Role != models.RoleAdmin {
				response.Error(w, apierrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
