package middleware

import (
	"context"
	"net/http"
	"time"

	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
	"github.com/NGeff/gld-rest-api/internal/service"
)

// APIKeyHeader is the header carrying the key secret on the metered surface.
const APIKeyHeader = "X-API-Key"

// APIKey returns the admission middleware for the metered API surface:
// authenticate the key, gate the account, consume one quota slot, then
// audit the completed call. Rejected calls consume no quota and are not
// audited.
func APIKey(access service.AccessService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get(APIKeyHeader)
			if secret == "" {
				response.Error(w, apierrors.ErrUnauthorized.WithMessage("Missing API key"))
				return
			}

			user, key, err := access.Authenticate(r.Context(), secret)
			if err != nil {
				response.Error(w, apierrors.AsAPIError(err))
				return
			}

			if err := access.Admit(r.Context(), user, key); err != nil {
				response.Error(w, apierrors.AsAPIError(err))
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, APIKeyKey, key)

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			access.Record(user, key, r.URL.Path, r.Method, wrapped.status, time.Since(start))
		})
	}
}
