package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/acaifrutal/storefront-backend/api/responses"
	"github.com/acaifrutal/storefront-backend/internal/identity"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

type identityResolver interface {
	Resolve(ctx context.Context, token string) (identity.Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// Auth resolves the bearer token into an identity and seeds the request context.
// Websocket clients cannot set headers, so the token may also come from the
// access_token query parameter.
func Auth(resolver identityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			who, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithIdentity(r.Context(), who)
			if logg != nil {
				ctx = logg.WithUserID(ctx, who.ID)
				ctx = logg.WithIdentityKind(ctx, who.Anonymous)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
