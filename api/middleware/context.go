package middleware

import (
	"context"

	"github.com/acaifrutal/storefront-backend/internal/identity"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the caller resolved by Auth.
func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	if ctx == nil {
		return identity.Identity{}, false
	}
	who, ok := ctx.Value(ctxIdentity).(identity.Identity)
	return who, ok
}

func UserIDFromContext(ctx context.Context) string {
	who, _ := IdentityFromContext(ctx)
	return who.ID
}

// WithIdentity injects the caller into the context.
func WithIdentity(ctx context.Context, who identity.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, who)
}
