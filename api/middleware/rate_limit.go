package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/acaifrutal/storefront-backend/api/responses"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
)

const (
	defaultRequestLimit  = 120
	defaultRequestWindow = time.Minute
)

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps requests per identity (or client IP before Auth has run) in a
// fixed window. Limiter failures let the request through.
func RateLimit(limiter windowLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = defaultRequestLimit
	}
	if window <= 0 {
		window = defaultRequestWindow
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := "ip:" + clientIP(r)
			if id := UserIDFromContext(ctx); id != "" {
				scope = "id:" + id
			}
			allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(limit), window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "rate_limit.unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"scope": scope, "count": count}), "rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
