package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// CORS applies the storefront origin policy. extraOrigins is a comma separated
// list and may hold wildcards such as "https://*.acaifrutal.com.br". A bare "*"
// opens the API to any origin without credentials.
func CORS(extraOrigins string) func(http.Handler) http.Handler {
	origins := append([]string(nil), defaultCORSOrigins...)
	anyOrigin := false
	for _, origin := range strings.Split(extraOrigins, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
			continue
		case "*":
			anyOrigin = true
		}
		origins = append(origins, origin)
	}
	if anyOrigin {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After", "Idempotency-Replayed"},
		AllowCredentials: !anyOrigin,
		MaxAge:           300,
	}).Handler
}
