package api

import (
	"net/http"
	"os"
	"time"

	"github.com/acaifrutal/storefront-backend/pkg/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 15 * time.Second
)

// NewServer returns the HTTP server cmd/api runs. PORT overrides the configured port.
// No write timeout is set; live websocket streams stay open for the session.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              Addr(cfg),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Addr resolves the listen address.
func Addr(cfg *config.Config) string {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return ":" + port
}
