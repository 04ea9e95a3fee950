package instance

import (
	"fmt"
	"os"

	"github.com/acaifrutal/storefront-backend/pkg/env"
)

// GetID returns the worker instance identifier used as the cron lock holder.
// It falls back to hostname:pid so two workers on one host never share an id.
func GetID() string {
	if id := env.Get("ACAI_WORKER_ID", ""); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
