package api

import (
	"net/http"
	"testing"

	"github.com/acaifrutal/storefront-backend/pkg/config"
)

func TestNewServerUsesConfiguredPort(t *testing.T) {
	t.Setenv("PORT", "")
	cfg := &config.Config{App: config.AppConfig{Port: "8081"}}

	srv := NewServer(cfg, http.NotFoundHandler())
	if srv.Addr != ":8081" {
		t.Fatalf("expected :8081, got %s", srv.Addr)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Fatalf("expected read header timeout")
	}
}

func TestAddrPrefersPortEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg := &config.Config{App: config.AppConfig{Port: "8081"}}
	if got := Addr(cfg); got != ":9000" {
		t.Fatalf("expected :9000, got %s", got)
	}
}
