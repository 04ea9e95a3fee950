package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/acaifrutal/storefront-backend/pkg/redis"
	redislib "github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session was revoked or has expired.
var ErrSessionNotFound = errors.New("session not found")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Manager tracks live identity sessions so sign-out can revoke a token before it expires.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
}

// Checker exposes the read-only surface needed by middleware.
type Checker interface {
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client}, nil
}

// Start records the session for its token lifetime.
func (m *Manager) Start(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return m.store.Set(ctx, m.keyer.SessionKey(sessionID), userID, ttl)
}

// Owner returns the user bound to the session.
func (m *Manager) Owner(ctx context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrSessionNotFound
	}
	owner, err := m.store.Get(ctx, m.keyer.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return owner, nil
}

// Revoke deletes the session.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.keyer.SessionKey(sessionID))
}

// HasSession reports whether the session is still active.
func (m *Manager) HasSession(ctx context.Context, sessionID string) (bool, error) {
	if _, err := m.Owner(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
