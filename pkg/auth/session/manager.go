package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/angelmondragon/marketplace-backend/pkg/redis"
)

const minRevocationTTL = time.Second

type denylistStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type denylistKeyer interface {
	RevokedTokenKey(tokenID string) string
}

// RevocationChecker exposes the read-only surface needed by middleware.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Manager tracks signed-out access tokens. The hosted auth provider owns token
// issuance; the denylist only has to outlive the token itself.
type Manager struct {
	store denylistStore
	keyer denylistKeyer
	now   func() time.Time
}

// NewManager constructs a revocation manager backed by Redis.
func NewManager(client *redisclient.Client) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Manager{store: client, keyer: client, now: time.Now}, nil
}

// Revoke denylists tokenID until expiresAt.
func (m *Manager) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if strings.TrimSpace(tokenID) == "" {
		return fmt.Errorf("token id is required")
	}
	ttl := expiresAt.Sub(m.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	return m.store.Set(ctx, m.keyer.RevokedTokenKey(tokenID), "1", ttl)
}

// IsRevoked reports whether tokenID was signed out.
func (m *Manager) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if strings.TrimSpace(tokenID) == "" {
		return false, fmt.Errorf("token id is required")
	}
	return m.store.Exists(ctx, m.keyer.RevokedTokenKey(tokenID))
}
