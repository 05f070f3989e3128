package redis

import "strings"

const keyNamespace = "mkt"

// IdempotencyKey namespaces a dedup key by scope, e.g. mkt:idempotency:stripe_webhook:evt_1.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey("idempotency", scope, id)
}

// RevokedTokenKey is the denylist entry for a signed-out token id.
func (c *Client) RevokedTokenKey(tokenID string) string {
	return joinKey("revoked", "jti", tokenID)
}

// LockKey names a worker lease for env; an empty env means "local".
func LockKey(env, name string) string {
	if strings.TrimSpace(env) == "" {
		env = "local"
	}
	return joinKey("lock", env, name)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
