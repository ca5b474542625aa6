package redis

import "strings"

const keyNamespace = "fl"

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey("idempotency", scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

func (c *Client) CacheKey(parts ...string) string {
	return buildKey(append([]string{"cache"}, parts...)...)
}

func (c *Client) LockKey(name string) string {
	return buildKey("lock", name)
}

// buildKey joins non-empty parts under the namespace with ":".
func buildKey(parts ...string) string {
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
