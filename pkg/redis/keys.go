package redis

import "strings"

// Every key lives under "sr:" so the stockroom can share a redis with other
// services.
const keyNamespace = "sr"

func (c *Client) IdempotencyKey(scope, id string) string {
	return namespaced("idempotency", scope, id)
}

func (c *Client) PricingTiersKey(productID string) string {
	return namespaced("pricing", "tiers", productID)
}

// PricingGenerationKey counts pricing writes for one product.
func (c *Client) PricingGenerationKey(productID string) string {
	return namespaced("pricing", "gen", productID)
}

func (c *Client) LockKey(name string) string {
	return namespaced("lock", name)
}

func namespaced(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
