package cache

import "strings"

// Namespace prefixes every Redis key written by the service.
const Namespace = "nftcheckout"

// KeyPriceSnapshot returns the key holding the latest snapshot of a price provider.
func KeyPriceSnapshot(provider string) string {
	return join("prices", provider)
}

// KeyPriceRefreshLock returns the lock key serialising snapshot refreshes of a provider.
func KeyPriceRefreshLock(provider string) string {
	return join("prices", provider, "refresh")
}

// KeyRateLimit returns the key prefix for rate-limit windows.
func KeyRateLimit() string {
	return join("ratelimit") + ":"
}

func join(parts ...string) string {
	cleaned := make([]string, 0, len(parts)+1)
	cleaned = append(cleaned, Namespace)
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			p = "default"
		}
		cleaned = append(cleaned, p)
	}
	return strings.Join(cleaned, ":")
}
