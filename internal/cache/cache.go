// Package cache provides the layered pricing/metadata cache: an in-process
// LRU in front of a shared Redis tier. Stale pricing is a silent failure, so
// every implementation here fails closed (an absent value) rather than ever
// returning data past its TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Cache is the interface every tier (and the layered composite) implements.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int64) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// HitRate returns the fraction of Get calls that returned a value,
	// since the cache was created or last reset.
	HitRate() float64
}

// Key assembles a deterministic cache key from a pricing/metadata lookup's
// dimensions. Attribute pairs are sorted before hashing so the same
// logical request always produces the same key regardless of map
// iteration order.
func Key(domain, account, region, resourceType, selector string, attrs map[string]string) string {
	parts := []string{domain, account, region, resourceType, selector}
	if len(attrs) == 0 {
		return strings.Join(parts, "/")
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, attrs[k])
	}
	parts = append(parts, hex.EncodeToString(h.Sum(nil))[:16])
	return strings.Join(parts, "/")
}
