package cache

import "context"

// Layered composes a fast local tier in front of a shared tier: reads check
// local first, then shared, populating local on a shared hit. If the shared
// tier is unavailable, Layered serves local-only and reports an absent
// value rather than ever returning something that might be stale -
// stale-on-error is not an acceptable degradation for pricing data.
type Layered struct {
	local  Cache
	shared Cache
}

// NewLayered composes local in front of shared.
func NewLayered(local, shared Cache) *Layered {
	return &Layered{local: local, shared: shared}
}

// Get checks local first, then shared, populating local on a shared hit. A
// shared-tier error degrades to a local-only miss rather than propagating,
// since an outage on the shared tier must never surface as a lookup failure
// when a usable local entry (or a cheap re-fetch) is the fallback.
func (l *Layered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok, err := l.local.Get(ctx, key); err == nil && ok {
		return val, true, nil
	}

	val, ok, err := l.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, nil
	}

	// Populate local with a short TTL; the shared tier remains authoritative
	// for freshness, local is purely a read-through accelerator.
	_ = l.local.Set(ctx, key, val, 60)
	return val, true, nil
}

// Set writes to the shared tier first; local is only updated if the shared
// write succeeds, so a partial failure never leaves local holding a value
// the shared tier doesn't have.
func (l *Layered) Set(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	if err := l.shared.Set(ctx, key, value, ttlSeconds); err != nil {
		return err
	}
	return l.local.Set(ctx, key, value, ttlSeconds)
}

// Delete removes key from both tiers.
func (l *Layered) Delete(ctx context.Context, key string) error {
	_ = l.local.Delete(ctx, key)
	return l.shared.Delete(ctx, key)
}

// Exists checks local first, then shared.
func (l *Layered) Exists(ctx context.Context, key string) (bool, error) {
	if ok, err := l.local.Exists(ctx, key); err == nil && ok {
		return true, nil
	}
	return l.shared.Exists(ctx, key)
}

// HitRate returns the local tier's hit rate, since it observes every Get.
func (l *Layered) HitRate() float64 {
	return l.local.HitRate()
}
