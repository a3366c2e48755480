package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
)

// catalogFolder normalizes attribute text for comparison: case-folded and
// trimmed, so "General Purpose" and "general purpose " are the same match.
var catalogFolder = cases.Fold()

// CatalogResolver implements Resolver by fetching a provider's full catalog
// document through a cache (24h TTL per resource type this module names),
// then scoring candidate products against the requested attributes:
// perfect (case-folded, trimmed equality on every requested attribute),
// partial (some but not all match), or none.
type CatalogResolver struct {
	source Source
	cache  cache.Cache

	catalogTTLSeconds int64
}

// NewCatalogResolver creates a resolver that fetches from source and caches
// the resulting catalog documents in c.
func NewCatalogResolver(source Source, c cache.Cache) *CatalogResolver {
	return &CatalogResolver{source: source, cache: c, catalogTTLSeconds: 24 * 60 * 60}
}

// Resolve implements Resolver: for every key, fetch (or reuse the cached)
// regional catalog, filter to the requested productFamily, score every
// candidate's attributes, and keep the best match.
func (r *CatalogResolver) Resolve(ctx context.Context, keys []types.RateKey, snapshot *types.PricingSnapshot) (*types.PricingResult, error) {
	result := &types.PricingResult{Rates: make(map[string]types.Rate, len(keys))}
	if snapshot != nil {
		result.Snapshot = *snapshot
	}

	byRegion := make(map[string][]types.RateKey)
	for _, k := range keys {
		region := normalizeRegion(k.Region)
		if region == "" {
			result.Missing = append(result.Missing, k)
			continue
		}
		byRegion[region] = append(byRegion[region], k)
	}

	for region, regionKeys := range byRegion {
		catalog, fromCache, err := r.catalogForRegion(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("pricing: fetch catalog for region %s: %w", region, err)
		}

		for _, key := range regionKeys {
			rate, ok := matchCatalog(catalog, key)
			if !ok {
				result.Missing = append(result.Missing, key)
				continue
			}
			result.Rates[key.String()] = rate
			if fromCache {
				result.FromCache++
			} else {
				result.FromAPI++
			}
		}
	}

	return result, nil
}

// GetSnapshot returns a content-addressed snapshot identifier for a
// provider/region's currently cached catalog, without fetching.
func (r *CatalogResolver) GetSnapshot(ctx context.Context, provider types.Provider, region string) (*types.PricingSnapshot, error) {
	region = normalizeRegion(region)
	key := cache.Key("pricing", "", region, string(provider), "catalog", nil)
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, fmt.Errorf("pricing: no cached snapshot for %s/%s", provider, region)
	}
	return &types.PricingSnapshot{
		ID:       key,
		Provider: provider,
		Region:   region,
		Source:   "cache",
		Hash:     fmt.Sprintf("%x", len(data)),
	}, nil
}

// RefreshSnapshot forces a catalog re-fetch for a provider/region, bypassing
// whatever is cached.
func (r *CatalogResolver) RefreshSnapshot(ctx context.Context, provider types.Provider, region string) (*types.PricingSnapshot, error) {
	region = normalizeRegion(region)
	rates, err := r.source.FetchAll(ctx, region)
	if err != nil {
		return nil, err
	}
	if err := r.storeCatalog(ctx, region, rates); err != nil {
		return nil, err
	}
	return &types.PricingSnapshot{
		Provider:  provider,
		Region:    region,
		Timestamp: time.Now(),
		Source:    "refresh",
	}, nil
}

func (r *CatalogResolver) catalogForRegion(ctx context.Context, region string) ([]types.Rate, bool, error) {
	key := cache.Key("pricing", "", region, string(r.source.Provider()), "catalog", nil)

	if data, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		var rates []types.Rate
		if err := json.Unmarshal(data, &rates); err == nil {
			return rates, true, nil
		}
	}

	rates, err := r.source.FetchAll(ctx, region)
	if err != nil {
		return nil, false, err
	}
	if err := r.storeCatalog(ctx, region, rates); err != nil {
		return nil, false, err
	}
	return rates, false, nil
}

func (r *CatalogResolver) storeCatalog(ctx context.Context, region string, rates []types.Rate) error {
	key := cache.Key("pricing", "", region, string(r.source.Provider()), "catalog", nil)
	data, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return r.cache.Set(ctx, key, data, r.catalogTTLSeconds)
}

// matchCatalog selects the best rate in catalog for key, applying the
// region/productFamily filter then attribute scoring and confidence rule.
func matchCatalog(catalog []types.Rate, key types.RateKey) (types.Rate, bool) {
	region := normalizeRegion(key.Region)

	var candidates []types.Rate
	for _, rate := range catalog {
		if rate.Key.Service != key.Service {
			continue
		}
		if normalizeRegion(rate.Key.Region) != region {
			continue
		}
		if key.ProductFamily != "" && !foldEqual(rate.Key.ProductFamily, key.ProductFamily) {
			continue
		}
		candidates = append(candidates, rate)
	}
	if len(candidates) == 0 {
		return types.Rate{}, false
	}

	type scored struct {
		rate  types.Rate
		score float64
	}
	var perfect, partial []scored
	for _, c := range candidates {
		s := scoreAttributes(c.Key.Attributes, key.Attributes)
		switch {
		case s >= 1.0:
			perfect = append(perfect, scored{c, s})
		case s > 0.5:
			partial = append(partial, scored{c, s})
		}
	}

	sortScored := func(list []scored) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].score != list[j].score {
				return list[i].score > list[j].score
			}
			return list[i].rate.Key.String() < list[j].rate.Key.String()
		})
	}

	switch {
	case len(perfect) == 1:
		rate := perfect[0].rate
		rate.MatchConfidence = confidenceForMatch(rate, true, false)
		return rate, true
	case len(perfect) > 1:
		sortScored(perfect)
		rate := perfect[0].rate
		rate.MatchConfidence = types.ConfidenceMedium
		return rate, true
	case len(partial) > 0:
		sortScored(partial)
		rate := partial[0].rate
		rate.MatchConfidence = types.ConfidenceMedium
		return rate, true
	default:
		// No attribute overlap at all: fall back to a type-only match (the
		// first candidate for this service/region/productFamily) at LOW
		// confidence, per the type-only fallback the confidence rule names.
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key.String() < candidates[j].Key.String() })
		rate := candidates[0]
		rate.MatchConfidence = types.ConfidenceLow
		return rate, true
	}
}

// confidenceForMatch applies the §4.6 rule: HIGH requires exactly one
// perfect match AND a non-empty usage type (RawUnit, the catalog's usage
// type text) AND a non-empty unit.
func confidenceForMatch(rate types.Rate, singlePerfect, hasPartials bool) types.Confidence {
	if singlePerfect && !hasPartials && rate.RawUnit != "" && rate.Unit != types.UnitUnknown {
		return types.ConfidenceHigh
	}
	return types.ConfidenceMedium
}

// scoreAttributes returns 1.0 when every requested attribute matches the
// candidate's (case-folded, trimmed), a value strictly between 0.5 and 1.0
// when some but not all match, or 0 when none do. An empty request with a
// non-empty candidate attribute set scores as a full match: the caller
// didn't ask to disambiguate further.
func scoreAttributes(candidate, requested map[string]string) float64 {
	if len(requested) == 0 {
		return 1.0
	}
	matched := 0
	for k, v := range requested {
		if foldEqual(candidate[k], v) {
			matched++
		}
	}
	if matched == len(requested) {
		return 1.0
	}
	if matched == 0 {
		return 0
	}
	// Strictly above 0.5 for any partial overlap, strictly below 1.0 since
	// it isn't every attribute; scaled by how much of the request matched.
	return 0.5 + 0.5*float64(matched)/float64(len(requested))
}

func foldEqual(a, b string) bool {
	return catalogFolder.String(strings.TrimSpace(a)) == catalogFolder.String(strings.TrimSpace(b))
}

// normalizeRegion rejects empty/unrecognized region strings; a real catalog
// lookup can't proceed without one. Trimming and lower-casing is the extent
// of normalization: region codes (e.g. "us-east-1") are already canonical
// in both the request and the catalog.
func normalizeRegion(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return ""
	}
	return region
}

