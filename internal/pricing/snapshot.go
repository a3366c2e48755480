// Package pricing provides immutable pricing snapshots with content hashing.
package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"cloudcost/core/determinism"
	"cloudcost/core/types"
)

// Sealed wraps a types.PricingSnapshot together with the rates it covers.
// The snapshot and its rates are immutable once Build returns them; nothing
// in this package mutates a Sealed after construction.
type Sealed struct {
	Snapshot types.PricingSnapshot
	Rates    []types.Rate

	rateIndex map[string]*types.Rate
	Coverage  SnapshotCoverage
}

// SnapshotCoverage tracks what's included and what's missing from a catalog
// fetch, so a partial pricing run is visible instead of silently incomplete.
type SnapshotCoverage struct {
	IncludedServices []string
	ResourceTypes    int
	TotalRates       int
	MissingRates     []MissingRate
}

// MissingRate documents an EXPLICIT missing rate.
type MissingRate struct {
	Service  string
	Region   string
	Reason   MissingReason
	Message  string
}

// MissingReason explains why a rate is missing.
type MissingReason int

const (
	ReasonNotInAPI           MissingReason = iota // API doesn't provide this
	ReasonRegionNotSupported                       // Region not available
	ReasonServiceNotImpl                           // We haven't implemented this
	ReasonRateLimitHit                             // API rate limit
	ReasonParseError                               // Couldn't parse response
	ReasonNotApplicable                            // Resource is free
)

// String returns the reason name.
func (r MissingReason) String() string {
	switch r {
	case ReasonNotInAPI:
		return "not_in_api"
	case ReasonRegionNotSupported:
		return "region_not_supported"
	case ReasonServiceNotImpl:
		return "not_implemented"
	case ReasonRateLimitHit:
		return "rate_limit"
	case ReasonParseError:
		return "parse_error"
	case ReasonNotApplicable:
		return "not_applicable"
	default:
		return "unknown"
	}
}

// SnapshotBuilder assembles a content-addressed pricing snapshot from rates
// gathered across cache, database, and live catalog sources.
type SnapshotBuilder struct {
	provider types.Provider
	region   string
	source   string
	rates    []types.Rate
	missing  []MissingRate
	services map[string]bool
}

// NewSnapshotBuilder creates a new builder.
func NewSnapshotBuilder(provider types.Provider, region, source string) *SnapshotBuilder {
	return &SnapshotBuilder{
		provider: provider,
		region:   region,
		source:   source,
		services: make(map[string]bool),
	}
}

// AddRate adds a rate to the snapshot.
func (b *SnapshotBuilder) AddRate(rate types.Rate) *SnapshotBuilder {
	b.rates = append(b.rates, rate)
	b.services[rate.Key.Service] = true
	return b
}

// AddMissing documents a missing rate.
func (b *SnapshotBuilder) AddMissing(service, region string, reason MissingReason, message string) *SnapshotBuilder {
	b.missing = append(b.missing, MissingRate{
		Service: service,
		Region:  region,
		Reason:  reason,
		Message: message,
	})
	return b
}

// Build seals the accumulated rates into an immutable, content-hashed
// snapshot. Rates are sorted by key string first so the hash is stable
// regardless of fetch order.
func (b *SnapshotBuilder) Build() *Sealed {
	sort.Slice(b.rates, func(i, j int) bool {
		return b.rates[i].Key.String() < b.rates[j].Key.String()
	})

	hash := hashRates(b.provider, b.region, b.rates)
	snapshotID := hex.EncodeToString(hash[:8])

	for i := range b.rates {
		b.rates[i].SnapshotID = snapshotID
	}

	index := make(map[string]*types.Rate, len(b.rates))
	for i := range b.rates {
		index[b.rates[i].Key.String()] = &b.rates[i]
	}

	services := make([]string, 0, len(b.services))
	for svc := range b.services {
		services = append(services, svc)
	}
	sort.Strings(services)

	return &Sealed{
		Snapshot: types.PricingSnapshot{
			ID:        snapshotID,
			Provider:  b.provider,
			Region:    b.region,
			Timestamp: time.Now().UTC(),
			Hash:      hex.EncodeToString(hash[:]),
			Source:    b.source,
		},
		Rates:     b.rates,
		rateIndex: index,
		Coverage: SnapshotCoverage{
			IncludedServices: services,
			ResourceTypes:    len(b.services),
			TotalRates:       len(b.rates),
			MissingRates:     b.missing,
		},
	}
}

func hashRates(provider types.Provider, region string, rates []types.Rate) determinism.ContentHash {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte(region))
	for _, rate := range rates {
		data, _ := json.Marshal(map[string]string{
			"key":      rate.Key.String(),
			"price":    rate.Price.String(),
			"unit":     rate.Unit.String(),
			"currency": string(rate.Currency),
		})
		h.Write(data)
	}
	var out determinism.ContentHash
	copy(out[:], h.Sum(nil))
	return out
}

// GetRate looks up a rate by key string within the sealed snapshot.
func (s *Sealed) GetRate(key types.RateKey) (*types.Rate, bool) {
	rate, ok := s.rateIndex[key.String()]
	return rate, ok
}

// Verify recomputes the content hash and checks it matches the sealed
// snapshot's recorded hash, detecting any tampering after the fact.
func (s *Sealed) Verify() bool {
	recomputed := hashRates(s.Snapshot.Provider, s.Snapshot.Region, s.Rates)
	return hex.EncodeToString(recomputed[:]) == s.Snapshot.Hash
}
