package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"cloudcost/core/types"
	"cloudcost/internal/cache"
)

type stubSource struct {
	provider types.Provider
	rates    []types.Rate
	fetches  int
}

func (s *stubSource) Provider() types.Provider { return s.provider }

func (s *stubSource) FetchRates(ctx context.Context, keys []types.RateKey) ([]types.Rate, error) {
	return s.rates, nil
}

func (s *stubSource) FetchAll(ctx context.Context, region string) ([]types.Rate, error) {
	s.fetches++
	return s.rates, nil
}

func (s *stubSource) SupportedRegions() []string { return []string{"us-east-1"} }

func rate(productFamily string, attrs map[string]string, unit types.Unit, rawUnit string) types.Rate {
	return types.Rate{
		Key: types.RateKey{
			Provider:      types.ProviderAWS,
			Service:       "AmazonEC2",
			ProductFamily: productFamily,
			Region:        "us-east-1",
			Attributes:    attrs,
		},
		Price:   decimal.NewFromFloat(0.0104),
		Unit:    unit,
		RawUnit: rawUnit,
	}
}

func TestResolveSinglePerfectMatchIsHighConfidence(t *testing.T) {
	source := &stubSource{provider: types.ProviderAWS, rates: []types.Rate{
		rate("Compute Instance", map[string]string{"instanceType": "t3.micro"}, types.UnitHour, "Hrs"),
		rate("Compute Instance", map[string]string{"instanceType": "t3.small"}, types.UnitHour, "Hrs"),
	}}
	resolver := NewCatalogResolver(source, cache.NewLRU(10))

	keys := []types.RateKey{{
		Provider: types.ProviderAWS, Service: "AmazonEC2", ProductFamily: "compute instance",
		Region: "us-east-1", Attributes: map[string]string{"instanceType": "t3.micro"},
	}}

	result, err := resolver.Resolve(context.Background(), keys, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := result.GetRate(keys[0])
	if !ok {
		t.Fatal("expected a resolved rate")
	}
	if got.MatchConfidence != types.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence, got %s", got.MatchConfidence)
	}
	if len(result.Missing) != 0 {
		t.Fatalf("expected no missing keys, got %v", result.Missing)
	}
}

func TestResolveCachesCatalogAcrossCalls(t *testing.T) {
	source := &stubSource{provider: types.ProviderAWS, rates: []types.Rate{
		rate("Compute Instance", map[string]string{"instanceType": "t3.micro"}, types.UnitHour, "Hrs"),
	}}
	resolver := NewCatalogResolver(source, cache.NewLRU(10))
	key := types.RateKey{Provider: types.ProviderAWS, Service: "AmazonEC2", ProductFamily: "Compute Instance", Region: "us-east-1"}

	if _, err := resolver.Resolve(context.Background(), []types.RateKey{key}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), []types.RateKey{key}, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if source.fetches != 1 {
		t.Fatalf("expected exactly one catalog fetch across two resolves, got %d", source.fetches)
	}
}

func TestResolveNoAttributeOverlapFallsBackToLowConfidence(t *testing.T) {
	source := &stubSource{provider: types.ProviderAWS, rates: []types.Rate{
		rate("Compute Instance", map[string]string{"instanceType": "m5.large"}, types.UnitHour, "Hrs"),
	}}
	resolver := NewCatalogResolver(source, cache.NewLRU(10))

	key := types.RateKey{
		Provider: types.ProviderAWS, Service: "AmazonEC2", ProductFamily: "Compute Instance",
		Region: "us-east-1", Attributes: map[string]string{"instanceType": "t3.micro"},
	}
	result, err := resolver.Resolve(context.Background(), []types.RateKey{key}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := result.GetRate(key)
	if !ok {
		t.Fatal("expected a type-only fallback rate")
	}
	if got.MatchConfidence != types.ConfidenceLow {
		t.Fatalf("expected LOW confidence for a type-only fallback, got %s", got.MatchConfidence)
	}
}

func TestResolveUnknownRegionIsMissing(t *testing.T) {
	source := &stubSource{provider: types.ProviderAWS}
	resolver := NewCatalogResolver(source, cache.NewLRU(10))

	key := types.RateKey{Provider: types.ProviderAWS, Service: "AmazonEC2", Region: ""}
	result, err := resolver.Resolve(context.Background(), []types.RateKey{key}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Missing) != 1 {
		t.Fatalf("expected the empty-region key to be reported missing, got %v", result.Missing)
	}
}
