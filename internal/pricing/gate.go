package pricing

import "fmt"

// FrozenProvider is a provider+alias+region+account that has been
// registered with a PricingGate and is safe to price against.
type FrozenProvider struct {
	Provider string
	Alias    string
	Region   string
	Account  string
}

// PricingGate enforces that no rate lookup happens until every provider
// binding for a run has been registered and the set explicitly frozen.
// Registering providers one at a time and then freezing once mirrors how
// the plan interpreter discovers provider aliases while walking the graph,
// but nothing may price off a partially-discovered set.
type PricingGate struct {
	providers map[string]FrozenProvider
	frozen    bool
}

// NewPricingGate creates an unfrozen gate with no registered providers.
func NewPricingGate() *PricingGate {
	return &PricingGate{providers: make(map[string]FrozenProvider)}
}

func providerKey(provider, alias string) string {
	if alias == "" {
		alias = "default"
	}
	return provider + "." + alias
}

// FreezeProvider registers a provider binding. It may be called any number
// of times before Freeze; calling it afterward panics, since the whole
// point of freezing is that the provider set cannot grow underneath a
// pricing run already in progress.
func (g *PricingGate) FreezeProvider(provider, alias, region, account string) {
	if g.frozen {
		panic("INVARIANT VIOLATED: cannot register a provider after the pricing gate is frozen")
	}
	g.providers[providerKey(provider, alias)] = FrozenProvider{
		Provider: provider,
		Alias:    alias,
		Region:   region,
		Account:  account,
	}
}

// Freeze closes the provider set. After Freeze, AssertCanPrice succeeds.
func (g *PricingGate) Freeze() {
	g.frozen = true
}

// AssertCanPrice panics unless the gate has been frozen.
func (g *PricingGate) AssertCanPrice() {
	if !g.frozen {
		panic("INVARIANT VIOLATED: pricing requested before provider set was frozen")
	}
}

// MustGetProvider returns the frozen binding for provider+alias, panicking
// if the gate isn't frozen or the binding was never registered.
func (g *PricingGate) MustGetProvider(provider, alias string) FrozenProvider {
	g.AssertCanPrice()
	p, ok := g.providers[providerKey(provider, alias)]
	if !ok {
		panic(fmt.Sprintf("INVARIANT VIOLATED: provider %s.%s was never registered with the pricing gate", provider, alias))
	}
	return p
}
