package cachecost

import (
	"github.com/abhisek/examforge/internal/llm"
)

const (
	// DefaultMinCacheTokens is the smallest segment worth caching.
	DefaultMinCacheTokens = 1024

	// DefaultCacheWriteMultiplier is the surcharge on tokens written to the cache.
	DefaultCacheWriteMultiplier = 1.25

	// DefaultCacheReadMultiplier is the discount on tokens read from the cache.
	DefaultCacheReadMultiplier = 0.1

	charsPerToken = 4
)

// fallbackCost is used for models missing from the pricing table.
var fallbackCost = llm.ModelCost{InputPerMTok: 3, OutputPerMTok: 15}

// Pricing is the USD cost model of one provider model.
type Pricing struct {
	InputPerMTok         float64
	OutputPerMTok        float64
	CacheWriteMultiplier float64
	CacheReadMultiplier  float64
}

// LookupPricing returns the pricing for model with default cache multipliers.
func LookupPricing(model string) Pricing {
	c := fallbackCost
	if known := llm.LookupCost(model); known != nil {
		c = *known
	}
	return Pricing{
		InputPerMTok:         c.InputPerMTok,
		OutputPerMTok:        c.OutputPerMTok,
		CacheWriteMultiplier: DefaultCacheWriteMultiplier,
		CacheReadMultiplier:  DefaultCacheReadMultiplier,
	}
}

func (p Pricing) inputCost(tokens float64) float64 {
	return tokens * p.InputPerMTok / 1_000_000
}

// Model decides cache eligibility and estimates savings.
type Model struct {
	MinTokens int
	Pricing   Pricing
}

// NewModel returns a Model using the default threshold.
func NewModel(p Pricing) Model {
	return Model{MinTokens: DefaultMinCacheTokens, Pricing: p}
}

// EstimateTokens approximates the token count of text at four characters
// per token, rounding up.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Eligible reports whether text is large enough to be worth caching.
func (m Model) Eligible(text string) bool {
	return m.EligibleTokens(EstimateTokens(text))
}

// EligibleTokens reports whether a segment of n tokens is worth caching.
func (m Model) EligibleTokens(n int) bool {
	threshold := m.MinTokens
	if threshold <= 0 {
		threshold = DefaultMinCacheTokens
	}
	return n >= threshold
}

// Savings compares the cost of a batch window with and without caching.
type Savings struct {
	FullCost       float64 `json:"fullCost"`
	CachedCost     float64 `json:"cachedCost"`
	Savings        float64 `json:"savings"`
	SavingsPercent float64 `json:"savingsPercent"`
}

// EstimateBatchSavings estimates input cost for calls requests sharing a
// stable segment. The first call writes the cache and the rest read it.
// The result is advisory and never gates a request.
func (m Model) EstimateBatchSavings(calls, stableTokens, variableTokens int) Savings {
	if calls <= 0 {
		return Savings{}
	}
	p := m.Pricing
	n := float64(calls)
	stable := float64(stableTokens)
	variable := float64(variableTokens)

	full := p.inputCost(n * (stable + variable))
	cached := full
	if m.EligibleTokens(stableTokens) {
		first := stable*p.CacheWriteMultiplier + variable
		rest := (n - 1) * (stable*p.CacheReadMultiplier + variable)
		cached = p.inputCost(first + rest)
	}

	s := Savings{FullCost: full, CachedCost: cached, Savings: full - cached}
	if full > 0 {
		s.SavingsPercent = s.Savings / full * 100
	}
	return s
}
