package llm

// Cache multipliers applied to the base input price. Writes carry a
// surcharge, reads a discount.
const (
	cacheWriteMultiplier = 1.25
	cacheReadMultiplier  = 0.1
)

// ModelCost holds per-million-token pricing for a model in USD.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// UsageCost prices a call including prompt cache reads and writes at the
// default multipliers. InputTokens counts only uncached input, as reported
// by the providers.
func (c ModelCost) UsageCost(u Usage) float64 {
	return c.UsageCostWith(u, cacheWriteMultiplier, cacheReadMultiplier)
}

// UsageCostWith is UsageCost with explicit cache write and read multipliers.
func (c ModelCost) UsageCostWith(u Usage, writeMultiplier, readMultiplier float64) float64 {
	cached := float64(u.CacheReadTokens)*readMultiplier +
		float64(u.CacheCreationTokens)*writeMultiplier
	return c.Cost(u.InputTokens, u.OutputTokens) + cached*c.InputPerMTok/1_000_000
}

// LookupCost returns the pricing for a model ID, or nil if unknown.
func LookupCost(modelID string) *ModelCost {
	if c, ok := modelCosts[modelID]; ok {
		return &c
	}
	return nil
}

// modelCosts is the pricing table for models served by the configured
// providers. Last updated: 2026-09-30.
var modelCosts = map[string]ModelCost{
	// Anthropic
	"claude-3-5-haiku-20241022":  {0.8, 4},
	"claude-3-7-sonnet-20250219": {3, 15},
	"claude-haiku-4-5":           {1, 5},
	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-opus-4-1-20250805":   {15, 75},
	"claude-opus-4-5":            {5, 25},
	"claude-opus-4-5-20251101":   {5, 25},
	"claude-sonnet-4-20250514":   {3, 15},
	"claude-sonnet-4-5":          {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},

	// OpenAI
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},

	// Google (Gemini)
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
	"gemini-flash-latest":   {0.3, 2.5},

	// OpenRouter free-tier fallbacks are billed at zero.
	"google/gemini-2.0-flash-exp:free":         {0, 0},
	"meta-llama/llama-3.3-70b-instruct:free":   {0, 0},
	"deepseek/deepseek-chat-v3-0324:free":      {0, 0},
	"mistralai/mistral-small-3.2-24b-instruct": {0.05, 0.1},
}
