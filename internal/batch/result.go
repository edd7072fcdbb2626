package batch

// UsageMetrics is the token accounting of a single provider call.
type UsageMetrics struct {
	InputTokens         int `json:"inputTokens"`
	OutputTokens        int `json:"outputTokens"`
	CacheReadTokens     int `json:"cacheReadTokens"`
	CacheCreationTokens int `json:"cacheCreationTokens"`
}

// CacheHit reports whether the call reused cached prompt content.
// CacheReadTokens > 0 is the sole criterion.
func (u UsageMetrics) CacheHit() bool {
	return u.CacheReadTokens > 0
}

// Add returns the element-wise sum of u and o.
func (u UsageMetrics) Add(o UsageMetrics) UsageMetrics {
	return UsageMetrics{
		InputTokens:         u.InputTokens + o.InputTokens,
		OutputTokens:        u.OutputTokens + o.OutputTokens,
		CacheReadTokens:     u.CacheReadTokens + o.CacheReadTokens,
		CacheCreationTokens: u.CacheCreationTokens + o.CacheCreationTokens,
	}
}

// Meta describes how a batch was produced.
type Meta struct {
	CacheHit   bool     `json:"cacheHit"`
	Provider   Provider `json:"provider"`
	DurationMs int64    `json:"durationMs"`
}

// BatchResult is the output of one successful generation attempt. It is
// never merged across attempts.
type BatchResult struct {
	Questions      []Question        `json:"questions"`
	UpdatedContext GenerationContext `json:"updatedContext"`
	Usage          UsageMetrics      `json:"usage"`
	Meta           Meta              `json:"meta"`
}

// IDs returns the question IDs of the result in order.
func (r *BatchResult) IDs() []string {
	ids := make([]string, len(r.Questions))
	for i, q := range r.Questions {
		ids[i] = q.ID
	}
	return ids
}
