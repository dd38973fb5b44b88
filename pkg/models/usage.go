package models

// TokenUsage aggregates token accounting across LLM calls.
type TokenUsage struct {
	PromptTokens             int     `json:"prompt_tokens"`
	CompletionTokens         int     `json:"completion_tokens"`
	TotalTokens              int     `json:"total_tokens"`
	CacheCreationInputTokens int     `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int     `json:"cache_read_input_tokens,omitempty"`
	CostUSD                  float64 `json:"cost_usd,omitempty"`
}

// Add accumulates another usage record component-wise.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
	u.CostUSD += other.CostUSD
}

// IsZero reports whether no tokens have been recorded.
func (u TokenUsage) IsZero() bool {
	return u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0
}
