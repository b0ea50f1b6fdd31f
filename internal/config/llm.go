package config

// LLMConfig configures the LLM polling backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, glm, anthropic, gemini, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// MaxTokens caps completion length per poll call.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature for persona responses. Polling wants some variance
	// across agents, unlike structured-output use cases.
	Temperature float64 `yaml:"temperature"`

	// MinRequestInterval rate-limits outbound calls per client
	// (e.g. "500ms"). Empty disables client-side rate limiting.
	MinRequestInterval string `yaml:"min_request_interval"`
}
