// Package config holds all Jefferson configuration. Settings load from a
// YAML file with environment variable overrides on top; secrets (API keys,
// database DSNs) normally come from the environment or a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all Jefferson configuration.
type Config struct {
	// LLM backend configuration
	LLM LLMConfig `yaml:"llm"`

	// Simulation driver settings
	Simulation SimulationConfig `yaml:"simulation"`

	// Local/remote result store
	Database DatabaseConfig `yaml:"database"`

	// News scraping and context building
	News NewsConfig `yaml:"news"`

	// Path to precinct config YAML (census demographics per precinct)
	PrecinctConfigPath string `yaml:"precinct_config_path"`
}

// SimulationConfig configures the simulation driver.
type SimulationConfig struct {
	// MaxConcurrent limits simultaneous in-flight LLM calls.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxRetries bounds retry attempts for transient LLM failures.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base backoff between retries (doubles per attempt).
	RetryBackoff string `yaml:"retry_backoff"`

	// Iterations is the default number of polling iterations per run.
	Iterations int `yaml:"iterations"`
}

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// NewsConfig configures news scraping and context windows.
type NewsConfig struct {
	// WindowHours bounds article recency for prompt context.
	WindowHours int `yaml:"window_hours"`

	// ArticlesPerSource caps articles scraped from each outlet.
	ArticlesPerSource int `yaml:"articles_per_source"`

	// RequestTimeout for each outbound scrape request.
	RequestTimeout string `yaml:"request_timeout"`

	// Sources maps county name to news outlets.
	Sources map[string][]NewsSource `yaml:"sources"`

	// Subreddits maps county name to local subreddits.
	Subreddits map[string][]string `yaml:"subreddits"`
}

// NewsSource is one scrapeable news outlet.
type NewsSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "",
			Timeout:     "60s",
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Simulation: SimulationConfig{
			MaxConcurrent: 50,
			MaxRetries:    3,
			RetryBackoff:  "1s",
			Iterations:    1,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   ".jefferson/jefferson.db",
		},
		News: NewsConfig{
			WindowHours:       48,
			ArticlesPerSource: 5,
			RequestTimeout:    "10s",
			Sources: map[string][]NewsSource{
				"San Francisco": {
					{Name: "SF Chronicle", URL: "https://www.sfchronicle.com"},
					{Name: "SF Examiner", URL: "https://www.sfexaminer.com"},
					{Name: "Mission Local", URL: "https://missionlocal.org"},
					{Name: "SF Gate", URL: "https://www.sfgate.com"},
				},
				"Miami-Dade": {
					{Name: "Miami Herald", URL: "https://www.miamiherald.com"},
					{Name: "Miami New Times", URL: "https://www.miaminewtimes.com"},
					{Name: "Miami Today", URL: "https://www.miamitodaynews.com"},
				},
			},
			Subreddits: map[string][]string{
				"San Francisco": {"sanfrancisco", "AskSF"},
				"Miami-Dade":    {"Miami"},
			},
		},
		PrecinctConfigPath: "precincts.yaml",
	}
}

// Load loads configuration from a YAML file, applying .env and environment
// overrides. A missing config file yields defaults, not an error.
func Load(path string) (*Config, error) {
	// Best-effort .env load; absence is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM API key from environment (check in priority order)
	if key := os.Getenv("GLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "glm"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if dsn := os.Getenv("JEFFERSON_DATABASE_URL"); dsn != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = dsn
	}
	if path := os.Getenv("JEFFERSON_DB"); path != "" {
		c.Database.Driver = "sqlite"
		c.Database.Path = path
	}
	if v := os.Getenv("JEFFERSON_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Simulation.MaxConcurrent = n
		}
	}
}

// GetLLMTimeout returns the LLM call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetRetryBackoff returns the base retry backoff as a duration.
func (c *Config) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.Simulation.RetryBackoff)
	if err != nil {
		return time.Second
	}
	return d
}

// GetNewsRequestTimeout returns the per-request scrape timeout.
func (c *Config) GetNewsRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.News.RequestTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
