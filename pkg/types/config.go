package types

import "time"

// HTTPConfig holds shared HTTP client settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pubmed-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// EntrezConfig holds settings for the NCBI E-utilities client.
type EntrezConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the E-utilities root (default https://eutils.ncbi.nlm.nih.gov/entrez/eutils/).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Email identifies the caller to NCBI. Bound to the EMAIL env var.
	Email string `json:"email" yaml:"email" mapstructure:"email"`

	// APIKey raises the NCBI rate limit from 3 to 10 requests per second.
	// Bound to the PMC_API_KEY env var.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Tool is the application name reported to NCBI.
	Tool string `json:"tool" yaml:"tool" mapstructure:"tool"`

	// RequestsPerSecond overrides the NCBI policy limit. Zero derives it
	// from APIKey.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries is the number of retries on 429/5xx responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// FetchConcurrency bounds parallel efetch calls (default 3).
	FetchConcurrency int `json:"fetch_concurrency" yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
}

// LLMConfig holds settings for the local model runtime.
type LLMConfig struct {
	// BaseURL is the OpenAI-compatible endpoint of the runtime
	// (default http://localhost:11434/v1, Ollama).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Model is the model tag (default "gpt-oss:20b").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is sent as a bearer token. Ollama ignores it.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Temperature is the sampling temperature in [0, 1] (default 0.3). Zero
	// is sent explicitly, not left to the server default.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// Timeout bounds a single model request, streaming included.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// AgentConfig holds settings for the research agent.
type AgentConfig struct {
	// DefaultMaxResults is used when the model omits max_results (default 3).
	DefaultMaxResults int `json:"default_max_results" yaml:"default_max_results" mapstructure:"default_max_results"`

	// MaxResultsLimit caps max_results requested by the model (default 20).
	MaxResultsLimit int `json:"max_results_limit" yaml:"max_results_limit" mapstructure:"max_results_limit"`
}

// StoreConfig holds settings for the SQLite store.
type StoreConfig struct {
	// Path is the database file (default data/pubmed-assistant.db).
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// CacheArticles writes every fetched article to the article cache.
	CacheArticles bool `json:"cache_articles" yaml:"cache_articles" mapstructure:"cache_articles"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout of zero keeps streamed answers open until the model finishes.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// MaxLiveSessions bounds sessions kept in memory (default 256).
	MaxLiveSessions int `json:"max_live_sessions" yaml:"max_live_sessions" mapstructure:"max_live_sessions"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Env selects the encoder: prod (JSON) or dev (console).
	Env string `json:"env" yaml:"env" mapstructure:"env"`

	// Level overrides the env default: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// Config groups the configuration of every component.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" mapstructure:"server"`
	Entrez  EntrezConfig  `json:"entrez" yaml:"entrez" mapstructure:"entrez"`
	LLM     LLMConfig     `json:"llm" yaml:"llm" mapstructure:"llm"`
	Agent   AgentConfig   `json:"agent" yaml:"agent" mapstructure:"agent"`
	Store   StoreConfig   `json:"store" yaml:"store" mapstructure:"store"`
	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}
