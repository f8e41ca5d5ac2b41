// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config resolves pubmed-assistant settings from defaults, the YAML
// config file, the environment and .secrets/ into a types.Config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// EnvPrefix prefixes every automatically bound environment variable
// (e.g. PUBMED_ASSISTANT_LLM_MODEL).
const EnvPrefix = "PUBMED_ASSISTANT"

// Defaults.
const (
	DefaultEntrezBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	DefaultEntrezTool    = "pmc_apa_abstract_fetcher"
	DefaultLLMBaseURL    = "http://localhost:11434/v1"
	DefaultModel         = "gpt-oss:20b"
	DefaultTemperature   = 0.3
	DefaultUserAgent     = "pubmed-assistant/0.1"
	DefaultStorePath     = "data/pubmed-assistant.db"
)

// envAliases binds the documented, unprefixed environment variables.
var envAliases = map[string]string{
	"entrez.email":   "EMAIL",
	"entrez.api_key": "PMC_API_KEY",
}

// SetDefaults registers the default of every key so AutomaticEnv can
// override any of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_live_sessions", 256)

	v.SetDefault("entrez.base_url", DefaultEntrezBaseURL)
	v.SetDefault("entrez.email", "")
	v.SetDefault("entrez.api_key", "")
	v.SetDefault("entrez.tool", DefaultEntrezTool)
	v.SetDefault("entrez.timeout", 30*time.Second)
	v.SetDefault("entrez.user_agent", DefaultUserAgent)
	v.SetDefault("entrez.requests_per_second", 0.0)
	v.SetDefault("entrez.max_retries", 5)
	v.SetDefault("entrez.fetch_concurrency", 3)

	v.SetDefault("llm.base_url", DefaultLLMBaseURL)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", DefaultTemperature)
	v.SetDefault("llm.timeout", 5*time.Minute)

	v.SetDefault("agent.default_max_results", 3)
	v.SetDefault("agent.max_results_limit", 20)

	v.SetDefault("store.path", DefaultStorePath)
	v.SetDefault("store.cache_articles", true)

	v.SetDefault("logging.env", "dev")
	v.SetDefault("logging.level", "")
}

// BindEnv enables PUBMED_ASSISTANT_* overrides and the EMAIL / PMC_API_KEY
// aliases.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envAliases {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and required fields.
func Validate(cfg types.Config) error {
	var errs []error

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Entrez.BaseURL == "" {
		errs = append(errs, errors.New("entrez.base_url is required"))
	}
	if cfg.Entrez.Tool == "" {
		errs = append(errs, errors.New("entrez.tool is required"))
	}
	if cfg.Entrez.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("entrez.requests_per_second %v must not be negative", cfg.Entrez.RequestsPerSecond))
	}
	if cfg.Entrez.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("entrez.fetch_concurrency %d must be at least 1", cfg.Entrez.FetchConcurrency))
	}
	if cfg.LLM.BaseURL == "" {
		errs = append(errs, errors.New("llm.base_url is required"))
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature %v out of range [0,1]", cfg.LLM.Temperature))
	}
	if cfg.Agent.DefaultMaxResults < 1 {
		errs = append(errs, fmt.Errorf("agent.default_max_results %d must be at least 1", cfg.Agent.DefaultMaxResults))
	}
	if cfg.Agent.MaxResultsLimit < cfg.Agent.DefaultMaxResults {
		errs = append(errs, fmt.Errorf("agent.max_results_limit %d is below default_max_results %d",
			cfg.Agent.MaxResultsLimit, cfg.Agent.DefaultMaxResults))
	}
	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	return errors.Join(errs...)
}
