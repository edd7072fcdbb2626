// Package config assembles the runtime configuration from flags,
// EXAMFORGE_* environment variables and an optional examforge.yaml file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/examforge/internal/batch"
	"github.com/abhisek/examforge/internal/cachecost"
	"github.com/abhisek/examforge/internal/generation"
	"github.com/abhisek/examforge/internal/llm"
)

// EnvPrefix prefixes every environment variable read by viper.
const EnvPrefix = "EXAMFORGE"

// Config is the static configuration of one process.
type Config struct {
	Primary  llm.Config
	Fallback FallbackConfig

	FullBatchSize     int
	PracticeBatchSize int
	MaxBatches        int
	PrefetchThreshold float64

	Retry generation.RetryPolicy

	CacheMinTokens       int
	CacheWriteMultiplier float64
	CacheReadMultiplier  float64

	Addr      string
	DBPath    string
	Language  string
	LogLevel  string
	LogFormat string
}

// FallbackConfig describes the secondary model rotation.
type FallbackConfig struct {
	// LLM carries the backend and its credentials. Models are taken from
	// the Models list, not from the backend's model field.
	LLM         llm.Config
	Models      []string
	ResetWindow time.Duration
	MaxRetries  int
}

// Enabled reports whether a fallback rotation is configured.
func (f FallbackConfig) Enabled() bool {
	return f.LLM.Provider != "" && f.LLM.Provider != "none" && len(f.Models) > 0
}

// defaultFallbackModels are rotated in order per backend.
var defaultFallbackModels = map[string][]string{
	"gemini":     {"gemini-flash", "gemini-flash-lite", "gemini-pro"},
	"openrouter": {"google/gemini-2.0-flash-exp:free", "meta-llama/llama-3.3-70b-instruct:free", "deepseek/deepseek-chat-v3-0324:free"},
	"openai":     {"gpt-mini", "gpt-4o-mini"},
}

// Flag names.
const (
	FlagProvider             = "provider"
	FlagModel                = "model"
	FlagAPIKey               = "api-key"
	FlagBaseURL              = "base-url"
	FlagMaxTokens            = "max-tokens"
	FlagTimeout              = "timeout"
	FlagFallbackProvider     = "fallback-provider"
	FlagFallbackModels       = "fallback-models"
	FlagFallbackAPIKey       = "fallback-api-key"
	FlagFallbackResetWindow  = "fallback-reset-window"
	FlagFallbackMaxRetries   = "fallback-max-retries"
	FlagFullBatchSize        = "full-batch-size"
	FlagPracticeBatchSize    = "practice-batch-size"
	FlagMaxBatches           = "max-batches"
	FlagPrefetchThreshold    = "prefetch-threshold"
	FlagMaxAttempts          = "max-attempts"
	FlagBackoff              = "backoff"
	FlagCacheMinTokens       = "cache-min-tokens"
	FlagCacheWriteMultiplier = "cache-write-multiplier"
	FlagCacheReadMultiplier  = "cache-read-multiplier"
	FlagAddr                 = "addr"
	FlagDB                   = "db"
	FlagLang                 = "lang"
	FlagLogLevel             = "log-level"
	FlagLogFormat            = "log-format"
)

// RegisterFlags declares every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagProvider, "anthropic", "Primary LLM provider (anthropic, openai, gemini, openrouter, mock)")
	fs.String(FlagModel, "", "Primary model (provider default if empty)")
	fs.String(FlagAPIKey, "", "Primary provider API key (or the provider's standard env var)")
	fs.String(FlagBaseURL, "", "Primary provider base URL override")
	fs.Int(FlagMaxTokens, 8192, "Maximum response tokens per batch call")
	fs.Duration(FlagTimeout, 60*time.Second, "Timeout of a single provider call")

	fs.String(FlagFallbackProvider, "gemini", "Fallback backend (gemini, openrouter, openai, mock, none)")
	fs.StringSlice(FlagFallbackModels, nil, "Ordered fallback models (backend default if empty)")
	fs.String(FlagFallbackAPIKey, "", "Fallback backend API key (or the backend's standard env var)")
	fs.Duration(FlagFallbackResetWindow, 24*time.Hour, "How long an exhausted fallback model is skipped")
	fs.Int(FlagFallbackMaxRetries, 2, "Retries per fallback model on server errors")

	fs.Int(FlagFullBatchSize, batch.FullBatchSize, "Questions per batch in a full exam")
	fs.Int(FlagPracticeBatchSize, batch.PracticeBatchSize, "Questions per batch in practice mode")
	fs.Int(FlagMaxBatches, batch.DefaultMaxBatches, "Maximum batches per session")
	fs.Float64(FlagPrefetchThreshold, 0.7, "Fraction of a batch consumed before the next one is requested")

	fs.Int(FlagMaxAttempts, 3, "Primary attempts per batch")
	fs.DurationSlice(FlagBackoff, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, "Backoff after each failed attempt")

	fs.Int(FlagCacheMinTokens, cachecost.DefaultMinCacheTokens, "Smallest prompt segment worth caching, in tokens")
	fs.Float64(FlagCacheWriteMultiplier, cachecost.DefaultCacheWriteMultiplier, "Price multiplier on cache writes")
	fs.Float64(FlagCacheReadMultiplier, cachecost.DefaultCacheReadMultiplier, "Price multiplier on cache reads")

	fs.String(FlagAddr, ":8080", "HTTP listen address")
	fs.String(FlagDB, "", "SQLite database path (default: $XDG_DATA_HOME/examforge/examforge.db)")
	fs.String(FlagLang, "en", "Language of user-facing messages (en, ar)")
	fs.String(FlagLogLevel, "info", "Log level (debug, info, warn, error)")
	fs.String(FlagLogFormat, "text", "Log format (text, json)")
}

// NewViper binds fs, the environment and an optional config file to a
// fresh viper instance. It returns the path of the config file read, if any.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, string, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, "", fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examforge")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examforge")
	v.AddConfigPath("/etc/examforge")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("read config file: %w", err)
		}
		return v, "", nil
	}
	return v, v.ConfigFileUsed(), nil
}

// Load builds a Config from v. API keys missing from v are taken from the
// providers' standard environment variables.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Primary: providerConfig(v.GetString(FlagProvider), v.GetString(FlagModel), v.GetString(FlagAPIKey), v.GetString(FlagBaseURL)),
		Fallback: FallbackConfig{
			LLM:         providerConfig(v.GetString(FlagFallbackProvider), "", v.GetString(FlagFallbackAPIKey), ""),
			Models:      v.GetStringSlice(FlagFallbackModels),
			ResetWindow: v.GetDuration(FlagFallbackResetWindow),
			MaxRetries:  v.GetInt(FlagFallbackMaxRetries),
		},
		FullBatchSize:     v.GetInt(FlagFullBatchSize),
		PracticeBatchSize: v.GetInt(FlagPracticeBatchSize),
		MaxBatches:        v.GetInt(FlagMaxBatches),
		PrefetchThreshold: v.GetFloat64(FlagPrefetchThreshold),
		Retry: generation.RetryPolicy{
			MaxAttempts: v.GetInt(FlagMaxAttempts),
			Delays:      durations(v, FlagBackoff),
		},
		CacheMinTokens:       v.GetInt(FlagCacheMinTokens),
		CacheWriteMultiplier: v.GetFloat64(FlagCacheWriteMultiplier),
		CacheReadMultiplier:  v.GetFloat64(FlagCacheReadMultiplier),
		Addr:                 v.GetString(FlagAddr),
		DBPath:               v.GetString(FlagDB),
		Language:             v.GetString(FlagLang),
		LogLevel:             v.GetString(FlagLogLevel),
		LogFormat:            v.GetString(FlagLogFormat),
	}

	maxTokens := v.GetInt(FlagMaxTokens)
	timeout := v.GetDuration(FlagTimeout)
	for _, c := range []*llm.Config{&cfg.Primary, &cfg.Fallback.LLM} {
		c.MaxTokens = maxTokens
		c.Timeout = timeout
	}

	if len(cfg.Fallback.Models) == 0 {
		cfg.Fallback.Models = defaultFallbackModels[cfg.Fallback.LLM.Provider]
	}
	if cfg.Fallback.LLM.Provider == "mock" && len(cfg.Fallback.Models) == 0 {
		cfg.Fallback.Models = []string{"mock"}
	}

	return cfg, cfg.Validate()
}

// durations reads a duration list that may arrive as a flag value, a
// comma-separated env var or a YAML list.
func durations(v *viper.Viper, key string) []time.Duration {
	var parts []string
	switch val := v.Get(key).(type) {
	case []time.Duration:
		return val
	case string:
		parts = strings.Split(strings.Trim(val, "[]"), ",")
	case []string:
		parts = val
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	}

	var out []time.Duration
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if d, err := time.ParseDuration(p); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// providerConfig builds an llm.Config for provider with the given model,
// key and base URL applied to that provider's section.
func providerConfig(provider, model, apiKey, baseURL string) llm.Config {
	c := llm.DefaultConfig()
	c.Provider = provider

	set := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	switch provider {
	case "anthropic":
		set(&c.Anthropic.Model, model)
		set(&c.Anthropic.APIKey, apiKey)
		set(&c.Anthropic.BaseURL, baseURL)
	case "openai":
		set(&c.OpenAI.Model, model)
		set(&c.OpenAI.APIKey, apiKey)
		set(&c.OpenAI.BaseURL, baseURL)
	case "gemini":
		set(&c.Gemini.Model, model)
		set(&c.Gemini.APIKey, apiKey)
		set(&c.Gemini.BaseURL, baseURL)
	case "openrouter":
		set(&c.OpenRouter.Model, model)
		set(&c.OpenRouter.APIKey, apiKey)
		set(&c.OpenRouter.BaseURL, baseURL)
	}
	c.FillKeysFromEnv()
	return c
}

// Validate checks value ranges. Provider credentials are checked by
// ValidateProviders, since commands that only read the database need none.
func (c Config) Validate() error {
	var errs []error
	if c.FullBatchSize <= 0 || c.PracticeBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch sizes must be > 0"))
	}
	if c.MaxBatches <= 0 {
		errs = append(errs, fmt.Errorf("max batches must be > 0, got %d", c.MaxBatches))
	}
	if c.PrefetchThreshold <= 0 || c.PrefetchThreshold > 1 {
		errs = append(errs, fmt.Errorf("prefetch threshold must be in (0, 1], got %g", c.PrefetchThreshold))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be >= 1, got %d", c.Retry.MaxAttempts))
	}
	if c.CacheMinTokens < 0 {
		errs = append(errs, fmt.Errorf("cache min tokens must be >= 0"))
	}
	if c.Fallback.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("fallback max retries must be >= 0"))
	}
	switch c.Language {
	case "en", "ar":
	default:
		errs = append(errs, fmt.Errorf("unsupported language %q", c.Language))
	}
	return errors.Join(errs...)
}

// ValidateProviders checks that the primary and, if enabled, fallback
// backends have credentials.
func (c Config) ValidateProviders() error {
	if err := c.Primary.Validate(); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	if c.Fallback.Enabled() {
		if err := c.Fallback.LLM.Validate(); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}
	return nil
}

// CacheModel returns the cache cost model for the primary model.
func (c Config) CacheModel(model string) cachecost.Model {
	p := c.Pricing(model)
	return cachecost.Model{MinTokens: c.CacheMinTokens, Pricing: p}
}

// Pricing returns the pricing of model with the configured multipliers.
func (c Config) Pricing(model string) cachecost.Pricing {
	p := cachecost.LookupPricing(model)
	p.CacheWriteMultiplier = c.CacheWriteMultiplier
	p.CacheReadMultiplier = c.CacheReadMultiplier
	return p
}

// BatchSizes maps session types to their configured batch size.
func (c Config) BatchSizes() map[batch.SessionType]int {
	return map[batch.SessionType]int{
		batch.SessionFull:     c.FullBatchSize,
		batch.SessionPractice: c.PracticeBatchSize,
	}
}
