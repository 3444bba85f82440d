package config

import "time"

// Config holds enhancer configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Provider    ProviderCfg    `mapstructure:"provider" yaml:"provider"`
	Enhancement EnhancementCfg `mapstructure:"enhancement" yaml:"enhancement"`
	Retry       RetryCfg       `mapstructure:"retry" yaml:"retry"`
	Cache       CacheCfg       `mapstructure:"cache" yaml:"cache"`
	LogLevel    string         `mapstructure:"log_level" yaml:"log_level"`
}

// ProviderCfg configures the model backend.
type ProviderCfg struct {
	Type        string  `mapstructure:"type" yaml:"type"`               // "ollama" or "openai"
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`       // base URL of the model host
	Model       string  `mapstructure:"model" yaml:"model"`             // model name
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`         // only for openai-compatible hosts (supports ${ENV_VAR})
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64 `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	// TimeoutSeconds bounds a single generate request client-side.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnhancementCfg tunes the chunking and session pipeline.
type EnhancementCfg struct {
	MaxChunkSize      int `mapstructure:"max_chunk_size" yaml:"max_chunk_size"`           // characters per chunk
	BatchDelayMs      int `mapstructure:"batch_delay_ms" yaml:"batch_delay_ms"`           // pause between batches
	FailureMargin     int `mapstructure:"failure_margin" yaml:"failure_margin"`           // abort when failures-successes exceeds this
	MinBatchSize      int `mapstructure:"min_batch_size" yaml:"min_batch_size"`
	MaxBatchSize      int `mapstructure:"max_batch_size" yaml:"max_batch_size"`
}

// RetryCfg parameterizes the shared retry policy.
type RetryCfg struct {
	Attempts    int `mapstructure:"attempts" yaml:"attempts"`
	BaseDelayMs int `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
}

// CacheCfg sizes the gateway caches.
type CacheCfg struct {
	ResultEntries          int `mapstructure:"result_entries" yaml:"result_entries"`                     // LRU entries for enhanced chunks
	AvailabilityTTLSeconds int `mapstructure:"availability_ttl_seconds" yaml:"availability_ttl_seconds"` // availability cache validity
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			Type:           "ollama",
			Endpoint:       "http://localhost:11434",
			Model:          "qwen2.5:14b",
			Temperature:    0.7,
			TopP:           0.9,
			MaxTokens:      4096,
			TimeoutSeconds: 120,
		},
		Enhancement: EnhancementCfg{
			MaxChunkSize:  4000,
			BatchDelayMs:  500,
			FailureMargin: 2,
			MinBatchSize:  5,
			MaxBatchSize:  15,
		},
		Retry: RetryCfg{
			Attempts:    3,
			BaseDelayMs: 1000,
		},
		Cache: CacheCfg{
			ResultEntries:          256,
			AvailabilityTTLSeconds: 30,
		},
		LogLevel: "info",
	}
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// BatchDelay returns the inter-batch pause as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Enhancement.BatchDelayMs) * time.Millisecond
}

// AvailabilityTTL returns the availability cache validity window.
func (c *Config) AvailabilityTTL() time.Duration {
	return time.Duration(c.Cache.AvailabilityTTLSeconds) * time.Second
}

// RetryBaseDelay returns the retry policy base delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}
