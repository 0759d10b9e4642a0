package config

import "time"

// QualityTier picks the model preset for a provider.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderGoogle    ProviderType = "google"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level tikzstudio configuration, corresponding to .tikzstudio.yml.
type Config struct {
	Provider        ProviderType  `yaml:"provider" koanf:"provider"`
	Model           string        `yaml:"model" koanf:"model"`
	Quality         QualityTier   `yaml:"quality" koanf:"quality"`
	BaseURL         string        `yaml:"base_url,omitempty" koanf:"base_url"`
	Port            int           `yaml:"port" koanf:"port"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	HistoryDB       string        `yaml:"history_db" koanf:"history_db"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	MaxSessions     int           `yaml:"max_sessions" koanf:"max_sessions"`
	SessionTTL      time.Duration `yaml:"session_ttl" koanf:"session_ttl"`
	OverlapPolicy   string        `yaml:"overlap_policy" koanf:"overlap_policy"`
	Export          ExportConfig  `yaml:"export" koanf:"export"`
}

// ExportConfig holds PNG export settings.
type ExportConfig struct {
	// Width and Height are used when a preview declares no size.
	Width  int     `yaml:"width" koanf:"width"`
	Height int     `yaml:"height" koanf:"height"`
	Scale  float64 `yaml:"scale" koanf:"scale"`
}
