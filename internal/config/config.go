package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/tikzstudio/internal/llm"
)

// EnvPrefix prefixes environment variable overrides.
const EnvPrefix = "TIKZSTUDIO_"

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TIKZSTUDIO_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: TIKZSTUDIO_PROVIDER -> provider,
	// TIKZSTUDIO_EXPORT_WIDTH -> export.width, etc.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "export_"); ok {
		return "export." + rest
	}
	return key
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderGoogle:    true,
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
	ProviderOllama:    true,
}

// validQualityTiers is the set of recognized quality tier values.
var validQualityTiers = map[QualityTier]bool{
	QualityLite:   true,
	QualityNormal: true,
	QualityMax:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of google, openai, anthropic, ollama", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.Quality != "" && !validQualityTiers[c.Quality] {
		return fmt.Errorf("invalid quality %q: must be one of lite, normal, max", c.Quality)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.RateLimitRPM < 0 {
		return fmt.Errorf("rate_limit_rpm must be non-negative")
	}

	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must be non-negative")
	}

	if c.SessionTTL < 0 {
		return fmt.Errorf("session_ttl must be non-negative")
	}

	switch c.OverlapPolicy {
	case "", "last_wins", "latest_only":
	default:
		return fmt.Errorf("invalid overlap_policy %q: must be last_wins or latest_only", c.OverlapPolicy)
	}

	if c.Export.Width < 0 || c.Export.Height < 0 || c.Export.Scale < 0 {
		return fmt.Errorf("export width, height and scale must be non-negative")
	}

	return nil
}

// APIKeyEnvVars returns the environment variables checked, in order, for the
// API key of the given provider. Ollama needs none.
func APIKeyEnvVars(provider ProviderType) []string {
	return llm.APIKeyEnvVars(string(provider))
}
