package config

import "time"

// QualityPreset describes the model to use for a given quality tier.
type QualityPreset struct {
	Model string
}

// qualityPresets maps each provider+quality combination to its model choice.
// Every model listed accepts image input.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-2.5-flash-lite"},
		QualityNormal: {Model: "gemini-2.5-flash"},
		QualityMax:    {Model: "gemini-2.5-pro"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini"},
		QualityNormal: {Model: "gpt-4o"},
		QualityMax:    {Model: "gpt-4o"},
	},
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929"},
		QualityMax:    {Model: "claude-sonnet-4-5-20250929"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llava:7b"},
		QualityNormal: {Model: "llava:13b"},
		QualityMax:    {Model: "llava:34b"},
	},
}

// DefaultConfigFile is the config file read from the working directory.
const DefaultConfigFile = ".tikzstudio.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:      ProviderGoogle,
		Model:         "gemini-2.5-flash",
		Quality:       QualityNormal,
		Port:          8080,
		HistoryDB:     ":memory:",
		MaxSessions:   256,
		SessionTTL:    2 * time.Hour,
		OverlapPolicy: "last_wins",
		Export: ExportConfig{
			Width:  800,
			Height: 600,
			Scale:  1,
		},
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal Google preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderGoogle][QualityNormal]
}
