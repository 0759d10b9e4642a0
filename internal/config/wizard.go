package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to tikzstudio! Let's configure the studio.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"google", "openai", "anthropic", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Quality tier.
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	labels := make([]string, len(tiers))
	for i, tier := range tiers {
		labels[i] = fmt.Sprintf("%-6s (%s)", tier, GetPreset(provider, tier).Model)
	}
	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: labels,
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	quality := tiers[qualityIdx]

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Quality = quality
	cfg.Model = GetPreset(provider, quality).Model

	// 3. Ollama endpoint.
	if provider == ProviderOllama {
		urlPrompt := promptui.Prompt{
			Label:   "Ollama base URL",
			Default: "http://localhost:11434",
		}
		cfg.BaseURL, err = urlPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("base url: %w", err)
		}
	}

	// 4. Port.
	portPrompt := promptui.Prompt{
		Label:   "Port for tikzstudio server",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	// 5. History database.
	historyPrompt := promptui.Prompt{
		Label:   "History database path (:memory: keeps nothing on disk)",
		Default: cfg.HistoryDB,
	}
	cfg.HistoryDB, err = historyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("history db: %w", err)
	}

	// Check for API key.
	if vars := APIKeyEnvVars(provider); len(vars) > 0 {
		found := false
		for _, v := range vars {
			if os.Getenv(v) != "" {
				found = true
				break
			}
		}
		if !found {
			fmt.Printf("\nNote: Set %s in your environment or .env before running tikzstudio server.\n", vars[0])
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
