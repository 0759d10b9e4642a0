package cmd

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/tikzstudio/internal/config"
	"github.com/ziadkadry99/tikzstudio/internal/db"
	"github.com/ziadkadry99/tikzstudio/internal/export"
	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/history"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `tikzstudio init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newResolver creates the credential-aware provider source for cfg.
func newResolver(cfg *config.Config) *llm.Resolver {
	return llm.NewResolver(string(cfg.Provider), cfg.Model, cfg.BaseURL, cfg.RateLimitRPM)
}

// openHistory opens the configured history database. The caller closes the
// returned DB.
func openHistory(cfg *config.Config) (*db.DB, *history.Store, error) {
	database, err := db.Open(cfg.HistoryDB)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	return database, history.NewStore(database), nil
}

// newGateway wires a gateway that records every call into store.
func newGateway(cfg *config.Config, source llm.Source, store *history.Store) *gateway.Gateway {
	var opts []gateway.Option
	if store != nil {
		opts = append(opts, gateway.WithRecorder(store))
	}
	return gateway.New(source, cfg.Model, opts...)
}

// exportOptions converts the export section of cfg.
func exportOptions(cfg *config.Config) export.Options {
	return export.Options{
		Width:  cfg.Export.Width,
		Height: cfg.Export.Height,
		Scale:  cfg.Export.Scale,
	}
}

// warnMissingCredential tells the user which variable to set before the
// first model call fails.
func warnMissingCredential(cfg *config.Config, resolver *llm.Resolver) {
	if !resolver.CredentialMissing() {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: no API key found for %s. Set %s in your environment or %s.\n",
		cfg.Provider, config.APIKeyEnvVars(cfg.Provider)[0], envFile)
}
