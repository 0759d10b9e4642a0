package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrMissingAPIKey is returned when no credential is configured for a provider.
var ErrMissingAPIKey = errors.New("API key is missing")

// MissingKeyError names the environment variables that were checked.
type MissingKeyError struct {
	Provider string
	EnvVars  []string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s API key is missing (set %s)", e.Provider, strings.Join(e.EnvVars, " or "))
}

func (e *MissingKeyError) Is(target error) bool { return target == ErrMissingAPIKey }

// APIKeyEnvVars returns the environment variables consulted, in order, for
// the API key of the given provider type. Ollama needs none.
func APIKeyEnvVars(providerType string) []string {
	switch providerType {
	case "google":
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "API_KEY"}
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "anthropic":
		return []string{"ANTHROPIC_API_KEY"}
	default:
		return nil
	}
}

// LookupAPIKey reads the provider's credential from the process environment.
func LookupAPIKey(providerType string) (string, error) {
	vars := APIKeyEnvVars(providerType)
	if len(vars) == 0 {
		return "", nil
	}
	for _, v := range vars {
		if key := os.Getenv(v); key != "" {
			return key, nil
		}
	}
	return "", &MissingKeyError{Provider: providerType, EnvVars: vars}
}

// Options configures NewProvider.
type Options struct {
	Type    string
	Model   string
	APIKey  string
	BaseURL string
}

// NewProvider creates a new LLM provider based on the given options.
// Supported provider types: "google", "openai", "anthropic", "ollama".
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Type {
	case "google":
		if opts.APIKey == "" {
			return nil, &MissingKeyError{Provider: opts.Type, EnvVars: APIKeyEnvVars(opts.Type)}
		}
		return NewGoogleProvider(ctx, opts.APIKey, opts.Model)

	case "openai":
		if opts.APIKey == "" {
			return nil, &MissingKeyError{Provider: opts.Type, EnvVars: APIKeyEnvVars(opts.Type)}
		}
		return NewOpenAIProvider(opts.APIKey, opts.Model, opts.BaseURL), nil

	case "anthropic":
		if opts.APIKey == "" {
			return nil, &MissingKeyError{Provider: opts.Type, EnvVars: APIKeyEnvVars(opts.Type)}
		}
		return NewAnthropicProvider(opts.APIKey, opts.Model), nil

	case "ollama":
		host := opts.BaseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, opts.Model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", opts.Type)
	}
}

// Resolver is a Source that reads the credential at call time and rebuilds
// the provider only when the credential changes.
type Resolver struct {
	providerType string
	model        string
	baseURL      string
	rpm          int

	mu        sync.Mutex
	cached    Provider
	cachedKey string
}

// NewResolver creates a Resolver. A positive rpm wraps the provider with a
// rate limiter.
func NewResolver(providerType, model, baseURL string, rpm int) *Resolver {
	return &Resolver{
		providerType: providerType,
		model:        model,
		baseURL:      baseURL,
		rpm:          rpm,
	}
}

// Provider returns a provider for the current credential.
func (r *Resolver) Provider(ctx context.Context) (Provider, error) {
	key, err := LookupAPIKey(r.providerType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.cachedKey == key {
		return r.cached, nil
	}

	p, err := NewProvider(ctx, Options{
		Type:    r.providerType,
		Model:   r.model,
		APIKey:  key,
		BaseURL: r.baseURL,
	})
	if err != nil {
		return nil, err
	}
	if r.rpm > 0 {
		p = NewRateLimitedProvider(p, r.rpm)
	}
	r.cached = p
	r.cachedKey = key
	return p, nil
}

// Model returns the configured default model.
func (r *Resolver) Model() string { return r.model }

// CredentialMissing reports whether the provider needs a credential that is
// not currently set.
func (r *Resolver) CredentialMissing() bool {
	_, err := LookupAPIKey(r.providerType)
	return err != nil
}
