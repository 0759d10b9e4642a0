package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// Source hands out a ready-to-use Provider. Implementations may resolve
// credentials lazily, so a Source can fail even after startup.
type Source interface {
	Provider(ctx context.Context) (Provider, error)
}

// StaticSource always returns the same provider.
type StaticSource struct {
	P Provider
}

func (s StaticSource) Provider(ctx context.Context) (Provider, error) {
	return s.P, nil
}
