package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider wraps a Provider with a token bucket so a burst of
// diagram requests cannot exceed the account's requests-per-minute quota.
type RateLimitedProvider struct {
	provider Provider
	rpm      int

	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
}

// NewRateLimitedProvider wraps the given provider with a rate limiter
// that allows at most rpm requests per minute.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider: provider,
		rpm:      rpm,
		tokens:   float64(rpm),
		lastFill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// Available reports how many requests can be sent right now.
func (r *RateLimitedProvider) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill(time.Now())
	return int(r.tokens)
}

func (r *RateLimitedProvider) refill(now time.Time) {
	elapsed := now.Sub(r.lastFill)
	r.tokens += elapsed.Minutes() * float64(r.rpm)
	if r.tokens > float64(r.rpm) {
		r.tokens = float64(r.rpm)
	}
	r.lastFill = now
}

func (r *RateLimitedProvider) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill(time.Now())
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		// Time until one whole token is available.
		delay := time.Duration((1 - r.tokens) / float64(r.rpm) * float64(time.Minute))
		r.mu.Unlock()

		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
