package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	genai "google.golang.org/genai"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// --- Tests ---

func TestMockProviderRecordsCalls(t *testing.T) {
	mock := NewMockProvider("test")
	ctx := context.Background()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := mock.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}

	if mock.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", mock.CallCount())
	}

	if mock.Calls[0].Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", mock.Calls[0].Model)
	}
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	for _, p := range []string{"anthropic", "openai", "google"} {
		_, err := NewProvider(context.Background(), Options{Type: p, Model: "some-model"})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("provider %q: expected ErrMissingAPIKey, got %v", p, err)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider(context.Background(), Options{Type: "unknown", Model: "some-model"})
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithoutAPIKey(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://localhost:11434")
	provider, err := NewProvider(context.Background(), Options{Type: "ollama", Model: "llava"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "ollama" {
		t.Errorf("expected name 'ollama', got %q", provider.Name())
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider(context.Background(), Options{Type: "ollama", Model: "llava"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != "http://localhost:11434" {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesAnthropicProvider(t *testing.T) {
	provider, err := NewProvider(context.Background(), Options{Type: "anthropic", Model: "claude-sonnet-4-5-20250929", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", provider.Name())
	}
}

func TestFactoryCreatesOpenAIProvider(t *testing.T) {
	provider, err := NewProvider(context.Background(), Options{Type: "openai", Model: "gpt-4o", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", provider.Name())
	}
}

func TestFactoryCreatesGoogleProvider(t *testing.T) {
	provider, err := NewProvider(context.Background(), Options{Type: "google", Model: "gemini-2.5-flash", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name() != "google" {
		t.Errorf("expected name 'google', got %q", provider.Name())
	}
}

func TestLookupAPIKeyFallbackOrder(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "legacy")

	key, err := LookupAPIKey("google")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "legacy" {
		t.Errorf("expected API_KEY fallback, got %q", key)
	}

	t.Setenv("GEMINI_API_KEY", "gemini")
	key, _ = LookupAPIKey("google")
	if key != "gemini" {
		t.Errorf("expected GEMINI_API_KEY to win over API_KEY, got %q", key)
	}
}

func TestResolverReadsCredentialAtCallTime(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	r := NewResolver("anthropic", "claude-haiku-4-5-20251001", "", 0)

	_, err := r.Provider(context.Background())
	var mk *MissingKeyError
	if !errors.As(err, &mk) {
		t.Fatalf("expected *MissingKeyError, got %v", err)
	}
	if mk.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %q", mk.Provider)
	}
	if !r.CredentialMissing() {
		t.Error("expected CredentialMissing with no key set")
	}

	t.Setenv("ANTHROPIC_API_KEY", "k1")
	if r.CredentialMissing() {
		t.Error("expected CredentialMissing to be false once the key is set")
	}
	p1, err := r.Provider(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p2, _ := r.Provider(context.Background())
	if p1 != p2 {
		t.Error("expected cached provider for unchanged key")
	}

	t.Setenv("ANTHROPIC_API_KEY", "k2")
	p3, _ := r.Provider(context.Background())
	if p3 == p1 {
		t.Error("expected a new provider after the key changed")
	}
}

func TestResolverWrapsRateLimiter(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	r := NewResolver("ollama", "llava", "", 30)
	p, err := r.Provider(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*RateLimitedProvider); !ok {
		t.Errorf("expected *RateLimitedProvider, got %T", p)
	}
}

func TestOllamaSendsImagesAndSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"message":{"role":"assistant","content":"{}"},"model":"llava","done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":4}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llava")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "look", Images: []Image{{MIMEType: "image/png", Data: []byte("png")}}}},
		Schema:   &Schema{Type: TypeObject},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "{}" || resp.OutputTokens != 4 {
		t.Errorf("unexpected response %+v", resp)
	}

	msgs := got["messages"].([]any)
	images := msgs[0].(map[string]any)["images"].([]any)
	if images[0] != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Errorf("expected base64 image, got %v", images[0])
	}
	if _, ok := got["format"].(map[string]any); !ok {
		t.Errorf("expected schema object as format, got %v", got["format"])
	}
}

func TestAnthropicSendsImageBlocks(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"model":"m","stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "m")
	p.baseURL = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "draw", Images: []Image{{MIMEType: "image/jpeg", Data: []byte{1, 2}}}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected 'ok', got %q", resp.Content)
	}
	if got.System != "sys" {
		t.Errorf("expected system prompt, got %q", got.System)
	}
	blocks := got.Messages[0].Content
	if len(blocks) != 2 || blocks[0].Type != "image" || blocks[0].Source.MediaType != "image/jpeg" || blocks[1].Text != "draw" {
		t.Errorf("unexpected blocks %+v", blocks)
	}
}

func TestGenaiSchemaConversion(t *testing.T) {
	s := toGenaiSchema(&Schema{
		Type:       TypeObject,
		Properties: map[string]*Schema{"markup": {Type: TypeString}},
		Required:   []string{"markup"},
	})
	if s.Type != genai.TypeObject {
		t.Errorf("expected object, got %v", s.Type)
	}
	if s.Properties["markup"].Type != genai.TypeString {
		t.Errorf("expected string property, got %v", s.Properties["markup"].Type)
	}
	if len(s.Required) != 1 {
		t.Errorf("expected required field, got %v", s.Required)
	}
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	ctx := context.Background()
	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	resp, err := rl.Complete(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	// Allow only 2 requests per minute.
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := CompletionRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}

	// First two should succeed immediately.
	for i := 0; i < 2; i++ {
		_, err := rl.Complete(ctx, req)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	// Third should block and eventually fail due to context timeout.
	_, err := rl.Complete(ctx, req)
	if err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
}

func TestEstimateCostKnownModels(t *testing.T) {
	tests := []struct {
		model        string
		inputTokens  int
		outputTokens int
		wantMin      float64
	}{
		{"claude-sonnet-4-5-20250929", 1000, 500, 0.0},
		{"gpt-4o", 1000, 500, 0.0},
		{"gemini-2.5-flash", 1000, 500, 0.0},
	}

	for _, tt := range tests {
		cost := EstimateCost(tt.model, tt.inputTokens, tt.outputTokens)
		if cost <= tt.wantMin {
			t.Errorf("EstimateCost(%q, %d, %d) = %f, expected > %f",
				tt.model, tt.inputTokens, tt.outputTokens, cost, tt.wantMin)
		}
	}
}

func TestEstimateCostUnknownModel(t *testing.T) {
	cost := EstimateCost("unknown-model", 1000, 500)
	if cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestEstimateCostAccuracy(t *testing.T) {
	// gemini-2.5-flash: $0.30/1M input, $2.50/1M output
	cost := EstimateCost("gemini-2.5-flash", 1_000_000, 1_000_000)
	expected := 2.80
	if cost < expected-0.01 || cost > expected+0.01 {
		t.Errorf("expected cost ~$%.2f, got $%.2f", expected, cost)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"hello world!!", 3},
		{"a longer piece of text that has more characters", 11},
	}

	for _, tt := range tests {
		got := EstimateTokens(tt.text)
		if got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestRoles(t *testing.T) {
	if RoleSystem != "system" {
		t.Errorf("RoleSystem = %q, want 'system'", RoleSystem)
	}
	if RoleUser != "user" {
		t.Errorf("RoleUser = %q, want 'user'", RoleUser)
	}
	if RoleAssistant != "assistant" {
		t.Errorf("RoleAssistant = %q, want 'assistant'", RoleAssistant)
	}
}
