package llm

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// GoogleProvider implements Provider using the Gemini API through the
// official genai client.
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// NewGoogleProvider creates a new Google Gemini provider.
func NewGoogleProvider(ctx context.Context, apiKey string, model string) (*GoogleProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GoogleProvider{client: client, model: model}, nil
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var systemParts []*genai.Part
	var contents []*genai.Content

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, genai.NewPartFromText(msg.Content))
		case RoleUser:
			var parts []*genai.Part
			for _, img := range msg.Images {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			}
			if msg.Content != "" || len(parts) == 0 {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("", genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{Parts: systemParts}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode || req.Schema != nil {
		config.ResponseMIMEType = "application/json"
	}
	if req.Schema != nil {
		config.ResponseSchema = toGenaiSchema(req.Schema)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := &CompletionResponse{
		Content: resp.Text(),
		Model:   model,
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeString:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
