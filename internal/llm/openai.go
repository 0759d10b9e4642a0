package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// Any OpenAI-compatible endpoint (OpenRouter, MiniMax, a local gateway) can be
// used by setting a base URL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider. An empty baseURL uses the
// default OpenAI endpoint.
func NewOpenAIProvider(apiKey string, model string, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	var messages []openai.ChatCompletionMessage
	for _, msg := range req.Messages {
		if len(msg.Images) == 0 {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
			continue
		}
		var parts []openai.ChatMessagePart
		for _, img := range msg.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: dataURL(img),
				},
			})
		}
		if msg.Content != "" {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: msg.Content,
			})
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:         string(msg.Role),
			MultiContent: parts,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	switch {
	case req.Schema != nil:
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response schema: %w", err)
		}
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "result",
				Schema: json.RawMessage(raw),
			},
		}
	case req.JSONMode:
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	var content, finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: finishReason,
	}, nil
}

func dataURL(img Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
