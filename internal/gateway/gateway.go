// Package gateway turns diagram requests into model calls and model replies
// into Results. Every operation makes exactly one provider call: there are no
// retries and nothing is cached.
package gateway

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const (
	generateTemperature = 0.2
	renderTemperature   = 0.1
)

// Operation names a gateway entry point.
type Operation string

const (
	OpGenerateText  Operation = "generate_text"
	OpGenerateImage Operation = "generate_image"
	OpRenderMarkup  Operation = "render_markup"
)

// Call describes one finished gateway call, successful or not.
type Call struct {
	Operation    Operation
	Mode         prompts.Mode
	Prompt       string
	Result       *Result
	Err          error
	Model        string
	Duration     time.Duration
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Recorder observes finished calls.
type Recorder interface {
	Record(ctx context.Context, call Call)
}

// Gateway is the single point through which the app talks to the model.
type Gateway struct {
	source   llm.Source
	model    string
	recorder Recorder
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRecorder attaches a Recorder that sees every finished call.
func WithRecorder(r Recorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// New creates a Gateway that obtains its provider from source.
func New(source llm.Source, model string, opts ...Option) *Gateway {
	if model == "" {
		model = DefaultModel
	}
	g := &Gateway{source: source, model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the model identifier requests are sent to.
func (g *Gateway) Model() string { return g.model }

// GenerateFromText generates markup from a natural-language request. When
// priorMarkup is non-empty the model is asked to refine it instead.
func (g *Gateway) GenerateFromText(ctx context.Context, prompt, priorMarkup string, mode prompts.Mode) (*Result, error) {
	content := "User Request: " + prompt
	if priorMarkup != "" {
		content += "\n\nExisting TikZ Code:\n" + priorMarkup +
			"\n\nTask: Refine this code based on the request and REGENERATE the SVG preview manually to match the changes."
	}
	return g.complete(ctx, OpGenerateText, mode, llm.Message{Role: llm.RoleUser, Content: content}, generateTemperature)
}

// GenerateFromImage reconstructs a diagram from an image. The instruction is
// optional.
func (g *Gateway) GenerateFromImage(ctx context.Context, image llm.Image, instruction string) (*Result, error) {
	text := "Analyze this image. Reconstruct it in TikZ code and generate a matching SVG visual."
	if instruction != "" {
		text = "Analyze this image. " + instruction + ". Reconstruct it in TikZ and generate a matching SVG visual."
	}
	if image.MIMEType == "" {
		image.MIMEType = "image/png"
	}
	msg := llm.Message{Role: llm.RoleUser, Content: text, Images: []llm.Image{image}}
	return g.complete(ctx, OpGenerateImage, prompts.ModeImage, msg, generateTemperature)
}

// RenderMarkup asks the model for a preview of existing markup, optionally
// applying a described change.
func (g *Gateway) RenderMarkup(ctx context.Context, markup, refinement string) (*Result, error) {
	text := "Render this TikZ code into an accurate SVG visual proxy."
	if refinement != "" {
		text += " Also, apply this refinement: " + refinement + "."
	}
	text += "\n\nTikZ Code:\n" + markup
	return g.complete(ctx, OpRenderMarkup, prompts.ModeEditor, llm.Message{Role: llm.RoleUser, Content: text}, renderTemperature)
}

func (g *Gateway) complete(ctx context.Context, op Operation, mode prompts.Mode, msg llm.Message, temperature float64) (*Result, error) {
	call := Call{Operation: op, Mode: mode, Prompt: msg.Content, Model: g.model}
	start := time.Now()

	res, err := g.do(ctx, mode, msg, temperature, &call)

	call.Duration = time.Since(start)
	call.Result = res
	call.Err = err
	if err != nil {
		log.Printf("gateway: %s (%s) failed after %s: %v", op, mode, call.Duration.Round(time.Millisecond), err)
	} else {
		log.Printf("gateway: %s (%s) ok in %s, tokens in=%d out=%d, est $%.4f",
			op, mode, call.Duration.Round(time.Millisecond), call.InputTokens, call.OutputTokens, call.CostUSD)
	}
	if g.recorder != nil {
		g.recorder.Record(ctx, call)
	}
	return res, err
}

func (g *Gateway) do(ctx context.Context, mode prompts.Mode, msg llm.Message, temperature float64, call *Call) (*Result, error) {
	provider, err := g.source.Provider(ctx)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, configurationError(err)
		}
		return nil, transportError(err)
	}

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompts.SystemInstruction(mode)},
			msg,
		},
		Temperature: temperature,
		JSONMode:    true,
		Schema:      prompts.ResponseSchema(),
	})
	if err != nil {
		return nil, transportError(err)
	}

	call.InputTokens = resp.InputTokens
	call.OutputTokens = resp.OutputTokens
	call.CostUSD = llm.EstimateCost(g.model, resp.InputTokens, resp.OutputTokens)

	return ParseReply(resp.Content)
}
