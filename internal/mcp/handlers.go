package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

// handleGenerateTikz generates or refines markup from a text prompt.
func (s *Server) handleGenerateTikz(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil || strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("missing required parameter: prompt"), nil
	}

	mode := prompts.ModeFigure
	if m := request.GetString("mode", ""); m != "" {
		mode, err = prompts.ParseMode(m)
		if err != nil || !mode.TakesText() {
			return mcp.NewToolResultError(fmt.Sprintf("invalid mode %q: must be figure, variation_table or function_graph", m)), nil
		}
	}

	prior := strings.TrimSpace(request.GetString("prior_markup", ""))
	res, err := s.gen.GenerateFromText(gateway.WithSessionID(ctx, SessionID), strings.TrimSpace(prompt), prior, mode)
	return toolResult(res, err)
}

// handleTikzFromImage reconstructs markup from an image file or inline data.
func (s *Server) handleTikzFromImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		img llm.Image
		err error
	)
	if path := request.GetString("image_path", ""); path != "" {
		img, err = llm.ReadImageFile(path)
	} else if encoded := request.GetString("image_base64", ""); encoded != "" {
		var data []byte
		data, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image_base64 is not valid base64: %v", err)), nil
		}
		img, err = llm.NewImage(data, request.GetString("mime_type", ""))
	} else {
		return mcp.NewToolResultError("one of image_path or image_base64 is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	instruction := strings.TrimSpace(request.GetString("instruction", ""))
	res, err := s.gen.GenerateFromImage(gateway.WithSessionID(ctx, SessionID), img, instruction)
	return toolResult(res, err)
}

// handleRenderTikz previews existing markup.
func (s *Server) handleRenderTikz(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := request.RequireString("markup")
	if err != nil || strings.TrimSpace(markup) == "" {
		return mcp.NewToolResultError("missing required parameter: markup"), nil
	}

	refinement := strings.TrimSpace(request.GetString("refinement", ""))
	res, err := s.gen.RenderMarkup(gateway.WithSessionID(ctx, SessionID), markup, refinement)
	return toolResult(res, err)
}

// toolResult converts a gateway outcome into a tool reply. Gateway failures
// are reported to the agent as tool errors, not protocol errors.
func toolResult(res *gateway.Result, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if kind := gateway.KindOf(err); kind != "" {
			return mcp.NewToolResultError(fmt.Sprintf("generation failed (%s): %v", kind, err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
