package mcp

import "github.com/mark3labs/mcp-go/mcp"

// generateTikzTool defines the generate_tikz MCP tool.
var generateTikzTool = mcp.NewTool("generate_tikz",
	mcp.WithDescription("Generate TikZ code and an SVG preview from a natural-language description. Pass prior_markup to refine existing code instead."),
	mcp.WithString("prompt",
		mcp.Required(),
		mcp.Description("What to draw, or the change to make when prior_markup is set"),
	),
	mcp.WithString("mode",
		mcp.Description("Kind of figure to produce (default figure)"),
		mcp.Enum("figure", "variation_table", "function_graph"),
	),
	mcp.WithString("prior_markup",
		mcp.Description("Existing TikZ code to refine"),
	),
)

// tikzFromImageTool defines the tikz_from_image MCP tool.
var tikzFromImageTool = mcp.NewTool("tikz_from_image",
	mcp.WithDescription("Reconstruct a diagram image as TikZ code with an SVG preview."),
	mcp.WithString("image_path",
		mcp.Description("Path to a PNG, JPEG, GIF or WebP file"),
	),
	mcp.WithString("image_base64",
		mcp.Description("Base64-encoded image data, used when image_path is not given"),
	),
	mcp.WithString("mime_type",
		mcp.Description("MIME type of image_base64 (detected when omitted)"),
	),
	mcp.WithString("instruction",
		mcp.Description("Optional extra instruction, e.g. 'Make lines thicker'"),
	),
)

// renderTikzTool defines the render_tikz MCP tool.
var renderTikzTool = mcp.NewTool("render_tikz",
	mcp.WithDescription("Produce an SVG preview for existing TikZ code, optionally applying a described change."),
	mcp.WithString("markup",
		mcp.Required(),
		mcp.Description("TikZ code to render"),
	),
	mcp.WithString("refinement",
		mcp.Description("Optional change to apply while rendering"),
	),
)
