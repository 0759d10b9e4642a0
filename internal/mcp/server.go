// Package mcp exposes the model gateway as MCP tools so agents can generate
// TikZ figures without the web interface.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/tikzstudio/internal/studio"
)

// Version is set via ldflags at build time.
var Version = "dev"

// SessionID tags history entries written for MCP tool calls.
const SessionID = "mcp"

// Server wraps an MCP server that exposes diagram generation tools.
type Server struct {
	gen studio.Generator
	mcp *server.MCPServer
}

// NewServer creates a new MCP server backed by gen.
func NewServer(gen studio.Generator) *Server {
	s := &Server{gen: gen}

	s.mcp = server.NewMCPServer(
		"tikzstudio",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(generateTikzTool, s.handleGenerateTikz)
	s.mcp.AddTool(tikzFromImageTool, s.handleTikzFromImage)
	s.mcp.AddTool(renderTikzTool, s.handleRenderTikz)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
