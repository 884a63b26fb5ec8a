// Package mcp exposes the clipboard history and snippet library as MCP
// tools over stdio, so agent clients can read captured content and manage
// snippets alongside the CLI.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/app"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"clip_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"clip_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"snippet_store": {
		def:     snippetStoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnippetStore },
	},
	"snippet_list": {
		def:     snippetListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnippetList },
	},
	"snippet_delete": {
		def:     snippetDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSnippetDelete },
	},
	"folder_list": {
		def:     folderListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderList },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server with every tool registered.
func NewServer(a *app.App, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"simplecp",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(a)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run starts the MCP server using stdio transport.
func Run(a *app.App, version string) error {
	s := NewServer(a, version)
	return server.ServeStdio(s)
}
