package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/wishaday/internal/config"
	"github.com/hpungsan/wishaday/internal/lifecycle"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"wish_create": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"wish_view": {
		def:     viewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleView },
	},
	"wish_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"wish_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"wish_images": {
		def:     imagesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImages },
	},
	"wish_attach_image": {
		def:     attachImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAttachImage },
	},
	"wish_detach_image": {
		def:     detachImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDetachImage },
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

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the wish tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(manager *lifecycle.Manager, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"wishaday",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(manager, cfg)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(manager *lifecycle.Manager, cfg *config.Config, version string) error {
	s := NewServer(manager, cfg, version)
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
