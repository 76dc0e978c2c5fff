// Package mcp exposes quill's collections as MCP tools for agents.
package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/quill/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"product", "braindump", "project"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"product_list": {
		def:     productListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProductList },
	},
	"product_get": {
		def:     productGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProductGet },
	},
	"product_create": {
		def:     productCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProductCreate },
	},
	"product_update": {
		def:     productUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProductUpdate },
	},
	"product_delete": {
		def:     productDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProductDelete },
	},
	"product_continue": {
		def:     productContinueToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProductContinue },
	},
	"braindump_list": {
		def:     braindumpListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBrainDumpList },
	},
	"braindump_get": {
		def:     braindumpGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBrainDumpGet },
	},
	"braindump_create": {
		def:     braindumpCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBrainDumpCreate },
	},
	"braindump_update": {
		def:     braindumpUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBrainDumpUpdate },
	},
	"braindump_delete": {
		def:     braindumpDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBrainDumpDelete },
	},
	"project_list": {
		def:     projectListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectList },
	},
	"project_get": {
		def:     projectGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectGet },
	},
	"project_create": {
		def:     projectCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectCreate },
	},
	"project_update": {
		def:     projectUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectUpdate },
	},
	"project_delete": {
		def:     projectDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectDelete },
	},
	"project_append": {
		def:     projectAppendToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectAppend },
	},
	"project_compose": {
		def:     projectComposeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProjectCompose },
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

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "product_get" → "product").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with quill tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(deps Deps, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"quill",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("quill manages a creator's products, brain dumps and projects. "+
			"Ids are UUIDs; products also carry a source (creator_contents or projects)."),
	)

	h := NewHandlers(deps)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
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
func Run(deps Deps, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(deps, cfg, version))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
