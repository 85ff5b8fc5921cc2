package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with wirecheck tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"wirecheck",
		version,
		server.WithToolCapabilities(true),
	)

	// Register tools
	s.AddTool(
		mcp.NewTool("wirecheck/validate",
			mcp.WithDescription("Validate a wirecheck scenario YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the scenario YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("wirecheck/run",
			mcp.WithDescription("Run a scenario through both the in-process and remote paths and report the differential verdict"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the scenario YAML file")),
			mcp.WithString("script", mcp.Description("Engine script file for the in-process path (defaults to script.yaml)")),
			mcp.WithString("endpoint", mcp.Description("Remote entry point base URL (defaults to WIRECHECK_ENDPOINT or http://localhost:4111)")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("wirecheck/schema",
			mcp.WithDescription("Export the wirecheck scenario JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
