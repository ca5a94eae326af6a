// Package mcpserver exposes dataset inspection and sandboxed code
// execution as MCP tools over stdio, so external agent hosts can drive
// the same capabilities the built-in loop uses.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mlagent/internal/dataset"
	"mlagent/internal/sandbox"
	"mlagent/internal/security"
	"mlagent/internal/tools"
)

// Deps holds what the MCP tools need. The sandbox session is shared by
// every execute_code call, giving MCP clients the same persistent
// namespace semantics as the agent loop.
type Deps struct {
	Resolver *dataset.Resolver
	Session  *sandbox.Session
	Timeout  time.Duration
}

// New builds the MCP server with both tools registered.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"mlagent",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("mlagent: dataset inspection and persistent Python execution for ML pipelines."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("describe_dataset",
			mcp.WithDescription("Get comprehensive information about a dataset: shape, column types, missing values, numeric summary, and preview."),
			mcp.WithString("identifier", mcp.Description("Dataset name or path"), mcp.Required()),
		),
		describeHandler(deps),
	)

	s.AddTool(
		mcp.NewTool("execute_code",
			mcp.WithDescription("Execute Python code in a persistent namespace. Variables and imports persist across calls; matplotlib plots are captured automatically."),
			mcp.WithString("code", mcp.Description("Complete, executable Python code"), mcp.Required()),
		),
		executeHandler(deps),
	)

	s.AddTool(
		mcp.NewTool("load_dataset",
			mcp.WithDescription("Resolve a dataset and load it into the execution namespace as a pandas DataFrame."),
			mcp.WithString("identifier", mcp.Description("Dataset name or path"), mcp.Required()),
		),
		loadHandler(deps),
	)

	return s
}

// ServeStdio blocks until ctx is canceled or the transport closes.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func describeHandler(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("identifier")
		if err != nil {
			return mcpError("identifier is required"), nil
		}
		path, err := deps.Resolver.Resolve(id)
		if err != nil {
			return mcpError(fmt.Sprintf("Error getting dataset info: %v", err)), nil
		}
		table, err := dataset.LoadTable(path)
		if err != nil {
			return mcpError(fmt.Sprintf("Error getting dataset info: %v", err)), nil
		}
		return mcpText(table.Describe()), nil
	}
}

func executeHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := req.RequireString("code")
		if err != nil {
			return mcpError("code is required"), nil
		}
		// Code here comes from an external host, not the agent loop.
		if risk := security.AnalyzeCode(code); risk.Blocked {
			return mcpError(fmt.Sprintf("Code rejected: %s", risk.Reason)), nil
		}
		res := deps.Session.Execute(ctx, code, deps.Timeout)
		text := tools.FormatResult(res)
		if !res.Success {
			return mcpError(text), nil
		}
		return mcpText(text), nil
	}
}

func loadHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("identifier")
		if err != nil {
			return mcpError("identifier is required"), nil
		}
		bindings, err := deps.Resolver.ResolveAll([]string{id})
		if err != nil {
			return mcpError(fmt.Sprintf("Error loading dataset: %v", err)), nil
		}
		res := deps.Session.Inject(ctx, bindings, deps.Timeout)
		if !res.Success {
			return mcpError(fmt.Sprintf("Error loading dataset: %s", res.Error)), nil
		}
		b := bindings[0]
		return mcpText(fmt.Sprintf("Loaded %s as '%s' (path in '%s')", b.Path, b.Name, b.PathVar)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
