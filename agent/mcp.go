package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName identifies the MCP server to clients.
const ServerName = "taskexec"

// NewMCPServer exposes every agent tool over MCP. Task tools keep their bare
// names; tools from other backends are published as "backend.tool".
//
// Tool failures are returned as error results (IsError) so the calling model
// can read them; only unknown tools are protocol errors.
func NewMCPServer(ctx context.Context, a *Agent, version string) (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)

	tools, err := a.Tools(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		published := t.Tool
		if t.Namespace != Namespace {
			published.Name = t.Namespace + "." + t.Name
		}
		server.AddTool(&published, a.mcpHandler(t.ToolID()))
	}
	return server, nil
}

// ServeMCP runs the MCP server over stdin/stdout until ctx is done or the
// client disconnects.
func ServeMCP(ctx context.Context, a *Agent, version string) error {
	server, err := NewMCPServer(ctx, a, version)
	if err != nil {
		return err
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (a *Agent) mcpHandler(toolID string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Errorf("decode arguments: %w", err)), nil
			}
		}
		out, err := a.Execute(ctx, toolID, args)
		if err != nil {
			return errorResult(err), nil
		}
		text, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", toolID, err)
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(text)}}}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
