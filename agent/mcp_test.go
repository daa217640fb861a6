package agent

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/taskexec/backend"
)

func connectMCP(t *testing.T, a *Agent) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server, err := NewMCPServer(ctx, a, "v0.0.1")
	if err != nil {
		t.Fatalf("NewMCPServer() error = %v", err)
	}
	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server.Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client.Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] = %T, want *mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func TestMCPServer_ListTools(t *testing.T) {
	a := newAgent(t, Config{Backends: []backend.Backend{newMockBackend("calendar", "list_events")}})
	cs := connectMCP(t, a)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	var names []string
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
	}
	for _, want := range []string{"create_task", "delete_task", "calendar.list_events"} {
		if !slices.Contains(names, want) {
			t.Errorf("ListTools() = %v, missing %s", names, want)
		}
	}
}

func TestMCPServer_CallTool(t *testing.T) {
	store := newStore()
	a := newAgent(t, Config{Tasks: store})
	cs := connectMCP(t, a)
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "create_task",
		Arguments: map[string]any{"title": "From MCP", "priority": "low"},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("CallTool() IsError, text = %s", resultText(t, res))
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out["status"] != "success" {
		t.Errorf("result = %v", out)
	}
	all, _ := store.ListAll(ctx)
	if len(all) != 1 || all[0].Title != "From MCP" {
		t.Errorf("store = %+v", all)
	}

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "create_task", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("CallTool(invalid) error = %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "invalid") {
		t.Errorf("CallTool(invalid) = %+v", res)
	}

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{Name: "calendar.list_events"})
	if err == nil && !res.IsError {
		t.Error("CallTool(unserved tool) succeeded")
	}
}
