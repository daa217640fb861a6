package backend

import (
	"context"
	"sync"
	"testing"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mockBackend implements Backend for testing.
type mockBackend struct {
	kind    string
	name    string
	enabled bool
	tools   []model.Tool
	listErr error
	execFn  func(ctx context.Context, tool string, args map[string]any) (any, error)
	stopErr error

	mu      sync.Mutex
	calls   []string
	stopped int
}

func (m *mockBackend) Kind() string  { return m.kind }
func (m *mockBackend) Name() string  { return m.name }
func (m *mockBackend) Enabled() bool { return m.enabled }

func (m *mockBackend) ListTools(_ context.Context) ([]model.Tool, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]model.Tool(nil), m.tools...), nil
}

func (m *mockBackend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, tool)
	m.mu.Unlock()
	if m.execFn != nil {
		return m.execFn(ctx, tool, args)
	}
	return nil, nil
}

func (m *mockBackend) Start(_ context.Context) error { return nil }

func (m *mockBackend) Stop() error {
	m.mu.Lock()
	m.stopped++
	m.mu.Unlock()
	return m.stopErr
}

func tool(name string) model.Tool {
	return model.Tool{Tool: mcp.Tool{Name: name, InputSchema: map[string]any{"type": "object"}}}
}

func TestBackend_Interface(t *testing.T) {
	t.Helper()
	var _ Backend = (*mockBackend)(nil)
}

func TestBackend_Methods(t *testing.T) {
	b := &mockBackend{
		kind:    "local",
		name:    "tasks",
		enabled: true,
		tools:   []model.Tool{tool("create_task")},
		execFn: func(_ context.Context, _ string, _ map[string]any) (any, error) {
			return "created", nil
		},
	}

	if b.Kind() != "local" {
		t.Errorf("Kind() = %q, want %q", b.Kind(), "local")
	}
	if b.Name() != "tasks" {
		t.Errorf("Name() = %q, want %q", b.Name(), "tasks")
	}

	tools, err := b.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(tools) != 1 {
		t.Errorf("ListTools() returned %d tools, want 1", len(tools))
	}

	result, err := b.Execute(context.Background(), "create_task", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "created" {
		t.Errorf("Execute() = %v, want %v", result, "created")
	}
}
