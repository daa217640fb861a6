package local

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jonwraymond/taskexec/backend"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HandlerFunc is the function signature for tool handlers.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// ToolDef defines a local tool with its handler.
type ToolDef struct {
	Name        string
	Title       string
	Description string
	InputSchema map[string]any
	Annotations *mcp.ToolAnnotations
	Tags        []string
	Handler     HandlerFunc
}

func (d ToolDef) tool(namespace string) model.Tool {
	schema := d.InputSchema
	if schema == nil {
		schema = ObjectSchema(nil)
	}
	return model.Tool{
		Tool: mcp.Tool{
			Name:        d.Name,
			Title:       d.Title,
			Description: d.Description,
			InputSchema: schema,
			Annotations: d.Annotations,
		},
		Namespace: namespace,
		Tags:      model.NormalizeTags(d.Tags),
	}
}

// Backend serves in-process tool handlers.
//
// Arguments are validated against the tool's input schema before the handler
// runs; a mismatch returns backend.ErrInvalidArgs.
type Backend struct {
	name      string
	enabled   bool
	handlers  map[string]ToolDef
	validator model.SchemaValidator
	mu        sync.RWMutex
}

// New creates a new local backend.
func New(name string) *Backend {
	return &Backend{
		name:      name,
		enabled:   true,
		handlers:  make(map[string]ToolDef),
		validator: model.NewDefaultValidator(),
	}
}

// Kind returns the backend kind.
func (b *Backend) Kind() string {
	return "local"
}

// Name returns the backend instance name.
func (b *Backend) Name() string {
	return b.name
}

// Enabled returns whether the backend is enabled.
func (b *Backend) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled enables or disables the backend.
func (b *Backend) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// RegisterHandler registers a tool handler, replacing any tool of the same
// name. The definition must produce a valid tool.
func (b *Backend) RegisterHandler(name string, def ToolDef) error {
	if def.Name == "" {
		def.Name = name
	}
	tool := def.tool(b.name)
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", def.Name, err)
	}
	if def.Handler == nil {
		return fmt.Errorf("register %s: handler is nil", def.Name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[def.Name] = def
	return nil
}

// UnregisterHandler removes a tool handler.
func (b *Backend) UnregisterHandler(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// ListTools returns the registered tools sorted by name.
func (b *Backend) ListTools(_ context.Context) ([]model.Tool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Tool, 0, len(b.handlers))
	for _, def := range b.handlers {
		out = append(out, def.tool(b.name))
	}
	slices.SortFunc(out, func(x, y model.Tool) int { return strings.Compare(x.Name, y.Name) })
	return out, nil
}

// Execute validates args and invokes a tool handler.
func (b *Backend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	b.mu.RLock()
	enabled := b.enabled
	def, ok := b.handlers[tool]
	b.mu.RUnlock()

	if !enabled {
		return nil, backend.ErrBackendDisabled
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrToolNotFound, tool)
	}
	if args == nil {
		args = map[string]any{}
	}
	spec := def.tool(b.name)
	if err := b.validator.ValidateInput(&spec, args); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", backend.ErrInvalidArgs, tool, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return def.Handler(ctx, Args(args))
}

// Start initializes the backend (no-op for local backend).
func (b *Backend) Start(_ context.Context) error {
	return nil
}

// Stop stops the backend (no-op for local backend).
func (b *Backend) Stop() error {
	return nil
}
