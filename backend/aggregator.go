package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/toolfoundation/model"
)

// ErrInvalidToolID is returned for malformed tool IDs.
var ErrInvalidToolID = errors.New("invalid tool ID format")

// Observer is called after every aggregated tool execution.
type Observer func(toolID string, elapsed time.Duration, err error)

// Aggregator combines tools from multiple backends under "backend:tool" IDs.
//
// Contract:
// - Concurrency: safe for concurrent use once constructed.
// - Errors: unknown backends return ErrBackendNotFound; malformed IDs return ErrInvalidToolID.
type Aggregator struct {
	registry *Registry
	observer Observer
}

// NewAggregator creates a new tool aggregator.
func NewAggregator(registry *Registry) *Aggregator {
	return &Aggregator{registry: registry}
}

// WithObserver returns a copy of a that reports executions to fn.
func (a *Aggregator) WithObserver(fn Observer) *Aggregator {
	cp := *a
	cp.observer = fn
	return &cp
}

// ListAllTools returns tools from all enabled backends, sorted by tool ID.
func (a *Aggregator) ListAllTools(ctx context.Context) ([]model.Tool, error) {
	var all []model.Tool
	for _, b := range a.registry.ListEnabled() {
		tools, err := b.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools from %s: %w", b.Name(), err)
		}
		for i := range tools {
			if tools[i].Namespace == "" {
				tools[i].Namespace = b.Name()
			}
			all = append(all, tools[i])
		}
	}
	slices.SortFunc(all, func(x, y model.Tool) int {
		return strings.Compare(x.ToolID(), y.ToolID())
	})
	return all, nil
}

// Execute invokes a tool through the backend registry.
func (a *Aggregator) Execute(ctx context.Context, toolID string, args map[string]any) (any, error) {
	start := time.Now()
	out, err := a.execute(ctx, toolID, args)
	if a.observer != nil {
		a.observer(toolID, time.Since(start), err)
	}
	return out, err
}

func (a *Aggregator) execute(ctx context.Context, toolID string, args map[string]any) (any, error) {
	backendName, tool, err := ParseToolID(toolID)
	if err != nil {
		return nil, err
	}
	if backendName == "" {
		return nil, ErrInvalidToolID
	}

	b, ok := a.registry.Get(backendName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, backendName)
	}
	if !b.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrBackendDisabled, backendName)
	}
	if args == nil {
		args = map[string]any{}
	}
	return b.Execute(ctx, tool, args)
}

// ParseToolID splits a tool ID into backend and tool name.
func ParseToolID(id string) (backendName, tool string, err error) {
	backendName, tool, err = model.ParseToolID(id)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidToolID, id)
	}
	return backendName, tool, nil
}

// FormatToolID builds a tool ID from backend and tool name.
func FormatToolID(backendName, tool string) string {
	if backendName == "" {
		return tool
	}
	return fmt.Sprintf("%s:%s", backendName, tool)
}
