package backend

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolfoundation/model"
)

// Common errors for backend operations.
var (
	ErrBackendNotFound = errors.New("backend not found")
	ErrBackendDisabled = errors.New("backend disabled")
	ErrToolNotFound    = errors.New("tool not found in backend")
	ErrInvalidArgs     = errors.New("invalid tool arguments")
)

// Backend is a named source of agent tools. The task tool catalog is served
// by a local backend; other sources (an MCP client, an HTTP bridge) plug in
// behind the same interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: ListTools and Execute must honor cancellation/deadlines.
// - Errors: use ErrBackendDisabled/ErrToolNotFound/ErrInvalidArgs where applicable.
type Backend interface {
	// Kind returns the backend type (e.g., "local", "mcp").
	Kind() string

	// Name returns the unique instance name. It doubles as the tool namespace.
	Name() string

	// Enabled returns whether this backend is currently enabled.
	Enabled() bool

	// ListTools returns the tools this backend serves.
	ListTools(ctx context.Context) ([]model.Tool, error)

	// Execute invokes a tool by its bare name.
	Execute(ctx context.Context, tool string, args map[string]any) (any, error)

	// Start prepares the backend for use.
	Start(ctx context.Context) error

	// Stop releases backend resources.
	Stop() error
}

// Info summarizes a registered backend for status endpoints.
type Info struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Tools   int    `json:"tools"`
}
