package plan

import (
	"context"
	"errors"
)

// ErrNoGenerator is returned by planners that have no Generator configured.
var ErrNoGenerator = errors.New("no code generator configured")

// ErrEmptyRequest is returned when the request or instruction is blank.
var ErrEmptyRequest = errors.New("empty request")

// Generator turns a prompt into model text that contains a tagged snippet.
// Provider clients satisfy this interface; plan/remote speaks a generic
// HTTP protocol.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines.
// - Errors: any error makes the planner substitute its fallback snippet.
type Generator interface {
	// Generate returns the raw model text for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// StaticGenerator always returns the same text.
type StaticGenerator struct {
	Text string
	Err  error
}

// Generate returns g.Text or g.Err.
func (g StaticGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.Err != nil {
		return "", g.Err
	}
	return g.Text, nil
}

// FuncGenerator adapts a function to Generator.
type FuncGenerator func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f FuncGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
