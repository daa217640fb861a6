package code

import (
	"context"

	"github.com/jonwraymond/taskexec/chart"
)

// Engine runs a snippet against an Environment. Implementations own the
// interpreter, the translation of the whitelist into bindings, and the
// capture of printed output.
//
// The Engine should:
//   - Bind exactly the names in env.Bindings and refuse unknown ones
//   - Capture print output into a buffer owned by the single run
//   - Return the output bindings present in the final globals, converted
//     to plain Go values, even when the run faulted part way through
//   - Report the number of interpreter steps used
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must stop the run when ctx is done and report a TimeoutFault.
// - Errors: snippet failures are returned as *Fault; binding an unknown
//   name returns ErrConfiguration.
// - Ownership: env is read-only; the returned RunResult is caller-owned.
type Engine interface {
	// Run executes code and returns its harvested globals and output.
	Run(ctx context.Context, code string, env Environment) (RunResult, error)
}

// RunResult is the raw outcome of an engine run.
type RunResult struct {
	// Globals holds the output bindings that were set, converted to plain
	// Go values. Missing names are absent.
	Globals map[string]any

	// Stdout is everything the snippet printed.
	Stdout string

	// Steps is the number of interpreter steps executed.
	Steps uint64

	// Figures holds the charts drawn through the plotting handle.
	Figures []chart.Figure
}
