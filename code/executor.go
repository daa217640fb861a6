package code

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Executor is the main entry point for running generated snippets.
// It extracts the code, snapshots the tasks, runs the engine under limits,
// and shapes the outcome.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; calls
//   share no output buffers or bindings.
// - Context: must honor cancellation/deadlines; expiry is captured as a
//   TimeoutFault in the result.
// - Errors: only rejected calls return an error (ErrEmptyInput,
//   ErrRepository, or ErrConfiguration from the engine). Snippet faults
//   are reported in ExecutionResult.Error.
// - Ownership: text is read-only; the returned ExecutionResult is caller-owned.
type Executor interface {
	// Execute runs the snippet contained in text.
	Execute(ctx context.Context, text string, opts ...ExecOption) (ExecutionResult, error)
}

// DefaultExecutor is the standard implementation of Executor.
type DefaultExecutor struct {
	cfg Config
}

// NewDefaultExecutor creates a new DefaultExecutor with the given configuration.
// Returns ErrConfiguration if any required field is missing.
func NewDefaultExecutor(cfg Config) (*DefaultExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &DefaultExecutor{cfg: cfg}, nil
}

// Execute runs the snippet contained in text against a fresh snapshot of the
// task repository.
func (e *DefaultExecutor) Execute(ctx context.Context, text string, opts ...ExecOption) (ExecutionResult, error) {
	params := execParams{variant: VariantQuery, timeout: e.cfg.DefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&params)
		}
	}

	code, err := ExtractCodeBlock(text)
	if err != nil {
		return ExecutionResult{}, err
	}

	snapshot, err := e.cfg.Repository.ListAll(ctx)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	env := BuildEnvironment(snapshot, params.request, params.variant)
	env.Repository = e.cfg.Repository
	env.MaxSteps = e.cfg.MaxSteps

	runCtx, cancel := context.WithTimeout(ctx, params.timeout)
	defer cancel()

	start := time.Now()
	run, runErr := e.cfg.Engine.Run(runCtx, code, env)
	duration := time.Since(start).Milliseconds()
	if errors.Is(runErr, ErrConfiguration) {
		return ExecutionResult{}, runErr
	}

	result := ExecutionResult{
		Code:       code,
		Output:     OutputFromGlobals(run.Globals),
		Stdout:     strings.TrimSpace(run.Stdout),
		Figures:    run.Figures,
		DurationMs: duration,
		Steps:      run.Steps,
	}
	result.Answer = result.Output.Answer()
	result.Status = result.Output.Status
	if result.Status == "" {
		result.Status = StatusUnknown
	}

	if runErr != nil {
		result.Error = e.toFault(runCtx, runErr, params.timeout)
		e.logf("snippet fault (%s) after %dms: %s", result.Error.Kind, duration, result.Error.Message)
	} else {
		e.logf("snippet completed in %dms (%d steps, status %s)", duration, run.Steps, result.Status)
	}

	// The caller's context may already be done after a timeout; the
	// post-run snapshot is taken regardless.
	after, err := e.cfg.Repository.ListAll(context.WithoutCancel(ctx))
	if err != nil {
		e.logf("post-run snapshot failed: %v", err)
	} else {
		result.TasksAfter = after
	}

	return result, nil
}

// toFault normalizes an engine error into a *Fault.
func (e *DefaultExecutor) toFault(ctx context.Context, err error, timeout time.Duration) *Fault {
	var f *Fault
	if !errors.As(err, &f) {
		f = NewFault(Classify(err), err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		f.Kind = TimeoutFault
		if !strings.Contains(f.Message, "timeout") {
			f.Message = fmt.Sprintf("timeout after %v: %s", timeout, f.Message)
		}
	}
	return f
}
