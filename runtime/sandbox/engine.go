package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/jonwraymond/taskexec/chart"
	"github.com/jonwraymond/taskexec/code"
)

// snippetFile names the snippet in positions and backtraces.
const snippetFile = "snippet.py"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Config configures an Engine.
type Config struct {
	// Now is the clock behind datetime.now and time.now.
	// Defaults to time.Now.
	Now func() time.Time

	// MaxSteps is the step budget used when the environment sets none.
	// Defaults to code.DefaultMaxSteps.
	MaxSteps uint64

	// Logger is an optional logger.
	Logger code.Logger
}

// Engine implements code.Engine with a Starlark interpreter. Every run gets
// its own thread, bindings, print buffer, and canvas, so runs share nothing.
type Engine struct {
	now      func() time.Time
	maxSteps uint64
	logger   code.Logger
}

var _ code.Engine = (*Engine)(nil)

// New creates an Engine.
func New(cfg Config) *Engine {
	e := &Engine{now: cfg.Now, maxSteps: cfg.MaxSteps, logger: cfg.Logger}
	if e.now == nil {
		e.now = time.Now
	}
	if e.maxSteps == 0 {
		e.maxSteps = code.DefaultMaxSteps
	}
	return e
}

// Run implements code.Engine.
func (e *Engine) Run(ctx context.Context, src string, env code.Environment) (code.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return code.RunResult{}, code.NewFault(code.TimeoutFault, err)
	}

	var stdout strings.Builder
	thread := &starlark.Thread{
		Name: "snippet",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
	}
	steps := env.MaxSteps
	if steps == 0 {
		steps = e.maxSteps
	}
	thread.SetMaxExecutionSteps(steps)
	starlarktime.SetNow(thread, func() (time.Time, error) { return e.now(), nil })

	canvas := chart.NewCanvas()
	predeclared, err := e.bindings(ctx, env, canvas)
	if err != nil {
		return code.RunResult{}, err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, runErr := execSnippet(thread, prepareSource(src, env.Allows), predeclared)

	res := code.RunResult{
		Globals: harvest(globals),
		Stdout:  stdout.String(),
		Steps:   thread.ExecutionSteps(),
		Figures: canvas.Figures(),
	}
	if runErr != nil {
		f := toFault(runErr)
		e.logf("sandbox: %s fault after %d steps", f.Kind, res.Steps)
		return res, f
	}
	return res, nil
}

// execSnippet runs the snippet, converting an interpreter panic into a fault.
// Names that are neither bound nor builtin resolve as predeclared, so an
// unbound name fails when its statement runs rather than before the first
// one. Statements ahead of it keep their effects.
func execSnippet(thread *starlark.Thread, src string, predeclared starlark.StringDict) (globals starlark.StringDict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = code.NewFault(code.UncategorizedFault, fmt.Errorf("interpreter panic: %v", r))
		}
	}()
	isPredeclared := func(name string) bool {
		return predeclared.Has(name) || !starlark.Universe.Has(name)
	}
	_, prog, err := starlark.SourceProgramOptions(fileOptions, snippetFile, src, isPredeclared)
	if err != nil {
		return nil, err
	}
	globals, err = prog.Init(thread, predeclared)
	globals.Freeze()
	return globals, err
}

// harvest converts the output bindings present in globals.
func harvest(globals starlark.StringDict) map[string]any {
	out := make(map[string]any)
	for _, name := range code.OutputBindings {
		if v, ok := globals[name]; ok {
			out[name] = toGo(v)
		}
	}
	return out
}

// bindings translates the environment whitelist into predeclared values.
func (e *Engine) bindings(ctx context.Context, env code.Environment, canvas *chart.Canvas) (starlark.StringDict, error) {
	tasks := taskList(env.Tasks)
	out := make(starlark.StringDict, len(env.Bindings))
	for _, name := range env.Bindings {
		var v starlark.Value
		switch name {
		case code.BindDatetime:
			v = &datetimeType{now: e.now}
		case code.BindTimedelta:
			v = timedeltaBuiltin
		case code.BindTime:
			v = starlarktime.Module
		case code.BindJSON:
			v = newJSONModule()
		case code.BindRe:
			v = newReModule()
		case code.BindMath:
			v = starlarkmath.Module
		case code.BindStatistics:
			v = newStatisticsModule()
		case code.BindCounter:
			v = starlark.NewBuiltin("Counter", makeCounter)
		case code.BindDefaultdict:
			v = starlark.NewBuiltin("defaultdict", makeDefaultdict)
		case code.BindTasks, code.BindAllTasks, code.BindAllTasksAlt:
			v = tasks
		case code.BindRequest:
			v = starlark.String(env.Request)
		case code.BindSum:
			v = sumBuiltin
		case code.BindRound:
			v = roundBuiltin
		case code.BindIsinstance:
			v = isinstanceBuiltin
		case code.BindAbs:
			v = starlark.Universe["abs"]
		case code.BindTaskManager:
			v = &taskManager{ctx: ctx, repo: env.Repository, now: e.now}
		case code.BindPlot:
			v = newPlotModule(canvas)
		case code.BindTable:
			v = newTableModule()
		default:
			return nil, fmt.Errorf("%w: no binding named %q", code.ErrConfiguration, name)
		}
		out[name] = v
	}
	out[formatBuiltin] = formatValueFunc
	return out, nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Logf(format, args...)
	}
}
