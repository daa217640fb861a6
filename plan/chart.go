package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/taskexec/chart"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/task"
)

// ErrUnknownChart is returned by Builtin for names it does not know.
var ErrUnknownChart = errors.New("unknown built-in chart")

// Built-in chart names.
const (
	ChartPriority   = "priority"
	ChartCompletion = "completion"
)

// ChartConfig configures a ChartPlanner.
type ChartConfig struct {
	// Executor runs the generated snippet.
	// Required.
	Executor code.Executor

	// Repository supplies tasks for the built-in charts.
	// Required.
	Repository task.Reader

	// Dir is where figures are written. Defaults to "data/charts".
	Dir string

	// Generator produces the snippet. When nil, Chart runs the fallback.
	Generator Generator

	// Now is the clock for built-in charts. Defaults to time.Now.
	Now func() time.Time

	// Logger is an optional logger.
	Logger code.Logger
}

// ChartResponse is the shaped outcome of one chart request.
type ChartResponse struct {
	Instruction   string        `json:"instruction" yaml:"instruction"`
	GeneratedCode string        `json:"code,omitempty" yaml:"code,omitempty"`
	Status        string        `json:"status" yaml:"status"`
	Message       string        `json:"message" yaml:"message"`
	Fault         *code.Fault   `json:"error,omitempty" yaml:"error,omitempty"`
	Figure        *chart.Figure `json:"figure,omitempty" yaml:"figure,omitempty"`
	Path          string        `json:"chart_path,omitempty" yaml:"chart_path,omitempty"`
}

// Chart response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ChartPlanner draws charts from free-text instructions using the chart
// variant of the executor.
type ChartPlanner struct {
	cfg ChartConfig
}

// NewChartPlanner validates cfg and returns a planner.
func NewChartPlanner(cfg ChartConfig) (*ChartPlanner, error) {
	var missing []string
	if cfg.Executor == nil {
		missing = append(missing, "Executor")
	}
	if cfg.Repository == nil {
		missing = append(missing, "Repository")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", code.ErrConfiguration, strings.Join(missing, ", "))
	}
	if cfg.Dir == "" {
		cfg.Dir = "data/charts"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ChartPlanner{cfg: cfg}, nil
}

// Generates reports whether a generator is configured.
func (p *ChartPlanner) Generates() bool {
	return p.cfg.Generator != nil
}

// Chart generates a plotting snippet for instruction, runs it, and saves the
// last figure it drew.
func (p *ChartPlanner) Chart(ctx context.Context, instruction string) (ChartResponse, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return ChartResponse{}, ErrEmptyRequest
	}
	output := "chart_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + ".json"

	generated := p.generate(ctx, instruction, output)
	resp := ChartResponse{Instruction: instruction, GeneratedCode: generated}

	res, err := p.cfg.Executor.Execute(ctx, generated,
		code.WithRequest(instruction), code.WithVariant(code.VariantChart))
	if err != nil {
		return ChartResponse{}, err
	}
	if res.Error != nil {
		resp.Status = StatusError
		resp.Fault = res.Error
		resp.Message = "Chart generation failed: " + res.Error.Message
		return resp, nil
	}
	if len(res.Figures) == 0 {
		resp.Status = StatusError
		resp.Message = "The snippet drew no chart."
		if text, ok := res.Output.Text.(string); ok && text != "" {
			resp.Message = text
		}
		return resp, nil
	}

	fig := res.Figures[len(res.Figures)-1]
	name := output
	if fig.SavedAs != "" {
		name = fig.SavedAs
	}
	return p.save(resp, fig, name)
}

// Builtin draws one of the fixed productivity charts.
func (p *ChartPlanner) Builtin(ctx context.Context, name string, days int) (ChartResponse, error) {
	tasks, err := p.cfg.Repository.ListAll(ctx)
	if err != nil {
		return ChartResponse{}, fmt.Errorf("%w: %w", code.ErrRepository, err)
	}

	var fig chart.Figure
	switch name {
	case ChartPriority:
		fig = chart.PriorityDistribution(tasks)
	case ChartCompletion:
		if days <= 0 {
			days = 7
		}
		fig = chart.CompletionRate(tasks, days, p.cfg.Now())
	default:
		return ChartResponse{}, fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}

	resp := ChartResponse{Instruction: name}
	if fig.Empty() {
		resp.Status = StatusError
		resp.Message = "No tasks to chart."
		return resp, nil
	}
	return p.save(resp, fig, name+"_chart.json")
}

func (p *ChartPlanner) save(resp ChartResponse, fig chart.Figure, name string) (ChartResponse, error) {
	path, err := chart.Save(p.cfg.Dir, name, fig)
	if err != nil {
		return ChartResponse{}, err
	}
	p.logf("chart saved to %s", path)
	resp.Status = StatusSuccess
	resp.Message = "Chart generated successfully"
	resp.Figure = &fig
	resp.Path = path
	return resp, nil
}

func (p *ChartPlanner) generate(ctx context.Context, instruction, output string) string {
	if p.cfg.Generator == nil {
		return chartFallback("Chart generation is not configured.")
	}
	prompt, err := ChartPrompt(instruction, output)
	if err != nil {
		p.logf("render chart prompt: %v", err)
		return chartFallback("Chart generation error.")
	}
	text, err := p.cfg.Generator.Generate(ctx, prompt)
	if err != nil {
		p.logf("chart generation failed: %v", err)
		return chartFallback("Chart generation error.")
	}
	if !code.HasCodeBlock(text) {
		text = code.WrapCodeBlock(text)
	}
	return text
}

func (p *ChartPlanner) logf(format string, args ...any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Logf(format, args...)
	}
}

func chartFallback(message string) string {
	return code.WrapCodeBlock(fmt.Sprintf("answer_text = %q\nSTATUS = \"error\"", message))
}
