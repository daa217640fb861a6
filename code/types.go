package code

import (
	"fmt"
	"time"

	"github.com/jonwraymond/taskexec/chart"
	"github.com/jonwraymond/taskexec/task"
)

// StatusUnknown is reported when a snippet never sets STATUS.
const StatusUnknown = "unknown"

// Output holds the conventional bindings a snippet may set. Absent bindings
// are nil (or "" for Status).
type Output struct {
	// Text is answer_text.
	Text any `json:"answer_text,omitempty"`

	// Rows is answer_rows.
	Rows any `json:"answer_rows,omitempty"`

	// JSON is answer_json.
	JSON any `json:"answer_json,omitempty"`

	// Result is result.
	Result any `json:"result,omitempty"`

	// Status is STATUS, rendered as text.
	Status string `json:"STATUS,omitempty"`
}

// OutputFromGlobals collects the output bindings from harvested globals.
func OutputFromGlobals(globals map[string]any) Output {
	out := Output{
		Text:   globals[OutAnswerText],
		Rows:   globals[OutAnswerRows],
		JSON:   globals[OutAnswerJSON],
		Result: globals[OutResult],
	}
	switch s := globals[OutStatus].(type) {
	case nil:
	case string:
		out.Status = s
	default:
		out.Status = fmt.Sprint(s)
	}
	return out
}

// Answer returns the first truthy value among Text, Rows, JSON, and Result,
// or nil when none is truthy.
func (o Output) Answer() any {
	for _, v := range []any{o.Text, o.Rows, o.JSON, o.Result} {
		if Truthy(v) {
			return v
		}
	}
	return nil
}

// Truthy reports whether v counts as true in a boolean context: nil, false,
// zero numbers, and empty strings, lists, and maps are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// ExecutionResult is the outcome of one Execute call.
type ExecutionResult struct {
	// Code is the extracted snippet that was run.
	Code string `json:"code"`

	// Answer is the first truthy output binding, or nil.
	Answer any `json:"answer"`

	// Output holds every harvested output binding.
	Output Output `json:"output"`

	// Stdout is the trimmed printed output.
	Stdout string `json:"stdout"`

	// Error is the captured fault, or nil when the snippet completed.
	Error *Fault `json:"error"`

	// Status is STATUS as set by the snippet, or "unknown".
	Status string `json:"status"`

	// TasksAfter is a fresh snapshot taken after the run. It is nil when the
	// snapshot failed.
	TasksAfter []task.Task `json:"tasks_after"`

	// Figures holds the charts drawn by a chart snippet.
	Figures []chart.Figure `json:"figures,omitempty"`

	// DurationMs is the engine run time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Steps is the number of interpreter steps executed.
	Steps uint64 `json:"steps"`
}

// ExecOption customizes a single Execute call.
type ExecOption func(*execParams)

type execParams struct {
	request string
	variant Variant
	timeout time.Duration
}

// WithRequest binds the originating user request as user_request.
func WithRequest(request string) ExecOption {
	return func(p *execParams) { p.request = request }
}

// WithVariant selects the binding set. Defaults to VariantQuery.
func WithVariant(v Variant) ExecOption {
	return func(p *execParams) { p.variant = v }
}

// WithTimeout overrides the executor's default timeout for this call.
// Non-positive values are ignored.
func WithTimeout(d time.Duration) ExecOption {
	return func(p *execParams) {
		if d > 0 {
			p.timeout = d
		}
	}
}
