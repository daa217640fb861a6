package code

import (
	"slices"

	"github.com/jonwraymond/taskexec/task"
)

// Variant selects the binding set offered to a snippet.
type Variant string

const (
	// VariantQuery answers questions about the task collection.
	VariantQuery Variant = "query"

	// VariantChart additionally offers the plotting and table handles.
	VariantChart Variant = "chart"
)

// Names bound into every query snippet.
const (
	BindDatetime    = "datetime"
	BindTimedelta   = "timedelta"
	BindTime        = "time"
	BindJSON        = "json"
	BindRe          = "re"
	BindMath        = "math"
	BindStatistics  = "statistics"
	BindCounter     = "Counter"
	BindDefaultdict = "defaultdict"
	BindTasks       = "tasks"
	BindAllTasks    = "all_tasks"
	BindAllTasksAlt = "allTasks"
	BindRequest     = "user_request"
	BindTaskManager = "task_manager"
	BindSum         = "sum"
	BindRound       = "round"
	BindIsinstance  = "isinstance"
	BindAbs         = "abs"
)

// Names bound only into chart snippets.
const (
	BindPlot  = "plt"
	BindTable = "pd"
)

var queryBindings = []string{
	BindDatetime, BindTimedelta, BindTime, BindJSON, BindRe, BindMath,
	BindStatistics, BindCounter, BindDefaultdict, BindTasks, BindAllTasks,
	BindAllTasksAlt, BindRequest, BindTaskManager, BindSum, BindRound,
	BindIsinstance, BindAbs,
}

// Output binding names harvested after a run.
const (
	OutAnswerText = "answer_text"
	OutAnswerRows = "answer_rows"
	OutAnswerJSON = "answer_json"
	OutResult     = "result"
	OutStatus     = "STATUS"
)

// OutputBindings lists the harvested names in answer priority order,
// followed by the status name.
var OutputBindings = []string{OutAnswerText, OutAnswerRows, OutAnswerJSON, OutResult, OutStatus}

// Environment is the complete set of values a snippet may see. It is a plain
// value; the engine translates it into interpreter bindings.
type Environment struct {
	// Tasks is the snapshot bound as tasks, all_tasks, and allTasks.
	// It is a deep copy owned by this environment.
	Tasks []task.Task

	// Request is the originating user request, bound as user_request.
	Request string

	// Variant selects the binding set.
	Variant Variant

	// Bindings is the whitelist of names the engine must bind, sorted.
	Bindings []string

	// Repository backs the task_manager callbacks. When it also implements
	// task.Repository, task_manager offers update_task and update_status.
	// Nil disables the callbacks beyond the snapshot.
	Repository task.Reader

	// MaxSteps is the interpreter step budget. Zero means the engine default.
	MaxSteps uint64
}

// BuildEnvironment returns the environment for one execution. The task
// slice is deep-copied so the snippet can never reach the caller's data.
func BuildEnvironment(tasks []task.Task, request string, variant Variant) Environment {
	if variant == "" {
		variant = VariantQuery
	}
	bindings := slices.Clone(queryBindings)
	if variant == VariantChart {
		bindings = append(bindings, BindPlot, BindTable)
	}
	slices.Sort(bindings)
	return Environment{
		Tasks:    task.CloneAll(tasks),
		Request:  request,
		Variant:  variant,
		Bindings: bindings,
	}
}

// Allows reports whether name is on the environment's whitelist.
func (e Environment) Allows(name string) bool {
	_, ok := slices.BinarySearch(e.Bindings, name)
	return ok
}
