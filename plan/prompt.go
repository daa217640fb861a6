package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/task"
)

const querySystemPrompt = "You write safe, well-commented Python code to query and analyze task data."

const chartSystemPrompt = "You write safe, well-commented matplotlib code to create data visualizations."

// dialectNotes tells the model which Python the sandbox accepts.
const dialectNotes = `The code runs in a restricted Python dialect:
- Not supported: try/except/raise, class, with, yield, del, global, chained
  comparisons (a < b < c), set literals, the ** operator, and imports of
  anything not listed above. Strings are not iterable; use s.elems().
- "%" formatting takes no width or precision ("%d", "%s" only); use
  f-strings with format specs (f"{rate:.1f}%") or round() instead.
- Supported: f-strings, "is None" / "is not None", generator expressions as
  call arguments, sum, round, isinstance, abs, min, max, sorted, any, all,
  json.dumps and json.loads.`

var queryTemplate = template.Must(template.New("query").Parse(`{{.Schema}}

You are a task management assistant. Generate Python code to query and analyze tasks.

Task fields:
- task_id: str (unique identifier)
- title: str
- description: str
- priority: str ("high", "medium", "low")
- deadline: datetime or None
- status: str ("todo", "in_progress", "completed")
- assignee: str
- tags: List[str]
- created_at, updated_at: datetime
- completed_at: datetime or None

Available in execution environment:
- tasks, all_tasks: the task list (same value)
- task_manager: get_task(id), get_all_tasks(), update_task(id, **fields), update_status(id, status)
- datetime, timedelta: for date operations
- json, re, math, statistics, Counter, defaultdict
- user_request: the original request
- sum, round, isinstance, abs

{{.Dialect}}

REQUIREMENTS:
1. Set answer_text to a human-readable response (1-2 sentences)
2. Optionally set answer_rows (list of task dicts) or answer_json (structured data)
3. Set STATUS to "success", "no_match", or "error"
4. Print a brief log message

Wrap your code in {{.Open}} tags:
{{.Open}}
filtered = [t for t in tasks if t.priority == "high"]
answer_text = f"Found {len(filtered)} tasks matching your criteria."
answer_rows = [t.to_dict() for t in filtered]
STATUS = "success"
print(f"LOG: Found {len(filtered)} tasks")
{{.Close}}

User request: {{.Request}}
`))

var chartTemplate = template.Must(template.New("chart").Parse(`You are a data visualization expert.

Generate Python code to create a productivity chart from task data.

Available data:
- tasks: list of tasks with task_id, title, priority, status, deadline, created_at, completed_at, assignee, tags
- pd.DataFrame([t.to_dict() for t in tasks]) builds a table with value_counts(col) and groupby_count(col)
- plt offers figure, bar, barh, plot, pie, title, xlabel, ylabel, legend, savefig, close

{{.Dialect}}

User instruction: {{.Instruction}}

REQUIREMENTS:
1. Add a title and axis labels
2. Save the figure as '{{.Output}}'
3. Always call plt.close() at the end (no plt.show())

Return ONLY the code wrapped in {{.Open}} tags:
{{.Open}}
counts = pd.DataFrame([t.to_dict() for t in tasks]).value_counts("status")
plt.bar(list(counts.keys()), list(counts.values()))
plt.title("Tasks by status")
plt.savefig('{{.Output}}')
plt.close()
{{.Close}}
`))

// SchemaBlock describes the current collection for the prompt: a sample task
// and the status and priority breakdowns.
func SchemaBlock(tasks []task.Task) string {
	if len(tasks) == 0 {
		return "No tasks in database yet."
	}
	sample, err := json.MarshalIndent(tasks[0].ToMap(), "", "  ")
	if err != nil {
		sample = []byte("{}")
	}

	status := map[task.Status]int{}
	priority := map[task.Priority]int{}
	for _, t := range tasks {
		status[t.Status]++
		priority[t.Priority]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sample task:\n%s\n\nCurrent task count: %d\nStatus breakdown:", sample, len(tasks))
	for _, s := range task.Statuses {
		fmt.Fprintf(&b, " %s=%d", s, status[s])
	}
	b.WriteString("\nPriority breakdown:")
	for _, p := range task.Priorities {
		fmt.Fprintf(&b, " %s=%d", p, priority[p])
	}
	return b.String()
}

// QueryPrompt renders the prompt for a query request.
func QueryPrompt(tasks []task.Task, request string) (string, error) {
	var b strings.Builder
	err := queryTemplate.Execute(&b, map[string]string{
		"Schema":  SchemaBlock(tasks),
		"Request": request,
		"Dialect": dialectNotes,
		"Open":    code.OpenTag,
		"Close":   code.CloseTag,
	})
	return querySystemPrompt + "\n\n" + b.String(), err
}

// ChartPrompt renders the prompt for a chart instruction.
func ChartPrompt(instruction, output string) (string, error) {
	var b strings.Builder
	err := chartTemplate.Execute(&b, map[string]string{
		"Instruction": instruction,
		"Output":      output,
		"Dialect":     dialectNotes,
		"Open":        code.OpenTag,
		"Close":       code.CloseTag,
	})
	return chartSystemPrompt + "\n\n" + b.String(), err
}
