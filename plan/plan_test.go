package plan

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/taskexec/chart"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/runtime/sandbox"
	"github.com/jonwraymond/taskexec/task"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newStore() *task.MemoryStore {
	a := task.New("Write report", now.Add(-48*time.Hour))
	a.Priority = task.PriorityHigh
	b := task.New("Buy milk", now.Add(-24*time.Hour))
	c := task.New("File taxes", now.Add(-72*time.Hour))
	c.Priority = task.PriorityHigh
	c.SetStatus(task.StatusCompleted, now.Add(-time.Hour))
	store := task.NewMemoryStore(a, b, c)
	store.SetClock(func() time.Time { return now })
	return store
}

func newExecutor(t *testing.T, repo task.Reader) code.Executor {
	t.Helper()
	exec, err := code.NewDefaultExecutor(code.Config{
		Repository: repo,
		Engine:     sandbox.New(sandbox.Config{Now: func() time.Time { return now }}),
	})
	require.NoError(t, err)
	return exec
}

const highPriorityAnswer = `Here you go.
<execute_python>
high = [t for t in tasks if t.priority == "high" and t.status != "completed"]
answer_text = "Found %d open high priority task(s)." % len(high)
answer_rows = [t.title for t in high]
STATUS = "success"
print("LOG: matched", len(high))
</execute_python>`

func TestQueryPlanner_Query(t *testing.T) {
	store := newStore()
	var prompts []string
	gen := FuncGenerator(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return highPriorityAnswer, nil
	})
	p, err := NewQueryPlanner(QueryConfig{Executor: newExecutor(t, store), Repository: store, Generator: gen})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "  which high priority tasks are open?  ")
	require.NoError(t, err)

	assert.Equal(t, "which high priority tasks are open?", resp.Request)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Found 1 open high priority task(s).", resp.Answer)
	assert.Equal(t, "LOG: matched 1", resp.Stdout)
	assert.Empty(t, resp.Error)
	assert.Nil(t, resp.Fault)
	assert.Equal(t, 3, resp.TasksFound)
	assert.Equal(t, highPriorityAnswer, resp.GeneratedCode)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "User request: which high priority tasks are open?")
	assert.Contains(t, prompts[0], "Current task count: 3")
	assert.Contains(t, prompts[0], "completed=1")
	assert.Contains(t, prompts[0], code.OpenTag)
}

func TestQueryPlanner_FaultIsShaped(t *testing.T) {
	store := newStore()
	gen := StaticGenerator{Text: code.WrapCodeBlock("answer_text = 'partial'\nx = undefined_name")}
	p, err := NewQueryPlanner(QueryConfig{Executor: newExecutor(t, store), Repository: store, Generator: gen})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "anything")
	require.NoError(t, err)
	require.NotNil(t, resp.Fault)
	assert.Equal(t, code.NameResolutionFault, resp.Fault.Kind)
	assert.Contains(t, resp.Error, "undefined_name")
	assert.Equal(t, code.StatusUnknown, resp.Status)
	assert.Equal(t, "partial", resp.Answer)
}

func TestQueryPlanner_GeneratorFailureUsesFallback(t *testing.T) {
	store := newStore()
	logger := &captureLogger{}
	p, err := NewQueryPlanner(QueryConfig{
		Executor:   newExecutor(t, store),
		Repository: store,
		Generator:  StaticGenerator{Err: errors.New("rate limited")},
		Logger:     logger,
	})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "how many tasks?")
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "Unable to generate query code. Please try a simpler query.", resp.Answer)
	assert.Nil(t, resp.Fault)
	assert.True(t, logger.has("query generation failed"))
}

func TestQueryPlanner_NoGenerator(t *testing.T) {
	store := newStore()
	p, err := NewQueryPlanner(QueryConfig{Executor: newExecutor(t, store), Repository: store})
	require.NoError(t, err)

	resp, err := p.Query(context.Background(), "how many tasks?")
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Answer, "not configured")
}

func TestQueryPlanner_Cache(t *testing.T) {
	store := newStore()
	var calls atomic.Int32
	gen := FuncGenerator(func(context.Context, string) (string, error) {
		calls.Add(1)
		return code.WrapCodeBlock("result = len(tasks)"), nil
	})
	p, err := NewQueryPlanner(QueryConfig{Executor: newExecutor(t, store), Repository: store, Generator: gen, CacheSize: 8})
	require.NoError(t, err)

	first, err := p.Query(context.Background(), "Count tasks")
	require.NoError(t, err)
	second, err := p.Query(context.Background(), "count TASKS")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, int64(3), second.Answer)
}

func TestQueryPlanner_Errors(t *testing.T) {
	store := newStore()
	_, err := NewQueryPlanner(QueryConfig{})
	assert.ErrorIs(t, err, code.ErrConfiguration)

	p, err := NewQueryPlanner(QueryConfig{Executor: newExecutor(t, store), Repository: store})
	require.NoError(t, err)
	_, err = p.Query(context.Background(), " \n")
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestSchemaBlock(t *testing.T) {
	assert.Equal(t, "No tasks in database yet.", SchemaBlock(nil))

	tasks, err := newStore().ListAll(context.Background())
	require.NoError(t, err)
	block := SchemaBlock(tasks)
	assert.Contains(t, block, `"title": "Write report"`)
	assert.Contains(t, block, "Status breakdown: todo=2 in_progress=0 completed=1")
	assert.Contains(t, block, "Priority breakdown: high=2 medium=1 low=0")
}

const statusChart = `counts = pd.DataFrame([t.to_dict() for t in tasks]).value_counts("status")
plt.figure()
plt.bar(list(counts.keys()), list(counts.values()))
plt.title("Tasks by status")
plt.savefig("status.png")
plt.close()`

func TestChartPlanner_Chart(t *testing.T) {
	store := newStore()
	dir := t.TempDir()
	var prompt string
	gen := FuncGenerator(func(_ context.Context, p string) (string, error) {
		prompt = p
		return statusChart, nil
	})
	p, err := NewChartPlanner(ChartConfig{Executor: newExecutor(t, store), Repository: store, Dir: dir, Generator: gen})
	require.NoError(t, err)

	resp, err := p.Chart(context.Background(), "show tasks by status")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)

	assert.True(t, code.HasCodeBlock(resp.GeneratedCode), "untagged text should be wrapped")
	assert.Contains(t, prompt, "User instruction: show tasks by status")
	assert.Equal(t, filepath.Join(dir, "status.json"), resp.Path)
	require.NotNil(t, resp.Figure)
	assert.Equal(t, "Tasks by status", resp.Figure.Title)

	saved, err := chart.Load(resp.Path)
	require.NoError(t, err)
	require.Len(t, saved.Series, 1)
	assert.Equal(t, []float64{2, 1}, saved.Series[0].Y)
}

func TestChartPlanner_NoFigure(t *testing.T) {
	store := newStore()
	p, err := NewChartPlanner(ChartConfig{Executor: newExecutor(t, store), Repository: store, Dir: t.TempDir()})
	require.NoError(t, err)

	resp, err := p.Chart(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "Chart generation is not configured.", resp.Message)
	assert.Nil(t, resp.Figure)
}

func TestChartPlanner_Fault(t *testing.T) {
	store := newStore()
	p, err := NewChartPlanner(ChartConfig{
		Executor:   newExecutor(t, store),
		Repository: store,
		Dir:        t.TempDir(),
		Generator:  StaticGenerator{Text: "plt.bar([1], [1, 2])"},
	})
	require.NoError(t, err)

	resp, err := p.Chart(context.Background(), "broken")
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	require.NotNil(t, resp.Fault)
	assert.True(t, strings.HasPrefix(resp.Message, "Chart generation failed: "))
}

func TestChartPlanner_Builtin(t *testing.T) {
	store := newStore()
	dir := t.TempDir()
	p, err := NewChartPlanner(ChartConfig{
		Executor:   newExecutor(t, store),
		Repository: store,
		Dir:        dir,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	resp, err := p.Builtin(context.Background(), ChartPriority, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, filepath.Join(dir, "priority_chart.json"), resp.Path)

	_, err = p.Builtin(context.Background(), "burndown", 0)
	assert.ErrorIs(t, err, ErrUnknownChart)
}

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Logf(format string, _ ...any) {
	l.lines = append(l.lines, format)
}

func (l *captureLogger) has(s string) bool {
	for _, line := range l.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func TestPrompts_DescribeDialect(t *testing.T) {
	query, err := QueryPrompt(nil, "what is overdue?")
	require.NoError(t, err)
	chartPrompt, err := ChartPrompt("status pie", "chart.png")
	require.NoError(t, err)

	for _, p := range []string{query, chartPrompt} {
		assert.Contains(t, p, "restricted Python dialect")
		assert.Contains(t, p, "try/except")
		assert.Contains(t, p, "f-strings")
		assert.Contains(t, p, code.OpenTag)
	}
	assert.Contains(t, query, "User request: what is overdue?")
	assert.Contains(t, chartPrompt, "Save the figure as 'chart.png'")
}
