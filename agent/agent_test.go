package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/toolfoundation/model"

	"github.com/jonwraymond/taskexec/backend"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/notify"
	"github.com/jonwraymond/taskexec/plan"
	"github.com/jonwraymond/taskexec/runtime/sandbox"
	"github.com/jonwraymond/taskexec/task"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// mockMailer records sent messages.
type mockMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *mockMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// webhookRecorder records the "text" field of every posted payload.
type webhookRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (w *webhookRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		text, _ := body["text"].(string)
		w.mu.Lock()
		w.texts = append(w.texts, text)
		w.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (w *webhookRecorder) all() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.texts)
}

func newStore() *task.MemoryStore {
	store := task.NewMemoryStore()
	store.SetClock(clock)
	return store
}

func newExecutor(t *testing.T, repo task.Reader) code.Executor {
	t.Helper()
	exec, err := code.NewDefaultExecutor(code.Config{
		Repository: repo,
		Engine:     sandbox.New(sandbox.Config{Now: clock}),
	})
	if err != nil {
		t.Fatalf("NewDefaultExecutor() error = %v", err)
	}
	return exec
}

func newAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	if cfg.Tasks == nil {
		cfg.Tasks = newStore()
	}
	if cfg.Now == nil {
		cfg.Now = clock
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func mustExecute(t *testing.T, a *Agent, tool string, args map[string]any) map[string]any {
	t.Helper()
	out, err := a.Execute(context.Background(), tool, args)
	if err != nil {
		t.Fatalf("Execute(%s) error = %v", tool, err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("Execute(%s) = %T, want map", tool, out)
	}
	return m
}

func createTask(t *testing.T, a *Agent, args map[string]any) string {
	t.Helper()
	return mustExecute(t, a, "create_task", args)["task_id"].(string)
}

func toolIDs(tools []model.Tool) []string {
	ids := make([]string, len(tools))
	for i, tl := range tools {
		ids[i] = tl.ToolID()
	}
	return ids
}

func TestNew_RequiresTasks(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, code.ErrConfiguration) {
		t.Fatalf("New() error = %v, want ErrConfiguration", err)
	}
}

func TestAgent_ToolsDependOnConfig(t *testing.T) {
	a := newAgent(t, Config{})
	tools, err := a.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools() error = %v", err)
	}
	if len(tools) != 9 {
		t.Fatalf("len(Tools()) = %d, want 9: %v", len(tools), toolIDs(tools))
	}
	if !slices.IsSorted(toolIDs(tools)) {
		t.Errorf("Tools() not sorted: %v", toolIDs(tools))
	}

	store := newStore()
	full := newAgent(t, Config{
		Tasks:  store,
		Hours:  store,
		Mailer: &mockMailer{},
		Query:  mustQueryPlanner(t, store, nil),
		Charts: mustChartPlanner(t, store, nil),
	})
	tools, err = full.Tools(context.Background())
	if err != nil {
		t.Fatalf("Tools() error = %v", err)
	}
	ids := toolIDs(tools)
	for _, want := range []string{
		"tasks:log_working_hours", "tasks:query_tasks_with_code",
		"tasks:create_task_completion_chart", "tasks:send_custom_email",
	} {
		if !slices.Contains(ids, want) {
			t.Errorf("Tools() missing %s", want)
		}
	}
	if len(ids) != 19 {
		t.Errorf("len(Tools()) = %d, want 19", len(ids))
	}
}

func TestAgent_CreateAndUpdateTask(t *testing.T) {
	store := newStore()
	a := newAgent(t, Config{Tasks: store})

	out := mustExecute(t, a, "create_task", map[string]any{
		"title":    "Write report",
		"priority": "high",
		"deadline": "2 days",
		"tags":     []any{"work", "Q1"},
	})
	id := out["task_id"].(string)
	if !strings.HasPrefix(id, "TASK") {
		t.Fatalf("task_id = %q", id)
	}
	if want := "Task 'Write report' created successfully with ID " + id; out["message"] != want {
		t.Errorf("message = %q, want %q", out["message"], want)
	}

	stored, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Priority != task.PriorityHigh || stored.Assignee != task.DefaultAssignee {
		t.Errorf("stored = %+v", stored)
	}
	if stored.Deadline == nil || !stored.Deadline.Equal(now.Add(48*time.Hour)) {
		t.Errorf("Deadline = %v, want %v", stored.Deadline, now.Add(48*time.Hour))
	}
	if !slices.Equal(stored.Tags, []string{"work", "Q1"}) {
		t.Errorf("Tags = %v", stored.Tags)
	}

	mustExecute(t, a, "update_task_status", map[string]any{"task_id": id, "status": "completed"})
	stored, _ = store.Get(context.Background(), id)
	if stored.Status != task.StatusCompleted || stored.CompletedAt == nil {
		t.Errorf("after completion: status=%s completed_at=%v", stored.Status, stored.CompletedAt)
	}

	mustExecute(t, a, "update_task", map[string]any{"task_id": id, "title": "Final report", "status": "todo"})
	stored, _ = store.Get(context.Background(), id)
	if stored.Title != "Final report" || stored.CompletedAt != nil {
		t.Errorf("after update: %+v", stored)
	}
}

func TestAgent_InvalidArgs(t *testing.T) {
	a := newAgent(t, Config{})
	id := createTask(t, a, map[string]any{"title": "x"})

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"missing title", "create_task", map[string]any{}},
		{"blank title", "create_task", map[string]any{"title": "   "}},
		{"bad priority", "create_task", map[string]any{"title": "x", "priority": "urgent"}},
		{"bad status", "update_task_status", map[string]any{"task_id": id, "status": "done"}},
		{"empty patch", "update_task", map[string]any{"task_id": id}},
		{"bad deadline", "update_task", map[string]any{"task_id": id, "deadline": "not a date"}},
		{"days out of range", "calculate_productivity_metrics", map[string]any{"days": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Execute(context.Background(), tt.tool, tt.args)
			if !IsInvalid(err) {
				t.Fatalf("Execute() error = %v, want invalid", err)
			}
			if IsNotFound(err) {
				t.Errorf("IsNotFound(%v) = true", err)
			}
		})
	}
}

func TestAgent_NotFound(t *testing.T) {
	a := newAgent(t, Config{})
	for _, tool := range []string{"get_task", "delete_task"} {
		_, err := a.Execute(context.Background(), tool, map[string]any{"task_id": "TASK000000"})
		if !IsNotFound(err) {
			t.Errorf("Execute(%s) error = %v, want not found", tool, err)
		}
	}
	_, err := a.Execute(context.Background(), "update_task_status", map[string]any{"task_id": "TASK000000", "status": "todo"})
	if !errors.Is(err, task.ErrNotFound) {
		t.Errorf("update_task_status error = %v", err)
	}
	_, err = a.Execute(context.Background(), "tasks:nope", nil)
	if !errors.Is(err, backend.ErrToolNotFound) {
		t.Errorf("unknown tool error = %v", err)
	}
}

func TestAgent_ListAndDelete(t *testing.T) {
	a := newAgent(t, Config{})
	createTask(t, a, map[string]any{"title": "a", "priority": "high", "assignee": "Alex"})
	createTask(t, a, map[string]any{"title": "b", "tags": []any{"home", "errands"}})
	drop := createTask(t, a, map[string]any{"title": "c", "priority": "high"})

	out := mustExecute(t, a, "get_all_tasks", map[string]any{"priority": "high"})
	if out["count"] != 2 {
		t.Errorf("high count = %v, want 2", out["count"])
	}
	out = mustExecute(t, a, "get_all_tasks", map[string]any{"assignee": "alex"})
	if out["count"] != 1 {
		t.Errorf("alex count = %v, want 1", out["count"])
	}
	out = mustExecute(t, a, "get_all_tasks", map[string]any{"tag": "ERRANDS"})
	if out["count"] != 1 {
		t.Errorf("tag count = %v, want 1", out["count"])
	}
	if f := out["filters"].(map[string]any); f["status"] != nil || f["tag"] != "ERRANDS" {
		t.Errorf("filters = %v", f)
	}

	out = mustExecute(t, a, "get_tasks_by_priority", nil)
	if out["priority"] != "all" || out["count"] != 3 {
		t.Errorf("by priority = %v", out)
	}

	mustExecute(t, a, "delete_task", map[string]any{"task_id": drop})
	out = mustExecute(t, a, "get_all_tasks", nil)
	if out["count"] != 2 {
		t.Errorf("count after delete = %v, want 2", out["count"])
	}
}

func TestAgent_MetricsIncludeLoggedHours(t *testing.T) {
	store := newStore()
	a := newAgent(t, Config{Tasks: store, Hours: store})
	id := createTask(t, a, map[string]any{"title": "a"})
	createTask(t, a, map[string]any{"title": "b"})
	mustExecute(t, a, "update_task_status", map[string]any{"task_id": id, "status": "completed"})

	mustExecute(t, a, "log_working_hours", map[string]any{"task_id": id, "user_id": "me@example.com", "minutes": 90})
	mustExecute(t, a, "log_working_hours", map[string]any{"task_id": id, "user_id": "me@example.com", "minutes": 30, "date": "2026-03-09"})

	out, err := a.Execute(context.Background(), "calculate_productivity_metrics", map[string]any{"days": 7})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	m := out.(task.Metrics)
	if m.TotalTasks != 2 || m.CompletionRate != 50 {
		t.Errorf("metrics = %+v", m)
	}
	if m.LoggedMinutes != 120 {
		t.Errorf("LoggedMinutes = %d, want 120", m.LoggedMinutes)
	}

	hours := mustExecute(t, a, "get_working_hours", map[string]any{"from_date": "2026-03-10"})
	if hours["count"] != 1 || hours["total_minutes"] != 90 {
		t.Errorf("hours = %v", hours)
	}

	_, err = a.Execute(context.Background(), "log_working_hours", map[string]any{"task_id": "TASK000000", "user_id": "u", "minutes": 5})
	if !IsNotFound(err) {
		t.Errorf("log for unknown task error = %v", err)
	}
}

func TestAgent_EmailTools(t *testing.T) {
	mailer := &mockMailer{}
	a := newAgent(t, Config{Mailer: mailer, Recipient: "me@example.com"})

	out := mustExecute(t, a, "send_task_reminder", nil)
	if out["status"] != "info" {
		t.Errorf("reminder with nothing due = %v", out)
	}

	createTask(t, a, map[string]any{"title": "Pay rent", "deadline": "10 hours"})
	out = mustExecute(t, a, "send_task_reminder", map[string]any{"to": "alex@example.com"})
	if out["status"] != "success" {
		t.Fatalf("reminder = %v", out)
	}
	mustExecute(t, a, "send_productivity_summary", map[string]any{"days": 7})

	if len(mailer.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(mailer.sent))
	}
	if got := mailer.sent[0]; got.To != "alex@example.com" || got.Subject != "Task Reminder: 1 task(s) due soon" {
		t.Errorf("reminder message = %+v", got)
	}
	if got := mailer.sent[1]; got.To != "me@example.com" || got.Subject != "Productivity Summary - Last 7 Days" {
		t.Errorf("summary message = %+v", got)
	}

	open := createTask(t, a, map[string]any{"title": "open"})
	_, err := a.Execute(context.Background(), "send_task_completion_notification", map[string]any{"task_id": open})
	if !IsInvalid(err) || !errors.Is(err, notify.ErrNotCompleted) {
		t.Errorf("completion for open task error = %v", err)
	}

	noRecipient := newAgent(t, Config{Mailer: mailer})
	_, err = noRecipient.Execute(context.Background(), "send_custom_email", map[string]any{"subject": "s", "body": "b"})
	if !errors.Is(err, notify.ErrNoRecipient) {
		t.Errorf("custom email without recipient error = %v", err)
	}

	mailer.err = notify.ErrEmailDisabled
	_, err = a.Execute(context.Background(), "send_custom_email", map[string]any{"subject": "s", "body": "b"})
	if !errors.Is(err, notify.ErrEmailDisabled) {
		t.Errorf("send error = %v", err)
	}
}

func TestAgent_WebhookEvents(t *testing.T) {
	rec := &webhookRecorder{}
	url := rec.server(t).URL
	hooks := notify.NewWebhooks(notify.WebhookConfig{SlackTasks: url, SlackAgent: url})
	a := newAgent(t, Config{Webhooks: hooks})

	id := createTask(t, a, map[string]any{"title": "Ship"})
	mustExecute(t, a, "update_task_status", map[string]any{"task_id": id, "status": "completed"})
	mustExecute(t, a, "update_task_status", map[string]any{"task_id": id, "status": "completed"})

	want := []string{
		"[created] Task " + id + ": Ship (assignee: me)",
		"[completed] Task " + id + ": Ship (assignee: me)",
	}
	if got := rec.all(); !slices.Equal(got, want) {
		t.Errorf("webhook texts = %q, want %q", got, want)
	}
}

func TestAgent_ExecuteObserverAndExtraBackend(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	extra := newMockBackend("calendar", "list_events")
	a := newAgent(t, Config{
		Backends: []backend.Backend{extra},
		Observer: func(id string, _ time.Duration, _ error) {
			mu.Lock()
			seen = append(seen, id)
			mu.Unlock()
		},
	})

	out, err := a.Execute(context.Background(), "calendar:list_events", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "calendar:list_events" {
		t.Errorf("Execute() = %v", out)
	}
	createTask(t, a, map[string]any{"title": "x"})

	if want := []string{"calendar:list_events", "tasks:create_task"}; !slices.Equal(seen, want) {
		t.Errorf("observed %v, want %v", seen, want)
	}

	infos := a.Backends(context.Background())
	if len(infos) != 2 || infos[0].Name != Namespace || infos[1].Name != "calendar" || infos[1].Tools != 1 {
		t.Errorf("Backends() = %+v", infos)
	}
}

func TestAgent_ProcessWithoutGenerator(t *testing.T) {
	a := newAgent(t, Config{})

	resp, err := a.Process(context.Background(), "upcoming deadline")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Status != StatusInfo {
		t.Errorf("Status = %q, want info", resp.Status)
	}
	if !slices.Contains(resp.SuggestedTools, "tasks:get_upcoming_tasks_for_reminder") || len(resp.SuggestedTools) > DefaultSuggestions {
		t.Errorf("SuggestedTools = %v", resp.SuggestedTools)
	}
	if !slices.Contains(resp.AvailableTools, "tasks:create_task") {
		t.Errorf("AvailableTools = %v", resp.AvailableTools)
	}

	if _, err := a.Process(context.Background(), "  "); !errors.Is(err, plan.ErrEmptyRequest) {
		t.Errorf("Process(blank) error = %v", err)
	}
}

func TestAgent_ProcessQuery(t *testing.T) {
	store := newStore()
	rec := &webhookRecorder{}
	hooks := notify.NewWebhooks(notify.WebhookConfig{SlackAgent: rec.server(t).URL})
	gen := plan.StaticGenerator{Text: code.WrapCodeBlock(
		`answer_text = "%d high" % len([t for t in tasks if t.priority == "high"])`)}
	a := newAgent(t, Config{Tasks: store, Query: mustQueryPlanner(t, store, gen), Webhooks: hooks})
	createTask(t, a, map[string]any{"title": "a", "priority": "high"})
	createTask(t, a, map[string]any{"title": "b"})

	resp, err := a.Process(context.Background(), "which tasks are high priority?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Status != StatusSuccess || resp.Message != "1 high" {
		t.Fatalf("Process() = %+v", resp)
	}
	if resp.Query == nil || resp.Query.TasksFound != 2 {
		t.Errorf("Query = %+v", resp.Query)
	}
	if got := rec.all(); len(got) != 1 || got[0] != "*Task breakdown*\n\n1 high" {
		t.Errorf("breakdown = %q", got)
	}
}

func TestAgent_ProcessQueryFault(t *testing.T) {
	store := newStore()
	gen := plan.StaticGenerator{Text: code.WrapCodeBlock("answer_text = missing_name")}
	a := newAgent(t, Config{Tasks: store, Query: mustQueryPlanner(t, store, gen)})

	resp, err := a.Process(context.Background(), "show me all tasks")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Status != StatusError || !strings.Contains(resp.Message, "missing_name") {
		t.Errorf("Process() = %+v", resp)
	}
}

func TestAgent_ProcessChart(t *testing.T) {
	store := newStore()
	gen := plan.StaticGenerator{Text: code.WrapCodeBlock(
		"plt.figure()\nplt.bar([\"todo\", \"completed\"], [2, 1])\nplt.title(\"Tasks by status\")")}
	a := newAgent(t, Config{Tasks: store, Charts: mustChartPlanner(t, store, gen)})

	resp, err := a.Process(context.Background(), "plot tasks by status")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Status != plan.StatusSuccess || resp.Chart == nil {
		t.Fatalf("Process() = %+v", resp)
	}
	if resp.Chart.Path == "" || resp.Chart.Figure == nil || resp.Chart.Figure.Title != "Tasks by status" {
		t.Errorf("Chart = %+v", resp.Chart)
	}
	if !resp.Routing.Has(CategoryVisualization) {
		t.Errorf("Routing = %+v", resp.Routing)
	}
}

func mustQueryPlanner(t *testing.T, store *task.MemoryStore, gen plan.Generator) *plan.QueryPlanner {
	t.Helper()
	p, err := plan.NewQueryPlanner(plan.QueryConfig{Executor: newExecutor(t, store), Repository: store, Generator: gen})
	if err != nil {
		t.Fatalf("NewQueryPlanner() error = %v", err)
	}
	return p
}

func mustChartPlanner(t *testing.T, store *task.MemoryStore, gen plan.Generator) *plan.ChartPlanner {
	t.Helper()
	p, err := plan.NewChartPlanner(plan.ChartConfig{
		Executor:   newExecutor(t, store),
		Repository: store,
		Dir:        t.TempDir(),
		Generator:  gen,
		Now:        clock,
	})
	if err != nil {
		t.Fatalf("NewChartPlanner() error = %v", err)
	}
	return p
}

// mockBackend serves tools that echo their own ID.
type mockBackend struct {
	name  string
	tools []string
}

func newMockBackend(name string, tools ...string) *mockBackend {
	return &mockBackend{name: name, tools: tools}
}

func (m *mockBackend) Kind() string  { return "mock" }
func (m *mockBackend) Name() string  { return m.name }
func (m *mockBackend) Enabled() bool { return true }

func (m *mockBackend) ListTools(context.Context) ([]model.Tool, error) {
	out := make([]model.Tool, len(m.tools))
	for i, name := range m.tools {
		out[i].Name = name
		out[i].Description = "mock " + name
		out[i].InputSchema = map[string]any{"type": "object"}
	}
	return out, nil
}

func (m *mockBackend) Execute(_ context.Context, tool string, _ map[string]any) (any, error) {
	if !slices.Contains(m.tools, tool) {
		return nil, backend.ErrToolNotFound
	}
	return m.name + ":" + tool, nil
}

func (m *mockBackend) Start(context.Context) error { return nil }
func (m *mockBackend) Stop() error                 { return nil }
