package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/taskexec/backend"
	"github.com/jonwraymond/taskexec/backend/local"
	"github.com/jonwraymond/taskexec/notify"
	"github.com/jonwraymond/taskexec/plan"
	"github.com/jonwraymond/taskexec/task"
)

// Namespace is the backend name the task tools are served under.
const Namespace = "tasks"

// toolSpec pairs a tool definition with its catalog documentation.
type toolSpec struct {
	def local.ToolDef
	doc tooldoc.DocEntry
}

func readOnly() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}
}

func destructive() *mcp.ToolAnnotations {
	yes := true
	return &mcp.ToolAnnotations{DestructiveHint: &yes}
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", backend.ErrInvalidArgs, err)
}

// taskSpecs returns the tools that only need the task repository.
func (a *Agent) taskSpecs() []toolSpec {
	return []toolSpec{
		{
			def: local.ToolDef{
				Name:        "create_task",
				Description: "Create a new task with optional description, priority, deadline, assignee, and tags.",
				InputSchema: local.ObjectSchema(map[string]any{
					"title":       local.Prop("string", "Task title"),
					"description": local.Prop("string", "Detailed description"),
					"priority":    local.EnumProp("Task priority", "high", "medium", "low"),
					"deadline":    local.Prop("string", "ISO date or datetime, or a relative phrase like \"2 days\""),
					"assignee":    local.Prop("string", "Person assigned (default \"me\")"),
					"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				}, "title"),
				Tags:    []string{"task", "create", "add", "new"},
				Handler: a.createTask,
			},
			doc: tooldoc.DocEntry{
				Notes: "Relative deadlines count months as 30 days. Unparseable deadlines are dropped.",
				Examples: []tooldoc.ToolExample{{
					Title:       "High priority task due in two days",
					Description: "Creates a task with a relative deadline.",
					Args:        map[string]any{"title": "Prepare slides", "priority": "high", "deadline": "2 days"},
					ResultHint:  "status, task_id, and the stored task",
				}},
			},
		},
		{
			def: local.ToolDef{
				Name:        "update_task_status",
				Description: "Update the status of a task to todo, in_progress, or completed.",
				InputSchema: local.ObjectSchema(map[string]any{
					"task_id": local.Prop("string", "Task ID"),
					"status":  local.EnumProp("New status", "todo", "in_progress", "completed"),
				}, "task_id", "status"),
				Annotations: &mcp.ToolAnnotations{IdempotentHint: true},
				Tags:        []string{"task", "status", "complete", "finish", "start"},
				Handler:     a.updateTaskStatus,
			},
			doc: tooldoc.DocEntry{Notes: "Completing a task stamps completed_at; moving it back clears it."},
		},
		{
			def: local.ToolDef{
				Name:        "update_task",
				Description: "Change any fields of a task: title, description, priority, deadline, assignee, tags, or status.",
				InputSchema: local.ObjectSchema(map[string]any{
					"task_id":     local.Prop("string", "Task ID"),
					"title":       local.Prop("string", "New title"),
					"description": local.Prop("string", "New description"),
					"priority":    local.EnumProp("New priority", "high", "medium", "low"),
					"deadline":    local.Prop("string", "New deadline"),
					"assignee":    local.Prop("string", "New assignee"),
					"status":      local.EnumProp("New status", "todo", "in_progress", "completed"),
					"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				}, "task_id"),
				Tags:    []string{"task", "update", "modify", "change", "edit"},
				Handler: a.updateTask,
			},
		},
		{
			def: local.ToolDef{
				Name:        "get_task",
				Description: "Get one task by ID.",
				InputSchema: local.ObjectSchema(map[string]any{"task_id": local.Prop("string", "Task ID")}, "task_id"),
				Annotations: readOnly(),
				Tags:        []string{"task", "get", "show"},
				Handler:     a.getTask,
			},
		},
		{
			def: local.ToolDef{
				Name:        "get_all_tasks",
				Description: "List tasks, optionally filtered by status, assignee, tag, or priority.",
				InputSchema: local.ObjectSchema(map[string]any{
					"status":   local.EnumProp("Status filter", "todo", "in_progress", "completed"),
					"assignee": local.Prop("string", "Assignee filter, case-insensitive"),
					"tag":      local.Prop("string", "Tag filter, case-insensitive"),
					"priority": local.EnumProp("Priority filter", "high", "medium", "low"),
				}),
				Annotations: readOnly(),
				Tags:        []string{"task", "list", "show", "filter", "search"},
				Handler:     a.listTasks,
			},
		},
		{
			def: local.ToolDef{
				Name:        "get_tasks_by_priority",
				Description: "List tasks with the given priority, or all tasks when none is given.",
				InputSchema: local.ObjectSchema(map[string]any{
					"priority": local.EnumProp("Priority", "high", "medium", "low"),
				}),
				Annotations: readOnly(),
				Tags:        []string{"task", "priority", "urgent"},
				Handler:     a.tasksByPriority,
			},
		},
		{
			def: local.ToolDef{
				Name:        "delete_task",
				Description: "Delete a task permanently.",
				InputSchema: local.ObjectSchema(map[string]any{"task_id": local.Prop("string", "Task ID")}, "task_id"),
				Annotations: destructive(),
				Tags:        []string{"task", "delete", "remove"},
				Handler:     a.deleteTask,
			},
		},
		{
			def: local.ToolDef{
				Name:        "calculate_productivity_metrics",
				Description: "Productivity metrics over a trailing window: completion rate, status and priority breakdown, average completion time, and logged hours.",
				InputSchema: local.ObjectSchema(map[string]any{
					"assignee": local.Prop("string", "Limit to one assignee"),
					"days":     map[string]any{"type": "integer", "minimum": 1, "maximum": 365, "description": "Look-back window in days (default 30)"},
				}),
				Annotations: readOnly(),
				Tags:        []string{"metrics", "productivity", "statistics", "report", "performance"},
				Handler:     a.productivityMetrics,
			},
			doc: tooldoc.DocEntry{Notes: "Only tasks created inside the window are counted."},
		},
		{
			def: local.ToolDef{
				Name:        "get_upcoming_tasks_for_reminder",
				Description: "List open tasks whose deadline falls within the next days, soonest first.",
				InputSchema: local.ObjectSchema(map[string]any{
					"days_ahead": map[string]any{"type": "integer", "minimum": 1, "description": "Days to look ahead (default 1)"},
					"assignee":   local.Prop("string", "Limit to one assignee"),
				}),
				Annotations: readOnly(),
				Tags:        []string{"deadline", "upcoming", "due", "reminder"},
				Handler:     a.upcomingTasks,
			},
		},
	}
}

// hoursSpecs returns the working-hours tools.
func (a *Agent) hoursSpecs() []toolSpec {
	return []toolSpec{
		{
			def: local.ToolDef{
				Name:        "log_working_hours",
				Description: "Log minutes worked on a task by a user on a day (default today).",
				InputSchema: local.ObjectSchema(map[string]any{
					"task_id": local.Prop("string", "Task ID"),
					"user_id": local.Prop("string", "User email or ID"),
					"minutes": map[string]any{"type": "integer", "minimum": 1, "description": "Minutes spent"},
					"date":    local.Prop("string", "YYYY-MM-DD or RFC 3339"),
					"notes":   local.Prop("string", "Optional notes"),
				}, "task_id", "user_id", "minutes"),
				Tags:    []string{"hours", "time", "log", "timesheet"},
				Handler: a.logHours,
			},
		},
		{
			def: local.ToolDef{
				Name:        "get_working_hours",
				Description: "List logged working hours filtered by task, user, and inclusive date range.",
				InputSchema: local.ObjectSchema(map[string]any{
					"task_id":   local.Prop("string", "Task ID"),
					"user_id":   local.Prop("string", "User email or ID"),
					"from_date": local.Prop("string", "Start day YYYY-MM-DD"),
					"to_date":   local.Prop("string", "End day YYYY-MM-DD"),
				}),
				Annotations: readOnly(),
				Tags:        []string{"hours", "time", "timesheet"},
				Handler:     a.listHours,
			},
		},
	}
}

// planSpecs returns the code-as-plan tools.
func (a *Agent) planSpecs() []toolSpec {
	var specs []toolSpec
	if a.cfg.Query != nil {
		specs = append(specs, toolSpec{
			def: local.ToolDef{
				Name:        "query_tasks_with_code",
				Description: "Answer a free-text question about tasks by generating and running a query snippet.",
				InputSchema: local.ObjectSchema(map[string]any{"request": local.Prop("string", "The question")}, "request"),
				Annotations: readOnly(),
				Tags:        []string{"query", "code", "advanced", "custom", "filter"},
				Handler:     a.queryTasks,
			},
			doc: tooldoc.DocEntry{
				Notes: "Faults in the generated snippet are reported in the error field, not as call failures.",
				Examples: []tooldoc.ToolExample{{
					Title:       "Overdue high priority work",
					Description: "Free-text question answered by a generated snippet.",
					Args:        map[string]any{"request": "which high priority tasks are overdue?"},
				}},
			},
		})
	}
	if a.cfg.Charts != nil {
		specs = append(specs,
			toolSpec{def: local.ToolDef{
				Name:        "create_productivity_chart",
				Description: "Draw a chart from a free-text instruction and save it.",
				InputSchema: local.ObjectSchema(map[string]any{"instruction": local.Prop("string", "What to chart")}, "instruction"),
				Tags:        []string{"chart", "plot", "graph", "visualization"},
				Handler:     a.createChart,
			}},
			toolSpec{def: local.ToolDef{
				Name:        "create_priority_distribution_chart",
				Description: "Draw the task count per priority as a bar chart.",
				InputSchema: local.ObjectSchema(nil),
				Tags:        []string{"chart", "priority", "distribution", "visualization"},
				Handler:     a.priorityChart,
			}},
			toolSpec{def: local.ToolDef{
				Name:        "create_task_completion_chart",
				Description: "Draw tasks completed per day over a trailing window as a line chart.",
				InputSchema: local.ObjectSchema(map[string]any{
					"days": map[string]any{"type": "integer", "minimum": 1, "maximum": 365, "description": "Window in days (default 7)"},
				}),
				Tags:    []string{"chart", "completion", "rate", "visualization"},
				Handler: a.completionChart,
			}},
		)
	}
	return specs
}

// emailSpecs returns the email tools.
func (a *Agent) emailSpecs() []toolSpec {
	to := local.Prop("string", "Recipient address (defaults to the configured recipient)")
	return []toolSpec{
		{def: local.ToolDef{
			Name:        "send_task_reminder",
			Description: "Email a reminder listing open tasks due within the next days.",
			InputSchema: local.ObjectSchema(map[string]any{
				"to":         to,
				"days_ahead": map[string]any{"type": "integer", "minimum": 1, "description": "Days to look ahead (default 1)"},
				"assignee":   local.Prop("string", "Limit to one assignee"),
			}),
			Tags:    []string{"email", "reminder", "remind", "deadline"},
			Handler: a.sendReminder,
		}},
		{def: local.ToolDef{
			Name:        "send_productivity_summary",
			Description: "Email a productivity summary for a trailing window.",
			InputSchema: local.ObjectSchema(map[string]any{
				"to":       to,
				"days":     map[string]any{"type": "integer", "minimum": 1, "maximum": 365, "description": "Window in days (default 7)"},
				"assignee": local.Prop("string", "Limit to one assignee"),
			}),
			Tags:    []string{"email", "summary", "productivity", "report"},
			Handler: a.sendSummary,
		}},
		{def: local.ToolDef{
			Name:        "send_task_completion_notification",
			Description: "Email a congratulation for a completed task.",
			InputSchema: local.ObjectSchema(map[string]any{
				"task_id": local.Prop("string", "Task ID"),
				"to":      to,
			}, "task_id"),
			Tags:    []string{"email", "completion", "notify"},
			Handler: a.sendCompletion,
		}},
		{def: local.ToolDef{
			Name:        "send_custom_email",
			Description: "Send a plain-text email.",
			InputSchema: local.ObjectSchema(map[string]any{
				"to":      to,
				"subject": local.Prop("string", "Subject line"),
				"body":    local.Prop("string", "Message body"),
			}, "subject", "body"),
			Tags:    []string{"email", "send", "message"},
			Handler: a.sendCustom,
		}},
	}
}

func (a *Agent) createTask(ctx context.Context, args local.Args) (any, error) {
	now := a.cfg.Now()
	t := task.New(args.String("title"), now)
	t.Description = args.String("description")
	if p := args.String("priority"); p != "" {
		pr, err := task.ParsePriority(p)
		if err != nil {
			return nil, invalid(err)
		}
		t.Priority = pr
	}
	if d := args.String("deadline"); d != "" {
		t.Deadline = task.ParseDeadline(d, now)
	}
	if as := args.String("assignee"); as != "" {
		t.Assignee = as
	}
	if tags := args.Strings("tags"); len(tags) > 0 {
		t.Tags = tags
	}
	if err := t.Validate(); err != nil {
		return nil, invalid(err)
	}

	created, err := a.cfg.Tasks.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	a.notifyTask(ctx, "created", created)
	return map[string]any{
		"task_id": created.ID,
		"status":  "success",
		"message": fmt.Sprintf("Task '%s' created successfully with ID %s", created.Title, created.ID),
		"task":    created.ToMap(),
	}, nil
}

func (a *Agent) updateTaskStatus(ctx context.Context, args local.Args) (any, error) {
	id := args.String("task_id")
	status, err := task.ParseStatus(args.String("status"))
	if err != nil {
		return nil, invalid(err)
	}
	updated, err := a.applyPatch(ctx, id, task.Patch{Status: &status})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Task %s status updated to '%s'", id, status),
		"task":    updated.ToMap(),
	}, nil
}

func (a *Agent) updateTask(ctx context.Context, args local.Args) (any, error) {
	id := args.String("task_id")
	var p task.Patch
	for key, dst := range map[string]**string{"title": &p.Title, "description": &p.Description, "assignee": &p.Assignee} {
		if args.Has(key) {
			v := args.String(key)
			*dst = &v
		}
	}
	if args.Has("priority") {
		pr, err := task.ParsePriority(args.String("priority"))
		if err != nil {
			return nil, invalid(err)
		}
		p.Priority = &pr
	}
	if args.Has("status") {
		st, err := task.ParseStatus(args.String("status"))
		if err != nil {
			return nil, invalid(err)
		}
		p.Status = &st
	}
	if args.Has("deadline") {
		d := task.ParseDeadline(args.String("deadline"), a.cfg.Now())
		if d == nil {
			return nil, invalid(fmt.Errorf("cannot parse deadline %q", args.String("deadline")))
		}
		p.Deadline = d
	}
	if args.Has("tags") {
		p.Tags = args.Strings("tags")
	}
	if p.Empty() {
		return nil, invalid(errors.New("no fields to update"))
	}

	updated, err := a.applyPatch(ctx, id, p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "success", "task": updated.ToMap()}, nil
}

// applyPatch updates a task and announces a transition to completed.
func (a *Agent) applyPatch(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	before, err := a.cfg.Tasks.Get(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	updated, err := a.cfg.Tasks.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, task.ErrInvalidPriority) || errors.Is(err, task.ErrInvalidStatus) || errors.Is(err, task.ErrTitleRequired) {
			return task.Task{}, invalid(err)
		}
		return task.Task{}, err
	}
	if before.Status != task.StatusCompleted && updated.Status == task.StatusCompleted {
		a.notifyTask(ctx, "completed", updated)
	}
	return updated, nil
}

func (a *Agent) getTask(ctx context.Context, args local.Args) (any, error) {
	t, err := a.cfg.Tasks.Get(ctx, args.String("task_id"))
	if err != nil {
		return nil, err
	}
	return t.ToMap(), nil
}

func (a *Agent) listTasks(ctx context.Context, args local.Args) (any, error) {
	f := task.Filter{Assignee: args.String("assignee"), Tag: args.String("tag")}
	if s := args.String("status"); s != "" {
		st, err := task.ParseStatus(s)
		if err != nil {
			return nil, invalid(err)
		}
		f.Status = st
	}
	if p := args.String("priority"); p != "" {
		pr, err := task.ParsePriority(p)
		if err != nil {
			return nil, invalid(err)
		}
		f.Priority = pr
	}
	all, err := a.cfg.Tasks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := f.Apply(all)
	return map[string]any{
		"count": len(matched),
		"filters": map[string]any{
			"status":   nilIfEmpty(string(f.Status)),
			"assignee": nilIfEmpty(f.Assignee),
			"tag":      nilIfEmpty(f.Tag),
			"priority": nilIfEmpty(string(f.Priority)),
		},
		"tasks": toMaps(matched),
	}, nil
}

func (a *Agent) tasksByPriority(ctx context.Context, args local.Args) (any, error) {
	var f task.Filter
	label := "all"
	if p := args.String("priority"); p != "" {
		pr, err := task.ParsePriority(p)
		if err != nil {
			return nil, invalid(err)
		}
		f.Priority = pr
		label = string(pr)
	}
	all, err := a.cfg.Tasks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	matched := f.Apply(all)
	return map[string]any{"count": len(matched), "priority": label, "tasks": toMaps(matched)}, nil
}

func (a *Agent) deleteTask(ctx context.Context, args local.Args) (any, error) {
	id := args.String("task_id")
	if err := a.cfg.Tasks.Delete(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"status": "success", "message": fmt.Sprintf("Task %s deleted successfully", id)}, nil
}

func (a *Agent) productivityMetrics(ctx context.Context, args local.Args) (any, error) {
	days, err := args.Int("days", 30)
	if err != nil {
		return nil, invalid(err)
	}
	return a.Metrics(ctx, args.String("assignee"), days)
}

// Metrics computes productivity metrics for assignee ("" or "all" for
// everyone) over days, adding logged minutes when hours are tracked.
func (a *Agent) Metrics(ctx context.Context, assignee string, days int) (task.Metrics, error) {
	if days < 1 || days > 365 {
		return task.Metrics{}, invalid(fmt.Errorf("days must be between 1 and 365, got %d", days))
	}
	if strings.EqualFold(assignee, "all") {
		assignee = ""
	}
	all, err := a.cfg.Tasks.ListAll(ctx)
	if err != nil {
		return task.Metrics{}, err
	}
	now := a.cfg.Now()
	m := task.ComputeMetrics(all, assignee, days, now)
	if a.cfg.Hours != nil {
		logs, err := a.cfg.Hours.ListLogs(ctx, task.HoursQuery{
			UserID: assignee,
			From:   now.AddDate(0, 0, -days),
			To:     now,
		})
		if err != nil {
			return task.Metrics{}, err
		}
		m.LoggedMinutes = task.TotalMinutes(logs)
	}
	return m, nil
}

func (a *Agent) upcomingTasks(ctx context.Context, args local.Args) (any, error) {
	days, err := args.Int("days_ahead", 1)
	if err != nil {
		return nil, invalid(err)
	}
	upcoming, err := a.upcoming(ctx, days, args.String("assignee"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(upcoming), "days_ahead": days, "tasks": toMaps(upcoming)}, nil
}

func (a *Agent) upcoming(ctx context.Context, days int, assignee string) ([]task.Task, error) {
	all, err := a.cfg.Tasks.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return notify.UpcomingTasks(all, days, assignee, a.cfg.Now()), nil
}

func (a *Agent) logHours(ctx context.Context, args local.Args) (any, error) {
	id := args.String("task_id")
	if _, err := a.cfg.Tasks.Get(ctx, id); err != nil {
		return nil, err
	}
	minutes, err := args.Int("minutes", 0)
	if err != nil {
		return nil, invalid(err)
	}
	now := a.cfg.Now()
	date := now
	if s := args.String("date"); s != "" {
		if d, err := task.ParseDay(s); err == nil {
			date = d
		}
	}
	entry := task.NewTimeLog(id, args.String("user_id"), minutes, date, now)
	entry.Notes = args.String("notes")
	if err := entry.Validate(); err != nil {
		return nil, invalid(err)
	}
	saved, err := a.cfg.Hours.AddLog(ctx, entry)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":        "success",
		"message":       fmt.Sprintf("Logged %d min for task %s", minutes, id),
		"working_hours": saved,
	}, nil
}

func (a *Agent) listHours(ctx context.Context, args local.Args) (any, error) {
	q := task.HoursQuery{TaskID: args.String("task_id"), UserID: args.String("user_id")}
	for key, dst := range map[string]*time.Time{"from_date": &q.From, "to_date": &q.To} {
		if s := args.String(key); s != "" {
			d, err := task.ParseDay(s)
			if err != nil {
				return nil, invalid(fmt.Errorf("%s: %v", key, err))
			}
			*dst = d
		}
	}
	logs, err := a.cfg.Hours.ListLogs(ctx, q)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":        "success",
		"count":         len(logs),
		"total_minutes": task.TotalMinutes(logs),
		"entries":       logs,
	}, nil
}

func (a *Agent) queryTasks(ctx context.Context, args local.Args) (any, error) {
	resp, err := a.cfg.Query.Query(ctx, args.String("request"))
	if errors.Is(err, plan.ErrEmptyRequest) {
		return nil, invalid(err)
	}
	return resp, err
}

func (a *Agent) createChart(ctx context.Context, args local.Args) (any, error) {
	resp, err := a.cfg.Charts.Chart(ctx, args.String("instruction"))
	if errors.Is(err, plan.ErrEmptyRequest) {
		return nil, invalid(err)
	}
	return resp, err
}

func (a *Agent) priorityChart(ctx context.Context, _ local.Args) (any, error) {
	return a.cfg.Charts.Builtin(ctx, plan.ChartPriority, 0)
}

func (a *Agent) completionChart(ctx context.Context, args local.Args) (any, error) {
	days, err := args.Int("days", 7)
	if err != nil {
		return nil, invalid(err)
	}
	return a.cfg.Charts.Builtin(ctx, plan.ChartCompletion, days)
}

func (a *Agent) recipient(args local.Args) (string, error) {
	if to := args.String("to"); to != "" {
		return to, nil
	}
	if a.cfg.Recipient != "" {
		return a.cfg.Recipient, nil
	}
	return "", invalid(notify.ErrNoRecipient)
}

func (a *Agent) send(ctx context.Context, msg notify.Message) (any, error) {
	if err := a.cfg.Mailer.Send(ctx, msg); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Email sent to %s", msg.To),
		"subject": msg.Subject,
	}, nil
}

func (a *Agent) sendReminder(ctx context.Context, args local.Args) (any, error) {
	to, err := a.recipient(args)
	if err != nil {
		return nil, err
	}
	days, err := args.Int("days_ahead", 1)
	if err != nil {
		return nil, invalid(err)
	}
	upcoming, err := a.upcoming(ctx, days, args.String("assignee"))
	if err != nil {
		return nil, err
	}
	if len(upcoming) == 0 {
		return map[string]any{
			"status":  "info",
			"message": fmt.Sprintf("No tasks due in the next %d day(s)", days),
		}, nil
	}
	msg, err := notify.ReminderEmail(to, upcoming, days)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, msg)
}

func (a *Agent) sendSummary(ctx context.Context, args local.Args) (any, error) {
	to, err := a.recipient(args)
	if err != nil {
		return nil, err
	}
	days, err := args.Int("days", 7)
	if err != nil {
		return nil, invalid(err)
	}
	m, err := a.Metrics(ctx, args.String("assignee"), days)
	if err != nil {
		return nil, err
	}
	msg, err := notify.ProductivitySummaryEmail(to, m)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, msg)
}

func (a *Agent) sendCompletion(ctx context.Context, args local.Args) (any, error) {
	to, err := a.recipient(args)
	if err != nil {
		return nil, err
	}
	t, err := a.cfg.Tasks.Get(ctx, args.String("task_id"))
	if err != nil {
		return nil, err
	}
	msg, err := notify.CompletionEmail(to, t)
	if err != nil {
		return nil, invalid(err)
	}
	return a.send(ctx, msg)
}

func (a *Agent) sendCustom(ctx context.Context, args local.Args) (any, error) {
	to, err := a.recipient(args)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, notify.Message{To: to, Subject: args.String("subject"), Body: args.String("body")})
}

// notifyTask posts a task event to the configured webhooks. Delivery
// failures are logged and dropped.
func (a *Agent) notifyTask(ctx context.Context, event string, t task.Task) {
	if a.cfg.Webhooks == nil || !a.cfg.Webhooks.Enabled() {
		return
	}
	if err := a.cfg.Webhooks.NotifyTaskEvent(ctx, event, t); err != nil {
		a.logf("task %s notification failed: %v", event, err)
	}
}

func toMaps(tasks []task.Task) []map[string]any {
	out := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		out[i] = t.ToMap()
	}
	return out
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
