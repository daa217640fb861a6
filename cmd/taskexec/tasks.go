package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonwraymond/taskexec/task"
)

// callTool executes one tool and prints its result.
func (o *rootOptions) callTool(cmd *cobra.Command, tool string, args map[string]any) error {
	return o.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
		out, err := a.agent.Execute(ctx, tool, args)
		if err != nil {
			return err
		}
		return p.print(out)
	})
}

// changed copies the string flags the user set into args under their
// argument names.
func changed(flags *pflag.FlagSet, args map[string]any, names map[string]string) {
	for flag, key := range names {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			args[key] = f.Value.String()
		}
	}
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func newTaskCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Create, list, and update tasks",
	}
	cmd.AddCommand(
		newTaskAddCommand(opts),
		newTaskListCommand(opts),
		newTaskShowCommand(opts),
		newTaskUpdateCommand(opts),
		newTaskStatusCommand(opts, "start", "Mark a task in progress", task.StatusInProgress),
		newTaskStatusCommand(opts, "done", "Mark a task completed", task.StatusCompleted),
		newTaskDeleteCommand(opts),
		newTaskUpcomingCommand(opts),
	)
	return cmd
}

var taskFields = map[string]string{
	"description": "description",
	"priority":    "priority",
	"deadline":    "deadline",
	"assignee":    "assignee",
}

func newTaskAddCommand(opts *rootOptions) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{"title": args[0]}
			changed(cmd.Flags(), in, taskFields)
			if len(tags) > 0 {
				in["tags"] = anySlice(tags)
			}
			return opts.callTool(cmd, "create_task", in)
		},
	}
	f := cmd.Flags()
	f.String("description", "", "task description")
	f.StringP("priority", "p", "medium", "high, medium, or low")
	f.StringP("deadline", "d", "", "ISO date or a relative phrase like \"3 days\"")
	f.String("assignee", task.DefaultAssignee, "assignee")
	f.StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	return cmd
}

func newTaskListCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks, optionally filtered",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := map[string]any{}
			changed(cmd.Flags(), in, map[string]string{
				"status": "status", "priority": "priority", "assignee": "assignee", "tag": "tag",
			})
			return opts.callTool(cmd, "get_all_tasks", in)
		},
	}
	f := cmd.Flags()
	f.StringP("status", "s", "", "todo, in_progress, or completed")
	f.StringP("priority", "p", "", "high, medium, or low")
	f.String("assignee", "", "assignee")
	f.StringP("tag", "t", "", "tag")
	return cmd
}

func newTaskShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.callTool(cmd, "get_task", map[string]any{"task_id": args[0]})
		},
	}
}

func newTaskUpdateCommand(opts *rootOptions) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change task fields; only the flags given are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{"task_id": args[0]}
			changed(cmd.Flags(), in, taskFields)
			changed(cmd.Flags(), in, map[string]string{"title": "title", "status": "status"})
			if cmd.Flags().Changed("tag") {
				in["tags"] = anySlice(tags)
			}
			return opts.callTool(cmd, "update_task", in)
		},
	}
	f := cmd.Flags()
	f.String("title", "", "task title")
	f.String("description", "", "task description")
	f.StringP("priority", "p", "", "high, medium, or low")
	f.StringP("status", "s", "", "todo, in_progress, or completed")
	f.StringP("deadline", "d", "", "ISO date or a relative phrase like \"3 days\"")
	f.String("assignee", "", "assignee")
	f.StringSliceVarP(&tags, "tag", "t", nil, "replace the tags (repeatable)")
	return cmd
}

func newTaskStatusCommand(opts *rootOptions, use, short string, status task.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.callTool(cmd, "update_task_status", map[string]any{
				"task_id": args[0],
				"status":  string(status),
			})
		},
	}
}

func newTaskDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <task-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.callTool(cmd, "delete_task", map[string]any{"task_id": args[0]})
		},
	}
}

func newTaskUpcomingCommand(opts *rootOptions) *cobra.Command {
	var days int
	var assignee string
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List open tasks due soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := map[string]any{"days_ahead": days}
			if assignee != "" {
				in["assignee"] = assignee
			}
			return opts.callTool(cmd, "get_upcoming_tasks_for_reminder", in)
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "days to look ahead")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee")
	return cmd
}

func newHoursCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Log and list working hours",
	}

	log := &cobra.Command{
		Use:   "log <task-id> <minutes>",
		Short: "Log minutes worked on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("minutes must be an integer, got %q", args[1])
			}
			in := map[string]any{"task_id": args[0], "minutes": minutes, "user_id": task.DefaultAssignee}
			changed(cmd.Flags(), in, map[string]string{"user": "user_id", "date": "date", "notes": "notes"})
			return opts.callTool(cmd, "log_working_hours", in)
		},
	}
	log.Flags().String("user", task.DefaultAssignee, "user ID")
	log.Flags().String("date", "", "day worked, YYYY-MM-DD (default today)")
	log.Flags().String("notes", "", "free-form notes")

	list := &cobra.Command{
		Use:   "list",
		Short: "List logged hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := map[string]any{}
			changed(cmd.Flags(), in, map[string]string{
				"task": "task_id", "user": "user_id", "from": "from_date", "to": "to_date",
			})
			return opts.callTool(cmd, "get_working_hours", in)
		},
	}
	list.Flags().String("task", "", "task ID")
	list.Flags().String("user", "", "user ID")
	list.Flags().String("from", "", "first day, YYYY-MM-DD")
	list.Flags().String("to", "", "last day, YYYY-MM-DD")

	cmd.AddCommand(log, list)
	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var days int
	var assignee string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Productivity metrics over a trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
				m, err := a.agent.Metrics(ctx, assignee, days)
				if err != nil {
					return err
				}
				if p.format != formatText {
					return p.print(m)
				}
				p.line(kvTable(metricsRows(m)))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window in days (1-365)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee (default everyone)")
	return cmd
}

func metricsRows(m task.Metrics) map[string]any {
	rows := map[string]any{
		"period_days":     m.PeriodDays,
		"assignee":        m.Assignee,
		"total_tasks":     m.TotalTasks,
		"completion_rate": fmt.Sprintf("%.2f%%", m.CompletionRate),
		"logged_minutes":  m.LoggedMinutes,
	}
	if m.AverageCompletionHours != nil {
		rows["avg_completion_hours"] = *m.AverageCompletionHours
	}
	for s, n := range m.StatusBreakdown {
		rows["status."+string(s)] = n
	}
	for pr, n := range m.PriorityBreakdown {
		rows["priority."+string(pr)] = n
	}
	return rows
}
