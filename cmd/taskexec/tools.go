package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newToolsCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "tools [query...]",
		Short: "List the served tools, or search them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
				if len(args) > 0 {
					ids, err := a.agent.Suggest(strings.Join(args, " "), limit)
					if err != nil {
						return err
					}
					if p.format != formatText {
						return p.print(ids)
					}
					for _, id := range ids {
						p.line(id)
					}
					return nil
				}

				tools, err := a.agent.Tools(ctx)
				if err != nil {
					return err
				}
				if p.format != formatText {
					return p.print(tools)
				}
				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("TOOL", "DESCRIPTION").
					StyleFunc(func(row, _ int) lipgloss.Style {
						if row == table.HeaderRow {
							return styleHeader
						}
						return styleCell
					})
				for _, tool := range tools {
					t.Row(tool.ToolID(), tool.Description)
				}
				p.line(t.String())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum search results")

	describe := &cobra.Command{
		Use:   "describe <tool-id>",
		Short: "Show a tool's schema, notes, and examples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(_ context.Context, a *app, p *printer) error {
				doc, err := a.agent.Describe(args[0])
				if err != nil {
					return err
				}
				if p.format == formatText {
					p.format = formatYAML
				}
				return p.print(doc)
			})
		},
	}
	cmd.AddCommand(describe)
	return cmd
}

func newCallCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool-id> [json-args]",
		Short: "Execute any tool with JSON arguments",
		Example: `  taskexec call send_task_reminder '{"days_ahead": 2}'
  taskexec call tasks:get_tasks_by_priority '{"priority": "high"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &in); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}
			return opts.callTool(cmd, args[0], in)
		},
	}
}
