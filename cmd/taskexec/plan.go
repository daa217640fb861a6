package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/taskexec/agent"
	"github.com/jonwraymond/taskexec/chart"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/plan"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <request...>",
		Short: "Route a free-text request and act on it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
				resp, err := a.agent.Process(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				if p.format != formatText {
					return p.print(resp)
				}
				p.line(styleMuted.Render("routing: " + joinCategories(resp.Routing.Categories)))
				if resp.Chart != nil {
					return printChart(p, *resp.Chart)
				}
				p.line(resp.Message)
				if len(resp.SuggestedTools) > 0 {
					p.line(styleMuted.Render("suggested tools: " + strings.Join(resp.SuggestedTools, ", ")))
				}
				return nil
			})
		},
	}
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	var showCode bool
	cmd := &cobra.Command{
		Use:   "query <request...>",
		Short: "Answer a question by generating and running a snippet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
				resp, err := a.query.Query(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				a.metrics.ObserveFault(resp.Fault)
				if p.format != formatText {
					return p.print(resp)
				}
				if showCode {
					p.line(styleMuted.Render(resp.GeneratedCode))
				}
				if resp.Fault != nil {
					p.line(styleError.Render(resp.Fault.Text()))
					return nil
				}
				return printAnswer(p, resp.Answer, resp.Stdout)
			})
		},
	}
	cmd.Flags().BoolVar(&showCode, "show-code", false, "print the generated snippet")
	return cmd
}

func newExecCommand(opts *rootOptions) *cobra.Command {
	var (
		variant string
		request string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "exec <file|->",
		Short: "Run a snippet against the current tasks",
		Long: "Run a snippet file, or stdin when the argument is \"-\", in the sandbox.\n" +
			"Code wrapped in execute_python tags is extracted first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			v, err := parseVariant(variant)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
				res, err := a.executor.Execute(ctx, src,
					code.WithRequest(request),
					code.WithVariant(v),
					code.WithTimeout(timeout))
				if err != nil {
					return err
				}
				a.metrics.ObserveExecution(res)
				if p.format != formatText {
					return p.print(res)
				}
				if res.Error != nil {
					p.line(styleError.Render(res.Error.Text()))
					return nil
				}
				for _, fig := range res.Figures {
					if err := printFigure(p, fig); err != nil {
						return err
					}
				}
				if err := printAnswer(p, res.Answer, res.Stdout); err != nil {
					return err
				}
				p.line(styleMuted.Render(fmt.Sprintf("status=%s steps=%d duration=%dms", res.Status, res.Steps, res.DurationMs)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&variant, "variant", string(code.VariantQuery), "environment: query or chart")
	cmd.Flags().StringVar(&request, "request", "", "value bound to user_request")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override exec.timeout")
	return cmd
}

func newChartCommand(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "chart <instruction...|priority|completion>",
		Short: "Draw a chart from an instruction or a built-in",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, p *printer) error {
				var (
					resp plan.ChartResponse
					err  error
				)
				switch name := strings.Join(args, " "); name {
				case plan.ChartPriority, plan.ChartCompletion:
					resp, err = a.charts.Builtin(ctx, name, days)
				default:
					resp, err = a.charts.Chart(ctx, name)
				}
				if err != nil {
					return err
				}
				if resp.GeneratedCode != "" {
					a.metrics.ObserveFault(resp.Fault)
				}
				if p.format != formatText {
					return p.print(resp)
				}
				return printChart(p, resp)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window for the completion chart")
	return cmd
}

func newRouteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route <request...>",
		Short: "Classify a request without acting on it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPrinter(cmd.OutOrStdout(), opts.output)
			if err != nil {
				return err
			}
			r := agent.NewRouter().Route(strings.Join(args, " "))
			if p.format != formatText {
				return p.print(r)
			}
			p.line(joinCategories(r.Categories))
			p.line(styleMuted.Render("complexity: " + r.Complexity))
			p.line(styleMuted.Render("recommended: " + strings.Join(r.RecommendedTools, ", ")))
			return nil
		},
	}
}

func joinCategories(cs []agent.Category) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func printChart(p *printer, resp plan.ChartResponse) error {
	if resp.Fault != nil {
		p.line(styleError.Render(resp.Fault.Text()))
		return nil
	}
	if resp.Figure != nil {
		if err := printFigure(p, *resp.Figure); err != nil {
			return err
		}
	}
	p.line(styleOK.Render(resp.Message))
	return nil
}

func printFigure(p *printer, fig chart.Figure) error {
	out, err := chart.RenderText(fig, 40)
	if err != nil {
		return err
	}
	p.line(out)
	return nil
}

// printAnswer prints a snippet answer: strings as-is, task rows as a table,
// anything else as YAML. Captured stdout follows a blank line.
func printAnswer(p *printer, answer any, stdout string) error {
	switch v := answer.(type) {
	case nil:
	case string:
		p.line(v)
	case []map[string]any:
		p.line(taskTable(v))
	default:
		if err := p.yaml(v); err != nil {
			return err
		}
	}
	if stdout != "" {
		if answer != nil {
			p.line("")
		}
		p.line(styleMuted.Render(stdout))
	}
	return nil
}

func parseVariant(s string) (code.Variant, error) {
	switch strings.ToLower(s) {
	case "", string(code.VariantQuery):
		return code.VariantQuery, nil
	case string(code.VariantChart):
		return code.VariantChart, nil
	default:
		return "", fmt.Errorf("variant must be query or chart, got %q", s)
	}
}

// readSource reads a snippet from path, or from stdin when path is "-".
func readSource(stdin io.Reader, path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read snippet: %w", err)
	}
	return string(raw), nil
}
