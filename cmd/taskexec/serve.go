package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/taskexec/agent"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Long: "Serve the task tools, code execution, and Prometheus metrics over HTTP.\n" +
			"With store.watch set, the file store reloads when its files change on disk.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, _ *printer) error {
				srv, err := a.server()
				if err != nil {
					return err
				}
				if addr == "" {
					addr = a.cfg.HTTP.Addr
				}

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return srv.Run(ctx, addr) })
				if a.files != nil && a.cfg.Store.Watch {
					g.Go(func() error { return a.files.Watch(ctx) })
				}
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http.addr)")
	return cmd
}

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app, _ *printer) error {
				a.logger.Info("mcp server starting", "version", version)
				return agent.ServeMCP(ctx, a.agent, version)
			})
		},
	}
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			p, err := newPrinter(cmd.OutOrStdout(), opts.output)
			if err != nil {
				return err
			}
			if p.format == formatText {
				p.format = formatYAML
			}
			return p.print(cfg)
		},
	}
}
