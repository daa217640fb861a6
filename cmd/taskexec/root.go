package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/taskexec/config"
	"github.com/jonwraymond/taskexec/logging"
)

type rootOptions struct {
	configFile string
	envFile    string
	output     string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "taskexec",
		Short:         "Task assistant with sandboxed code-as-plan queries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := newPrinter(cmd.OutOrStdout(), opts.output)
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	flags.StringVarP(&opts.output, "output", "o", formatText, "output format: text, json, or yaml")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		newServeCommand(opts),
		newMCPCommand(opts),
		newTaskCommand(opts),
		newHoursCommand(opts),
		newReportCommand(opts),
		newAskCommand(opts),
		newQueryCommand(opts),
		newExecCommand(opts),
		newChartCommand(opts),
		newRouteCommand(opts),
		newToolsCommand(opts),
		newCallCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

// load reads the configuration and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(config.Options{File: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// withApp loads the configuration, wires the app, runs fn, and closes the
// app. SIGINT and SIGTERM cancel the context passed to fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app, p *printer) error) (err error) {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cmd.ErrOrStderr()})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	p, err := newPrinter(cmd.OutOrStdout(), o.output)
	if err != nil {
		return err
	}
	return fn(ctx, a, p)
}
