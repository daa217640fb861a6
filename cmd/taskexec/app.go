package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonwraymond/taskexec/agent"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/config"
	"github.com/jonwraymond/taskexec/logging"
	"github.com/jonwraymond/taskexec/notify"
	"github.com/jonwraymond/taskexec/plan"
	"github.com/jonwraymond/taskexec/plan/remote"
	"github.com/jonwraymond/taskexec/runtime/sandbox"
	"github.com/jonwraymond/taskexec/server"
	"github.com/jonwraymond/taskexec/task"
	"github.com/jonwraymond/taskexec/task/filestore"
	"github.com/jonwraymond/taskexec/task/sqlitestore"
)

// store is what the agent needs from a task backend.
type store interface {
	task.Repository
	task.HoursRepository
}

// app is the wired object graph shared by every command.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	store    store
	files    *filestore.Store
	closers  []func() error
	executor *code.DefaultExecutor
	query    *plan.QueryPlanner
	charts   *plan.ChartPlanner
	webhooks *notify.Webhooks
	registry *prometheus.Registry
	metrics  *server.Metrics
	agent    *agent.Agent
}

// newApp builds the app from cfg. Callers must Close it.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	logf := logging.Logf(logger)

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	engine := sandbox.New(sandbox.Config{MaxSteps: cfg.Exec.MaxSteps, Logger: logf})
	exec, err := code.NewDefaultExecutor(code.Config{
		Repository:     a.store,
		Engine:         engine,
		DefaultTimeout: cfg.Exec.Timeout,
		MaxSteps:       cfg.Exec.MaxSteps,
		Logger:         logf,
	})
	if err != nil {
		return nil, a.fail(err)
	}
	a.executor = exec

	var gen plan.Generator
	if cfg.GeneratorEnabled() {
		client := remote.NewHTTPClient(cfg.Generator.Endpoint, remote.WithToken(cfg.Generator.Token))
		gen = remote.New(remote.Config{
			Client:  client,
			Model:   cfg.Generator.Model,
			Timeout: cfg.Generator.Timeout,
			Logger:  logf,
		})
		logger.Debug("code generation enabled", "endpoint", cfg.Generator.Endpoint, "model", cfg.Generator.Model)
	}

	if a.query, err = plan.NewQueryPlanner(plan.QueryConfig{
		Executor:   exec,
		Repository: a.store,
		Generator:  gen,
		CacheSize:  cfg.Exec.CacheSize,
		Logger:     logf,
	}); err != nil {
		return nil, a.fail(err)
	}
	if a.charts, err = plan.NewChartPlanner(plan.ChartConfig{
		Executor:   exec,
		Repository: a.store,
		Dir:        cfg.Charts.Dir,
		Generator:  gen,
		Logger:     logf,
	}); err != nil {
		return nil, a.fail(err)
	}

	a.webhooks = notify.NewWebhooks(notify.WebhookConfig{
		SlackTasks: cfg.Webhooks.SlackTasks,
		SlackAgent: cfg.Webhooks.SlackAgent,
		Slack:      cfg.Webhooks.Slack,
		Discord:    cfg.Webhooks.Discord,
		Teams:      cfg.Webhooks.Teams,
		Logger:     logf,
	})

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = server.NewMetrics(a.registry)

	agentCfg := agent.Config{
		Tasks:     a.store,
		Hours:     a.store,
		Query:     a.query,
		Charts:    a.charts,
		Recipient: cfg.SMTP.Recipient,
		Observer:  a.metrics.ObserveTool,
		Logger:    logf,
	}
	if a.webhooks.Enabled() {
		agentCfg.Webhooks = a.webhooks
	}
	if cfg.EmailEnabled() {
		agentCfg.Mailer = notify.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Password: cfg.SMTP.Password,
		}
	}
	if a.agent, err = agent.New(agentCfg); err != nil {
		return nil, a.fail(err)
	}
	a.closers = append(a.closers, a.agent.Close)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case config.StoreMemory:
		a.store = task.NewMemoryStore()
	case config.StoreFile:
		fs, err := filestore.Open(a.cfg.Store.Path, filestore.Options{Logger: a.logger})
		if err != nil {
			return err
		}
		a.store, a.files = fs, fs
	case config.StoreSQLite:
		db, err := sqlitestore.Open(ctx, a.cfg.Store.Path)
		if err != nil {
			return err
		}
		a.store = db
		a.closers = append(a.closers, db.Close)
	default:
		return fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, a.cfg.Store.Backend)
	}
	a.logger.Debug("task store opened", "backend", a.cfg.Store.Backend, "path", a.cfg.Store.Path)
	return nil
}

// fail closes what was opened so far and returns err.
func (a *app) fail(err error) error {
	return errors.Join(err, a.Close())
}

// server builds the REST server over the app.
func (a *app) server() (*server.Server, error) {
	return server.New(server.Config{
		Agent:            a.agent,
		Executor:         a.executor,
		Webhooks:         a.webhooks,
		EmailEnabled:     a.cfg.EmailEnabled(),
		GeneratorEnabled: a.cfg.GeneratorEnabled(),
		GeneratorModel:   a.cfg.Generator.Model,
		Origins:          a.cfg.HTTP.CORSOrigins,
		MaxExecTimeout:   a.cfg.Exec.MaxTimeout,
		Metrics:          a.metrics,
		Gatherer:         a.registry,
		Version:          version,
		Logger:           a.logger,
	})
}

// Close releases the agent and the store, last opened first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
