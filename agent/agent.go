package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"

	"github.com/jonwraymond/taskexec/backend"
	"github.com/jonwraymond/taskexec/backend/local"
	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/notify"
	"github.com/jonwraymond/taskexec/plan"
	"github.com/jonwraymond/taskexec/task"
)

// Process statuses.
const (
	StatusSuccess = "success"
	StatusInfo    = "info"
	StatusError   = "error"
)

// Config configures an Agent.
type Config struct {
	// Tasks is the task store.
	// Required.
	Tasks task.Repository

	// Hours enables the working-hours tools when set.
	Hours task.HoursRepository

	// Query enables code-as-plan queries when set.
	Query *plan.QueryPlanner

	// Charts enables the chart tools when set.
	Charts *plan.ChartPlanner

	// Webhooks receives task events and agent breakdowns when set.
	Webhooks *notify.Webhooks

	// Mailer enables the email tools when set.
	Mailer notify.Sender

	// Recipient is the default email recipient.
	Recipient string

	// Backends are extra tool sources served next to the task tools.
	Backends []backend.Backend

	// Observer is called after every tool execution.
	Observer backend.Observer

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// Logger is an optional logger.
	Logger code.Logger
}

// Response is the outcome of Process.
type Response struct {
	Status         string              `json:"status" yaml:"status"`
	Message        string              `json:"message,omitempty" yaml:"message,omitempty"`
	Routing        Routing             `json:"routing" yaml:"routing"`
	Query          *plan.QueryResponse `json:"query,omitempty" yaml:"query,omitempty"`
	Chart          *plan.ChartResponse `json:"chart,omitempty" yaml:"chart,omitempty"`
	SuggestedTools []string            `json:"suggested_tools,omitempty" yaml:"suggested_tools,omitempty"`
	AvailableTools []string            `json:"available_tools,omitempty" yaml:"available_tools,omitempty"`
}

// Agent routes free-text requests and serves the task tool catalog.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: tool errors wrap backend.ErrInvalidArgs for bad input and
//   task.ErrNotFound for unknown task IDs.
type Agent struct {
	cfg      Config
	router   *Router
	registry *backend.Registry
	tools    *backend.Aggregator
	catalog  *Catalog
}

// New validates cfg, registers the tools, and indexes them.
func New(cfg Config) (*Agent, error) {
	if cfg.Tasks == nil {
		return nil, fmt.Errorf("%w: missing required fields: Tasks", code.ErrConfiguration)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	a := &Agent{cfg: cfg, router: NewRouter(), registry: backend.NewRegistry()}

	specs := a.taskSpecs()
	if cfg.Hours != nil {
		specs = append(specs, a.hoursSpecs()...)
	}
	specs = append(specs, a.planSpecs()...)
	if cfg.Mailer != nil {
		specs = append(specs, a.emailSpecs()...)
	}

	tasks := local.New(Namespace)
	docs := make(map[string]tooldoc.DocEntry)
	for _, s := range specs {
		if err := tasks.RegisterHandler(s.def.Name, s.def); err != nil {
			return nil, err
		}
		docs[backend.FormatToolID(Namespace, s.def.Name)] = s.doc
	}
	if err := a.registry.Register(tasks); err != nil {
		return nil, err
	}
	for _, b := range cfg.Backends {
		if err := a.registry.Register(b); err != nil {
			return nil, err
		}
	}

	a.tools = backend.NewAggregator(a.registry)
	if cfg.Observer != nil {
		a.tools = a.tools.WithObserver(cfg.Observer)
	}

	ctx := context.Background()
	if err := a.registry.StartAll(ctx); err != nil {
		return nil, err
	}
	all, err := a.tools.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}
	if a.catalog, err = NewCatalog(all, docs); err != nil {
		return nil, err
	}
	return a, nil
}

// Route classifies request without acting on it.
func (a *Agent) Route(request string) Routing {
	return a.router.Route(request)
}

// Tools lists every served tool, sorted by ID.
func (a *Agent) Tools(ctx context.Context) ([]model.Tool, error) {
	return a.tools.ListAllTools(ctx)
}

// Backends reports the registered tool sources.
func (a *Agent) Backends(ctx context.Context) []backend.Info {
	return a.registry.Infos(ctx)
}

// Execute runs a tool by ID. A bare name is looked up in the task namespace.
func (a *Agent) Execute(ctx context.Context, toolID string, args map[string]any) (any, error) {
	if !strings.Contains(toolID, ":") {
		toolID = backend.FormatToolID(Namespace, toolID)
	}
	return a.tools.Execute(ctx, toolID, args)
}

// Suggest returns the IDs of up to limit tools relevant to request.
func (a *Agent) Suggest(request string, limit int) ([]string, error) {
	hits, err := a.catalog.Search(request, limit)
	if err != nil {
		return nil, err
	}
	return summaryIDs(hits), nil
}

// Describe returns the full documentation of a tool.
func (a *Agent) Describe(toolID string) (tooldoc.ToolDoc, error) {
	if !strings.Contains(toolID, ":") {
		toolID = backend.FormatToolID(Namespace, toolID)
	}
	return a.catalog.Describe(toolID, tooldoc.DetailFull)
}

// Close stops every backend.
func (a *Agent) Close() error {
	return a.registry.StopAll()
}

// Process routes request and acts on it. Visualization requests go to the
// chart planner and query requests to the query planner when a generator is
// configured; anything else gets the routing plus suggested tools.
func (a *Agent) Process(ctx context.Context, request string) (Response, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return Response{}, plan.ErrEmptyRequest
	}
	resp := Response{Routing: a.router.Route(request)}

	switch {
	case resp.Routing.Has(CategoryVisualization) && a.cfg.Charts != nil && a.cfg.Charts.Generates():
		out, err := a.cfg.Charts.Chart(ctx, request)
		if err != nil {
			return Response{}, err
		}
		resp.Chart = &out
		resp.Status = out.Status
		resp.Message = out.Message

	case (resp.Routing.Has(CategoryCodeQuery) || resp.Routing.Has(CategoryTaskQuery)) &&
		a.cfg.Query != nil && a.cfg.Query.Generates():
		out, err := a.cfg.Query.Query(ctx, request)
		if err != nil {
			return Response{}, err
		}
		resp.Query = &out
		resp.Status = StatusSuccess
		resp.Message = answerText(out.Answer)
		if out.Fault != nil || out.Status == StatusError {
			resp.Status = StatusError
			if out.Error != "" {
				resp.Message = out.Error
			}
		}

	default:
		suggested, err := a.Suggest(request, DefaultSuggestions)
		if err != nil {
			return Response{}, err
		}
		tools, err := a.Tools(ctx)
		if err != nil {
			return Response{}, err
		}
		resp.Status = StatusInfo
		resp.Message = "Code generation is not available for this request. Use the task tools directly."
		resp.SuggestedTools = suggested
		for _, t := range tools {
			resp.AvailableTools = append(resp.AvailableTools, t.ToolID())
		}
	}

	a.notifyBreakdown(ctx, resp)
	return resp, nil
}

func (a *Agent) notifyBreakdown(ctx context.Context, resp Response) {
	if a.cfg.Webhooks == nil || resp.Message == "" || resp.Status == StatusInfo {
		return
	}
	if err := a.cfg.Webhooks.NotifyAgentBreakdown(ctx, "Task breakdown", resp.Message); err != nil {
		a.logf("agent breakdown notification failed: %v", err)
	}
}

func (a *Agent) logf(format string, args ...any) {
	if a.cfg.Logger != nil {
		a.cfg.Logger.Logf(format, args...)
	}
}

// IsInvalid reports whether err is an input error from a tool.
func IsInvalid(err error) bool {
	return errors.Is(err, backend.ErrInvalidArgs) || errors.Is(err, backend.ErrInvalidToolID) ||
		errors.Is(err, plan.ErrEmptyRequest)
}

// IsNotFound reports whether err names a missing task or tool.
func IsNotFound(err error) bool {
	return errors.Is(err, task.ErrNotFound) || errors.Is(err, backend.ErrToolNotFound) ||
		errors.Is(err, backend.ErrBackendNotFound)
}

func answerText(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return a
	default:
		return fmt.Sprint(a)
	}
}

func summaryIDs(hits []index.Summary) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}
