package plan

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/task"
)

// DefaultCacheSize bounds the generated-code cache when caching is enabled
// without an explicit size.
const DefaultCacheSize = 128

// QueryConfig configures a QueryPlanner.
type QueryConfig struct {
	// Executor runs the generated snippet.
	// Required.
	Executor code.Executor

	// Repository supplies the snapshot described in the prompt.
	// Required.
	Repository task.Reader

	// Generator produces the snippet. When nil every query runs the
	// fallback snippet.
	Generator Generator

	// CacheSize enables caching generated code by normalized request when
	// positive.
	CacheSize int

	// Logger is an optional logger.
	Logger code.Logger
}

// QueryResponse is the shaped outcome of one query.
type QueryResponse struct {
	Request       string      `json:"user_request" yaml:"user_request"`
	GeneratedCode string      `json:"generated_code" yaml:"generated_code"`
	Status        string      `json:"status" yaml:"status"`
	Answer        any         `json:"answer" yaml:"answer"`
	Stdout        string      `json:"stdout" yaml:"stdout"`
	Error         string      `json:"error,omitempty" yaml:"error,omitempty"`
	Fault         *code.Fault `json:"fault,omitempty" yaml:"fault,omitempty"`
	TasksFound    int         `json:"tasks_found" yaml:"tasks_found"`
	Cached        bool        `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// QueryPlanner answers free-text questions by generating a snippet and
// running it through the executor.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: generator failures are absorbed into a fallback snippet; only
//   ErrEmptyRequest, snapshot failures, and executor rejections are returned.
type QueryPlanner struct {
	cfg   QueryConfig
	cache *lru.Cache[string, string]
}

// NewQueryPlanner validates cfg and returns a planner.
func NewQueryPlanner(cfg QueryConfig) (*QueryPlanner, error) {
	var missing []string
	if cfg.Executor == nil {
		missing = append(missing, "Executor")
	}
	if cfg.Repository == nil {
		missing = append(missing, "Repository")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", code.ErrConfiguration, strings.Join(missing, ", "))
	}

	p := &QueryPlanner{cfg: cfg}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create code cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Generates reports whether a generator is configured.
func (p *QueryPlanner) Generates() bool {
	return p.cfg.Generator != nil
}

// Query generates and runs a snippet for request.
func (p *QueryPlanner) Query(ctx context.Context, request string) (QueryResponse, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return QueryResponse{}, ErrEmptyRequest
	}

	generated, cached, err := p.generate(ctx, request)
	if err != nil {
		return QueryResponse{}, err
	}

	res, err := p.cfg.Executor.Execute(ctx, generated, code.WithRequest(request))
	if err != nil {
		return QueryResponse{}, err
	}

	resp := QueryResponse{
		Request:       request,
		GeneratedCode: generated,
		Status:        res.Status,
		Answer:        res.Answer,
		Stdout:        res.Stdout,
		Fault:         res.Error,
		TasksFound:    len(res.TasksAfter),
		Cached:        cached,
	}
	if res.Error != nil {
		resp.Error = res.Error.Error()
	}
	return resp, nil
}

func (p *QueryPlanner) generate(ctx context.Context, request string) (string, bool, error) {
	key := strings.ToLower(request)
	if p.cache != nil {
		if text, ok := p.cache.Get(key); ok {
			return text, true, nil
		}
	}

	if p.cfg.Generator == nil {
		return queryFallback("Code generation is not configured. Please use the direct task tools instead."), false, nil
	}

	snapshot, err := p.cfg.Repository.ListAll(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", code.ErrRepository, err)
	}
	prompt, err := QueryPrompt(snapshot, request)
	if err != nil {
		return "", false, fmt.Errorf("render query prompt: %w", err)
	}

	text, err := p.cfg.Generator.Generate(ctx, prompt)
	if err != nil {
		p.logf("query generation failed: %v", err)
		return queryFallback("Unable to generate query code. Please try a simpler query."), false, nil
	}
	if p.cache != nil && code.HasCodeBlock(text) {
		p.cache.Add(key, text)
	}
	return text, false, nil
}

func (p *QueryPlanner) logf(format string, args ...any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Logf(format, args...)
	}
}

// queryFallback is the snippet run when no code could be generated.
func queryFallback(message string) string {
	return code.WrapCodeBlock(fmt.Sprintf("answer_text = %q\nSTATUS = \"error\"\nprint(\"LOG: code generation unavailable\")", message))
}
