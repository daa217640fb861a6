package agent

import (
	"regexp"
	"slices"
	"strings"
)

// Category is a coarse intent detected in a request.
type Category string

// Request categories, in matching order.
const (
	CategoryTaskCreation  Category = "task_creation"
	CategoryTaskUpdate    Category = "task_update"
	CategoryTaskQuery     Category = "task_query"
	CategoryEmail         Category = "email"
	CategoryVisualization Category = "visualization"
	CategoryMetrics       Category = "metrics"
	CategoryCodeQuery     Category = "code_query"
	CategoryGeneral       Category = "general"
)

// Tool groups recommended by the router.
const (
	GroupTask          = "task_tools"
	GroupEmail         = "email_tools"
	GroupVisualization = "visualization_tools"
	GroupQuery         = "query_tools"
)

// Complexity levels.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Routing is the router's verdict for one request.
type Routing struct {
	Request          string     `json:"request" yaml:"request"`
	Categories       []Category `json:"categories" yaml:"categories"`
	RecommendedTools []string   `json:"recommended_tools" yaml:"recommended_tools"`
	Complexity       string     `json:"complexity" yaml:"complexity"`
}

// Has reports whether c was detected.
func (r Routing) Has(c Category) bool {
	return slices.Contains(r.Categories, c)
}

type rule struct {
	category Category
	group    string
	pattern  *regexp.Regexp
}

func newRule(c Category, group string, patterns ...string) rule {
	return rule{category: c, group: group, pattern: regexp.MustCompile("(?:" + strings.Join(patterns, "|") + ")")}
}

var defaultRules = []rule{
	newRule(CategoryTaskCreation, GroupTask,
		`create.*task`, `add.*task`, `new.*task`, `make.*task`, `schedule.*task`),
	newRule(CategoryTaskUpdate, GroupTask,
		`update.*task`, `change.*task`, `modify.*task`, `mark.*complete`, `complete.*task`,
		`finish.*task`, `start.*task`, `begin.*task`),
	newRule(CategoryTaskQuery, GroupTask,
		`show.*task`, `list.*task`, `get.*task`, `find.*task`, `search.*task`, `query.*task`,
		`what.*task`, `which.*task`, `tasks.*due`, `tasks.*priority`, `tasks.*status`),
	newRule(CategoryEmail, GroupEmail,
		`send.*email`, `email.*reminder`, `remind.*email`, `notify.*email`, `summary.*email`,
		`productivity.*email`),
	newRule(CategoryVisualization, GroupVisualization,
		`chart`, `graph`, `plot`, `visualize`, `visualization`, `completion.*rate`),
	newRule(CategoryMetrics, GroupTask,
		`metrics`, `statistics`, `stats`, `productivity`, `completion.*rate`, `performance`, `analytics`),
	newRule(CategoryCodeQuery, GroupQuery,
		`complex.*query`, `advanced.*filter`, `custom.*query`, `generate.*code`, `write.*code.*query`),
}

// Router classifies requests with keyword patterns. It is stateless and
// safe for concurrent use.
type Router struct {
	rules []rule
}

// NewRouter returns a router with the default rules.
func NewRouter() *Router {
	return &Router{rules: defaultRules}
}

// Route categorizes request. Matching is case-insensitive; a request that
// matches nothing is "general".
func (r *Router) Route(request string) Routing {
	lower := strings.ToLower(request)
	routing := Routing{Request: request}
	for _, rl := range r.rules {
		if !rl.pattern.MatchString(lower) {
			continue
		}
		routing.Categories = append(routing.Categories, rl.category)
		if !slices.Contains(routing.RecommendedTools, rl.group) {
			routing.RecommendedTools = append(routing.RecommendedTools, rl.group)
		}
	}
	if len(routing.Categories) == 0 {
		routing.Categories = []Category{CategoryGeneral}
		routing.RecommendedTools = []string{GroupTask}
	}

	switch {
	case routing.Has(CategoryCodeQuery) || routing.Has(CategoryVisualization):
		routing.Complexity = ComplexityHigh
	case len(routing.Categories) > 1:
		routing.Complexity = ComplexityMedium
	default:
		routing.Complexity = ComplexityLow
	}
	return routing
}
