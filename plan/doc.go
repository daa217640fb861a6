// Package plan implements the code-as-plan orchestrators.
//
// A planner renders a prompt from the current task snapshot, asks a
// [Generator] for a tagged snippet, and runs it through a [code.Executor].
// [QueryPlanner] answers questions; [ChartPlanner] draws figures with the
// chart variant and saves them as JSON.
//
// Generator failures never fail a request. The planner substitutes a
// fallback snippet that sets answer_text and STATUS = "error", so callers
// always receive a shaped response.
package plan
