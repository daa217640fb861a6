// Package code runs model-generated snippets ("code as plan") against a
// snapshot of the task collection and turns the outcome into a structured
// result.
//
// A language model answers a question about tasks by writing a short
// program wrapped in <execute_python> tags. This package extracts that
// program, hands it to a pluggable [Engine] together with a whitelisted
// [Environment], and harvests the conventional output bindings.
//
// # Architecture
//
//   - [ExtractCodeBlock]: pulls the first tagged region out of model text.
//
//   - [BuildEnvironment]: the whitelist of names a snippet may use, plus a
//     deep-copied task snapshot.
//
//   - [Engine]: the interpreter. The runtime/sandbox package provides the
//     Starlark implementation.
//
//   - [Executor]: the entry point. It applies the timeout and step budget,
//     captures faults, and collects results.
//
// # Result Convention
//
// Snippets report through module-level bindings:
//
//   - answer_text, answer_rows, answer_json, result: candidate answers,
//     checked in that order; the first truthy one becomes
//     [ExecutionResult].Answer
//   - STATUS: a free-form status string, "unknown" when unset
//
// Printed output is captured per call into [ExecutionResult].Stdout.
//
// # Faults
//
// Snippet failures never abort the call. They are classified into a
// [FaultKind] and stored in [ExecutionResult].Error; bindings set before the
// failure are still harvested. Only an empty input ([ErrEmptyInput]) or a
// failed snapshot ([ErrRepository]) is returned as an error.
package code
