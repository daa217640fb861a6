package code

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for error classification.
var (
	// ErrCodeExecution indicates a fault while running a snippet, such as a
	// syntax error or a runtime exception. Every *Fault matches it.
	ErrCodeExecution = errors.New("code execution error")

	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrLimitExceeded indicates that the timeout or step budget was reached.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrEmptyInput is returned when the text handed to the extractor or
	// executor is empty or whitespace only.
	ErrEmptyInput = errors.New("no code provided")

	// ErrRepository indicates the task snapshot could not be taken.
	ErrRepository = errors.New("task repository error")
)

// FaultKind is the diagnostic category of an execution fault.
type FaultKind string

const (
	// NameResolutionFault covers unbound names, attributes that do not exist,
	// and variables read before assignment.
	NameResolutionFault FaultKind = "name_resolution"

	// TypeFault covers operations applied to values of the wrong type.
	TypeFault FaultKind = "type"

	// ValueFault covers right-typed values with invalid contents.
	ValueFault FaultKind = "value"

	// SyntaxFault covers snippets that do not parse.
	SyntaxFault FaultKind = "syntax"

	// TimeoutFault covers deadline expiry and step budget exhaustion.
	TimeoutFault FaultKind = "timeout"

	// UncategorizedFault covers everything else.
	UncategorizedFault FaultKind = "uncategorized"
)

// Fault is an execution failure captured in an ExecutionResult. It is never
// returned as the error of Executor.Execute.
type Fault struct {
	// Kind is the diagnostic category.
	Kind FaultKind `json:"kind"`

	// Message describes the failure.
	Message string `json:"message"`

	// Trace is the interpreter backtrace, when available.
	Trace string `json:"trace,omitempty"`

	// Line is the 1-based line number where the fault occurred.
	// Zero indicates the line is unknown.
	Line int `json:"line,omitempty"`

	// Column is the 1-based column number where the fault occurred.
	// Zero indicates the column is unknown.
	Column int `json:"column,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// NewFault returns a fault of the given kind wrapping err.
func NewFault(kind FaultKind, err error) *Fault {
	f := &Fault{Kind: kind, Err: err}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

// Error returns the message, including line and column if available.
func (f *Fault) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d, col %d)", f.Kind, f.Message, f.Line, f.Column)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is reports whether this fault matches the target. Every fault matches
// ErrCodeExecution; timeouts also match ErrLimitExceeded.
func (f *Fault) Is(target error) bool {
	if target == ErrCodeExecution {
		return true
	}
	return target == ErrLimitExceeded && f.Kind == TimeoutFault
}

// Text renders the fault for human consumption: the message followed by the
// trace when one was captured.
func (f *Fault) Text() string {
	if f == nil {
		return ""
	}
	if f.Trace == "" {
		return f.Error()
	}
	return f.Trace + "\n" + f.Error()
}

var faultPatterns = []struct {
	kind     FaultKind
	patterns []string
}{
	{NameResolutionFault, []string{
		"undefined:",
		"referenced before assignment",
		"field or method",
		"not defined",
	}},
	{TypeFault, []string{
		"unknown binary op",
		"unknown unary op",
		"not iterable",
		"not callable",
		"invalid call of non-function",
		"unhashable",
		"want ",
		"missing argument",
		"unexpected keyword argument",
		"does not support",
		"got multiple values",
		"not indexable",
		"not a mapping",
		"typeerror",
	}},
	{ValueFault, []string{
		"invalid literal",
		"out of range",
		"division by zero",
		"not in dict",
		"not in list",
		"not found",
		"cannot parse",
		"valueerror",
		"empty sequence",
		"requires at least",
		"invalid priority",
		"invalid status",
		"invalid regular expression",
	}},
}

// Classify maps an execution error to a FaultKind. A *Fault keeps its own
// kind; deadline expiry is a timeout; otherwise the message is matched
// against known interpreter error texts. Classification never affects
// control flow.
func Classify(err error) FaultKind {
	if err == nil {
		return UncategorizedFault
	}
	var f *Fault
	if errors.As(err, &f) && f.Kind != "" {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrLimitExceeded) {
		return TimeoutFault
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage maps an error message to a FaultKind using the known
// interpreter error texts.
func ClassifyMessage(msg string) FaultKind {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "too many steps") || strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "computation cancelled") {
		return TimeoutFault
	}
	for _, group := range faultPatterns {
		for _, p := range group.patterns {
			if strings.Contains(lower, p) {
				return group.kind
			}
		}
	}
	return UncategorizedFault
}
