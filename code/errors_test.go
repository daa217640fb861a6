package code

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSentinels_Wrap(t *testing.T) {
	for _, sentinel := range []error{ErrCodeExecution, ErrConfiguration, ErrLimitExceeded, ErrEmptyInput, ErrRepository} {
		err := fmt.Errorf("wrapped: %w", sentinel)
		if !errors.Is(err, sentinel) {
			t.Errorf("expected errors.Is to match %v", sentinel)
		}
	}
}

func TestFault_Error(t *testing.T) {
	tests := []struct {
		name     string
		fault    Fault
		expected string
	}{
		{
			name:     "with position",
			fault:    Fault{Kind: SyntaxFault, Message: "got newline, want ':'", Line: 2, Column: 8},
			expected: "syntax: got newline, want ':' (line 2, col 8)",
		},
		{
			name:     "without position",
			fault:    Fault{Kind: TimeoutFault, Message: "too many steps"},
			expected: "timeout: too many steps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fault.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFault_Unwrap(t *testing.T) {
	underlying := errors.New("underlying cause")
	err := fmt.Errorf("engine: %w", NewFault(ValueFault, underlying))

	var f *Fault
	if !errors.As(err, &f) {
		t.Fatal("expected errors.As to extract Fault")
	}
	if f.Message != "underlying cause" {
		t.Errorf("Message = %q", f.Message)
	}
	if !errors.Is(err, underlying) {
		t.Error("expected errors.Is to find underlying error")
	}
}

func TestFault_Is(t *testing.T) {
	value := &Fault{Kind: ValueFault}
	if !errors.Is(value, ErrCodeExecution) {
		t.Error("every fault should match ErrCodeExecution")
	}
	if errors.Is(value, ErrLimitExceeded) || errors.Is(value, ErrConfiguration) {
		t.Error("value fault should not match other sentinels")
	}
	if !errors.Is(&Fault{Kind: TimeoutFault}, ErrLimitExceeded) {
		t.Error("timeout fault should match ErrLimitExceeded")
	}
}

func TestFault_Text(t *testing.T) {
	var nilFault *Fault
	if nilFault.Text() != "" {
		t.Error("nil fault should render empty")
	}
	f := &Fault{Kind: ValueFault, Message: "boom", Trace: "Traceback (most recent call last):\n  snippet.py:1:1: in <toplevel>"}
	if got := f.Text(); !containsStr(got, "Traceback") || !containsStr(got, "value: boom") {
		t.Errorf("Text() = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FaultKind
	}{
		{"nil", nil, UncategorizedFault},
		{"fault keeps kind", &Fault{Kind: SyntaxFault}, SyntaxFault},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), TimeoutFault},
		{"limit", ErrLimitExceeded, TimeoutFault},
		{"undefined", errors.New("undefined: foo"), NameResolutionFault},
		{"attribute", errors.New("Task has no .owner field or method"), NameResolutionFault},
		{"before assignment", errors.New("local variable x referenced before assignment"), NameResolutionFault},
		{"binary op", errors.New("unknown binary op: string + int"), TypeFault},
		{"not iterable", errors.New("int value is not iterable"), TypeFault},
		{"unpack", errors.New("mean: got string, want number"), TypeFault},
		{"division", errors.New("floored division by zero"), ValueFault},
		{"missing key", errors.New(`key "x" not in dict`), ValueFault},
		{"index", errors.New("index 5 out of range: length 2"), ValueFault},
		{"empty data", errors.New("mean requires at least one data point"), ValueFault},
		{"invalid status", errors.New(`invalid status: "blocked"`), ValueFault},
		{"steps", errors.New("Starlark computation cancelled: too many steps"), TimeoutFault},
		{"cancelled", errors.New("computation cancelled: context canceled"), TimeoutFault},
		{"other", errors.New("fail: boom"), UncategorizedFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
