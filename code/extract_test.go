package code

import (
	"errors"
	"testing"
)

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"tagged", "<execute_python>\nresult = 1\n</execute_python>", "result = 1"},
		{"surrounding prose", "Plan:\n<execute_python>x = 2</execute_python>\nthanks", "x = 2"},
		{"first block wins", "<execute_python>a = 1</execute_python><execute_python>b = 2</execute_python>", "a = 1"},
		{"case insensitive tags", "<EXECUTE_PYTHON>\nx = 3\n</Execute_Python>", "x = 3"},
		{"no tags", "  result = len(tasks)  \n", "result = len(tasks)"},
		{"empty body", "<execute_python>   </execute_python>", ""},
		{"unclosed tag", "<execute_python>\nx = 1", "<execute_python>\nx = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCodeBlock(tt.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractCodeBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractCodeBlock_Empty(t *testing.T) {
	for _, text := range []string{"", " ", "\n\t"} {
		if _, err := ExtractCodeBlock(text); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("ExtractCodeBlock(%q) error = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestWrapCodeBlock_RoundTrip(t *testing.T) {
	wrapped := WrapCodeBlock("  result = 1\n")
	if !HasCodeBlock(wrapped) {
		t.Fatalf("HasCodeBlock(%q) = false", wrapped)
	}
	got, _ := ExtractCodeBlock(wrapped)
	if got != "result = 1" {
		t.Errorf("round trip = %q", got)
	}
	if HasCodeBlock("result = 1") {
		t.Error("plain code has no block")
	}
}
