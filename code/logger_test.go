package code

import (
	"context"
	"testing"
)

func TestLogger_Interface(t *testing.T) {
	t.Helper()
	var _ Logger = (*recordingLogger)(nil)
}

func TestLogger_CompletedRun(t *testing.T) {
	logger := &recordingLogger{}
	exec, _ := NewDefaultExecutor(Config{Repository: &mockRepository{}, Engine: &mockEngine{}, Logger: logger})
	if _, err := exec.Execute(context.Background(), "x = 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.contains("completed") {
		t.Errorf("log lines = %v", logger.lines)
	}
}
