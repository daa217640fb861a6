package code

import (
	"context"
	"errors"
	"testing"
)

func TestExecutorContract_DeadlineWrapsLimit(t *testing.T) {
	engine := &mockEngine{err: context.DeadlineExceeded}
	exec := newTestExecutor(&mockRepository{}, engine)

	res, err := exec.Execute(context.Background(), "x = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(res.Error, ErrLimitExceeded) {
		t.Fatalf("fault = %v, want ErrLimitExceeded", res.Error)
	}
}

func TestExecutorContract_FaultsMatchCodeExecution(t *testing.T) {
	engine := &mockEngine{err: errors.New("unknown binary op: string + int")}
	res, _ := newTestExecutor(&mockRepository{}, engine).Execute(context.Background(), "x = 1")
	if !errors.Is(res.Error, ErrCodeExecution) {
		t.Fatalf("fault = %v, want ErrCodeExecution", res.Error)
	}
}

func TestExecutorContract_NilOptionIgnored(t *testing.T) {
	exec := newTestExecutor(&mockRepository{}, &mockEngine{})
	if _, err := exec.Execute(context.Background(), "x = 1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecutorContract_ResultOwnership(t *testing.T) {
	repo := &mockRepository{tasks: sampleTasks()}
	exec := newTestExecutor(repo, &mockEngine{})

	res, _ := exec.Execute(context.Background(), "x = 1")
	res.TasksAfter[0].Title = "changed"
	if repo.tasks[0].Title != "Write report" {
		t.Error("result snapshot aliases repository data")
	}
}
