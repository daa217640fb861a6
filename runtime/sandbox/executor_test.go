package sandbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/task"
)

// newStoreExecutor runs snippets with the sandbox engine against repo.
func newStoreExecutor(t *testing.T, repo *task.MemoryStore) *code.DefaultExecutor {
	t.Helper()
	repo.SetClock(func() time.Time { return fixedNow })
	exec, err := code.NewDefaultExecutor(code.Config{Repository: repo, Engine: newTestEngine()})
	if err != nil {
		t.Fatalf("NewDefaultExecutor() error = %v", err)
	}
	return exec
}

func highTodo() task.Task {
	tk := task.New("Ship release", fixedNow.Add(-time.Hour))
	tk.Priority = task.PriorityHigh
	return tk
}

func TestExecute_FoundHighPriority(t *testing.T) {
	repo := task.NewMemoryStore(highTodo())
	src := `high = [t for t in tasks if t.priority == "high"]; answer_text = f"Found {len(high)}"; STATUS = "success"`

	res, err := newStoreExecutor(t, repo).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Error != nil {
		t.Fatalf("Error = %v", res.Error)
	}
	if res.Answer != "Found 1" {
		t.Errorf("Answer = %#v, want %q", res.Answer, "Found 1")
	}
	if res.Status != "success" {
		t.Errorf("Status = %q, want success", res.Status)
	}
}

func TestExecute_UnboundNameOnly(t *testing.T) {
	repo := task.NewMemoryStore(highTodo())

	res, err := newStoreExecutor(t, repo).Execute(context.Background(), "foo()")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Error == nil || res.Error.Kind != code.NameResolutionFault {
		t.Fatalf("Error = %v, want %s fault", res.Error, code.NameResolutionFault)
	}
	if res.Answer != nil {
		t.Errorf("Answer = %#v, want nil", res.Answer)
	}
	if res.Status != code.StatusUnknown {
		t.Errorf("Status = %q, want %q", res.Status, code.StatusUnknown)
	}
	if len(res.TasksAfter) != 1 || res.TasksAfter[0].Status != task.StatusTodo {
		t.Errorf("TasksAfter = %+v", res.TasksAfter)
	}
}

func TestExecute_MutationBeforeUnboundName(t *testing.T) {
	tk := highTodo()
	repo := task.NewMemoryStore(tk)
	src := fmt.Sprintf(`print("starting")
task_manager.update_status(%q, "completed")
answer_text = "partial"
STATUS = "success"
foo()
answer_text = "unreachable"
`, tk.ID)

	res, err := newStoreExecutor(t, repo).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Error == nil || res.Error.Kind != code.NameResolutionFault {
		t.Fatalf("Error = %v, want %s fault", res.Error, code.NameResolutionFault)
	}
	if res.Error.Message != "undefined: foo" || res.Error.Line != 5 {
		t.Errorf("Error = %+v", res.Error)
	}
	if res.Answer != "partial" {
		t.Errorf("Answer = %#v, want partial", res.Answer)
	}
	if res.Status != "success" {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if res.Stdout != "starting" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if len(res.TasksAfter) != 1 || res.TasksAfter[0].Status != task.StatusCompleted {
		t.Errorf("TasksAfter = %+v, want the task completed", res.TasksAfter)
	}
}

func TestExecute_MutationBeforeRuntimeFault(t *testing.T) {
	tasks := sampleTasks()
	repo := task.NewMemoryStore(tasks...)
	src := fmt.Sprintf(`task_manager.update_task(%q, priority="low")
answer_text = "updated"
x = [][0]
`, tasks[1].ID)

	res, err := newStoreExecutor(t, repo).Execute(context.Background(), src)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Error == nil || res.Error.Kind != code.ValueFault {
		t.Fatalf("Error = %v, want %s fault", res.Error, code.ValueFault)
	}
	if res.Answer != "updated" {
		t.Errorf("Answer = %#v", res.Answer)
	}
	if len(res.TasksAfter) != len(tasks) {
		t.Fatalf("TasksAfter has %d tasks, want %d", len(res.TasksAfter), len(tasks))
	}
	for _, after := range res.TasksAfter {
		want := task.PriorityHigh
		if after.ID == tasks[1].ID {
			want = task.PriorityLow
		} else if after.ID != tasks[0].ID && after.ID != tasks[2].ID {
			t.Errorf("unexpected task %s", after.ID)
			continue
		}
		if after.Priority != want {
			t.Errorf("task %s priority = %q, want %q", after.ID, after.Priority, want)
		}
	}
}

func TestExecute_SnapshotUnchangedAfterFault(t *testing.T) {
	tasks := sampleTasks()
	repo := task.NewMemoryStore(tasks...)

	res, err := newStoreExecutor(t, repo).Execute(context.Background(), "tasks[0].title = 'edited'\nx = 1 + 'a'")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Error == nil || res.Error.Kind != code.TypeFault {
		t.Fatalf("Error = %v, want %s fault", res.Error, code.TypeFault)
	}
	for _, after := range res.TasksAfter {
		if after.Title == "edited" {
			t.Errorf("snapshot edit reached the repository: %+v", after)
		}
	}
}
