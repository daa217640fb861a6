package code

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/taskexec/task"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func sampleTasks() []task.Task {
	a := task.New("Write report", testNow)
	b := task.New("Buy milk", testNow)
	return []task.Task{a, b}
}

func TestExecutor_Interface(t *testing.T) {
	t.Helper()
	var _ Executor = (*DefaultExecutor)(nil)
}

func TestNewDefaultExecutor_ValidConfig(t *testing.T) {
	exec, err := NewDefaultExecutor(Config{Repository: &mockRepository{}, Engine: &mockEngine{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec == nil {
		t.Fatal("expected non-nil executor")
	}
	if exec.cfg.DefaultTimeout != DefaultTimeout {
		t.Errorf("DefaultTimeout = %v, want %v", exec.cfg.DefaultTimeout, DefaultTimeout)
	}
	if exec.cfg.MaxSteps != DefaultMaxSteps {
		t.Errorf("MaxSteps = %d, want %d", exec.cfg.MaxSteps, DefaultMaxSteps)
	}
}

func TestNewDefaultExecutor_InvalidConfig(t *testing.T) {
	_, err := NewDefaultExecutor(Config{})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestExecute_ExtractsTaggedCode(t *testing.T) {
	engine := &mockEngine{}
	exec := newTestExecutor(&mockRepository{tasks: sampleTasks()}, engine)

	text := "Here is the plan.\n<execute_python>\nresult = len(tasks)\n</execute_python>\nDone."
	res, err := exec.Execute(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := engine.lastCall().code; got != "result = len(tasks)" {
		t.Errorf("engine code = %q", got)
	}
	if res.Code != "result = len(tasks)" {
		t.Errorf("Code = %q", res.Code)
	}
}

func TestExecute_BuildsEnvironment(t *testing.T) {
	engine := &mockEngine{}
	repo := &mockRepository{tasks: sampleTasks()}
	exec := newTestExecutor(repo, engine)

	_, err := exec.Execute(context.Background(), "result = 1",
		WithRequest("how many?"), WithVariant(VariantChart))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := engine.lastCall()
	if call.env.Request != "how many?" {
		t.Errorf("Request = %q", call.env.Request)
	}
	if call.env.Variant != VariantChart || !call.env.Allows(BindPlot) {
		t.Errorf("Variant = %q, bindings = %v", call.env.Variant, call.env.Bindings)
	}
	if len(call.env.Tasks) != 2 {
		t.Errorf("Tasks = %d, want 2", len(call.env.Tasks))
	}
	if call.env.Repository != repo {
		t.Error("Repository not passed to engine")
	}
	if call.env.MaxSteps != DefaultMaxSteps {
		t.Errorf("MaxSteps = %d", call.env.MaxSteps)
	}
	if !call.deadline {
		t.Error("engine context should carry a deadline")
	}
}

func TestExecute_EmptyInput(t *testing.T) {
	engine := &mockEngine{}
	exec := newTestExecutor(&mockRepository{}, engine)

	for _, text := range []string{"", "   \n\t"} {
		_, err := exec.Execute(context.Background(), text)
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Execute(%q) error = %v, want ErrEmptyInput", text, err)
		}
	}
	if len(engine.calls) != 0 {
		t.Errorf("engine called %d times, want 0", len(engine.calls))
	}
}

func TestExecute_RepositoryError(t *testing.T) {
	engine := &mockEngine{}
	cause := errors.New("disk gone")
	exec := newTestExecutor(&mockRepository{listErr: cause}, engine)

	_, err := exec.Execute(context.Background(), "result = 1")
	if !errors.Is(err, ErrRepository) || !errors.Is(err, cause) {
		t.Errorf("error = %v, want ErrRepository wrapping cause", err)
	}
	if len(engine.calls) != 0 {
		t.Error("engine should not run without a snapshot")
	}
}

func TestExecute_AnswerPriority(t *testing.T) {
	tests := []struct {
		name    string
		globals map[string]any
		want    any
	}{
		{"text first", map[string]any{OutAnswerText: "hi", OutResult: "r"}, "hi"},
		{"empty text skipped", map[string]any{OutAnswerText: "", OutAnswerRows: []any{int64(1)}}, []any{int64(1)}},
		{"empty rows skipped", map[string]any{OutAnswerRows: []any{}, OutAnswerJSON: map[string]any{"a": int64(1)}}, map[string]any{"a": int64(1)}},
		{"zero result skipped", map[string]any{OutResult: int64(0)}, nil},
		{"result last", map[string]any{OutAnswerText: nil, OutResult: int64(5)}, int64(5)},
		{"nothing set", map[string]any{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{result: RunResult{Globals: tt.globals}}
			res, err := newTestExecutor(&mockRepository{}, engine).Execute(context.Background(), "x = 1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(res.Answer, tt.want) {
				t.Errorf("Answer = %#v, want %#v", res.Answer, tt.want)
			}
		})
	}
}

func TestExecute_Status(t *testing.T) {
	engine := &mockEngine{}
	exec := newTestExecutor(&mockRepository{}, engine)

	res, _ := exec.Execute(context.Background(), "x = 1")
	if res.Status != StatusUnknown {
		t.Errorf("Status = %q, want %q", res.Status, StatusUnknown)
	}

	engine.result = RunResult{Globals: map[string]any{OutStatus: "3 tasks found"}}
	res, _ = exec.Execute(context.Background(), "x = 1")
	if res.Status != "3 tasks found" {
		t.Errorf("Status = %q", res.Status)
	}

	engine.result = RunResult{Globals: map[string]any{OutStatus: int64(7)}}
	res, _ = exec.Execute(context.Background(), "x = 1")
	if res.Status != "7" {
		t.Errorf("Status = %q, want 7", res.Status)
	}
}

func TestExecute_TrimsStdout(t *testing.T) {
	engine := &mockEngine{result: RunResult{Stdout: "line 1\nline 2\n\n", Steps: 42}}
	res, _ := newTestExecutor(&mockRepository{}, engine).Execute(context.Background(), "x = 1")
	if res.Stdout != "line 1\nline 2" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Steps != 42 {
		t.Errorf("Steps = %d", res.Steps)
	}
}

func TestExecute_FaultIsCapturedNotReturned(t *testing.T) {
	fault := &Fault{Kind: ValueFault, Message: "bad value", Line: 2}
	engine := &mockEngine{
		result: RunResult{Globals: map[string]any{OutAnswerText: "partial"}},
		err:    fault,
	}
	logger := &recordingLogger{}
	exec, _ := NewDefaultExecutor(Config{Repository: &mockRepository{}, Engine: engine, Logger: logger})

	res, err := exec.Execute(context.Background(), "x = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Error == nil || res.Error.Kind != ValueFault || res.Error.Line != 2 {
		t.Fatalf("Error = %+v", res.Error)
	}
	if res.Answer != "partial" {
		t.Errorf("Answer = %v, want partial", res.Answer)
	}
	if res.Status != StatusUnknown {
		t.Errorf("Status = %q", res.Status)
	}
	if !logger.contains("fault") {
		t.Error("expected fault to be logged")
	}
}

func TestExecute_PlainErrorIsClassified(t *testing.T) {
	engine := &mockEngine{err: errors.New("undefined: foo")}
	res, err := newTestExecutor(&mockRepository{}, engine).Execute(context.Background(), "foo()")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Error == nil || res.Error.Kind != NameResolutionFault {
		t.Errorf("Error = %+v", res.Error)
	}
	if res.Status != StatusUnknown {
		t.Errorf("Status = %q", res.Status)
	}
}

func TestExecute_Timeout(t *testing.T) {
	engine := &mockEngine{
		runFunc: func(ctx context.Context, _ string, _ Environment) (RunResult, error) {
			<-ctx.Done()
			return RunResult{}, ctx.Err()
		},
	}
	exec := newTestExecutor(&mockRepository{tasks: sampleTasks()}, engine)

	res, err := exec.Execute(context.Background(), "while True: pass", WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Error == nil || res.Error.Kind != TimeoutFault {
		t.Fatalf("Error = %+v", res.Error)
	}
	if !errors.Is(res.Error, ErrLimitExceeded) {
		t.Error("timeout fault should match ErrLimitExceeded")
	}
	if !strings.Contains(res.Error.Message, "timeout") {
		t.Errorf("Message = %q", res.Error.Message)
	}
	if len(res.TasksAfter) != 2 {
		t.Errorf("TasksAfter = %d, want 2", len(res.TasksAfter))
	}
}

func TestExecute_CallerCancellation(t *testing.T) {
	engine := &mockEngine{
		runFunc: func(ctx context.Context, _ string, _ Environment) (RunResult, error) {
			<-ctx.Done()
			return RunResult{}, ctx.Err()
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := newTestExecutor(&mockRepository{}, engine).Execute(ctx, "x = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Error == nil || res.Error.Kind != TimeoutFault {
		t.Errorf("Error = %+v", res.Error)
	}
}

func TestExecute_EngineConfigurationError(t *testing.T) {
	engine := &mockEngine{err: fmt.Errorf("%w: no binding named %q", ErrConfiguration, "open")}
	_, err := newTestExecutor(&mockRepository{}, engine).Execute(context.Background(), "x = 1")
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}
}

func TestExecute_PostRunSnapshotFailure(t *testing.T) {
	engine := &mockEngine{result: RunResult{Globals: map[string]any{OutResult: "ok"}}}
	logger := &recordingLogger{}
	exec, _ := NewDefaultExecutor(Config{
		Repository: &mockRepository{tasks: sampleTasks(), errAfter: 1},
		Engine:     engine,
		Logger:     logger,
	})

	res, err := exec.Execute(context.Background(), "x = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TasksAfter != nil {
		t.Errorf("TasksAfter = %v, want nil", res.TasksAfter)
	}
	if res.Answer != "ok" {
		t.Errorf("Answer = %v", res.Answer)
	}
	if !logger.contains("snapshot") {
		t.Error("expected snapshot failure to be logged")
	}
}

func TestExecute_Concurrent(t *testing.T) {
	engine := &mockEngine{
		runFunc: func(_ context.Context, _ string, env Environment) (RunResult, error) {
			return RunResult{
				Globals: map[string]any{OutResult: env.Request},
				Stdout:  env.Request + "\n",
			}, nil
		},
	}
	exec := newTestExecutor(&mockRepository{tasks: sampleTasks()}, engine)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := fmt.Sprintf("req-%d", i)
			res, err := exec.Execute(context.Background(), "x = 1", WithRequest(req))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if res.Stdout != req || res.Answer != req {
				t.Errorf("run %d saw stdout %q answer %v", i, res.Stdout, res.Answer)
			}
		}(i)
	}
	wg.Wait()
}
