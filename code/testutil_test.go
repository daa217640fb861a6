package code

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonwraymond/taskexec/task"
)

// mockRepository implements task.Reader for testing.
type mockRepository struct {
	mu sync.Mutex

	// Configurable returns
	tasks   []task.Task
	listErr error

	// errAfter fails every call after the first n successful ones when > 0.
	errAfter int

	// Call tracking
	listCalls int
}

func (m *mockRepository) ListAll(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.errAfter > 0 && m.listCalls > m.errAfter {
		return nil, errSnapshot
	}
	return task.CloneAll(m.tasks), nil
}

var errSnapshot = errors.New("snapshot unavailable")

// mockEngine implements Engine for testing.
type mockEngine struct {
	mu sync.Mutex

	// Configurable returns
	result RunResult
	err    error

	// runFunc overrides the configured returns when set.
	runFunc func(ctx context.Context, code string, env Environment) (RunResult, error)

	// Call tracking
	calls []engineCall
}

type engineCall struct {
	code     string
	env      Environment
	deadline bool
}

func (m *mockEngine) Run(ctx context.Context, code string, env Environment) (RunResult, error) {
	_, hasDeadline := ctx.Deadline()
	m.mu.Lock()
	m.calls = append(m.calls, engineCall{code: code, env: env, deadline: hasDeadline})
	fn := m.runFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, code, env)
	}
	return m.result, m.err
}

func (m *mockEngine) lastCall() engineCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return engineCall{}
	}
	return m.calls[len(m.calls)-1]
}

// recordingLogger collects log lines.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Logf(format string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, format)
}

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func newTestExecutor(repo task.Reader, engine Engine) *DefaultExecutor {
	exec, err := NewDefaultExecutor(Config{Repository: repo, Engine: engine})
	if err != nil {
		panic(err)
	}
	return exec
}

func containsStr(s, substr string) bool {
	return strings.Contains(s, substr)
}
