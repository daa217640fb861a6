// Package filestore persists tasks as a JSON array on disk.
//
// The whole file is rewritten on every mutation through a temp file and a
// rename, so readers never observe a half-written document. Time logs are
// kept in a sibling file named after the task file with an "_hours" suffix.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/taskexec/task"
)

// Options configures a Store.
type Options struct {
	// Logger receives load and watch diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Debounce delays reloads after file events. Defaults to 200ms.
	Debounce time.Duration

	// Now overrides the clock used for status timestamps.
	Now func() time.Time
}

// Store is a task.Repository and task.HoursRepository backed by JSON files.
type Store struct {
	path      string
	hoursPath string
	logger    *slog.Logger
	debounce  time.Duration
	now       func() time.Time

	mu  sync.RWMutex
	mem *task.MemoryStore
}

// Open loads the store at path. A missing or unreadable file loads as an
// empty collection.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("filestore: path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ext := filepath.Ext(path)
	s := &Store{
		path:      filepath.Clean(path),
		hoursPath: strings.TrimSuffix(filepath.Clean(path), ext) + "_hours" + ext,
		logger:    opts.Logger,
		debounce:  opts.Debounce,
		now:       opts.Now,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the task file path.
func (s *Store) Path() string { return s.path }

// Reload replaces the in-memory state with the files on disk.
func (s *Store) Reload() error {
	tasks := s.loadTasks()
	logs := s.loadLogs()

	mem := task.NewMemoryStore(tasks...)
	mem.SetClock(s.now)
	for _, l := range logs {
		if _, err := mem.AddLog(context.Background(), l); err != nil {
			s.logger.Warn("skipping invalid time log", "id", l.ID, "error", err)
		}
	}

	s.mu.Lock()
	s.mem = mem
	s.mu.Unlock()
	return nil
}

func (s *Store) loadTasks() []task.Task {
	var tasks []task.Task
	if err := readJSON(s.path, &tasks); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("task file unreadable, starting empty", "path", s.path, "error", err)
		}
		return nil
	}
	return tasks
}

func (s *Store) loadLogs() []task.TimeLog {
	var logs []task.TimeLog
	if err := readJSON(s.hoursPath, &logs); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("hours file unreadable, starting empty", "path", s.hoursPath, "error", err)
		}
		return nil
	}
	return logs
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("persist %s: %w", path, err)
	}
	return nil
}

func (s *Store) current() *task.MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem
}

// ListAll returns every task in file order.
func (s *Store) ListAll(ctx context.Context) ([]task.Task, error) {
	return s.current().ListAll(ctx)
}

// Get returns the task with the given ID.
func (s *Store) Get(ctx context.Context, id string) (task.Task, error) {
	return s.current().Get(ctx, id)
}

// Create stores t and rewrites the task file.
func (s *Store) Create(ctx context.Context, t task.Task) (task.Task, error) {
	return s.mutate(ctx, func(mem *task.MemoryStore) (task.Task, error) {
		return mem.Create(ctx, t)
	})
}

// Update patches a task and rewrites the task file.
func (s *Store) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	return s.mutate(ctx, func(mem *task.MemoryStore) (task.Task, error) {
		return mem.Update(ctx, id, p)
	})
}

// Delete removes a task and rewrites the task file.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, func(mem *task.MemoryStore) (task.Task, error) {
		return task.Task{}, mem.Delete(ctx, id)
	})
	return err
}

func (s *Store) mutate(ctx context.Context, fn func(*task.MemoryStore) (task.Task, error)) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := fn(s.mem)
	if err != nil {
		return task.Task{}, err
	}
	all, err := s.mem.ListAll(ctx)
	if err != nil {
		return task.Task{}, err
	}
	if err := writeJSON(s.path, all); err != nil {
		return task.Task{}, err
	}
	return out, nil
}

// AddLog stores a time log and rewrites the hours file.
func (s *Store) AddLog(ctx context.Context, l task.TimeLog) (task.TimeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.mem.AddLog(ctx, l)
	if err != nil {
		return task.TimeLog{}, err
	}
	logs, err := s.mem.ListLogs(ctx, task.HoursQuery{})
	if err != nil {
		return task.TimeLog{}, err
	}
	if err := writeJSON(s.hoursPath, logs); err != nil {
		return task.TimeLog{}, err
	}
	return out, nil
}

// ListLogs returns the time logs matching q.
func (s *Store) ListLogs(ctx context.Context, q task.HoursQuery) ([]task.TimeLog, error) {
	return s.current().ListLogs(ctx, q)
}

// Watch reloads the store when either file changes on disk. It blocks until
// ctx is done and returns nil, or returns an error if the watcher cannot be
// set up.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filestore: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: create dir %s: %w", dir, err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("filestore: watch %s: %w", dir, err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Warn("task file reload failed", "error", err)
					return
				}
				s.logger.Debug("task file reloaded", "path", s.path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("task file watcher error", "error", err)
		}
	}
}

func (s *Store) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == s.path || name == s.hoursPath
}

var (
	_ task.Repository      = (*Store)(nil)
	_ task.HoursRepository = (*Store)(nil)
)
