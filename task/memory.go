package task

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory Repository and HoursRepository.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: every returned Task or slice is a deep copy.
type MemoryStore struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]Task
	logs  []TimeLog
	now   func() time.Time
}

// NewMemoryStore returns a store seeded with tasks, in the given order.
func NewMemoryStore(tasks ...Task) *MemoryStore {
	s := &MemoryStore{
		tasks: make(map[string]Task, len(tasks)),
		now:   time.Now,
	}
	for _, t := range tasks {
		if _, ok := s.tasks[t.ID]; !ok {
			s.order = append(s.order, t.ID)
		}
		s.tasks[t.ID] = t.Clone()
	}
	return s
}

// SetClock overrides the time source used for UpdatedAt and CompletedAt.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ListAll returns every task in insertion order.
func (s *MemoryStore) ListAll(ctx context.Context) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].Clone())
	}
	return out, nil
}

// Get returns the task with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

// Create stores t. An empty ID is assigned one.
func (s *MemoryStore) Create(ctx context.Context, t Task) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = NewID()
	}
	if _, exists := s.tasks[t.ID]; exists {
		return Task{}, fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	s.order = append(s.order, t.ID)
	return t.Clone(), nil
}

// Update applies p to the task with the given ID.
func (s *MemoryStore) Update(ctx context.Context, id string, p Patch) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t = t.Clone()
	if err := p.Apply(&t, s.now()); err != nil {
		return Task{}, err
	}
	s.tasks[id] = t
	return t.Clone(), nil
}

// Delete removes the task with the given ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// AddLog stores a time log.
func (s *MemoryStore) AddLog(ctx context.Context, l TimeLog) (TimeLog, error) {
	if err := ctx.Err(); err != nil {
		return TimeLog{}, err
	}
	if err := l.Validate(); err != nil {
		return TimeLog{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = NewLogID()
	}
	s.logs = append(s.logs, l)
	return l, nil
}

// ListLogs returns the logs matching q in insertion order.
func (s *MemoryStore) ListLogs(ctx context.Context, q HoursQuery) ([]TimeLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TimeLog, 0)
	for _, l := range s.logs {
		if q.Match(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

var (
	_ Repository      = (*MemoryStore)(nil)
	_ HoursRepository = (*MemoryStore)(nil)
)
