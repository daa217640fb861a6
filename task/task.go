package task

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation errors.
var (
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrTitleRequired   = errors.New("title is required")
	ErrNotFound        = errors.New("task not found")
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every valid priority, highest first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority parses a priority case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Priorities, p) {
		return "", fmt.Errorf("%w: %q (must be high, medium, or low)", ErrInvalidPriority, s)
	}
	return p, nil
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted}

// ParseStatus parses a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Statuses, st) {
		return "", fmt.Errorf("%w: %q (must be todo, in_progress, or completed)", ErrInvalidStatus, s)
	}
	return st, nil
}

// DefaultAssignee is used when a task is created without an assignee.
const DefaultAssignee = "me"

// Task is a unit of tracked work.
//
// CompletedAt is non-nil exactly when Status is StatusCompleted. SetStatus
// maintains this; code constructing tasks by hand must do the same.
type Task struct {
	ID          string     `json:"task_id" yaml:"task_id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Deadline    *time.Time `json:"deadline" yaml:"deadline"`
	Status      Status     `json:"status" yaml:"status"`
	Assignee    string     `json:"assignee" yaml:"assignee"`
	Tags        []string   `json:"tags" yaml:"tags"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
	CompletedAt *time.Time `json:"completed_at" yaml:"completed_at"`
}

// New returns a todo task with a fresh ID and defaults applied.
func New(title string, now time.Time) Task {
	return Task{
		ID:        NewID(),
		Title:     title,
		Priority:  PriorityMedium,
		Status:    StatusTodo,
		Assignee:  DefaultAssignee,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a task identifier of the form TASKXXXXXX.
func NewID() string {
	return "TASK" + shortHex(6)
}

func shortHex(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:n])
}

// Validate checks required fields and enum values.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleRequired
	}
	if _, err := ParsePriority(string(t.Priority)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	return nil
}

// SetStatus moves the task to status, keeping CompletedAt consistent.
func (t *Task) SetStatus(status Status, now time.Time) {
	if status == StatusCompleted {
		if t.Status != StatusCompleted || t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
	t.UpdatedAt = now
}

// HasTag reports whether the task carries tag, ignoring case.
func (t Task) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if strings.EqualFold(tg, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	out.Tags = slices.Clone(t.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	out.Deadline = cloneTime(t.Deadline)
	out.CompletedAt = cloneTime(t.CompletedAt)
	return out
}

func cloneTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	v := *ts
	return &v
}

// ToMap returns the task in its dictionary shape: snake_case keys, RFC 3339
// timestamps, and nil for unset optional times.
func (t Task) ToMap() map[string]any {
	tags := make([]any, len(t.Tags))
	for i, tg := range t.Tags {
		tags[i] = tg
	}
	return map[string]any{
		"task_id":      t.ID,
		"title":        t.Title,
		"description":  t.Description,
		"priority":     string(t.Priority),
		"deadline":     formatTime(t.Deadline),
		"status":       string(t.Status),
		"assignee":     t.Assignee,
		"tags":         tags,
		"created_at":   t.CreatedAt.Format(time.RFC3339),
		"updated_at":   t.UpdatedAt.Format(time.RFC3339),
		"completed_at": formatTime(t.CompletedAt),
	}
}

func formatTime(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return ts.Format(time.RFC3339)
}

// CloneAll deep-copies a slice of tasks into a new slice.
func CloneAll(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
