package task

import (
	"context"
	"strings"
	"time"
)

// Reader provides read snapshots of the task collection.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ownership: returned slices are caller-owned snapshots; mutating them
//   must not affect the store.
type Reader interface {
	// ListAll returns every task in insertion order.
	ListAll(ctx context.Context) ([]Task, error)
}

// Repository is a keyed task store.
//
// Contract:
// - Errors: unknown IDs return ErrNotFound; invalid tasks return the
//   validation error from Task.Validate.
type Repository interface {
	Reader

	// Get returns the task with the given ID.
	Get(ctx context.Context, id string) (Task, error)

	// Create stores a new task. The task must already have an ID.
	Create(ctx context.Context, t Task) (Task, error)

	// Update applies a patch and returns the updated task.
	Update(ctx context.Context, id string, p Patch) (Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, id string) error
}

// Patch holds optional field updates. Nil fields are left unchanged.
type Patch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.Deadline == nil && p.Assignee == nil && p.Tags == nil
}

// Apply updates t in place and bumps UpdatedAt. Status changes go through
// SetStatus so CompletedAt stays consistent.
func (p Patch) Apply(t *Task, now time.Time) error {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		pr, err := ParsePriority(string(*p.Priority))
		if err != nil {
			return err
		}
		t.Priority = pr
	}
	if p.Deadline != nil {
		d := *p.Deadline
		t.Deadline = &d
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, p.Tags...)
	}
	if p.Status != nil {
		st, err := ParseStatus(string(*p.Status))
		if err != nil {
			return err
		}
		t.SetStatus(st, now)
	}
	t.UpdatedAt = now
	return t.Validate()
}

// Filter selects tasks by status, assignee, and tag. Empty fields match all.
type Filter struct {
	Status   Status
	Assignee string
	Tag      string
	Priority Priority
}

// Match reports whether t satisfies the filter.
func (f Filter) Match(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(t.Assignee, f.Assignee) {
		return false
	}
	if f.Tag != "" && !t.HasTag(f.Tag) {
		return false
	}
	return true
}

// Apply returns the tasks matching the filter, preserving order.
func (f Filter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
