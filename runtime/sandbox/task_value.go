package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/jonwraymond/taskexec/task"
)

// taskValue exposes one snapshot task to a snippet. Field writes change the
// snapshot copy only; persisting a change goes through task_manager.
type taskValue struct {
	t      task.Task
	tags   *starlark.List
	frozen bool
}

var (
	_ starlark.HasAttrs    = (*taskValue)(nil)
	_ starlark.HasSetField = (*taskValue)(nil)
	_ json.Marshaler       = (*taskValue)(nil)
)

func newTaskValue(t task.Task) *taskValue {
	tags := make([]starlark.Value, len(t.Tags))
	for i, tg := range t.Tags {
		tags[i] = starlark.String(tg)
	}
	return &taskValue{t: t.Clone(), tags: starlark.NewList(tags)}
}

func taskList(tasks []task.Task) *starlark.List {
	elems := make([]starlark.Value, len(tasks))
	for i, t := range tasks {
		elems[i] = newTaskValue(t)
	}
	return starlark.NewList(elems)
}

func (v *taskValue) String() string {
	return fmt.Sprintf("Task(%s, %q, %s)", v.t.ID, v.t.Title, v.t.Status)
}
func (v *taskValue) Type() string         { return "Task" }
func (v *taskValue) Truth() starlark.Bool { return starlark.True }
func (v *taskValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", v.Type())
}

func (v *taskValue) Freeze() {
	if !v.frozen {
		v.frozen = true
		v.tags.Freeze()
	}
}

// current returns the task with the tag list folded back in.
func (v *taskValue) current() task.Task {
	out := v.t.Clone()
	out.Tags = out.Tags[:0]
	for i := 0; i < v.tags.Len(); i++ {
		if s, ok := starlark.AsString(v.tags.Index(i)); ok {
			out.Tags = append(out.Tags, s)
		} else {
			out.Tags = append(out.Tags, v.tags.Index(i).String())
		}
	}
	return out
}

func (v *taskValue) toMap() map[string]any { return v.current().ToMap() }

func (v *taskValue) MarshalJSON() ([]byte, error) { return json.Marshal(v.toMap()) }

var taskAttrs = []string{
	"assignee", "completed_at", "created_at", "deadline", "description", "id",
	"priority", "status", "tags", "task_id", "title", "to_dict", "updated_at",
}

func (v *taskValue) AttrNames() []string { return taskAttrs }

func (v *taskValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "task_id", "id":
		return starlark.String(v.t.ID), nil
	case "title":
		return starlark.String(v.t.Title), nil
	case "description":
		return starlark.String(v.t.Description), nil
	case "priority":
		return starlark.String(v.t.Priority), nil
	case "status":
		return starlark.String(v.t.Status), nil
	case "assignee":
		return starlark.String(v.t.Assignee), nil
	case "tags":
		return v.tags, nil
	case "deadline":
		return fromGo(v.t.Deadline), nil
	case "created_at":
		return newDatetime(v.t.CreatedAt), nil
	case "updated_at":
		return newDatetime(v.t.UpdatedAt), nil
	case "completed_at":
		return fromGo(v.t.CompletedAt), nil
	case "to_dict":
		return starlark.NewBuiltin("to_dict", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return fromGo(v.toMap()), nil
		}).BindReceiver(v), nil
	}
	return nil, nil
}

func (v *taskValue) SetField(name string, val starlark.Value) error {
	if v.frozen {
		return fmt.Errorf("cannot set .%s of frozen Task", name)
	}
	switch name {
	case "title", "description", "assignee", "priority", "status":
		s, ok := starlark.AsString(val)
		if !ok {
			return fmt.Errorf("Task.%s: got %s, want string", name, val.Type())
		}
		return v.setString(name, s)
	case "deadline":
		switch x := val.(type) {
		case starlark.NoneType:
			v.t.Deadline = nil
		case *datetimeValue:
			d := x.t
			v.t.Deadline = &d
		default:
			return fmt.Errorf("Task.deadline: got %s, want datetime or None", val.Type())
		}
		return nil
	case "tags":
		l, ok := val.(*starlark.List)
		if !ok {
			return fmt.Errorf("Task.tags: got %s, want list", val.Type())
		}
		v.tags = l
		return nil
	}
	return starlark.NoSuchAttrError(fmt.Sprintf("Task has no .%s field or method", name))
}

func (v *taskValue) setString(name, s string) error {
	switch name {
	case "title":
		v.t.Title = s
	case "description":
		v.t.Description = s
	case "assignee":
		v.t.Assignee = s
	case "priority":
		p, err := task.ParsePriority(s)
		if err != nil {
			return err
		}
		v.t.Priority = p
	case "status":
		st, err := task.ParseStatus(s)
		if err != nil {
			return err
		}
		v.t.SetStatus(st, v.t.UpdatedAt)
	}
	return nil
}

// taskManager is the task_manager binding: read access to the live
// repository and, when the repository supports it, updates.
type taskManager struct {
	ctx  context.Context
	repo task.Reader
	now  func() time.Time
}

var _ starlark.HasAttrs = (*taskManager)(nil)

func (m *taskManager) String() string        { return "<task_manager>" }
func (m *taskManager) Type() string          { return "task_manager" }
func (m *taskManager) Freeze()               {}
func (m *taskManager) Truth() starlark.Bool  { return starlark.True }
func (m *taskManager) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", m.Type()) }

func (m *taskManager) writable() (task.Repository, bool) {
	r, ok := m.repo.(task.Repository)
	return r, ok
}

func (m *taskManager) AttrNames() []string {
	if _, ok := m.writable(); ok {
		return []string{"create_task", "get_all_tasks", "get_task", "update_status", "update_task"}
	}
	return []string{"get_all_tasks", "get_task"}
}

func (m *taskManager) Attr(name string) (starlark.Value, error) {
	var fn func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)
	switch name {
	case "get_all_tasks":
		fn = m.getAllTasks
	case "get_task":
		fn = m.getTask
	case "update_task":
		fn = m.updateTask
	case "update_status":
		fn = m.updateStatus
	case "create_task":
		fn = m.createTask
	default:
		return nil, nil
	}
	if name != "get_all_tasks" && name != "get_task" {
		if _, ok := m.writable(); !ok {
			return nil, nil
		}
	}
	return starlark.NewBuiltin(name, fn).BindReceiver(m), nil
}

func (m *taskManager) getAllTasks(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	if m.repo == nil {
		return starlark.NewList(nil), nil
	}
	tasks, err := m.repo.ListAll(m.ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return taskList(tasks), nil
}

func (m *taskManager) getTask(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &id); err != nil {
		return nil, err
	}
	if m.repo == nil {
		return starlark.None, nil
	}
	if r, ok := m.writable(); ok {
		t, err := r.Get(m.ctx, id)
		if errors.Is(err, task.ErrNotFound) {
			return starlark.None, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return newTaskValue(t), nil
	}
	tasks, err := m.repo.ListAll(m.ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	for _, t := range tasks {
		if t.ID == id {
			return newTaskValue(t), nil
		}
	}
	return starlark.None, nil
}

func (m *taskManager) updateTask(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: got %d positional arguments, want 1", b.Name(), len(args))
	}
	id, ok := starlark.AsString(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: task_id: got %s, want string", b.Name(), args[0].Type())
	}
	patch, err := m.patchFromKwargs(kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return m.apply(b.Name(), id, patch)
}

func (m *taskManager) updateStatus(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id, status string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &id, &status); err != nil {
		return nil, err
	}
	st := task.Status(status)
	return m.apply(b.Name(), id, task.Patch{Status: &st})
}

func (m *taskManager) apply(name, id string, p task.Patch) (starlark.Value, error) {
	r, _ := m.writable()
	t, err := r.Update(m.ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return newTaskValue(t), nil
}

func (m *taskManager) createTask(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var title, description, priority, deadline, assignee string
	var tags *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"title", &title, "description?", &description, "priority?", &priority,
		"deadline?", &deadline, "assignee?", &assignee, "tags?", &tags); err != nil {
		return nil, err
	}
	now := m.now()
	t := task.New(title, now)
	t.Description = description
	if priority != "" {
		p, err := task.ParsePriority(priority)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		t.Priority = p
	}
	if deadline != "" {
		t.Deadline = task.ParseDeadline(deadline, now)
	}
	if assignee != "" {
		t.Assignee = assignee
	}
	if tags != nil {
		names, err := labels(tags)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		t.Tags = names
	}
	r, _ := m.writable()
	created, err := r.Create(m.ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return newTaskValue(created), nil
}

func (m *taskManager) patchFromKwargs(kwargs []starlark.Tuple) (task.Patch, error) {
	var p task.Patch
	for _, kv := range kwargs {
		key, _ := starlark.AsString(kv[0])
		val := kv[1]
		if key == "tags" {
			names, err := labels(val)
			if err != nil {
				return p, fmt.Errorf("tags: %w", err)
			}
			p.Tags = append([]string{}, names...)
			continue
		}
		if key == "deadline" {
			switch d := val.(type) {
			case *datetimeValue:
				t := d.t
				p.Deadline = &t
				continue
			case starlark.String:
				if t := task.ParseDeadline(string(d), m.now()); t != nil {
					p.Deadline = t
					continue
				}
				return p, fmt.Errorf("deadline: cannot parse %q", string(d))
			}
			return p, fmt.Errorf("deadline: got %s, want datetime or string", val.Type())
		}
		s, ok := starlark.AsString(val)
		if !ok {
			return p, fmt.Errorf("%s: got %s, want string", key, val.Type())
		}
		switch key {
		case "title":
			p.Title = &s
		case "description":
			p.Description = &s
		case "assignee":
			p.Assignee = &s
		case "priority":
			pr := task.Priority(s)
			p.Priority = &pr
		case "status":
			st := task.Status(s)
			p.Status = &st
		default:
			return p, fmt.Errorf("unexpected keyword argument %q", key)
		}
	}
	return p, nil
}
