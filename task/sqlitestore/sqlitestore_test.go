package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/taskexec/task"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	s.SetClock(func() time.Time { return now })
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateGetList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	deadline := now.Add(48 * time.Hour)
	a := task.New("first", now)
	a.Tags = []string{"work", "urgent"}
	a.Deadline = &deadline
	_, err := s.Create(ctx, a)
	require.NoError(t, err)
	_, err = s.Create(ctx, task.New("second", now))
	require.NoError(t, err)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "urgent"}, got.Tags)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(deadline))
	assert.Nil(t, got.CompletedAt)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Title)
	assert.Equal(t, "second", all[1].Title)
}

func TestStore_UpdateStatusSetsCompletedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	created, err := s.Create(ctx, task.New("x", now.Add(-time.Hour)))
	require.NoError(t, err)

	st := task.StatusCompleted
	updated, err := s.Update(ctx, created.ID, task.Patch{Status: &st})
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.True(t, updated.CompletedAt.Equal(now))

	st = task.StatusTodo
	updated, err = s.Update(ctx, created.ID, task.Patch{Status: &st})
	require.NoError(t, err)
	assert.Nil(t, updated.CompletedAt)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusTodo, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "TASKNOPE")
	assert.ErrorIs(t, err, task.ErrNotFound)

	title := "y"
	_, err = s.Update(ctx, "TASKNOPE", task.Patch{Title: &title})
	assert.ErrorIs(t, err, task.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "TASKNOPE"), task.ErrNotFound)
}

func TestStore_InvalidTaskRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), task.New("", now))
	assert.ErrorIs(t, err, task.ErrTitleRequired)
}

func TestStore_TimeLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	_, err := s.AddLog(ctx, task.NewTimeLog("T1", "alice", 60, d1, now))
	require.NoError(t, err)
	_, err = s.AddLog(ctx, task.NewTimeLog("T2", "alice", 30, d2, now))
	require.NoError(t, err)

	logs, err := s.ListLogs(ctx, task.HoursQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 90, task.TotalMinutes(logs))

	logs, err = s.ListLogs(ctx, task.HoursQuery{From: d2, To: d2})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "T2", logs[0].TaskID)
	assert.True(t, logs[0].Date.Equal(d2))

	_, err = s.AddLog(ctx, task.NewTimeLog("T1", "alice", -5, d1, now))
	assert.ErrorIs(t, err, task.ErrInvalidMinutes)
}
