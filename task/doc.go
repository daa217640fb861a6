// Package task defines the task and time-log data model and the repository
// contracts consumed by the rest of taskexec.
//
// The execution core only depends on [Reader], which returns a snapshot of
// the whole collection. Full stores implement [Repository] and
// [HoursRepository]; [MemoryStore] is the in-process implementation, and the
// filestore and sqlitestore subpackages provide persistent ones.
//
// # Completion invariant
//
// A task has a CompletedAt timestamp exactly when its Status is
// [StatusCompleted]. [Task.SetStatus] and [Patch.Apply] maintain it; the
// stores route every status change through them.
package task
