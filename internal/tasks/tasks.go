// Package tasks implements the journaling core's TaskManager: the HTTP-
// facing wrapper around the store's task CRUD and reorder operations that
// adds the user:{id}:tasks advisory lock around every mutation, mirroring
// the lock discipline AgentRuntime applies to chat turns.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

// Manager is the journaling core's TaskManager.
type Manager struct {
	store store.Store
	locks *store.LockTable
}

// New builds a Manager.
func New(s store.Store, locks *store.LockTable) *Manager {
	return &Manager{store: s, locks: locks}
}

// Create adds a new incomplete task for userID. When priority is nil the
// task is appended after the user's current incomplete tasks; otherwise it
// is inserted at that 1-based position (clamped to the valid range) and
// every incomplete task at or after it shifts down by one, keeping
// priorities the contiguous sequence 1..N.
func (m *Manager) Create(ctx context.Context, userID, title, description string, priority *int, dueDate *time.Time) (*model.Task, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	// The transaction is opened before the advisory lock everywhere task
	// mutations happen (agent tool dispatch included), so the two can never
	// be waited on in opposite orders.
	m.locks.Lock(store.UserTasksKey(userID))
	defer m.locks.Unlock(store.UserTasksKey(userID))

	existing, err := tx.ListTasks(ctx, userID, false)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	target := len(existing) + 1
	if priority != nil {
		target = *priority
		if target < 1 {
			target = 1
		}
		if target > len(existing)+1 {
			target = len(existing) + 1
		}
		for _, t := range existing {
			if t.Priority >= target {
				t.Priority++
				if err := tx.UpdateTask(ctx, t); err != nil {
					return nil, apierr.Internal(err)
				}
			}
		}
	}

	task := model.NewTask(uuid.NewString(), userID, title, description, target, dueDate, "")
	if err := tx.CreateTask(ctx, task); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.Internal(err)
	}
	return task, nil
}

// List returns the user's tasks, optionally including completed ones.
func (m *Manager) List(ctx context.Context, userID string, includeCompleted bool) ([]*model.Task, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	tasks, err := tx.ListTasks(ctx, userID, includeCompleted)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return tasks, tx.Commit()
}

// Update applies patch to the user's task taskID. A priority change moves
// the task to that 1-based position (clamped to 1..N) and shifts the tasks
// between its old and new slots by one, so incomplete priorities stay the
// contiguous sequence 1..N. Completed tasks keep their frozen
// priority; patching it is rejected with Conflict.
func (m *Manager) Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	m.locks.Lock(store.UserTasksKey(userID))
	defer m.locks.Unlock(store.UserTasksKey(userID))

	task, err := tx.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	if patch.Priority != nil {
		if task.IsCompleted {
			return nil, apierr.Conflict("completed tasks do not participate in priority ordering")
		}
		if err := moveTaskPriority(ctx, tx, task, *patch.Priority); err != nil {
			return nil, apierr.Internal(err)
		}
		patch.Priority = nil
	}
	task.Apply(patch)
	if err := tx.UpdateTask(ctx, task); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.Internal(err)
	}
	return task, nil
}

// moveTaskPriority reassigns task to the target position among the user's
// incomplete tasks, shifting every task between the old and new slots by one
// in the appropriate direction. target is clamped to 1..N.
func moveTaskPriority(ctx context.Context, tx store.Tx, task *model.Task, target int) error {
	existing, err := tx.ListTasks(ctx, task.UserID, false)
	if err != nil {
		return err
	}
	if target < 1 {
		target = 1
	}
	if n := len(existing); target > n {
		target = n
	}
	old := task.Priority
	if target == old {
		return nil
	}
	for _, other := range existing {
		if other.ID == task.ID {
			continue
		}
		switch {
		case target < old && other.Priority >= target && other.Priority < old:
			other.Priority++
		case target > old && other.Priority > old && other.Priority <= target:
			other.Priority--
		default:
			continue
		}
		if err := tx.UpdateTask(ctx, other); err != nil {
			return err
		}
	}
	task.Priority = target
	return nil
}

// Complete marks taskID completed and recompacts the remaining incomplete
// tasks' priorities.
func (m *Manager) Complete(ctx context.Context, userID, taskID string) (*model.Task, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	m.locks.Lock(store.UserTasksKey(userID))
	defer m.locks.Unlock(store.UserTasksKey(userID))

	task, err := tx.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	task.Complete()
	if err := tx.UpdateTask(ctx, task); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := recompact(ctx, tx, userID); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.Internal(err)
	}
	return task, nil
}

// Delete removes taskID and recompacts the remaining incomplete tasks.
func (m *Manager) Delete(ctx context.Context, userID, taskID string) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return apierr.Internal(err)
	}
	defer tx.Rollback()

	m.locks.Lock(store.UserTasksKey(userID))
	defer m.locks.Unlock(store.UserTasksKey(userID))

	if err := tx.DeleteTask(ctx, userID, taskID); err != nil {
		return mapErr(err)
	}
	return tx.Commit()
}

// Reorder applies a full reordering of the user's incomplete tasks. orderings
// must be a bijection onto 1..N (enforced by the store backend); a
// violation returns apierr.Conflict and leaves priorities untouched.
func (m *Manager) Reorder(ctx context.Context, userID string, orderings []model.TaskOrdering) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return apierr.Internal(err)
	}
	defer tx.Rollback()

	m.locks.Lock(store.UserTasksKey(userID))
	defer m.locks.Unlock(store.UserTasksKey(userID))

	if err := tx.ReorderTasks(ctx, userID, orderings); err != nil {
		return mapErr(err)
	}
	return tx.Commit()
}

func recompact(ctx context.Context, tx store.Tx, userID string) error {
	tasks, err := tx.ListTasks(ctx, userID, false)
	if err != nil {
		return err
	}
	for i, t := range tasks {
		if t.Priority == i+1 {
			continue
		}
		t.Priority = i + 1
		if err := tx.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func mapErr(err error) error {
	if err == store.ErrNotFound {
		return apierr.NotFound("task not found")
	}
	if apiErr, ok := apierr.As(err); ok {
		return apiErr
	}
	return apierr.Internal(err)
}
