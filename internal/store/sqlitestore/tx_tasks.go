package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

func (t *sqliteTx) CreateTask(ctx context.Context, task *model.Task) error {
	var completedAt, dueDate any
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.Unix()
	}
	if task.DueDate != nil {
		dueDate = task.DueDate.Unix()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, is_completed, completed_at, due_date, source_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.Title, task.Description, task.Priority, boolToInt(task.IsCompleted),
		completedAt, dueDate, nullableString(task.SourceSessionID), task.CreatedAt.Unix(), task.UpdatedAt.Unix())
	return err
}

func (t *sqliteTx) scanTask(row *sql.Row) (*model.Task, error) {
	var task model.Task
	var description, sourceSessionID sql.NullString
	var completedAt, dueDate sql.NullInt64
	var isCompleted int
	var createdAt, updatedAt int64
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &description, &task.Priority, &isCompleted,
		&completedAt, &dueDate, &sourceSessionID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	task.Description = description.String
	task.SourceSessionID = sourceSessionID.String
	task.IsCompleted = intToBool(isCompleted)
	if completedAt.Valid {
		ts := time.Unix(completedAt.Int64, 0).UTC()
		task.CompletedAt = &ts
	}
	if dueDate.Valid {
		ts := time.Unix(dueDate.Int64, 0).UTC()
		task.DueDate = &ts
	}
	task.CreatedAt = time.Unix(createdAt, 0).UTC()
	task.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &task, nil
}

func (t *sqliteTx) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, priority, is_completed, completed_at, due_date, source_session_id, created_at, updated_at
		FROM tasks WHERE id = ?`, taskID)
	task, err := t.scanTask(row)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		t.guardUserScope(userID, task.UserID)
		return nil, store.ErrNotFound
	}
	return task, nil
}

func (t *sqliteTx) ListTasks(ctx context.Context, userID string, includeCompleted bool) ([]*model.Task, error) {
	query := `
		SELECT id, user_id, title, description, priority, is_completed, completed_at, due_date, source_session_id, created_at, updated_at
		FROM tasks WHERE user_id = ?`
	args := []any{userID}
	if !includeCompleted {
		query += ` AND is_completed = 0`
	}
	// Canonical order: incomplete first by priority, completed by
	// completed_at descending.
	query += ` ORDER BY is_completed ASC, priority ASC, created_at ASC`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incomplete, completed []*model.Task
	for rows.Next() {
		var task model.Task
		var description, sourceSessionID sql.NullString
		var completedAt, dueDate sql.NullInt64
		var isCompleted int
		var createdAt, updatedAt int64
		if err := rows.Scan(&task.ID, &task.UserID, &task.Title, &description, &task.Priority, &isCompleted,
			&completedAt, &dueDate, &sourceSessionID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		task.Description = description.String
		task.SourceSessionID = sourceSessionID.String
		task.IsCompleted = intToBool(isCompleted)
		if completedAt.Valid {
			ts := time.Unix(completedAt.Int64, 0).UTC()
			task.CompletedAt = &ts
		}
		if dueDate.Valid {
			ts := time.Unix(dueDate.Int64, 0).UTC()
			task.DueDate = &ts
		}
		task.CreatedAt = time.Unix(createdAt, 0).UTC()
		task.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		if task.IsCompleted {
			completed = append(completed, &task)
		} else {
			incomplete = append(incomplete, &task)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Completed tasks are ordered by completed_at descending; the SQL ORDER
	// BY above only groups them after the incomplete ones, so re-sort the
	// completed slice explicitly.
	sort.SliceStable(completed, func(i, j int) bool {
		a, b := completed[i].CompletedAt, completed[j].CompletedAt
		if a == nil || b == nil {
			return false
		}
		return a.After(*b)
	})
	return append(incomplete, completed...), nil
}

func (t *sqliteTx) UpdateTask(ctx context.Context, task *model.Task) error {
	var completedAt, dueDate any
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.Unix()
	}
	if task.DueDate != nil {
		dueDate = task.DueDate.Unix()
	}
	task.UpdatedAt = time.Now()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, priority = ?, is_completed = ?, completed_at = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		task.Title, task.Description, task.Priority, boolToInt(task.IsCompleted), completedAt, dueDate,
		task.UpdatedAt.Unix(), task.ID, task.UserID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (t *sqliteTx) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	return t.compactPriorities(ctx, userID)
}

// compactPriorities renumbers the user's incomplete tasks to the contiguous
// sequence 1..N in their current priority order after a completion or
// deletion.
func (t *sqliteTx) compactPriorities(ctx context.Context, userID string) error {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id FROM tasks WHERE user_id = ? AND is_completed = 0 ORDER BY priority ASC, created_at ASC`, userID)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for i, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `UPDATE tasks SET priority = ? WHERE id = ?`, i+1, id); err != nil {
			return err
		}
	}
	return nil
}

// ReorderTasks requires orderings to be a bijection between the user's
// incomplete task ids and 1..N; otherwise it rejects with Conflict and
// changes nothing.
func (t *sqliteTx) ReorderTasks(ctx context.Context, userID string, orderings []model.TaskOrdering) error {
	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM tasks WHERE user_id = ? AND is_completed = 0`, userID)
	if err != nil {
		return err
	}
	incomplete := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		incomplete[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	n := len(incomplete)
	if len(orderings) != n {
		return apierr.Conflict(fmt.Sprintf("reorder must cover all %d incomplete tasks, got %d", n, len(orderings)))
	}
	seenPriority := make(map[int]bool, n)
	seenTask := make(map[string]bool, n)
	for _, o := range orderings {
		if !incomplete[o.TaskID] {
			return apierr.Conflict(fmt.Sprintf("task %s is not an incomplete task of this user", o.TaskID))
		}
		if seenTask[o.TaskID] {
			return apierr.Conflict(fmt.Sprintf("task %s appears more than once in reorder", o.TaskID))
		}
		if o.NewPriority < 1 || o.NewPriority > n {
			return apierr.Conflict(fmt.Sprintf("priority %d is out of range 1..%d", o.NewPriority, n))
		}
		if seenPriority[o.NewPriority] {
			return apierr.Conflict(fmt.Sprintf("priority %d assigned more than once", o.NewPriority))
		}
		seenTask[o.TaskID] = true
		seenPriority[o.NewPriority] = true
	}

	// Two-phase update avoids transient unique-constraint collisions between
	// old and new priority values (none declared here, but the shift still
	// prevents a task from momentarily sharing a priority mid-update).
	for _, o := range orderings {
		if _, err := t.tx.ExecContext(ctx, `UPDATE tasks SET priority = priority + ? WHERE id = ?`, n+1, o.TaskID); err != nil {
			return err
		}
	}
	for _, o := range orderings {
		if _, err := t.tx.ExecContext(ctx, `UPDATE tasks SET priority = ?, updated_at = ? WHERE id = ?`, o.NewPriority, time.Now().Unix(), o.TaskID); err != nil {
			return err
		}
	}
	return nil
}
