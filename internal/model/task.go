package model

import "time"

// Task is one item in a user's task list. Priority defines a total order
// among the user's incomplete tasks; completed tasks are ordered by
// CompletedAt descending and do not participate in priority compaction.
type Task struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        int        `json:"priority"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	SourceSessionID string     `json:"source_session_id,omitempty"` // optional: session the task was created from
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewTask creates a new incomplete task at the given priority.
func NewTask(id, userID, title, description string, priority int, dueDate *time.Time, sourceSessionID string) *Task {
	now := time.Now()
	return &Task{
		ID:              id,
		UserID:          userID,
		Title:           title,
		Description:     description,
		Priority:        priority,
		IsCompleted:     false,
		DueDate:         dueDate,
		SourceSessionID: sourceSessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Complete marks the task completed, stamping CompletedAt. Priority is left
// intact per the documented decision on completed-task priority retention.
func (t *Task) Complete() {
	now := time.Now()
	t.IsCompleted = true
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// TaskPatch is a partial update accepted by PUT /tasks/{id}.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *int
	DueDate     *time.Time
}

// Apply shallow-merges patch into t.
func (t *Task) Apply(patch TaskPatch) {
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	t.UpdatedAt = time.Now()
}

// TaskOrdering is one (task_id, new_priority) pair in a reorder request.
type TaskOrdering struct {
	TaskID      string
	NewPriority int
}
