package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

// RegisterDefaults registers the journaling core's tool catalogue onto c.
func RegisterDefaults(c *Catalogue) {
	c.Register(Definition{
		Name:        "structure_journal",
		Description: "Classify raw journal text into the active template's sections and merge it into the session's draft.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
	}, handleStructureJournal)

	c.Register(Definition{
		Name:        "save_journal",
		Description: "Finalize the session's draft into a permanent journal entry. Requires explicit confirmation.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"confirm": map[string]any{"type": "boolean"}},
			"required":   []string{"confirm"},
		},
	}, handleSaveJournal)

	c.Register(Definition{
		Name:        "update_preferences",
		Description: "Update the user's stored preferences (purpose, goals, challenges, feedback style, glossary).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"purpose_statement":  map[string]any{"type": "string"},
				"long_term_goals":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"known_challenges":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"preferred_feedback": map[string]any{"type": "string"},
				"glossary":           map[string]any{"type": "object"},
			},
		},
	}, handleUpdatePreferences)

	c.Register(Definition{
		Name:        "get_template_info",
		Description: "Return the active template's section catalogue.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}, handleGetTemplateInfo)

	c.Register(Definition{
		Name:        "reload_template",
		Description: "Reload the process-wide default template from its source and report the user's active template.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}, handleReloadTemplate)

	c.Register(Definition{
		Name:        "create_task",
		Description: "Create a new task for the user. Without a priority it is appended to the end of their task list; with one, it is inserted there and later tasks shift down.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"priority":    map[string]any{"type": "integer", "description": "1-based position among the user's incomplete tasks"},
				"due_date":    map[string]any{"type": "string", "description": "RFC3339 timestamp"},
			},
			"required": []string{"title"},
		},
	}, handleCreateTask)

	c.Register(Definition{
		Name:        "list_tasks",
		Description: "List the user's tasks in priority order. Completed tasks are included only when include_completed is true.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"include_completed": map[string]any{"type": "boolean"}},
		},
	}, handleListTasks)

	c.Register(Definition{
		Name:        "complete_task",
		Description: "Mark a task completed by id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"task_id": map[string]any{"type": "string"}},
			"required":   []string{"task_id"},
		},
	}, handleCompleteTask)

	c.Register(Definition{
		Name:        "delete_task",
		Description: "Delete a task by id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"task_id": map[string]any{"type": "string"}},
			"required":   []string{"task_id"},
		},
	}, handleDeleteTask)
}

func argString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func argBool(args map[string]any, key string) bool {
	v, ok := args[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// argInt reads a JSON number argument, tolerating the float64 that
// encoding/json produces for untyped numeric tool arguments.
func argInt(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func argTime(args map[string]any, key string) (*time.Time, error) {
	s, ok := argString(args, key)
	if !ok || s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apierr.Validation(fmt.Sprintf("%s must be an RFC3339 timestamp", key))
	}
	return &t, nil
}

func handleStructureJournal(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	text, ok := argString(args, "text")
	if !ok || text == "" {
		return Result{}, apierr.Validation("structure_journal requires a non-empty 'text' argument")
	}

	tmpl, err := deps.Templates.ForUser(ctx, tx, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}

	patch, err := deps.Structurer.Structure(ctx, tmpl, text)
	if err != nil {
		// StructuringFailed is a legal, non-5xx tool outcome: surface it as
		// the tool's textual result instead of aborting the turn.
		if apiErr, ok := apierr.As(err); ok && apiErr.Code() == apierr.CodeStructuringFailed {
			return Result{Content: apiErr.SafeMessage()}, nil
		}
		return Result{}, err
	}

	// Draft writes are already serialized by the turn's session lock, held
	// by the caller for the duration of the dispatch.
	d, err := tx.GetOrCreateDraft(ctx, call.SessionID, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}
	warnings := deps.Drafts.MergePatch(d, tmpl, patch)
	if err := tx.SaveDraft(ctx, d); err != nil {
		return Result{}, apierr.Internal(err)
	}

	meta := map[string]any{"sections_updated": len(patch)}
	if len(warnings) > 0 {
		msgs := make([]string, len(warnings))
		for i, w := range warnings {
			msgs[i] = w.Message
		}
		meta["warnings"] = msgs
	}
	return Result{
		Content:          fmt.Sprintf("merged %d section(s) into the draft", len(patch)),
		UpdatedDraftData: d.DraftData,
		Metadata:         meta,
	}, nil
}

func handleSaveJournal(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	if !argBool(args, "confirm") {
		return Result{Content: "not saved: save_journal requires confirm=true before finalizing the draft"}, nil
	}

	tmpl, err := deps.Templates.ForUser(ctx, tx, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}

	d, err := tx.GetOrCreateDraft(ctx, call.SessionID, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}
	if d.IsFinalized || d.IsEmpty() {
		return Result{Content: "there is nothing to save yet"}, nil
	}

	entry := deps.Drafts.Finalize(d, tmpl, uuid.NewString())
	if err := tx.CreateJournalEntry(ctx, entry); err != nil {
		return Result{}, apierr.Internal(err)
	}
	if err := tx.SaveDraft(ctx, d); err != nil {
		return Result{}, apierr.Internal(err)
	}

	return Result{
		Content:          fmt.Sprintf("saved journal entry %q", entry.Title),
		UpdatedDraftData: d.DraftData,
		Metadata:         map[string]any{"entry_id": entry.ID, "title": entry.Title},
	}, nil
}

func handleUpdatePreferences(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	prefs, err := tx.GetPreferences(ctx, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}

	patch := model.PreferencesPatch{}
	if s, ok := argString(args, "purpose_statement"); ok {
		patch.PurposeStatement = &s
	}
	if raw, ok := args["long_term_goals"]; ok {
		patch.LongTermGoals = toStringSlice(raw)
	}
	if raw, ok := args["known_challenges"]; ok {
		patch.KnownChallenges = toStringSlice(raw)
	}
	if s, ok := argString(args, "preferred_feedback"); ok {
		style := model.FeedbackStyle(s)
		patch.PreferredFeedback = &style
	}
	if raw, ok := args["glossary"].(map[string]any); ok {
		g := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				g[k] = s
			}
		}
		patch.Glossary = g
	}

	prefs.Apply(patch)
	if err := tx.UpsertPreferences(ctx, prefs); err != nil {
		return Result{}, apierr.Internal(err)
	}
	return Result{Content: "preferences updated"}, nil
}

func toStringSlice(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func handleGetTemplateInfo(ctx context.Context, deps *Deps, tx store.Tx, call Call, _ map[string]any) (Result, error) {
	tmpl, err := deps.Templates.ForUser(ctx, tx, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}

	var b []string
	for _, sec := range tmpl.OrderedSections() {
		b = append(b, fmt.Sprintf("%s: %s", sec.Name, sec.Description))
	}
	content := fmt.Sprintf("template %q has %d sections:\n%s", tmpl.Name, len(b), joinLines(b))
	return Result{Content: content, Metadata: map[string]any{"template_name": tmpl.Name}}, nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += "- " + l
	}
	return out
}

func handleReloadTemplate(ctx context.Context, deps *Deps, tx store.Tx, call Call, _ map[string]any) (Result, error) {
	// Refreshes the process-wide default from its source of truth; a user's
	// own active template is always read fresh from the store so there is
	// nothing to invalidate for it.
	if err := deps.Templates.Reload(); err != nil {
		return Result{}, apierr.Internal(err)
	}

	tmpl, err := deps.Templates.ForUser(ctx, tx, call.UserID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}
	return Result{Content: fmt.Sprintf("reloaded template %q (%d sections)", tmpl.Name, len(tmpl.SectionOrder))}, nil
}

func handleCreateTask(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	title, ok := argString(args, "title")
	if !ok || title == "" {
		return Result{}, apierr.Validation("create_task requires a non-empty 'title' argument")
	}
	description, _ := argString(args, "description")
	dueDate, err := argTime(args, "due_date")
	if err != nil {
		return Result{}, err
	}
	var priority *int
	if p, ok := argInt(args, "priority"); ok {
		priority = &p
	}

	deps.Locks.Lock(store.UserTasksKey(call.UserID))
	defer deps.Locks.Unlock(store.UserTasksKey(call.UserID))

	task, err := insertTaskAtPriority(ctx, tx, call.UserID, title, description, priority, dueDate, call.SessionID)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}
	return Result{Content: fmt.Sprintf("created task %q at priority %d", task.Title, task.Priority), Metadata: map[string]any{"task_id": task.ID}}, nil
}

// insertTaskAtPriority creates a task for userID. When priority is nil the
// task is appended after the user's current incomplete tasks; otherwise it is
// inserted at that 1-based position (clamped to the valid range) and every
// incomplete task at or after it shifts down by one, keeping priorities the
// contiguous sequence 1..N.
func insertTaskAtPriority(ctx context.Context, tx store.Tx, userID, title, description string, priority *int, dueDate *time.Time, sourceSessionID string) (*model.Task, error) {
	existing, err := tx.ListTasks(ctx, userID, false)
	if err != nil {
		return nil, err
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
					return nil, err
				}
			}
		}
	}

	task := model.NewTask(uuid.NewString(), userID, title, description, target, dueDate, sourceSessionID)
	if err := tx.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func handleListTasks(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	includeCompleted := argBool(args, "include_completed")

	tasks, err := tx.ListTasks(ctx, call.UserID, includeCompleted)
	if err != nil {
		return Result{}, apierr.Internal(err)
	}

	if len(tasks) == 0 {
		return Result{Content: "no tasks"}, nil
	}
	var lines []string
	for _, t := range tasks {
		if t.IsCompleted {
			lines = append(lines, fmt.Sprintf("[done] %s (id=%s)", t.Title, t.ID))
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s (id=%s)", t.Priority, t.Title, t.ID))
	}
	return Result{Content: joinLines(lines)}, nil
}

func handleCompleteTask(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	taskID, ok := argString(args, "task_id")
	if !ok || taskID == "" {
		return Result{}, apierr.Validation("complete_task requires a 'task_id' argument")
	}

	deps.Locks.Lock(store.UserTasksKey(call.UserID))
	defer deps.Locks.Unlock(store.UserTasksKey(call.UserID))

	task, err := tx.GetTask(ctx, call.UserID, taskID)
	if err != nil {
		return Result{}, mapNotFound(err, "task not found")
	}
	task.Complete()
	if err := tx.UpdateTask(ctx, task); err != nil {
		return Result{}, apierr.Internal(err)
	}
	if err := compactPriorities(ctx, tx, call.UserID); err != nil {
		return Result{}, apierr.Internal(err)
	}
	return Result{Content: fmt.Sprintf("completed task %q", task.Title)}, nil
}

func handleDeleteTask(ctx context.Context, deps *Deps, tx store.Tx, call Call, args map[string]any) (Result, error) {
	taskID, ok := argString(args, "task_id")
	if !ok || taskID == "" {
		return Result{}, apierr.Validation("delete_task requires a 'task_id' argument")
	}

	deps.Locks.Lock(store.UserTasksKey(call.UserID))
	defer deps.Locks.Unlock(store.UserTasksKey(call.UserID))

	if err := tx.DeleteTask(ctx, call.UserID, taskID); err != nil {
		return Result{}, mapNotFound(err, "task not found")
	}
	return Result{Content: "task deleted"}, nil
}

// compactPriorities renumbers the user's remaining incomplete tasks to the
// contiguous sequence 1..N after one of them leaves the incomplete set.
// complete_task calls it; delete_task does not need it, since DeleteTask
// recompacts inside the store on both backends.
func compactPriorities(ctx context.Context, tx store.Tx, userID string) error {
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

func mapNotFound(err error, message string) error {
	if apiErr, ok := apierr.As(err); ok {
		return apiErr
	}
	return apierr.NotFound(message)
}
