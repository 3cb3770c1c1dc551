package mongostore

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

type taskDoc struct {
	ID              string `bson:"_id"`
	UserID          string `bson:"user_id"`
	Title           string `bson:"title"`
	Description     string `bson:"description"`
	Priority        int    `bson:"priority"`
	IsCompleted     bool   `bson:"is_completed"`
	CompletedAt     *int64 `bson:"completed_at"`
	DueDate         *int64 `bson:"due_date"`
	SourceSessionID string `bson:"source_session_id"`
	CreatedAt       int64  `bson:"created_at"`
	UpdatedAt       int64  `bson:"updated_at"`
}

func taskToDoc(task *model.Task) taskDoc {
	d := taskDoc{
		ID: task.ID, UserID: task.UserID, Title: task.Title, Description: task.Description,
		Priority: task.Priority, IsCompleted: task.IsCompleted, SourceSessionID: task.SourceSessionID,
		CreatedAt: task.CreatedAt.Unix(), UpdatedAt: task.UpdatedAt.Unix(),
	}
	if task.CompletedAt != nil {
		v := task.CompletedAt.Unix()
		d.CompletedAt = &v
	}
	if task.DueDate != nil {
		v := task.DueDate.Unix()
		d.DueDate = &v
	}
	return d
}

func (d taskDoc) toModel() *model.Task {
	t := &model.Task{
		ID: d.ID, UserID: d.UserID, Title: d.Title, Description: d.Description,
		Priority: d.Priority, IsCompleted: d.IsCompleted, SourceSessionID: d.SourceSessionID,
		CreatedAt: unixTime(d.CreatedAt), UpdatedAt: unixTime(d.UpdatedAt),
	}
	if d.CompletedAt != nil {
		v := unixTime(*d.CompletedAt)
		t.CompletedAt = &v
	}
	if d.DueDate != nil {
		v := unixTime(*d.DueDate)
		t.DueDate = &v
	}
	return t
}

func (t *mongoTx) CreateTask(ctx context.Context, task *model.Task) error {
	_, err := t.s.col("tasks").InsertOne(ctx, taskToDoc(task))
	return err
}

func (t *mongoTx) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var doc taskDoc
	err := t.s.col("tasks").FindOne(ctx, bson.M{"_id": taskID}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		t.guardUserScope(userID, doc.UserID)
		return nil, store.ErrNotFound
	}
	return doc.toModel(), nil
}

// ListTasks returns incomplete tasks ordered by priority and completed tasks
// ordered by completed_at descending, matching sqlitestore's canonical order.
func (t *mongoTx) ListTasks(ctx context.Context, userID string, includeCompleted bool) ([]*model.Task, error) {
	filter := bson.M{"user_id": userID}
	if !includeCompleted {
		filter["is_completed"] = false
	}
	cur, err := t.s.col("tasks").Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var incomplete, completed []*model.Task
	for cur.Next(ctx) {
		var doc taskDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		task := doc.toModel()
		if task.IsCompleted {
			completed = append(completed, task)
		} else {
			incomplete = append(incomplete, task)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	sort.Slice(incomplete, func(i, j int) bool {
		if incomplete[i].Priority != incomplete[j].Priority {
			return incomplete[i].Priority < incomplete[j].Priority
		}
		return incomplete[i].CreatedAt.Before(incomplete[j].CreatedAt)
	})
	sort.Slice(completed, func(i, j int) bool {
		a, b := completed[i].CompletedAt, completed[j].CompletedAt
		if a == nil || b == nil {
			return false
		}
		return a.After(*b)
	})
	return append(incomplete, completed...), nil
}

func (t *mongoTx) UpdateTask(ctx context.Context, task *model.Task) error {
	task.UpdatedAt = now()
	// ReplaceOne rather than $set: a replacement document may carry its own
	// (unchanged) _id, but $set on _id is rejected by the server.
	res, err := t.s.col("tasks").ReplaceOne(ctx, bson.M{"_id": task.ID, "user_id": task.UserID}, taskToDoc(task))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *mongoTx) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := t.s.col("tasks").DeleteOne(ctx, bson.M{"_id": taskID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return t.compactPriorities(ctx, userID)
}

// compactPriorities renumbers the user's incomplete tasks to the contiguous
// sequence 1..N in their current priority order after a completion or
// deletion (mirrors sqlitestore's compactPriorities).
func (t *mongoTx) compactPriorities(ctx context.Context, userID string) error {
	cur, err := t.s.col("tasks").Find(ctx, bson.M{"user_id": userID, "is_completed": false},
		options.Find().SetSort(bson.D{{Key: "priority", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return err
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return err
	}
	for i, d := range docs {
		if d.Priority == i+1 {
			continue
		}
		if _, err := t.s.col("tasks").UpdateOne(ctx, bson.M{"_id": d.ID}, bson.M{"$set": bson.M{"priority": i + 1}}); err != nil {
			return err
		}
	}
	return nil
}

// ReorderTasks requires orderings to be a bijection between the user's
// incomplete task ids and 1..N; otherwise it rejects with Conflict and
// changes nothing, matching sqlitestore's enforcement.
func (t *mongoTx) ReorderTasks(ctx context.Context, userID string, orderings []model.TaskOrdering) error {
	cur, err := t.s.col("tasks").Find(ctx, bson.M{"user_id": userID, "is_completed": false})
	if err != nil {
		return err
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return err
	}
	incomplete := make(map[string]bool, len(docs))
	for _, d := range docs {
		incomplete[d.ID] = true
	}

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

	// Two-phase update avoids a task momentarily sharing a priority value
	// with another mid-update, same as sqlitestore's shift-then-set.
	for _, o := range orderings {
		if _, err := t.s.col("tasks").UpdateOne(ctx, bson.M{"_id": o.TaskID}, bson.M{"$inc": bson.M{"priority": n + 1}}); err != nil {
			return err
		}
	}
	for _, o := range orderings {
		if _, err := t.s.col("tasks").UpdateOne(ctx, bson.M{"_id": o.TaskID}, bson.M{"$set": bson.M{"priority": o.NewPriority, "updated_at": now().Unix()}}); err != nil {
			return err
		}
	}
	return nil
}
