package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

func newTestStore(t *testing.T, debug bool) *SQLiteStore {
	t.Helper()
	s, err := New("", debug)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *SQLiteStore, id, username string) *model.User {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	u := model.NewUser(id, username, "", "hash")
	require.NoError(t, tx.CreateUser(ctx, u))
	require.NoError(t, tx.Commit())
	return u
}

func TestCrossUserReadReturnsNotFound(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")
	mustUser(t, s, "u2", "bob")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	session := model.NewChatSession("sess1", "u1", "", nil)
	require.NoError(t, tx.CreateChatSession(ctx, session))

	_, err = tx.GetSessionForUser(ctx, "u2", "sess1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCrossUserReadPanicsInDebugMode(t *testing.T) {
	s := newTestStore(t, true)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")
	mustUser(t, s, "u2", "bob")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	session := model.NewChatSession("sess1", "u1", "", nil)
	require.NoError(t, tx.CreateChatSession(ctx, session))

	require.Panics(t, func() {
		_, _ = tx.GetSessionForUser(ctx, "u2", "sess1")
	})
}

func TestMessageOrderingIsStrict(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	session := model.NewChatSession("sess1", "u1", "", nil)
	require.NoError(t, tx.CreateChatSession(ctx, session))
	for i := 0; i < 5; i++ {
		m := model.NewChatMessage("msg"+string(rune('a'+i)), "sess1", model.RoleUser, "hello", nil)
		require.NoError(t, tx.AppendMessage(ctx, m))
	}
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()
	msgs, err := tx2.GetMessagesOrdered(ctx, "sess1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		require.Equal(t, "msg"+string(rune('a'+i)), m.ID)
	}
}

func TestOnlyOneActiveTemplatePerUser(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	sections := []model.TemplateSection{{Name: "Reflection", Description: "how was your day"}}
	t1 := model.NewUserTemplate("u1", "first", sections, true)
	require.NoError(t, tx.UpsertTemplate(ctx, t1))

	t2 := model.NewUserTemplate("u1", "second", sections, true)
	require.NoError(t, tx.UpsertTemplate(ctx, t2))

	active, err := tx.GetActiveTemplate(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "second", active.Name)
}

func TestTaskPriorityCompactionAfterDelete(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	ids := []string{"t1", "t2", "t3"}
	for i, id := range ids {
		task := model.NewTask(id, "u1", "task "+id, "", i+1, nil, "")
		require.NoError(t, tx.CreateTask(ctx, task))
	}
	require.NoError(t, tx.DeleteTask(ctx, "u1", "t2"))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()
	remaining, err := tx2.ListTasks(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	priorities := map[string]int{}
	for _, task := range remaining {
		priorities[task.ID] = task.Priority
	}
	require.Equal(t, 1, priorities["t1"])
	require.Equal(t, 2, priorities["t3"])
}

func TestReorderTasksRejectsNonBijection(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	for i, id := range []string{"t1", "t2", "t3"} {
		task := model.NewTask(id, "u1", "task "+id, "", i+1, nil, "")
		require.NoError(t, tx.CreateTask(ctx, task))
	}

	// Missing t3, duplicate priority 1: not a bijection over 1..3.
	err = tx.ReorderTasks(ctx, "u1", []model.TaskOrdering{
		{TaskID: "t1", NewPriority: 1},
		{TaskID: "t2", NewPriority: 1},
	})
	require.Error(t, err)

	// Valid full reversal should succeed and leave 1..3 assigned.
	err = tx.ReorderTasks(ctx, "u1", []model.TaskOrdering{
		{TaskID: "t1", NewPriority: 3},
		{TaskID: "t2", NewPriority: 2},
		{TaskID: "t3", NewPriority: 1},
	})
	require.NoError(t, err)

	tasks, err := tx.ListTasks(ctx, "u1", false)
	require.NoError(t, err)
	require.Equal(t, "t3", tasks[0].ID)
	require.Equal(t, "t2", tasks[1].ID)
	require.Equal(t, "t1", tasks[2].ID)
}

func TestGetOrCreateDraftIsLazyAndSingular(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	session := model.NewChatSession("sess1", "u1", "", nil)
	require.NoError(t, tx.CreateChatSession(ctx, session))

	d1, err := tx.GetOrCreateDraft(ctx, "sess1", "u1")
	require.NoError(t, err)
	require.True(t, d1.IsEmpty())

	d1.DraftData["Reflection"] = "good day"
	require.NoError(t, tx.SaveDraft(ctx, d1))

	d2, err := tx.GetOrCreateDraft(ctx, "sess1", "u1")
	require.NoError(t, err)
	require.Equal(t, d1.ID, d2.ID)
	require.Equal(t, "good day", d2.DraftData["Reflection"])
}

func TestAuthSessionRevocation(t *testing.T) {
	s := newTestStore(t, false)
	ctx := context.Background()
	mustUser(t, s, "u1", "alice")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	as := model.NewAuthSession("sess-a", "u1", "hash1", time.Now().Add(time.Hour), "ua", "1.2.3.4")
	require.NoError(t, tx.CreateAuthSession(ctx, as))
	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx2.RevokeAllUserAuthSessions(ctx, "u1"))
	require.NoError(t, tx2.Commit())

	tx3, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx3.Rollback()
	got, err := tx3.GetAuthSessionByTokenHash(ctx, "hash1")
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.False(t, got.IsValid(time.Now()))
}
