package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
	"github.com/ghiac/journal/internal/store/sqlitestore"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	s, err := sqlitestore.New("", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	u := model.NewUser("u1", "alice", "", "hash")
	require.NoError(t, tx.CreateUser(ctx, u))
	require.NoError(t, tx.Commit())

	return New(s, store.NewLockTable()), "u1"
}

func TestCreateAssignsSequentialPriority(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	t1, err := m.Create(ctx, userID, "write a post", "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, t1.Priority)

	t2, err := m.Create(ctx, userID, "review PRs", "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, t2.Priority)
}

func TestCompleteRecompactsRemainingPriorities(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	t1, err := m.Create(ctx, userID, "a", "", nil, nil)
	require.NoError(t, err)
	_, err = m.Create(ctx, userID, "b", "", nil, nil)
	require.NoError(t, err)
	t3, err := m.Create(ctx, userID, "c", "", nil, nil)
	require.NoError(t, err)

	_, err = m.Complete(ctx, userID, t1.ID)
	require.NoError(t, err)

	remaining, err := m.List(ctx, userID, false)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	require.Equal(t, 1, remaining[0].Priority)
	require.Equal(t, 2, remaining[1].Priority)
	require.Equal(t, t3.ID, remaining[1].ID)
}

func TestReorderRejectsPartialCoverage(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	t1, err := m.Create(ctx, userID, "a", "", nil, nil)
	require.NoError(t, err)
	_, err = m.Create(ctx, userID, "b", "", nil, nil)
	require.NoError(t, err)

	err = m.Reorder(ctx, userID, []model.TaskOrdering{{TaskID: t1.ID, NewPriority: 1}})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.CodeConflict, apiErr.Code())
}

func TestCreateWithPriorityShiftsExisting(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	t1, err := m.Create(ctx, userID, "a", "", nil, nil)
	require.NoError(t, err)
	t2, err := m.Create(ctx, userID, "b", "", nil, nil)
	require.NoError(t, err)

	inserted := 1
	t3, err := m.Create(ctx, userID, "c", "", &inserted, nil)
	require.NoError(t, err)
	require.Equal(t, 1, t3.Priority)

	all, err := m.List(ctx, userID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)

	byID := map[string]int{}
	for _, task := range all {
		byID[task.ID] = task.Priority
	}
	require.Equal(t, 1, byID[t3.ID])
	require.Equal(t, 2, byID[t1.ID])
	require.Equal(t, 3, byID[t2.ID])
}

func TestUpdateMovesPriorityAndShiftsNeighbors(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	t1, err := m.Create(ctx, userID, "a", "", nil, nil)
	require.NoError(t, err)
	t2, err := m.Create(ctx, userID, "b", "", nil, nil)
	require.NoError(t, err)
	t3, err := m.Create(ctx, userID, "c", "", nil, nil)
	require.NoError(t, err)

	// Move the last task to the front: t1 and t2 shift down by one.
	moved := 1
	updated, err := m.Update(ctx, userID, t3.ID, model.TaskPatch{Priority: &moved})
	require.NoError(t, err)
	require.Equal(t, 1, updated.Priority)

	all, err := m.List(ctx, userID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, t3.ID, all[0].ID)
	require.Equal(t, t1.ID, all[1].ID)
	require.Equal(t, t2.ID, all[2].ID)
	for i, task := range all {
		require.Equal(t, i+1, task.Priority)
	}

	// An out-of-range target clamps to the end of the list rather than
	// leaving a gap: 1..N stays contiguous.
	past := 99
	updated, err = m.Update(ctx, userID, t3.ID, model.TaskPatch{Priority: &past})
	require.NoError(t, err)
	require.Equal(t, 3, updated.Priority)

	all, err = m.List(ctx, userID, false)
	require.NoError(t, err)
	require.Equal(t, t1.ID, all[0].ID)
	require.Equal(t, t2.ID, all[1].ID)
	require.Equal(t, t3.ID, all[2].ID)
	for i, task := range all {
		require.Equal(t, i+1, task.Priority)
	}
}

func TestUpdateRejectsPriorityOnCompletedTask(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	t1, err := m.Create(ctx, userID, "a", "", nil, nil)
	require.NoError(t, err)
	_, err = m.Complete(ctx, userID, t1.ID)
	require.NoError(t, err)

	p := 1
	_, err = m.Update(ctx, userID, t1.ID, model.TaskPatch{Priority: &p})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.CodeConflict, apiErr.Code())
}

func TestCompleteUnknownTaskIsNotFound(t *testing.T) {
	m, userID := newTestManager(t)
	ctx := context.Background()

	_, err := m.Complete(ctx, userID, "does-not-exist")
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.CodeNotFound, apiErr.Code())
}
