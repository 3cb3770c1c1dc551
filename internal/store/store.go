// Package store provides transactional, user-scoped persistence for every
// entity in the journaling core: a small CRUD surface backed by
// interchangeable concrete backends, all satisfying the same interface so
// the rest of the system never branches on which one is active.
package store

import (
	"context"

	"github.com/ghiac/journal/internal/model"
)

// Store opens transactions. Every mutation performed by a single HTTP
// request happens under one Tx; an unhandled failure rolls it back.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a single transactional handle. Per-entity methods take user_id
// (except the user/auth lookups used during login) and only observe or
// mutate rows scoped to that user_id, with one exception: AppendMessage,
// GetMessagesOrdered, GetOrCreateDraft and SaveDraft look rows up by session
// id alone, so callers check session ownership first with GetSessionForUser.
// A cross-user read is a programming error and panics when the store was
// opened in debug mode.
type Tx interface {
	Commit() error
	Rollback() error

	// Savepoints let one tool call inside a turn fail without discarding
	// the rest of the turn's writes: run the call between Savepoint and
	// Release, and RollbackTo on error. name must be a plain identifier.
	Savepoint(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error

	// Users / auth.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	DeactivateUser(ctx context.Context, userID string) error

	CreateAuthSession(ctx context.Context, s *model.AuthSession) error
	GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
	RevokeAuthSession(ctx context.Context, sessionID string) error
	RevokeAllUserAuthSessions(ctx context.Context, userID string) error

	// Preferences.
	GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error)
	UpsertPreferences(ctx context.Context, p *model.UserPreferences) error

	// Templates.
	GetActiveTemplate(ctx context.Context, userID string) (*model.UserTemplate, error)
	UpsertTemplate(ctx context.Context, t *model.UserTemplate) error

	// Chat sessions / messages.
	CreateChatSession(ctx context.Context, s *model.ChatSession) error
	GetSessionForUser(ctx context.Context, userID, sessionID string) (*model.ChatSession, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]*model.ChatSession, error)
	AppendMessage(ctx context.Context, m *model.ChatMessage) error
	GetMessagesOrdered(ctx context.Context, sessionID string) ([]*model.ChatMessage, error)

	// Drafts.
	GetOrCreateDraft(ctx context.Context, sessionID, userID string) (*model.JournalDraft, error)
	SaveDraft(ctx context.Context, d *model.JournalDraft) error

	// Journal entries.
	CreateJournalEntry(ctx context.Context, e *model.JournalEntry) error
	GetJournalEntry(ctx context.Context, userID, entryID string) (*model.JournalEntry, error)
	ListJournalEntries(ctx context.Context, userID string) ([]*model.JournalEntry, error)

	// Tasks.
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, userID, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, userID string, includeCompleted bool) ([]*model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	ReorderTasks(ctx context.Context, userID string, orderings []model.TaskOrdering) error
}

// ErrNotFound is returned by lookups that find no matching row. Callers at
// the edge map it to apierr.NotFound.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "not found" }
