package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

func (t *sqliteTx) CreateChatSession(ctx context.Context, s *model.ChatSession) error {
	metadata, err := marshalJSON(s.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, conversation_type, is_active, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.ConversationType, boolToInt(s.IsActive), metadata, s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	return err
}

func (t *sqliteTx) GetSessionForUser(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, conversation_type, is_active, metadata, created_at, updated_at
		FROM chat_sessions WHERE id = ?`, sessionID)

	var s model.ChatSession
	var metadata string
	var isActive int
	var createdAt, updatedAt int64
	err := row.Scan(&s.ID, &s.UserID, &s.ConversationType, &isActive, &metadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		// Not owned by the requesting user: treat identically to "absent"
		// (404, not 403, to avoid existence leaks).
		t.guardUserScope(userID, s.UserID)
		return nil, store.ErrNotFound
	}
	s.IsActive = intToBool(isActive)
	s.Metadata = map[string]any{}
	if err := unmarshalJSON(metadata, &s.Metadata); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

func (t *sqliteTx) ListSessionsForUser(ctx context.Context, userID string) ([]*model.ChatSession, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, user_id, conversation_type, is_active, metadata, created_at, updated_at
		FROM chat_sessions WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ChatSession
	for rows.Next() {
		var s model.ChatSession
		var metadata string
		var isActive int
		var createdAt, updatedAt int64
		if err := rows.Scan(&s.ID, &s.UserID, &s.ConversationType, &isActive, &metadata, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.IsActive = intToBool(isActive)
		s.Metadata = map[string]any{}
		if err := unmarshalJSON(metadata, &s.Metadata); err != nil {
			return nil, err
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (t *sqliteTx) AppendMessage(ctx context.Context, m *model.ChatMessage) error {
	metadata, err := marshalJSON(m.Metadata)
	if err != nil {
		return err
	}

	// user_id is denormalized onto the message row purely to let the store
	// scope queries without a join; session ownership is still the source
	// of truth (enforced by GetSessionForUser before any message is ever
	// appended to a session).
	row := t.tx.QueryRowContext(ctx, `SELECT user_id FROM chat_sessions WHERE id = ?`, m.SessionID)
	var userID string
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	var maxSeq sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM chat_messages WHERE session_id = ?`, m.SessionID).Scan(&maxSeq); err != nil {
		return err
	}
	seq := maxSeq.Int64 + 1

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, user_id, role, content, metadata, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, userID, string(m.Role), m.Content, metadata, m.CreatedAt.UnixNano(), seq)
	return err
}

func (t *sqliteTx) GetMessagesOrdered(ctx context.Context, sessionID string) ([]*model.ChatMessage, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var metadata, role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &metadata, &createdAt); err != nil {
			return nil, err
		}
		m.Role = model.MessageRole(role)
		m.Metadata = map[string]any{}
		if err := unmarshalJSON(metadata, &m.Metadata); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, &m)
	}
	return out, rows.Err()
}
