package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

func (t *sqliteTx) GetOrCreateDraft(ctx context.Context, sessionID, userID string) (*model.JournalDraft, error) {
	d, err := t.getDraft(ctx, sessionID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	draft := model.NewJournalDraft(newDraftID(sessionID), sessionID, userID)
	if err := t.insertDraft(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (t *sqliteTx) getDraft(ctx context.Context, sessionID string) (*model.JournalDraft, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, draft_data, metadata, is_finalized, created_at, updated_at
		FROM drafts WHERE session_id = ?`, sessionID)

	var d model.JournalDraft
	var draftData, metadata string
	var isFinalized int
	var createdAt, updatedAt int64
	err := row.Scan(&d.ID, &d.SessionID, &d.UserID, &draftData, &metadata, &isFinalized, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.DraftData = map[string]model.SectionValue{}
	d.Metadata = map[string]any{}
	if err := unmarshalJSON(draftData, &d.DraftData); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadata, &d.Metadata); err != nil {
		return nil, err
	}
	d.IsFinalized = intToBool(isFinalized)
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &d, nil
}

func (t *sqliteTx) insertDraft(ctx context.Context, d *model.JournalDraft) error {
	draftData, err := marshalJSON(d.DraftData)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(d.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO drafts (id, session_id, user_id, draft_data, metadata, is_finalized, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SessionID, d.UserID, draftData, metadata, boolToInt(d.IsFinalized), d.CreatedAt.Unix(), d.UpdatedAt.Unix())
	return err
}

func (t *sqliteTx) SaveDraft(ctx context.Context, d *model.JournalDraft) error {
	draftData, err := marshalJSON(d.DraftData)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(d.Metadata)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now()
	res, err := t.tx.ExecContext(ctx, `
		UPDATE drafts SET draft_data = ?, metadata = ?, is_finalized = ?, updated_at = ?
		WHERE session_id = ?`,
		draftData, metadata, boolToInt(d.IsFinalized), d.UpdatedAt.Unix(), d.SessionID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (t *sqliteTx) CreateJournalEntry(ctx context.Context, e *model.JournalEntry) error {
	structured, err := marshalJSON(e.StructuredData)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(e.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO journal_entries (id, user_id, session_id, title, structured_data, raw_text, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, nullableString(e.SessionID), e.Title, structured, e.RawText, metadata, e.CreatedAt.Unix())
	return err
}

func (t *sqliteTx) GetJournalEntry(ctx context.Context, userID, entryID string) (*model.JournalEntry, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, title, structured_data, raw_text, metadata, created_at
		FROM journal_entries WHERE id = ?`, entryID)

	var e model.JournalEntry
	var sessionID sql.NullString
	var structured, metadata string
	var createdAt int64
	err := row.Scan(&e.ID, &e.UserID, &sessionID, &e.Title, &structured, &e.RawText, &metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		t.guardUserScope(userID, e.UserID)
		return nil, store.ErrNotFound
	}
	e.SessionID = sessionID.String
	e.StructuredData = map[string]model.SectionValue{}
	e.Metadata = map[string]any{}
	if err := unmarshalJSON(structured, &e.StructuredData); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadata, &e.Metadata); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

func (t *sqliteTx) ListJournalEntries(ctx context.Context, userID string) ([]*model.JournalEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, user_id, session_id, title, structured_data, raw_text, metadata, created_at
		FROM journal_entries WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var sessionID sql.NullString
		var structured, metadata string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &sessionID, &e.Title, &structured, &e.RawText, &metadata, &createdAt); err != nil {
			return nil, err
		}
		e.SessionID = sessionID.String
		e.StructuredData = map[string]model.SectionValue{}
		e.Metadata = map[string]any{}
		if err := unmarshalJSON(structured, &e.StructuredData); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(metadata, &e.Metadata); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

func newDraftID(sessionID string) string {
	return "draft_" + sessionID
}
