package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

type draftDoc struct {
	ID          string                        `bson:"_id"`
	SessionID   string                        `bson:"session_id"`
	UserID      string                        `bson:"user_id"`
	DraftData   map[string]model.SectionValue `bson:"draft_data"`
	Metadata    map[string]any                `bson:"metadata"`
	IsFinalized bool                          `bson:"is_finalized"`
	CreatedAt   int64                         `bson:"created_at"`
	UpdatedAt   int64                         `bson:"updated_at"`
}

func draftToDoc(d *model.JournalDraft) draftDoc {
	return draftDoc{
		ID: d.ID, SessionID: d.SessionID, UserID: d.UserID, DraftData: d.DraftData,
		Metadata: d.Metadata, IsFinalized: d.IsFinalized,
		CreatedAt: d.CreatedAt.Unix(), UpdatedAt: d.UpdatedAt.Unix(),
	}
}

func (d draftDoc) toModel() *model.JournalDraft {
	data := d.DraftData
	if data == nil {
		data = map[string]model.SectionValue{}
	}
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &model.JournalDraft{
		ID: d.ID, SessionID: d.SessionID, UserID: d.UserID, DraftData: data,
		Metadata: metadata, IsFinalized: d.IsFinalized,
		CreatedAt: unixTime(d.CreatedAt), UpdatedAt: unixTime(d.UpdatedAt),
	}
}

// GetOrCreateDraft mirrors sqlitestore: look up the session's draft, and if
// none exists yet, create an empty one. The unique index on session_id (see
// ensureIndexes) makes the lazy find-then-insert safe against a concurrent
// create for the same session.
func (t *mongoTx) GetOrCreateDraft(ctx context.Context, sessionID, userID string) (*model.JournalDraft, error) {
	var doc draftDoc
	err := t.s.col("drafts").FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !isNoDocuments(err) {
		return nil, err
	}

	draft := model.NewJournalDraft(newDraftID(sessionID), sessionID, userID)
	if _, err := t.s.col("drafts").InsertOne(ctx, draftToDoc(draft)); err != nil {
		return nil, err
	}
	return draft, nil
}

func (t *mongoTx) SaveDraft(ctx context.Context, d *model.JournalDraft) error {
	d.UpdatedAt = now()
	res, err := t.s.col("drafts").UpdateOne(ctx, bson.M{"session_id": d.SessionID}, bson.M{"$set": bson.M{
		"draft_data":   d.DraftData,
		"metadata":     d.Metadata,
		"is_finalized": d.IsFinalized,
		"updated_at":   d.UpdatedAt.Unix(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func newDraftID(sessionID string) string { return "draft_" + sessionID }

type journalEntryDoc struct {
	ID             string                        `bson:"_id"`
	UserID         string                        `bson:"user_id"`
	SessionID      string                        `bson:"session_id"`
	Title          string                        `bson:"title"`
	StructuredData map[string]model.SectionValue `bson:"structured_data"`
	RawText        string                        `bson:"raw_text"`
	Metadata       map[string]any                `bson:"metadata"`
	CreatedAt      int64                         `bson:"created_at"`
}

func journalEntryToDoc(e *model.JournalEntry) journalEntryDoc {
	return journalEntryDoc{
		ID: e.ID, UserID: e.UserID, SessionID: e.SessionID, Title: e.Title,
		StructuredData: e.StructuredData, RawText: e.RawText, Metadata: e.Metadata,
		CreatedAt: e.CreatedAt.Unix(),
	}
}

func (d journalEntryDoc) toModel() *model.JournalEntry {
	structured := d.StructuredData
	if structured == nil {
		structured = map[string]model.SectionValue{}
	}
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &model.JournalEntry{
		ID: d.ID, UserID: d.UserID, SessionID: d.SessionID, Title: d.Title,
		StructuredData: structured, RawText: d.RawText, Metadata: metadata,
		CreatedAt: unixTime(d.CreatedAt),
	}
}

func (t *mongoTx) CreateJournalEntry(ctx context.Context, e *model.JournalEntry) error {
	_, err := t.s.col("journal_entries").InsertOne(ctx, journalEntryToDoc(e))
	return err
}

func (t *mongoTx) GetJournalEntry(ctx context.Context, userID, entryID string) (*model.JournalEntry, error) {
	var doc journalEntryDoc
	err := t.s.col("journal_entries").FindOne(ctx, bson.M{"_id": entryID}).Decode(&doc)
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

func (t *mongoTx) ListJournalEntries(ctx context.Context, userID string) ([]*model.JournalEntry, error) {
	cur, err := t.s.col("journal_entries").Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.JournalEntry
	for cur.Next(ctx) {
		var doc journalEntryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	return out, cur.Err()
}
