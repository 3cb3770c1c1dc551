package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

type chatSessionDoc struct {
	ID               string         `bson:"_id"`
	UserID           string         `bson:"user_id"`
	ConversationType string         `bson:"conversation_type"`
	IsActive         bool           `bson:"is_active"`
	Metadata         map[string]any `bson:"metadata"`
	CreatedAt        int64          `bson:"created_at"`
	UpdatedAt        int64          `bson:"updated_at"`
}

func chatSessionToDoc(s *model.ChatSession) chatSessionDoc {
	return chatSessionDoc{
		ID: s.ID, UserID: s.UserID, ConversationType: s.ConversationType, IsActive: s.IsActive,
		Metadata: s.Metadata, CreatedAt: s.CreatedAt.Unix(), UpdatedAt: s.UpdatedAt.Unix(),
	}
}

func (d chatSessionDoc) toModel() *model.ChatSession {
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &model.ChatSession{
		ID: d.ID, UserID: d.UserID, ConversationType: d.ConversationType, IsActive: d.IsActive,
		Metadata: metadata, CreatedAt: unixTime(d.CreatedAt), UpdatedAt: unixTime(d.UpdatedAt),
	}
}

func (t *mongoTx) CreateChatSession(ctx context.Context, s *model.ChatSession) error {
	_, err := t.s.col("chat_sessions").InsertOne(ctx, chatSessionToDoc(s))
	return err
}

func (t *mongoTx) GetSessionForUser(ctx context.Context, userID, sessionID string) (*model.ChatSession, error) {
	var doc chatSessionDoc
	err := t.s.col("chat_sessions").FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
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

func (t *mongoTx) ListSessionsForUser(ctx context.Context, userID string) ([]*model.ChatSession, error) {
	cur, err := t.s.col("chat_sessions").Find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.ChatSession
	for cur.Next(ctx) {
		var doc chatSessionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toModel())
	}
	return out, cur.Err()
}

type chatMessageDoc struct {
	ID        string         `bson:"_id"`
	SessionID string         `bson:"session_id"`
	UserID    string         `bson:"user_id"`
	Role      string         `bson:"role"`
	Content   string         `bson:"content"`
	Metadata  map[string]any `bson:"metadata"`
	CreatedAt int64          `bson:"created_at"`
	Seq       int64          `bson:"seq"`
}

func (d chatMessageDoc) toModel() *model.ChatMessage {
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &model.ChatMessage{
		ID: d.ID, SessionID: d.SessionID, Role: model.MessageRole(d.Role),
		Content: d.Content, Metadata: metadata, CreatedAt: unixNanoTime(d.CreatedAt),
	}
}

// AppendMessage assigns the message the next sequence number for its
// session (computed as max(seq)+1), mirroring sqlitestore's strict ordering
// guarantee even though Mongo documents have no natural row order.
func (t *mongoTx) AppendMessage(ctx context.Context, m *model.ChatMessage) error {
	var sessionDoc chatSessionDoc
	err := t.s.col("chat_sessions").FindOne(ctx, bson.M{"_id": m.SessionID}).Decode(&sessionDoc)
	if isNoDocuments(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	var last chatMessageDoc
	err = t.s.col("chat_messages").FindOne(ctx, bson.M{"session_id": m.SessionID}, opts).Decode(&last)
	var seq int64
	if err == nil {
		seq = last.Seq + 1
	} else if !isNoDocuments(err) {
		return err
	}

	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	doc := chatMessageDoc{
		ID: m.ID, SessionID: m.SessionID, UserID: sessionDoc.UserID, Role: string(m.Role),
		Content: m.Content, Metadata: metadata, CreatedAt: m.CreatedAt.UnixNano(), Seq: seq,
	}
	_, err = t.s.col("chat_messages").InsertOne(ctx, doc)
	return err
}

func (t *mongoTx) GetMessagesOrdered(ctx context.Context, sessionID string) ([]*model.ChatMessage, error) {
	cur, err := t.s.col("chat_messages").Find(ctx, bson.M{"session_id": sessionID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []chatMessageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*model.ChatMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func unixNanoTime(ns int64) time.Time { return time.Unix(0, ns).UTC() }
