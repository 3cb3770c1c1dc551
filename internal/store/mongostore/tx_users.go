package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

type userDoc struct {
	ID           string `bson:"_id"`
	Username     string `bson:"username"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
	IsActive     bool   `bson:"is_active"`
	IsVerified   bool   `bson:"is_verified"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func userToDoc(u *model.User) userDoc {
	return userDoc{
		ID: u.ID, Username: u.Username, Email: u.Email, PasswordHash: u.PasswordHash,
		IsActive: u.IsActive, IsVerified: u.IsVerified,
		CreatedAt: u.CreatedAt.Unix(), UpdatedAt: u.UpdatedAt.Unix(),
	}
}

func (d userDoc) toModel() *model.User {
	return &model.User{
		ID: d.ID, Username: d.Username, Email: d.Email, PasswordHash: d.PasswordHash,
		IsActive: d.IsActive, IsVerified: d.IsVerified,
		CreatedAt: unixTime(d.CreatedAt), UpdatedAt: unixTime(d.UpdatedAt),
	}
}

func (t *mongoTx) CreateUser(ctx context.Context, u *model.User) error {
	_, err := t.s.col("users").InsertOne(ctx, userToDoc(u))
	return err
}

func (t *mongoTx) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var doc userDoc
	err := t.s.col("users").FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (t *mongoTx) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	var doc userDoc
	err := t.s.col("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (t *mongoTx) DeactivateUser(ctx context.Context, userID string) error {
	res, err := t.s.col("users").UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"is_active": false, "updated_at": now().Unix()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

type authSessionDoc struct {
	ID        string `bson:"_id"`
	UserID    string `bson:"user_id"`
	TokenHash string `bson:"token_hash"`
	ExpiresAt int64  `bson:"expires_at"`
	Revoked   bool   `bson:"revoked"`
	UserAgent string `bson:"user_agent"`
	IP        string `bson:"ip"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
}

func authSessionToDoc(s *model.AuthSession) authSessionDoc {
	return authSessionDoc{
		ID: s.ID, UserID: s.UserID, TokenHash: s.TokenHash, ExpiresAt: s.ExpiresAt.Unix(),
		Revoked: s.Revoked, UserAgent: s.UserAgent, IP: s.IP,
		CreatedAt: s.CreatedAt.Unix(), UpdatedAt: s.UpdatedAt.Unix(),
	}
}

func (d authSessionDoc) toModel() *model.AuthSession {
	return &model.AuthSession{
		ID: d.ID, UserID: d.UserID, TokenHash: d.TokenHash, ExpiresAt: unixTime(d.ExpiresAt),
		Revoked: d.Revoked, UserAgent: d.UserAgent, IP: d.IP,
		CreatedAt: unixTime(d.CreatedAt), UpdatedAt: unixTime(d.UpdatedAt),
	}
}

func (t *mongoTx) CreateAuthSession(ctx context.Context, s *model.AuthSession) error {
	_, err := t.s.col("auth_sessions").InsertOne(ctx, authSessionToDoc(s))
	return err
}

func (t *mongoTx) GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	var doc authSessionDoc
	err := t.s.col("auth_sessions").FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (t *mongoTx) RevokeAuthSession(ctx context.Context, sessionID string) error {
	res, err := t.s.col("auth_sessions").UpdateOne(ctx, bson.M{"_id": sessionID}, bson.M{"$set": bson.M{"revoked": true, "updated_at": now().Unix()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *mongoTx) RevokeAllUserAuthSessions(ctx context.Context, userID string) error {
	_, err := t.s.col("auth_sessions").UpdateMany(ctx, bson.M{"user_id": userID}, bson.M{"$set": bson.M{"revoked": true, "updated_at": now().Unix()}})
	return err
}
