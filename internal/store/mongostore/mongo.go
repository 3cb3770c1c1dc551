// Package mongostore implements store.Store and store.Tx over
// go.mongodb.org/mongo-driver: one collection per entity, BSON documents
// keyed by the entity's own id field rather than Mongo's ObjectID.
//
// Unlike sqlitestore, mongoTx does not wrap a real multi-document ACID
// transaction: mongo.Session transactions require a replica set deployment
// this client cannot assume, so each Tx method commits its write immediately and
// Commit/Rollback are bookkeeping only. Callers still get snapshot reads of
// each entity within the handful of round-trips one request makes, just not
// cross-entity isolation. Documented as an accepted tradeoff in DESIGN.md.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ghiac/journal/internal/store"
)

// MongoStore is a MongoDB-backed store.Store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	debug  bool
}

// Config holds MongoDBStore connection configuration.
type Config struct {
	URI      string
	Database string
}

// New connects to MongoDB and returns a ready MongoStore.
func New(cfg Config, debug bool) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "journal"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{client: client, db: db, debug: debug}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection("auth_sessions").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection("templates").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"is_active": true}),
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection("drafts").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true),
	})
	return err
}

// Begin returns a new Tx. See the package doc for its atomicity contract.
func (s *MongoStore) Begin(ctx context.Context) (store.Tx, error) {
	return &mongoTx{s: s, ctx: ctx}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}
