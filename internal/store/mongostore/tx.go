package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ghiac/journal/internal/store"
)

// now and unixTime give every entity file in this package one place to
// convert between time.Time and the unix-seconds ints stored in BSON docs.
// Chat message timestamps are the exception: they are stored as unix
// nanoseconds and read back with unixNanoTime.
func now() time.Time { return time.Now() }

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// mongoTx is the MongoDB Tx. See package doc for its commit semantics.
type mongoTx struct {
	s   *MongoStore
	ctx context.Context
}

func (t *mongoTx) Commit() error   { return nil }
func (t *mongoTx) Rollback() error { return nil }

// Savepoints are bookkeeping-only for the same reason Commit/Rollback are:
// every write here lands immediately (see package doc).
func (t *mongoTx) Savepoint(ctx context.Context, name string) error { return nil }

func (t *mongoTx) Release(ctx context.Context, name string) error { return nil }

func (t *mongoTx) RollbackTo(ctx context.Context, name string) error { return nil }

// guardUserScope panics in debug mode when a row's owning user doesn't
// match the requesting one, mirroring sqlitestore's cross-user guard.
func (t *mongoTx) guardUserScope(requestedUserID, rowUserID string) {
	if t.s.debug && requestedUserID != rowUserID {
		panic(fmt.Sprintf("mongostore: cross-user access: requested by %s, owned by %s", requestedUserID, rowUserID))
	}
}

func isNoDocuments(err error) bool {
	return err == mongo.ErrNoDocuments
}

func upsertOpts() *options.ReplaceOptions {
	t := true
	return &options.ReplaceOptions{Upsert: &t}
}

var _ store.Tx = (*mongoTx)(nil)
