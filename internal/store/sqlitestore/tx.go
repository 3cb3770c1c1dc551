package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// sqliteTx implements store.Tx over a single *sql.Tx.
type sqliteTx struct {
	tx    *sql.Tx
	debug bool
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

func (t *sqliteTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *sqliteTx) Release(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// RollbackTo undoes everything since the named savepoint and releases it,
// leaving the surrounding transaction usable.
func (t *sqliteTx) RollbackTo(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// guardUserScope panics when debug mode is on and a row's owning user_id
// does not match the scope the caller asked for: a cross-user read is a
// programming error, not a runtime condition.
func (t *sqliteTx) guardUserScope(requestedUserID, rowUserID string) {
	if t.debug && requestedUserID != rowUserID {
		panic(fmt.Sprintf("sqlitestore: cross-user read detected: requested user_id=%q row user_id=%q", requestedUserID, rowUserID))
	}
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool { return i != 0 }
