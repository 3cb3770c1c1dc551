package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

func (t *sqliteTx) CreateUser(ctx context.Context, u *model.User) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_active, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, nullableString(u.Email), u.PasswordHash,
		boolToInt(u.IsActive), boolToInt(u.IsVerified), u.CreatedAt.Unix(), u.UpdatedAt.Unix())
	return err
}

func (t *sqliteTx) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var email sql.NullString
	var createdAt, updatedAt int64
	var isActive, isVerified int
	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &isActive, &isVerified, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.IsActive = intToBool(isActive)
	u.IsVerified = intToBool(isVerified)
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

func (t *sqliteTx) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_active, is_verified, created_at, updated_at
		FROM users WHERE username = ?`, username)
	return t.scanUser(row)
}

func (t *sqliteTx) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_active, is_verified, created_at, updated_at
		FROM users WHERE id = ?`, userID)
	return t.scanUser(row)
}

func (t *sqliteTx) DeactivateUser(ctx context.Context, userID string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now().Unix(), userID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (t *sqliteTx) CreateAuthSession(ctx context.Context, s *model.AuthSession) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, token_hash, expires_at, revoked, user_agent, ip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, s.ExpiresAt.Unix(), boolToInt(s.Revoked),
		s.UserAgent, s.IP, s.CreatedAt.Unix(), s.UpdatedAt.Unix())
	return err
}

func (t *sqliteTx) GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, user_agent, ip, created_at, updated_at
		FROM auth_sessions WHERE token_hash = ?`, tokenHash)
	var s model.AuthSession
	var expiresAt, createdAt, updatedAt int64
	var revoked int
	var userAgent, ip sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &expiresAt, &revoked, &userAgent, &ip, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	s.Revoked = intToBool(revoked)
	s.UserAgent = userAgent.String
	s.IP = ip.String
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

func (t *sqliteTx) RevokeAuthSession(ctx context.Context, sessionID string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE auth_sessions SET revoked = 1, updated_at = ? WHERE id = ?`, time.Now().Unix(), sessionID)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (t *sqliteTx) RevokeAllUserAuthSessions(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE auth_sessions SET revoked = 1, updated_at = ? WHERE user_id = ?`, time.Now().Unix(), userID)
	return err
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
