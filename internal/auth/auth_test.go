package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ghiac/journal/internal/config"
	"github.com/ghiac/journal/internal/store/sqlitestore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := sqlitestore.New("", false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, config.AuthConfig{JWTSecret: "test-secret", TokenLifetime: time.Hour})
}

func TestRegisterLoginRequireUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	token, expiresAt, loggedIn, err := svc.Login(ctx, "alice", "hunter2", "test-agent", "127.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))
	require.Equal(t, user.ID, loggedIn.ID)

	got, err := svc.RequireUser(ctx, token)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "", "different-pass")
	require.Error(t, err)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "alice", "wrong-password", "", "")
	require.Error(t, err)
}

func TestLogoutRevokesExistingTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "hunter2")
	require.NoError(t, err)

	token, _, _, err := svc.Login(ctx, "alice", "hunter2", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.RequireUser(ctx, token)
	require.Error(t, err)
}
