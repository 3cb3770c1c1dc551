// Package auth implements the journaling core's authentication surface:
// password hashing with bcrypt, HS256 bearer tokens via golang-jwt/jwt/v5,
// and the session-backed revocation list behind AuthSession.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/config"
	"github.com/ghiac/journal/internal/model"
	"github.com/ghiac/journal/internal/store"
)

// Claims is the payload embedded in every issued token.
type Claims struct {
	jwt.RegisteredClaims
}

// Service issues and validates bearer tokens and manages the credential
// lifecycle (register, login, revoke).
type Service struct {
	store  store.Store
	secret []byte
	expiry time.Duration
}

// New builds an auth Service from configuration.
func New(s store.Store, cfg config.AuthConfig) *Service {
	return &Service{store: s, secret: []byte(cfg.JWTSecret), expiry: cfg.TokenLifetime}
}

// Register creates a new user with a bcrypt-hashed password. Returns
// apierr.Conflict if the username is already taken.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	if _, err := tx.GetUserByUsername(ctx, username); err == nil {
		return nil, apierr.Conflict("username already taken")
	} else if err != store.ErrNotFound {
		return nil, apierr.Internal(err)
	}

	user := model.NewUser(uuid.NewString(), username, email, string(hash))
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, apierr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.Internal(err)
	}
	return user, nil
}

// Login verifies credentials and issues a new bearer token, recording a
// matching AuthSession so the token can later be revoked. The returned
// expiry lets the HTTP edge report expires_in.
func (s *Service) Login(ctx context.Context, username, password, userAgent, ip string) (token string, expiresAt time.Time, user *model.User, err error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return "", time.Time{}, nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	user, err = tx.GetUserByUsername(ctx, username)
	if err != nil {
		if err == store.ErrNotFound {
			return "", time.Time{}, nil, apierr.Unauthorized("invalid username or password")
		}
		return "", time.Time{}, nil, apierr.Internal(err)
	}
	if !user.IsActive {
		return "", time.Time{}, nil, apierr.Unauthorized("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, nil, apierr.Unauthorized("invalid username or password")
	}

	var tokenHash string
	token, tokenHash, expiresAt, err = s.issueToken(user.ID)
	if err != nil {
		return "", time.Time{}, nil, apierr.Internal(err)
	}
	authSession := model.NewAuthSession(uuid.NewString(), user.ID, tokenHash, expiresAt, userAgent, ip)
	if err := tx.CreateAuthSession(ctx, authSession); err != nil {
		return "", time.Time{}, nil, apierr.Internal(err)
	}
	if err := tx.Commit(); err != nil {
		return "", time.Time{}, nil, apierr.Internal(err)
	}
	return token, expiresAt, user, nil
}

// Logout revokes every active session for userID.
func (s *Service) Logout(ctx context.Context, userID string) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return apierr.Internal(err)
	}
	defer tx.Rollback()
	if err := tx.RevokeAllUserAuthSessions(ctx, userID); err != nil {
		return apierr.Internal(err)
	}
	return tx.Commit()
}

// RequireUser validates a raw bearer token end to end: signature, claims,
// expiry, and that the matching AuthSession is neither revoked nor expired.
// It returns the authenticated user on success.
func (s *Service) RequireUser(ctx context.Context, rawToken string) (*model.User, error) {
	userID, err := s.parseToken(rawToken)
	if err != nil {
		return nil, apierr.Unauthorized("invalid or expired token")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	defer tx.Rollback()

	authSession, err := tx.GetAuthSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apierr.Unauthorized("invalid or expired token")
		}
		return nil, apierr.Internal(err)
	}
	if !authSession.IsValid(time.Now()) {
		return nil, apierr.Unauthorized("invalid or expired token")
	}

	user, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apierr.Unauthorized("invalid or expired token")
		}
		return nil, apierr.Internal(err)
	}
	if !user.IsActive {
		return nil, apierr.Unauthorized("account is deactivated")
	}
	if err := tx.Commit(); err != nil {
		return nil, apierr.Internal(err)
	}
	return user, nil
}

func (s *Service) issueToken(userID string) (token, tokenHash string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(s.expiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, hashToken(signed), expiresAt, nil
}

func (s *Service) parseToken(rawToken string) (string, error) {
	parsed, err := jwt.ParseWithClaims(rawToken, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid claims")
	}
	return claims.Subject, nil
}

// hashToken returns the digest stored as AuthSession.TokenHash: tokens are
// never persisted verbatim, only this one-way digest, so a leaked database
// cannot be replayed into valid bearer tokens.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
