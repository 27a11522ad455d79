package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/vince/internal/config"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/store"
	"github.com/kiranshivaraju/vince/pkg/models"
)

// SessionClaims is the payload of an admin session token.
type SessionClaims struct {
	SessionID string `json:"sessionId"`
	IsAdmin   bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies admin session tokens. Trust comes from the
// HS256 signature and embedded expiry; the admin_sessions rows are tracking
// state, consulted only in strict mode.
type Sessions struct {
	store        store.Store
	secret       []byte
	password     string
	passwordHash string
	ttl          time.Duration
	strict       bool
	now          func() time.Time
}

func NewSessions(s store.Store, cfg config.AuthConfig) *Sessions {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{
		store:        s,
		secret:       []byte(cfg.JWTSecret),
		password:     cfg.AdminPassword,
		passwordHash: cfg.AdminPasswordHash,
		ttl:          ttl,
		strict:       cfg.SessionStrict,
		now:          time.Now,
	}
}

// SetClock replaces the time source used for issuing and verifying tokens.
func (a *Sessions) SetClock(now func() time.Time) {
	a.now = now
}

// TTL is the lifetime of issued tokens.
func (a *Sessions) TTL() time.Duration {
	return a.ttl
}

// Issue signs a fresh admin token with a random session identifier.
func (a *Sessions) Issue() (string, *SessionClaims, error) {
	sessionID, err := credential.NewSessionID()
	if err != nil {
		return "", nil, err
	}

	now := a.now()
	claims := &SessionClaims{
		SessionID: sessionID,
		IsAdmin:   true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    "vince",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, claims, nil
}

// Verify returns the claims of a valid, unexpired admin token, or nil.
// The reason for a rejection is deliberately not reported.
func (a *Sessions) Verify(token string) *SessionClaims {
	if token == "" {
		return nil
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil
	}
	if !claims.IsAdmin || claims.SessionID == "" {
		return nil
	}
	return claims
}

// Login checks the admin password and returns a signed token. The tracking
// row is written best-effort; failing to persist it does not fail the login.
func (a *Sessions) Login(ctx context.Context, password string) (string, *SessionClaims, error) {
	if password == "" {
		return "", nil, invalid("Password is required")
	}
	if !a.checkPassword(password) {
		return "", nil, ErrInvalidPassword
	}

	token, claims, err := a.Issue()
	if err != nil {
		return "", nil, err
	}

	session := &models.AdminSession{
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: claims.IssuedAt.Time,
	}
	if err := a.store.CreateSession(ctx, session); err != nil {
		slog.Warn("failed to record admin session", "error", err)
	}

	return token, claims, nil
}

// Logout removes the tracking row of a valid token. Unknown or invalid
// tokens are ignored.
func (a *Sessions) Logout(ctx context.Context, token string) {
	claims := a.Verify(token)
	if claims == nil {
		return
	}
	err := a.store.DeleteSession(ctx, claims.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("failed to remove admin session", "error", err)
	}
}

// Authorize is the admin gate. It always verifies the token; in strict mode
// the tracking row must also exist and be unexpired, and an expired row is
// deleted on sight. Any store failure in strict mode denies access.
func (a *Sessions) Authorize(ctx context.Context, token string) (*SessionClaims, error) {
	claims := a.Verify(token)
	if claims == nil {
		return nil, ErrUnauthorized
	}
	if !a.strict {
		return claims, nil
	}

	session, err := a.store.GetSession(ctx, claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		slog.Error("failed to look up admin session", "error", err)
		return nil, ErrUnauthorized
	}

	if session.Expired(a.now()) {
		if err := a.store.DeleteSession(ctx, session.SessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("failed to remove expired admin session", "error", err)
		}
		return nil, ErrUnauthorized
	}

	return claims, nil
}

// SweepExpired deletes tracking rows past their expiry.
func (a *Sessions) SweepExpired(ctx context.Context) (int64, error) {
	n, err := a.store.DeleteExpiredSessions(ctx, a.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return n, nil
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
func (a *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.SweepExpired(ctx)
			if err != nil {
				slog.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("swept expired admin sessions", "count", n)
			}
		}
	}
}

func (a *Sessions) checkPassword(password string) bool {
	if a.passwordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
	}
	if a.password == "" {
		return false
	}
	return credential.Equal(password, a.password)
}
