package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/vince/internal/config"
	"github.com/kiranshivaraju/vince/internal/service"
	"github.com/kiranshivaraju/vince/internal/store"
	"github.com/kiranshivaraju/vince/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     testSecret,
		AdminPassword: "correct horse",
		SessionTTL:    24 * time.Hour,
	}
}

// clock is a settable time source.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newSessions(t *testing.T, s store.Store, cfg config.AuthConfig) (*service.Sessions, *clock) {
	t.Helper()
	c := &clock{t: time.Now().Truncate(time.Second)}
	a := service.NewSessions(s, cfg)
	a.SetClock(c.Now)
	return a, c
}

func TestSessions_IssueVerify(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())

	token, claims, err := a.Issue()
	require.NoError(t, err)
	assert.NotEmpty(t, claims.SessionID)

	got := a.Verify(token)
	require.NotNil(t, got)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, claims.SessionID, got.SessionID)
	assert.Equal(t, 24*time.Hour, got.ExpiresAt.Sub(got.IssuedAt.Time))
}

func TestSessions_TokenClaimNames(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())

	token, claims, err := a.Issue()
	require.NoError(t, err)

	payload := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, payload)
	require.NoError(t, err)

	assert.Equal(t, claims.SessionID, payload["sessionId"])
	assert.Equal(t, true, payload["isAdmin"])
	assert.Contains(t, payload, "iat")
	assert.Contains(t, payload, "exp")
	assert.NotContains(t, payload, "session_id")
}

func TestSessions_IssueUniqueSessionIDs(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())

	_, first, err := a.Issue()
	require.NoError(t, err)
	_, second, err := a.Issue()
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestSessions_VerifyExpired(t *testing.T) {
	a, c := newSessions(t, newStore(t), authConfig())

	token, _, err := a.Issue()
	require.NoError(t, err)

	c.Advance(24*time.Hour - time.Second)
	assert.NotNil(t, a.Verify(token))

	c.Advance(2 * time.Second)
	assert.Nil(t, a.Verify(token))
}

func TestSessions_VerifyRejects(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())
	token, _, err := a.Issue()
	require.NoError(t, err)

	otherCfg := authConfig()
	otherCfg.JWTSecret = "another-secret-another-secret-xx"
	other, _ := newSessions(t, newStore(t), otherCfg)

	assert.Nil(t, other.Verify(token), "wrong signing secret")
	assert.Nil(t, a.Verify(""), "empty token")
	assert.Nil(t, a.Verify("not.a.jwt"), "garbage")
	assert.Nil(t, a.Verify(token+"x"), "tampered signature")
}

func TestSessions_VerifyRequiresAdminClaim(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())

	claims := service.SessionClaims{
		SessionID: "abc",
		IsAdmin:   false,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	assert.Nil(t, a.Verify(token))
}

func TestSessions_VerifyRejectsOtherAlgorithms(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())

	claims := service.SessionClaims{
		SessionID: "abc",
		IsAdmin:   true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	assert.Nil(t, a.Verify(token))
}

func TestSessions_LoginWrongPassword(t *testing.T) {
	s := newStore(t)
	a, c := newSessions(t, s, authConfig())

	token, claims, err := a.Login(context.Background(), "wrong")
	assert.ErrorIs(t, err, service.ErrInvalidPassword)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Empty(t, token)
	assert.Nil(t, claims)

	n, err := s.DeleteExpiredSessions(context.Background(), c.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "no session row for a failed login")
}

func TestSessions_LoginEmptyPassword(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())

	_, _, err := a.Login(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestSessions_LoginAndLogout(t *testing.T) {
	s := newStore(t)
	a, _ := newSessions(t, s, authConfig())
	ctx := context.Background()

	token, claims, err := a.Login(ctx, "correct horse")
	require.NoError(t, err)
	require.NotNil(t, a.Verify(token))

	row, err := s.GetSession(ctx, claims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, claims.ExpiresAt.Unix(), row.ExpiresAt.Unix())

	a.Logout(ctx, token)
	_, err = s.GetSession(ctx, claims.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Logging out twice or with junk is harmless.
	a.Logout(ctx, token)
	a.Logout(ctx, "junk")
}

func TestSessions_LoginSucceedsWhenTrackingFails(t *testing.T) {
	s := &failingStore{Store: newStore(t), failSessions: true}
	a, _ := newSessions(t, s, authConfig())

	token, _, err := a.Login(context.Background(), "correct horse")
	require.NoError(t, err)
	assert.NotNil(t, a.Verify(token))
}

func TestSessions_LoginWithPasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := authConfig()
	cfg.AdminPassword = ""
	cfg.AdminPasswordHash = string(hash)
	a, _ := newSessions(t, newStore(t), cfg)

	_, _, err = a.Login(context.Background(), "s3cret")
	assert.NoError(t, err)

	_, _, err = a.Login(context.Background(), "correct horse")
	assert.ErrorIs(t, err, service.ErrInvalidPassword)
}

func TestSessions_NoPasswordConfiguredDeniesAll(t *testing.T) {
	cfg := authConfig()
	cfg.AdminPassword = ""
	a, _ := newSessions(t, newStore(t), cfg)

	_, _, err := a.Login(context.Background(), "anything")
	assert.ErrorIs(t, err, service.ErrInvalidPassword)
}

func TestSessions_AuthorizeDefaultTrustsSignature(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())
	ctx := context.Background()

	token, _, err := a.Login(ctx, "correct horse")
	require.NoError(t, err)
	a.Logout(ctx, token)

	// Without strict mode a logged-out token stays usable until it expires.
	_, err = a.Authorize(ctx, token)
	assert.NoError(t, err)

	_, err = a.Authorize(ctx, "")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestSessions_AuthorizeStrict(t *testing.T) {
	s := newStore(t)
	cfg := authConfig()
	cfg.SessionStrict = true
	a, c := newSessions(t, s, cfg)
	ctx := context.Background()

	token, claims, err := a.Login(ctx, "correct horse")
	require.NoError(t, err)

	_, err = a.Authorize(ctx, token)
	require.NoError(t, err)

	a.Logout(ctx, token)
	_, err = a.Authorize(ctx, token)
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	// A row that expired before the token did is removed on sight.
	require.NoError(t, s.CreateSession(ctx, &models.AdminSession{
		SessionID: claims.SessionID,
		ExpiresAt: c.Now().Add(-time.Minute),
		CreatedAt: c.Now().Add(-time.Hour),
	}))
	_, err = a.Authorize(ctx, token)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = s.GetSession(ctx, claims.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_SweepExpired(t *testing.T) {
	s := newStore(t)
	a, c := newSessions(t, s, authConfig())
	ctx := context.Background()

	_, first, err := a.Login(ctx, "correct horse")
	require.NoError(t, err)
	c.Advance(12 * time.Hour)
	_, second, err := a.Login(ctx, "correct horse")
	require.NoError(t, err)

	c.Advance(13 * time.Hour)
	n, err := a.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetSession(ctx, first.SessionID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetSession(ctx, second.SessionID)
	assert.NoError(t, err)
}

func TestSessions_RunSweeperStopsOnCancel(t *testing.T) {
	a, _ := newSessions(t, newStore(t), authConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		a.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
