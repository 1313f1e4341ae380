package sessions

import (
	"context"
	"database/sql"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cinelist/internal/database"
	"cinelist/services/users"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *sql.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := NewService(db, "test-secret", ttl, time.Hour)
	require.NoError(t, err)
	return svc, db
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(nil, "  ", time.Hour, time.Hour)
	require.ErrorIs(t, err, ErrSecretRequired)
}

func TestIssueAndResolve(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	token, err := svc.Issue("user-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.Resolve(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", userID)

	_, err = svc.Issue("")
	require.ErrorIs(t, err, ErrUserIDRequired)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	_, err := svc.Resolve("")
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Resolve("not.a.token")
	require.ErrorIs(t, err, ErrTokenInvalid)

	// A token signed with a different secret must not resolve.
	other, err := NewService(nil, "other-secret", time.Hour, time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("user-42")
	require.NoError(t, err)
	_, err = svc.Resolve(foreign)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	// NewService refuses non-positive lifetimes, so build one directly.
	svc := &Service{secret: []byte("test-secret"), ttl: -time.Minute}

	token, err := svc.Issue("user-42")
	require.NoError(t, err)

	_, err = svc.Resolve(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenFromRequest(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	require.Equal(t, "header-token", TokenFromRequest(r))

	// The cookie wins over the header.
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	require.Equal(t, "cookie-token", TokenFromRequest(r))
}

func TestCodeExchangeIsSingleUse(t *testing.T) {
	svc, db := newTestService(t, time.Hour)
	ctx := context.Background()

	user, err := users.NewService(db).Create(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	code, err := svc.CreateCode(ctx, user.ID, CodeKindConfirm)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	userID, kind, err := svc.ExchangeCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
	require.Equal(t, CodeKindConfirm, kind)

	_, _, err = svc.ExchangeCode(ctx, code)
	require.ErrorIs(t, err, ErrCodeInvalid)
}

func TestExchangeUnknownOrExpiredCode(t *testing.T) {
	svc, db := newTestService(t, time.Hour)
	ctx := context.Background()

	_, _, err := svc.ExchangeCode(ctx, "no-such-code")
	require.ErrorIs(t, err, ErrCodeInvalid)

	user, err := users.NewService(db).Create(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	code, err := svc.CreateCode(ctx, user.ID, CodeKindInvite)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE auth_codes SET expires_at = ? WHERE code = ?`,
		time.Now().UTC().Add(-time.Minute), code)
	require.NoError(t, err)

	_, _, err = svc.ExchangeCode(ctx, code)
	require.ErrorIs(t, err, ErrCodeInvalid)
}
