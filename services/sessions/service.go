// Package sessions implements stateless signed-token sessions and the
// one-time code exchange used by the sign-up confirmation and invite flows.
// Session state is reconstructed from the token on every request; nothing is
// held in process memory.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-password/password"

	"cinelist/models"
)

var (
	ErrSecretRequired = errors.New("signing secret not provided")
	ErrTokenInvalid   = errors.New("session token is invalid or expired")
	ErrCodeInvalid    = errors.New("code is invalid, expired or already used")
	ErrUserIDRequired = errors.New("user id is required")
)

// CodeKind distinguishes what a one-time auth code is for.
type CodeKind string

const (
	// CodeKindConfirm confirms a freshly signed-up account.
	CodeKindConfirm CodeKind = "confirm"
	// CodeKindInvite lets an invited account establish a session and set a
	// password.
	CodeKindInvite CodeKind = "invite"
)

// CookieName carries the session token between browser and server.
const CookieName = "cinelist_session"

// Service issues and resolves session tokens and manages one-time auth codes.
type Service struct {
	db        *sql.DB
	secret    []byte
	ttl       time.Duration
	inviteTTL time.Duration
}

// NewService creates a sessions service. secret signs session tokens; ttl
// bounds session lifetime and inviteTTL bounds one-time code lifetime.
func NewService(db *sql.DB, secret string, ttl, inviteTTL time.Duration) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if inviteTTL <= 0 {
		inviteTTL = 72 * time.Hour
	}

	return &Service{db: db, secret: []byte(secret), ttl: ttl, inviteTTL: inviteTTL}, nil
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a session token for the given account.
func (s *Service) Issue(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Resolve validates a session token and returns the account id it was issued
// for.
func (s *Service) Resolve(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
	)
	if err != nil || !token.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}

// TokenFromRequest extracts the session token from the session cookie or an
// Authorization bearer header. An empty string means no token was presented.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// CreateCode mints a single-use auth code for the given account.
func (s *Service) CreateCode(ctx context.Context, userID string, kind CodeKind) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUserIDRequired
	}

	code, err := password.Generate(40, 10, 0, false, true)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	expires := time.Now().UTC().Add(s.inviteTTL)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_codes (code, user_id, kind, expires_at) VALUES (?, ?, ?, ?)`,
		code, userID, string(kind), expires,
	); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	return code, nil
}

// ExchangeCode consumes a one-time code and returns the account id and code
// kind. A code can be exchanged exactly once and only before it expires.
func (s *Service) ExchangeCode(ctx context.Context, code string) (string, CodeKind, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", "", ErrCodeInvalid
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin exchange: %w", err)
	}
	defer tx.Rollback()

	var (
		userID  string
		kind    string
		expires time.Time
		usedAt  sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, kind, expires_at, used_at FROM auth_codes WHERE code = ?`,
		code,
	).Scan(&userID, &kind, &expires, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrCodeInvalid
	}
	if err != nil {
		return "", "", fmt.Errorf("query code: %w", err)
	}

	now := time.Now().UTC()
	if usedAt.Valid || now.After(expires) {
		return "", "", ErrCodeInvalid
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auth_codes SET used_at = ? WHERE code = ?`, now, code,
	); err != nil {
		return "", "", fmt.Errorf("consume code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit exchange: %w", err)
	}

	return userID, CodeKind(kind), nil
}

type ctxKey struct{}

// WithUser stores the authenticated account on the request context.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFrom returns the authenticated account stored on the context, if any.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.User)
	return user, ok
}
