package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"cinelist/models"
)

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service manages CineList accounts and their role records.
type Service struct {
	db *sql.DB
}

// NewService creates a users service on top of an open database.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create registers a new account. An empty password is allowed for invited
// accounts, which set one via the invite flow.
func (s *Service) Create(ctx context.Context, email, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, ErrEmailRequired
	}

	hash := ""
	if password != "" {
		if len(password) < 6 {
			return models.User{}, ErrPasswordTooShort
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(hashed)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// GetByID returns the account with the given id.
func (s *Service) GetByID(ctx context.Context, id string) (models.User, error) {
	return s.getBy(ctx, "id", strings.TrimSpace(id))
}

// GetByEmail returns the account registered under email.
func (s *Service) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) getBy(ctx context.Context, column, value string) (models.User, error) {
	if value == "" {
		return models.User{}, ErrUserNotFound
	}

	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE `+column+` = ?`,
		value,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// Authenticate checks email and password and returns the matching account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if !user.HasPassword() {
		return models.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// SetPassword replaces the account's password hash.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		string(hashed), strings.TrimSpace(id),
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}

	return nil
}

// IsAdmin reports whether the account holds the admin role. A default
// non-admin role row is created on first lookup if none exists.
func (s *Service) IsAdmin(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrUserNotFound
	}

	var isAdmin bool
	err := s.db.QueryRowContext(ctx,
		`SELECT is_admin FROM user_roles WHERE user_id = ?`, id,
	).Scan(&isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_roles (user_id, is_admin) VALUES (?, 0)`, id,
		); err != nil {
			return false, fmt.Errorf("create default role: %w", err)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query role: %w", err)
	}

	return isAdmin, nil
}

// SetAdmin grants or revokes the admin role.
func (s *Service) SetAdmin(ctx context.Context, id string, admin bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrUserNotFound
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, is_admin) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET is_admin = excluded.is_admin`,
		id, admin,
	)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
