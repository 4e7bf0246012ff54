package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/internal/store"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// UserStore provides persistence for user accounts and refresh tokens.
type UserStore struct {
	db *sql.DB
}

// NewUserStore runs the auth migrations and returns a UserStore.
func NewUserStore(ctx context.Context, st plugin.Store) (*UserStore, error) {
	if err := st.Migrate(ctx, "auth", migrations()); err != nil {
		return nil, fmt.Errorf("auth migrations: %w", err)
	}
	return &UserStore{db: st.DB()}, nil
}

func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	case store.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrUserExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const userColumns = `id, username, email, password_hash, role, created_at, last_login, disabled`

func scanUser(s query.Scanner) (*User, error) {
	var (
		u         User
		created   string
		lastLogin sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &created, &lastLogin, &u.Disabled); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = store.ParseTime(created); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t, err := store.ParseTime(lastLogin.String)
		if err != nil {
			return nil, err
		}
		u.LastLogin = &t
	}
	return &u, nil
}

// CreateUser inserts u.
func (s *UserStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_users (id, username, email, password_hash, role, created_at, disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), store.FormatTime(u.CreatedAt), u.Disabled)
	return storeErr("create user", err)
}

// GetUserByID returns a user by ID.
func (s *UserStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM auth_users WHERE id = ?`, id))
	return u, storeErr("get user", err)
}

// GetUserByUsername returns a user by username.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM auth_users WHERE username = ?`, username))
	return u, storeErr("get user", err)
}

// ListUsers returns all users in creation order.
func (s *UserStore) ListUsers(ctx context.Context) ([]User, error) {
	users, err := query.All(ctx, s.db, "auth_users", userColumns, "", "created_at, username", nil,
		func(sc query.Scanner) (User, error) {
			u, err := scanUser(sc)
			if err != nil {
				return User{}, err
			}
			return *u, nil
		})
	return users, storeErr("list users", err)
}

// UpdateUser writes the mutable fields of u.
func (s *UserStore) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auth_users SET email = ?, role = ?, disabled = ? WHERE id = ?`,
		u.Email, string(u.Role), u.Disabled, u.ID)
	if err != nil {
		return storeErr("update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update user: %w", ErrUserNotFound)
	}
	return nil
}

// UpdateLastLogin stamps the user's last login.
func (s *UserStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE auth_users SET last_login = ? WHERE id = ?`, store.FormatTime(at), userID)
	return storeErr("update last login", err)
}

// DeleteUser removes a user and, by cascade, their refresh tokens.
func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_users WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete user: %w", ErrUserNotFound)
	}
	return nil
}

// CountUsers returns the number of users.
func (s *UserStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auth_users`).Scan(&n)
	return n, storeErr("count users", err)
}

// RefreshToken is a stored refresh token. Only its hash is kept.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
}

// SaveRefreshToken stores a hashed refresh token.
func (s *UserStore) SaveRefreshToken(ctx context.Context, rt RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rt.ID, rt.UserID, rt.TokenHash, store.FormatTime(rt.ExpiresAt), store.FormatTime(time.Now()))
	return storeErr("save refresh token", err)
}

// GetRefreshToken looks up a refresh token by its hash.
func (s *UserStore) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var (
		rt      RefreshToken
		expires string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked FROM auth_refresh_tokens WHERE token_hash = ?`,
		tokenHash).Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &expires, &rt.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if rt.ExpiresAt, err = store.ParseTime(expires); err != nil {
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks a refresh token as revoked. It reports whether
// the token was still live, so concurrent refreshes cannot both rotate it.
func (s *UserStore) RevokeRefreshToken(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE auth_refresh_tokens SET revoked = 1 WHERE id = ? AND revoked = 0`, id)
	if err != nil {
		return false, storeErr("revoke refresh token", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// RevokeUserRefreshTokens revokes every refresh token of a user.
func (s *UserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE auth_refresh_tokens SET revoked = 1 WHERE user_id = ?`, userID)
	return storeErr("revoke user refresh tokens", err)
}

// CleanExpiredTokens removes expired and revoked refresh tokens.
func (s *UserStore) CleanExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_refresh_tokens WHERE expires_at < ? OR revoked = 1`, store.FormatTime(time.Now()))
	if err != nil {
		return 0, storeErr("clean refresh tokens", err)
	}
	return res.RowsAffected()
}

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create users and refresh tokens",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS auth_users (
						id            TEXT PRIMARY KEY,
						username      TEXT NOT NULL UNIQUE,
						email         TEXT NOT NULL UNIQUE,
						password_hash TEXT NOT NULL,
						role          TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'operator', 'viewer')),
						created_at    TEXT NOT NULL,
						last_login    TEXT,
						disabled      INTEGER NOT NULL DEFAULT 0
					)`,
					`CREATE TABLE IF NOT EXISTS auth_refresh_tokens (
						id         TEXT PRIMARY KEY,
						user_id    TEXT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
						token_hash TEXT NOT NULL UNIQUE,
						expires_at TEXT NOT NULL,
						created_at TEXT NOT NULL,
						revoked    INTEGER NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX IF NOT EXISTS idx_auth_refresh_tokens_user ON auth_refresh_tokens(user_id)`,
				}
				for _, s := range stmts {
					if _, err := tx.Exec(s); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
