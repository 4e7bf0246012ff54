package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrUserExists         = errors.New("username or email already exists")
	ErrSetupComplete      = errors.New("setup already completed")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// TokenPair contains an access token and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// NewUser holds the fields needed to create an account.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// Service provides authentication business logic.
type Service struct {
	store  *UserStore
	tokens *TokenService
	logger *zap.Logger
	cost   int
}

// NewService creates an auth Service.
func NewService(store *UserStore, tokens *TokenService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tokens: tokens, logger: logger}
}

// Tokens returns the token service for middleware use.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Login authenticates a user and returns a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("failed to record last login", zap.String("username", username), zap.Error(err))
	}
	s.logger.Info("user logged in", zap.String("username", username), zap.String("user_id", user.ID))
	return pair, nil
}

// Setup creates the initial admin account. Only works when no users exist.
func (s *Service) Setup(ctx context.Context, username, email, password string) (*User, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrSetupComplete
	}
	user, err := s.CreateUser(ctx, NewUser{Username: username, Email: email, Password: password, Role: RoleAdmin})
	if err != nil {
		return nil, err
	}
	s.logger.Info("initial admin account created", zap.String("username", username))
	return user, nil
}

// CreateUser adds a local account.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = RoleViewer
	}
	if !ValidRoles[in.Role] {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Refresh validates a refresh token and returns a new token pair. The
// presented token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rt, err := s.store.GetRefreshToken(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if rt.Revoked || rt.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvalidToken
	}
	live, err := s.store.RevokeRefreshToken(ctx, rt.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, rt.UserID)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, ErrUserDisabled
	}
	return s.issueTokenPair(ctx, user)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	rt, err := s.store.GetRefreshToken(ctx, HashToken(refreshToken))
	if errors.Is(err, ErrInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.store.RevokeRefreshToken(ctx, rt.ID)
	return err
}

// NeedsSetup reports whether no users exist yet.
func (s *Service) NeedsSetup(ctx context.Context) (bool, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// UpdateUser updates a user's email, role and disabled flag. Disabling a
// user revokes their refresh tokens.
func (s *Service) UpdateUser(ctx context.Context, id, email string, role Role, disabled bool) (*User, error) {
	if !ValidRoles[role] {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if email = strings.TrimSpace(email); email != "" {
		user.Email = email
	}
	user.Role = role
	user.Disabled = disabled

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	if disabled {
		if err := s.store.RevokeUserRefreshTokens(ctx, id); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// DeleteUser removes a user by ID.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}

// CleanExpiredTokens drops refresh tokens that can no longer be used.
func (s *Service) CleanExpiredTokens(ctx context.Context) {
	n, err := s.store.CleanExpiredTokens(ctx)
	if err != nil {
		s.logger.Warn("refresh token cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Debug("removed stale refresh tokens", zap.Int64("count", n))
	}
}

func (s *Service) issueTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	raw, hash, expiresAt, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	err = s.store.SaveRefreshToken(ctx, RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresIn:    int(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}
